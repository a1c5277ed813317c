// Package web serves stored analysis reports as a local web page.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/util"
)

// Server is the web server.
type Server struct {
	db     *storage.DB
	config *util.Config
	port   int
	srv    *http.Server
}

// NewServer creates a new web server.
func NewServer(db *storage.DB, cfg *util.Config, port int) *Server {
	return &Server{
		db:     db,
		config: cfg,
		port:   port,
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	h := NewHandlers(storage.NewRunStorage(s.db), s.config)

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /{$}", h.requireToken(h.Dashboard))
	mux.Handle("GET /api/report", h.requireToken(h.APIReport))
	mux.Handle("GET /api/runs", h.requireToken(h.APIRuns))
	mux.Handle("GET /download/json/{task}", h.requireToken(h.DownloadJSON))
	mux.Handle("GET /download/csv/{task}", h.requireToken(h.DownloadCSV))
	mux.Handle("GET /download/markdown/{task}", h.requireToken(h.DownloadMarkdown))

	return logRequests(mux)
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s.srv.Shutdown(shutdownCtx)
	}()

	util.Info("Web server starting on port %d", s.port)

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop stops the web server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		util.Debug("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

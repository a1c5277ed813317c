package web

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/report"
	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/util"
)

var errNotFound = errors.New("not_found")

// Handlers contains HTTP handlers.
type Handlers struct {
	runs   *storage.RunStorage
	config *util.Config
	tmpl   *template.Template
}

// NewHandlers creates new handlers.
func NewHandlers(runs *storage.RunStorage, cfg *util.Config) *Handlers {
	return &Handlers{
		runs:   runs,
		config: cfg,
		tmpl:   getReportTemplate(),
	}
}

// pageData feeds the report page template.
type pageData struct {
	View        *report.View
	Run         *model.Run
	Runs        []model.Run
	Token       string
	GeneratedAt string
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// Dashboard serves the report page for ?task= or the latest run.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Token:       r.URL.Query().Get("token"),
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	}

	runs, err := h.runs.List(h.config.HistoryLimit)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	data.Runs = runs

	run, err := h.loadRun(r.URL.Query().Get("task"))
	switch {
	case errors.Is(err, errNotFound):
		if r.URL.Query().Get("task") != "" {
			writeError(w, fmt.Errorf("unknown task"), http.StatusNotFound)
			return
		}
	case err != nil:
		writeError(w, err, http.StatusInternalServerError)
		return
	default:
		view, _, err := h.buildView(run)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		data.Run = run
		data.View = view
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		util.Error("Render report page: %v", err)
	}
}

// APIReport returns the display model of ?task= or the latest run.
func (h *Handlers) APIReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.loadRun(r.URL.Query().Get("task"))
	if err != nil {
		writeLoadError(w, err)
		return
	}

	view, _, err := h.buildView(run)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, view)
}

// APIRuns returns the recent history.
func (h *Handlers) APIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(h.config.HistoryLimit)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, runs)
}

// DownloadJSON serves the raw result document of a task.
func (h *Handlers) DownloadJSON(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task")
	run, err := h.loadRun(taskID)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	body, err := report.IndentJSON(run.Result)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(taskID, "json"))
	w.Write(body)
}

// DownloadCSV serves the accepted login events of a task as CSV.
func (h *Handlers) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task")
	run, err := h.loadRun(taskID)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	res, err := storage.DecodeResult(run)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	body, err := report.AcceptedCSV(res)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(taskID, "csv"))
	w.Write(body)
}

// DownloadMarkdown serves the markdown report of a task.
func (h *Handlers) DownloadMarkdown(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task")
	run, err := h.loadRun(taskID)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	view, res, err := h.buildView(run)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	content := report.FormatMarkdown(report.NewReportData(view, res, run.Server))

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(taskID, "md"))
	w.Write([]byte(content))
}

// requireToken rejects requests without the configured token. The token is
// accepted from the "token" query parameter or the X-Token header.
func (h *Handlers) requireToken(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.Token != "" {
			t := r.URL.Query().Get("token")
			if t == "" {
				t = r.Header.Get("X-Token")
			}
			if subtle.ConstantTimeCompare([]byte(t), []byte(h.config.Token)) != 1 {
				writeError(w, errors.New("unauthorized"), http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	})
}

// loadRun returns the run for taskID, or the latest run when taskID is empty.
func (h *Handlers) loadRun(taskID string) (*model.Run, error) {
	var (
		run *model.Run
		err error
	)
	if taskID == "" {
		run, err = h.runs.GetLatest()
	} else {
		run, err = h.runs.GetByTaskID(taskID)
	}
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errNotFound
	}
	return run, nil
}

func (h *Handlers) buildView(run *model.Run) (*report.View, *model.AnalysisResult, error) {
	res, err := storage.DecodeResult(run)
	if err != nil {
		return nil, nil, err
	}
	renderer := report.NewRenderer(report.NewMapView(h.config.TileURL), nil)
	return renderer.Render(run.TaskID, res), res, nil
}

func attachment(taskID, ext string) string {
	return fmt.Sprintf("attachment; filename=%q", taskID+"."+ext)
}

func writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotFound) {
		writeError(w, err, http.StatusNotFound)
		return
	}
	writeError(w, err, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

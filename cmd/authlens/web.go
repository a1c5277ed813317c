package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/web"
)

var webPort int

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve recorded reports as a web page",
	Long: `Start a lightweight web server for browsing recorded runs.

The web server provides:
- The report of the latest or a selected run
- A map of suspect IPs
- JSON, CSV and markdown downloads

Examples:
  authlens web
  authlens web --port 9090`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().IntVarP(&webPort, "port", "p", 0, "Web server port (default web_port)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	port := webPort
	if port == 0 {
		port = cfg.WebPort
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Starting web server on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop")

	srv := web.NewServer(db, cfg, port)
	return srv.Start(ctx)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/authlens/internal/tui"
	"github.com/user/authlens/internal/util"
)

var (
	analyzeTUI      bool
	analyzeNoSave   bool
	analyzeMarkdown bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Upload a log file and render the analysis",
	Long: `Upload an auth log to the analysis backend, follow its progress and
render the report once the analysis is done.

Examples:
  authlens analyze /var/log/auth.log
  authlens analyze auth.log --tui
  authlens analyze auth.log --markdown --server http://10.0.0.5:5000`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeTUI, "tui", false,
		"Follow the analysis in the interactive terminal view")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false,
		"Do not record the run in the local history")
	analyzeCmd.Flags().BoolVar(&analyzeMarkdown, "markdown", false,
		"Also write a markdown report to the report directory")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !util.FileExists(path) {
		return fmt.Errorf("file not found: %s", path)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p := newPipeline()

	if analyzeTUI {
		// The terminal belongs to the TUI; keep logs in the file only.
		util.InitLogger(cfg.LogLevel, cfg.LogFile, false)

		app := tui.NewApp(p.session, p.renderer, p.meter, tui.Options{
			Path:     path,
			Interval: cfg.PollInterval,
			OnResult: tuiResultHook(analyzeNoSave, analyzeMarkdown),
		})
		return app.Run(ctx)
	}

	p.showProgress()
	fmt.Printf("Uploading %s to %s...\n", path, cfg.ServerURL)

	h, err := p.session.Run(ctx, path, p.deliverPlain(analyzeNoSave, analyzeMarkdown))
	if err != nil {
		if h != nil {
			return fmt.Errorf("analysis of task %s failed: %w", h.TaskID, err)
		}
		return err
	}
	return nil
}

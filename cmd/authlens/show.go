package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/report"
	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/tui"
)

var (
	showFormat string
	showOutput string
)

var showCmd = &cobra.Command{
	Use:   "show [TASK_ID]",
	Short: "Render a recorded run",
	Long: `Render a run from the local history. Without a task ID the latest run
is shown.

Examples:
  authlens show
  authlens show 6f1c2a9e-... --format markdown -o report.md
  authlens show --format csv > accepted.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "text",
		"Output format (text, markdown, csv, json)")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "",
		"Output file path (default: stdout)")
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	runs := storage.NewRunStorage(db)

	var run *model.Run
	if len(args) == 1 {
		run, err = runs.GetByTaskID(args[0])
	} else {
		run, err = runs.GetLatest()
	}
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no recorded run found")
	}

	res, err := storage.DecodeResult(run)
	if err != nil {
		return err
	}

	var content []byte
	switch showFormat {
	case "text":
		view := report.NewRenderer(report.NewMapView(cfg.TileURL), nil).Render(run.TaskID, res)
		content = []byte(tui.RenderReport(view, reportWidth) + "\n")
	case "markdown", "md":
		view := report.NewRenderer(report.NewMapView(cfg.TileURL), nil).Render(run.TaskID, res)
		data := report.NewReportData(view, res, run.Server)
		data.GeneratedAt = run.CompletedAt.Local()
		content = []byte(report.FormatMarkdown(data))
	case "csv":
		content, err = report.AcceptedCSV(res)
	case "json":
		content, err = report.IndentJSON(run.Result)
	default:
		return fmt.Errorf("unknown format %q (want text, markdown, csv or json)", showFormat)
	}
	if err != nil {
		return err
	}

	if showOutput == "" || showOutput == "-" {
		_, err = os.Stdout.Write(content)
		return err
	}
	if err := os.WriteFile(showOutput, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", showOutput, err)
	}
	fmt.Fprintf(os.Stderr, "Report saved to: %s\n", showOutput)
	return nil
}

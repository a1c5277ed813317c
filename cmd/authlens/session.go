package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/authlens/internal/client"
	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/report"
	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/tracker"
	"github.com/user/authlens/internal/tui"
	"github.com/user/authlens/internal/util"
)

// reportWidth is the width used for plain terminal output.
const reportWidth = 100

// pipeline bundles the objects one tracked analysis needs.
type pipeline struct {
	client   *client.Client
	session  *tracker.Session
	meter    *tracker.Meter
	renderer *report.Renderer
}

func newPipeline() *pipeline {
	c := client.NewFromConfig(cfg)
	meter := tracker.NewMeter()
	return &pipeline{
		client: c,
		session: tracker.NewSession(c, tracker.Options{
			Interval:    cfg.PollInterval,
			MaxFailures: cfg.MaxPollFailures,
			Meter:       meter,
		}),
		meter:    meter,
		renderer: report.NewRenderer(report.NewMapView(cfg.TileURL), meter),
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// showProgress prints the meter on stderr whenever it changes.
func (p *pipeline) showProgress() {
	p.meter.OnChange(func(int) {
		fmt.Fprintf(os.Stderr, "\r%s", p.meter.View(40))
	})
}

// deliverPlain renders a result to stdout and records it unless noSave.
func (p *pipeline) deliverPlain(noSave bool, markdown bool) tracker.DeliverFunc {
	return func(h *tracker.Handle, res *model.AnalysisResult) {
		fmt.Fprintln(os.Stderr)
		view := p.renderer.Render(h.TaskID, res)
		fmt.Println(tui.RenderReport(view, reportWidth))

		if path := saveResult(h, view, res, noSave, markdown); path != "" {
			fmt.Printf("Report saved to: %s\n", path)
		}
	}
}

// tuiResultHook records and exports results delivered inside the TUI. The
// terminal belongs to the TUI, so the report path only goes to the log.
func tuiResultHook(noSave, markdown bool) tui.ResultHook {
	return func(h *tracker.Handle, view *report.View, res *model.AnalysisResult) {
		if path := saveResult(h, view, res, noSave, markdown); path != "" {
			util.Info("Report saved to: %s", path)
		}
	}
}

// saveResult records the run unless noSave and writes the markdown report
// when asked. It returns the report path, or "" when none was written.
func saveResult(h *tracker.Handle, view *report.View, res *model.AnalysisResult, noSave, markdown bool) string {
	if !noSave {
		recordRun(h.TaskID, h.SubmittedAt, res)
	}
	if !markdown {
		return ""
	}
	path, err := exportMarkdown(view, res)
	if err != nil {
		util.Error("Write markdown report: %v", err)
		return ""
	}
	return path
}

// exportMarkdown writes the markdown report of view into the report directory.
func exportMarkdown(view *report.View, res *model.AnalysisResult) (string, error) {
	data := report.NewReportData(view, res, cfg.ServerURL)
	return report.WriteMarkdownFile(data, cfg.ReportOutputDir)
}

// recordRun stores a delivered result in the local history.
func recordRun(taskID string, submittedAt time.Time, res *model.AnalysisResult) {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		util.Error("Open history: %v", err)
		return
	}

	run, err := storage.NewRun(taskID, cfg.ServerURL, submittedAt, res)
	if err != nil {
		util.Error("Record run %s: %v", taskID, err)
		return
	}
	if err := storage.NewRunStorage(db).Save(run); err != nil {
		util.Error("Record run %s: %v", taskID, err)
		return
	}
	util.Debug("Run %s recorded", taskID)
}

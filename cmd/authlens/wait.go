package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/authlens/internal/tui"
	"github.com/user/authlens/internal/util"
)

var (
	waitTUI      bool
	waitNoSave   bool
	waitMarkdown bool
)

var waitCmd = &cobra.Command{
	Use:   "wait TASK_ID",
	Short: "Follow an already submitted task",
	Long: `Resume tracking of a task that was submitted earlier, for example from
another terminal, and render its report once it is done.

Examples:
  authlens wait 6f1c2a9e-...
  authlens wait 6f1c2a9e-... --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runWait,
}

func init() {
	waitCmd.Flags().BoolVar(&waitTUI, "tui", false,
		"Follow the task in the interactive terminal view")
	waitCmd.Flags().BoolVar(&waitNoSave, "no-save", false,
		"Do not record the run in the local history")
	waitCmd.Flags().BoolVar(&waitMarkdown, "markdown", false,
		"Also write a markdown report to the report directory")
}

func runWait(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	ctx, cancel := signalContext()
	defer cancel()

	p := newPipeline()

	if waitTUI {
		util.InitLogger(cfg.LogLevel, cfg.LogFile, false)

		app := tui.NewApp(p.session, p.renderer, p.meter, tui.Options{
			TaskID:   taskID,
			Interval: cfg.PollInterval,
			OnResult: tuiResultHook(waitNoSave, waitMarkdown),
		})
		return app.Run(ctx)
	}

	p.showProgress()
	fmt.Printf("Waiting for task %s on %s...\n", taskID, cfg.ServerURL)

	h := p.session.Resume(taskID)
	if err := p.session.Track(ctx, h, p.deliverPlain(waitNoSave, waitMarkdown)); err != nil {
		return fmt.Errorf("task %s failed: %w", taskID, err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/authlens/internal/client"
	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/tracker"
)

var statusCmd = &cobra.Command{
	Use:   "status [TASK_ID]",
	Short: "Show backend progress of a task and local history stats",
	Long: `Query the backend once for the progress of a task. Without a task ID
only the local history stats are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	doneStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	pendingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	fmt.Println(titleStyle.Render("AuthLens Status"))
	fmt.Println()

	fmt.Print(labelStyle.Render("Backend: "))
	fmt.Println(valueStyle.Render(cfg.ServerURL))

	if len(args) == 1 {
		taskID := args[0]
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()

		c := client.NewFromConfig(cfg)
		rep, err := c.Progress(ctx, taskID)
		if err != nil {
			return err
		}

		fmt.Print(labelStyle.Render("Task: "))
		fmt.Println(valueStyle.Render(taskID))

		fmt.Print(labelStyle.Render("Status: "))
		if rep.Status.Done() {
			fmt.Println(doneStyle.Render("done"))
		} else {
			fmt.Println(pendingStyle.Render(string(rep.Status)))
		}

		if rep.Progress != nil {
			p := tracker.Clamp(*rep.Progress)
			fmt.Print(labelStyle.Render("Progress: "))
			fmt.Printf("%s %d%%\n", tracker.RenderBar(p, 100, 30), p)
		}
	}

	db, err := storage.Initialize(cfg.DataDir)
	if err == nil {
		fmt.Println()
		fmt.Println(titleStyle.Render("History"))

		runs := storage.NewRunStorage(db)
		if count, err := runs.Count(); err == nil {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Recorded runs:"),
				valueStyle.Render(fmt.Sprintf("%d", count)))
		}

		if latest, err := runs.GetLatest(); err == nil && latest != nil {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Latest task:"),
				valueStyle.Render(latest.TaskID))
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Completed:"),
				valueStyle.Render(latest.CompletedAt.Local().Format("2006-01-02 15:04:05")))
		}
	}

	return nil
}

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/authlens/internal/storage"
)

var (
	historyLimit  int
	historyDelete string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analysis runs",
	Long: `List the most recent analysis runs recorded in the local history.

Examples:
  authlens history
  authlens history --limit 50
  authlens history --delete 6f1c2a9e-...`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0,
		"Number of runs to show (default history_limit)")
	historyCmd.Flags().StringVar(&historyDelete, "delete", "",
		"Remove the run of a task from the history")
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	runs := storage.NewRunStorage(db)

	if historyDelete != "" {
		if err := runs.Delete(historyDelete); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", historyDelete)
		return nil
	}

	limit := historyLimit
	if limit <= 0 {
		limit = cfg.HistoryLimit
	}

	list, err := runs.List(limit)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	alertStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s  %-16s  %-24s  %8s  %8s  %8s  %s",
		"TASK", "COMPLETED", "FILE", "ACCEPTED", "FAILED", "SUSPECTS", "BRUTEFORCE")))

	for _, r := range list {
		file := r.File
		if file == "" {
			file = "-"
		}
		if len(file) > 24 {
			file = "..." + file[len(file)-21:]
		}
		bf := "no"
		if r.Bruteforce {
			bf = alertStyle.Render("yes")
		}
		fmt.Printf("%-36s  %-16s  %-24s  %8d  %8d  %8d  %s\n",
			r.TaskID, r.CompletedAt.Local().Format("2006-01-02 15:04"), file,
			r.AcceptedTotal, r.FailedTotal, r.SuspectCount, bf)
	}

	return nil
}

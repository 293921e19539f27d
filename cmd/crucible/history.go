package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/crucible/internal/history"
)

var (
	historyLimitFlag int
	historyShowFlag  string
	historyPruneFlag int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded executions",
	Long: `List past executions from the history store.

Examples:
  crucible history
  crucible history --limit 5
  crucible history --show 3fa8
  crucible history --prune 100`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum records to list")
	historyCmd.Flags().StringVar(&historyShowFlag, "show", "", "Show one execution by ID or ID prefix")
	historyCmd.Flags().IntVar(&historyPruneFlag, "prune", -1, "Delete all but the newest N records")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	_, store, _, err := buildEngine()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("history store is disabled (storage.enabled: false)")
	}
	defer store.Close()

	ctx := context.Background()

	if historyPruneFlag >= 0 {
		if err := store.Prune(ctx, historyPruneFlag); err != nil {
			return err
		}
		fmt.Printf("Pruned history to %d records\n", historyPruneFlag)
		return nil
	}

	if historyShowFlag != "" {
		rec, err := store.GetExecution(ctx, historyShowFlag)
		if err != nil {
			return err
		}
		fmt.Printf("ID:       %s\n", rec.ID)
		fmt.Printf("When:     %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration: %s\n", rec.Duration)
		fmt.Printf("Files:    %d\n", rec.FileCount)
		if rec.Failed() {
			fmt.Printf("Error:    %s: %s\n", rec.ErrorKind, rec.ErrorMessage)
		}
		fmt.Printf("\n--- code ---\n%s\n", rec.Code)
		if rec.Stdout != "" {
			fmt.Printf("\n--- stdout ---\n%s\n", rec.Stdout)
		}
		if rec.Stderr != "" {
			fmt.Printf("\n--- stderr ---\n%s\n", rec.Stderr)
		}
		return nil
	}

	records, err := store.ListExecutions(ctx, history.ListOptions{Limit: historyLimitFlag})
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No executions recorded yet.")
		return nil
	}

	for _, rec := range records {
		status := "ok"
		if rec.Failed() {
			status = rec.ErrorKind
		}
		fmt.Printf("%s  %s  %-14s %3d file(s)  %s\n",
			rec.ID[:8],
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			status,
			rec.FileCount,
			firstLine(rec.Code))
	}
	return nil
}

func firstLine(code string) string {
	line := code
	if idx := strings.IndexByte(code, '\n'); idx >= 0 {
		line = code[:idx]
	}
	if len(line) > 60 {
		line = line[:60] + "..."
	}
	return line
}

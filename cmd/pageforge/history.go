// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pageforge/internal/ledger"
	"github.com/pdiddy/pageforge/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the history ledger",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run in detail, including per-chunk outcomes",
	Long: `Show prints the full record of one run. The run ID may be abbreviated
to any unique prefix of the IDs listed by 'pageforge history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(historyPath())
	if err != nil {
		return fmt.Errorf("opening history ledger: %w", err)
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-19s  %-8s  %7s  %s\n", "ID", "STARTED", "STATUS", "RANGE", "OUTPUT")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-19s  %-8s  %7s  %s\n",
			r.RunID[:8],
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.Range,
			r.Output,
		)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(historyPath())
	if err != nil {
		return fmt.Errorf("opening history ledger: %w", err)
	}
	defer store.Close()

	report, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run:      %s\n", report.RunID)
	fmt.Fprintf(w, "started:  %s\n", report.Started.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "duration: %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "status:   %s\n", report.Status)
	fmt.Fprintf(w, "input:    %s (%d pages)\n", report.Input, report.TotalPages)
	fmt.Fprintf(w, "output:   %s\n", report.Output)
	fmt.Fprintf(w, "range:    %s across %d workers\n", report.Range, report.Workers)

	if len(report.Chain) > 0 {
		fmt.Fprintln(w, "chain:")
		for i, spec := range report.Chain {
			fmt.Fprintf(w, "  %d. %s\n", i+1, describeSpec(spec))
		}
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if len(report.Chunks) > 0 {
		fmt.Fprintln(w, "chunks:")
		for _, c := range report.Chunks {
			fmt.Fprintf(w, "  %s\n", describeChunk(c))
		}
	}
	return nil
}

func describeChunk(c types.ChunkResult) string {
	if c.Failed() {
		return fmt.Sprintf("chunk %d %s: FAILED: %s", c.ID, c.Range, c.Error)
	}
	return fmt.Sprintf("chunk %d %s: %d pages in %s", c.ID, c.Range, c.Pages, c.Duration.Round(time.Millisecond))
}

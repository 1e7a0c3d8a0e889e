package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vxkit/vxh/internal/config"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/sink"
	"github.com/vxkit/vxh/internal/storage"
)

var (
	historySince   string
	historyHost    string
	historyLimit   int
	historyPrune   string
	historyJournal bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs or show one stored report",
	Long: `List runs recorded in the local history database, newest first.
With a run id, print the stored report for that run.

--prune removes runs older than the given age before listing; the JSON output
then reports the pruned count alongside the runs.`,
	Example: `  vxh history --since 7d --human
  vxh history --prune 12w
  vxh history 0b6f3c1e-2a4d-4f57-9d7b-3c0e4d1a9f20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only runs newer than this age (e.g. 24h, 7d, 2w)")
	historyCmd.Flags().StringVar(&historyHost, "host-filter", "", "Only runs against this manager host")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyPrune, "prune", "", "Delete runs older than this age first")
	historyCmd.Flags().BoolVar(&historyJournal, "journal", false, "Read run summaries from journal_file instead of the database")
	rootCmd.AddCommand(historyCmd)
}

// PruneResponse reports how many runs were deleted and lists the runs that
// remain, filtered as without --prune.
type PruneResponse struct {
	Pruned int64         `json:"pruned"`
	Before time.Time     `json:"before"`
	Runs   []storage.Run `json:"runs"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig(cmd)

	filter, err := historyFilter(time.Now().UTC())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if historyJournal {
		if cfg.JournalFile == "" {
			exitWithError(ExitConfigError, "journal_file is not configured")
		}
		runs, err := storage.ReadJournal(cfg.JournalFile)
		if err != nil {
			exitWithError(ExitError, "reading journal: %v", err)
		}
		printRuns(storage.FilterRuns(runs, filter))
		return nil
	}

	h, err := storage.OpenHistory(cfg.HistoryDB)
	if err != nil {
		exitWithError(ExitError, "opening history: %v", err)
	}
	defer h.Close()

	if len(args) == 1 {
		showRun(cmd, h, args[0])
		return nil
	}

	var (
		pruned int64
		cutoff time.Time
	)
	if historyPrune != "" {
		age, err := config.ParseDuration(historyPrune)
		if err != nil {
			exitWithError(ExitError, "invalid --prune: %v", err)
		}
		cutoff = time.Now().UTC().Add(-age)
		if pruned, err = h.Prune(ctx, cutoff); err != nil {
			exitWithError(ExitError, "pruning history: %v", err)
		}
	}

	runs, err := h.ListRuns(ctx, filter)
	if err != nil {
		exitWithError(ExitError, "listing runs: %v", err)
	}
	if historyPrune == "" {
		printRuns(runs)
		return nil
	}

	resp := pruneResponse(pruned, cutoff, runs)
	output(resp, func() {
		outputHuman("Pruned %d runs older than %s\n\n", resp.Pruned, resp.Before.Format(time.RFC3339))
		fmt.Print(sink.FormatRuns(resp.Runs, colored()))
	})
	return nil
}

// pruneResponse reports a prune together with the remaining runs.
func pruneResponse(n int64, cutoff time.Time, runs []storage.Run) PruneResponse {
	if runs == nil {
		runs = []storage.Run{}
	}
	return PruneResponse{Pruned: n, Before: cutoff, Runs: runs}
}

// historyFilter builds the run filter from the flags.
func historyFilter(now time.Time) (storage.RunFilter, error) {
	filter := storage.RunFilter{Host: historyHost, Limit: historyLimit}
	if historySince != "" {
		age, err := config.ParseDuration(historySince)
		if err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = now.Add(-age)
	}
	return filter, nil
}

func printRuns(runs []storage.Run) {
	if runs == nil {
		runs = []storage.Run{}
	}
	output(runs, func() { fmt.Print(sink.FormatRuns(runs, colored())) })
}

func showRun(cmd *cobra.Command, h *storage.History, runID string) {
	raw, err := h.LoadReport(cmd.Context(), runID)
	if err != nil {
		exitWithError(ExitError, "loading run: %v", err)
	}
	if raw == nil {
		exitWithError(ExitError, "run %q not found", runID)
	}

	if !humanOutput {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			exitWithError(ExitError, "decoding stored report: %v", err)
		}
		output(v, nil)
		return
	}

	var r report.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		exitWithError(ExitError, "decoding stored report: %v", err)
	}
	fmt.Print(sink.FormatReport(&r, colored()))
}

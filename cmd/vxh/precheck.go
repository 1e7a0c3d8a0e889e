package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vxkit/vxh/internal/metrics"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/sink"
	"github.com/vxkit/vxh/internal/tracker"
)

var (
	precheckPath      string
	precheckRequestID string
	precheckNoSave    bool
)

var precheckCmd = &cobra.Command{
	Use:   "precheck",
	Short: "Run a pre-check and wait for its result",
	Long: `Submit a pre-check to VxRail Manager and poll it until it completes,
fails, or runs out of time (max_wait). The parsed check list is printed.

Use --request-id to resume tracking a request submitted earlier.`,
	Example: `  vxh precheck --human
  vxh precheck --path /v1/lcm/precheck
  vxh precheck --request-id 7f2c1e`,
	RunE: runPrecheck,
}

func init() {
	precheckCmd.Flags().StringVar(&precheckPath, "path", "", "Pre-check submit path (default precheck_path or /v1/system/precheck)")
	precheckCmd.Flags().StringVar(&precheckRequestID, "request-id", "", "Track an already-submitted request instead of submitting")
	precheckCmd.Flags().BoolVar(&precheckNoSave, "no-save", false, "Do not write the report file or history")
	rootCmd.AddCommand(precheckCmd)
}

func runPrecheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig(cmd)
	logger := newLogger(cfg)
	defer logger.Sync()

	path := precheckPath
	if path == "" {
		path = cfg.PrecheckPath
	}
	job := tracker.PrecheckJob(path)

	m := metrics.New()
	client := mustConnect(ctx, cfg, logger, m)
	t := newTracker(client, cfg, logger)

	var (
		outcome tracker.Outcome
		err     error
	)
	if precheckRequestID != "" {
		outcome, err = t.AwaitCompletion(ctx, tracker.NewHandle(precheckRequestID, job),
			cfg.PollInterval.Std(), cfg.MaxWait.Std())
	} else {
		outcome, err = t.Run(ctx, job, cfg.PollInterval.Std(), cfg.MaxWait.Std())
	}
	switch {
	case err == nil:
	case exitCodeFor(err) == ExitAuthError:
		exitOnError(err)
	case errors.Is(err, tracker.ErrSubmission), errors.Is(err, tracker.ErrInvalidHandle):
		exitWithError(ExitError, "%v", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		exitWithError(ExitError, "%v", ctxErr)
	}

	r := report.New(client.Host(), report.WithPrecheck(outcome, err))
	saved := deliver(ctx, r, m, cfg, logger, !precheckNoSave)

	output(r, func() {
		fmt.Print(sink.FormatReport(r, colored()))
		if saved != "" {
			outputHuman("\nReport saved to %s\n", saved)
		}
	})

	if code := verdictExitCode(r.Verdict); code != ExitSuccess {
		os.Exit(code)
	}
	return nil
}

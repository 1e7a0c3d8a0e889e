package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/metrics"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/sink"
	"github.com/vxkit/vxh/internal/tracker"
	"github.com/vxkit/vxh/internal/vxrail"
)

var (
	checkKinds    []string
	checkPrecheck bool
	checkNoSave   bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report cluster, host and storage health",
	Long: `Query VxRail Manager for the health of the requested kinds and report a
verdict: healthy, unhealthy or unknown.

The report also carries system information and, where the manager has the
endpoint, the support account status.

With --precheck a system pre-check is submitted and tracked alongside the
health queries; failed checks make the verdict unhealthy.

The report is saved to output_dir and the run history unless --no-save is
given. The exit code reflects the verdict (0 healthy, 4 unhealthy, 5 unknown).`,
	Example: `  vxh check
  vxh check --kinds storage --human
  vxh check --precheck`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringSliceVarP(&checkKinds, "kinds", "k", nil, "Kinds to check: cluster, host, storage (default all)")
	checkCmd.Flags().BoolVar(&checkPrecheck, "precheck", false, "Also run and track a system pre-check")
	checkCmd.Flags().BoolVar(&checkNoSave, "no-save", false, "Do not write the report file or history")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig(cmd)
	logger := newLogger(cfg)
	defer logger.Sync()

	kindNames := checkKinds
	if len(kindNames) == 0 {
		kindNames = cfg.Kinds
	}
	kinds, err := health.ParseKinds(kindNames...)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	m := metrics.New()
	client := mustConnect(ctx, cfg, logger, m)
	agg := health.NewAggregator(client, health.WithLogger(logger), health.WithWorkers(cfg.Workers))

	var (
		healthReport *health.Report
		system       *vxrail.SystemInfo
		support      *vxrail.SupportAccount
		outcome      tracker.Outcome
		precheckErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		healthReport, err = agg.Aggregate(gctx, kinds)
		return err
	})
	if needsSystemFetch(kinds) {
		g.Go(func() error {
			var info vxrail.SystemInfo
			ok, err := fetchOptional(gctx, client, vxrail.PathSystem, &info, logger)
			if ok {
				system = &info
			}
			return err
		})
	}
	g.Go(func() error {
		var account vxrail.SupportAccount
		ok, err := fetchOptional(gctx, client, vxrail.PathSupportAccount, &account, logger)
		if ok {
			support = &account
		}
		return err
	})
	if checkPrecheck {
		g.Go(func() error {
			t := newTracker(client, cfg, logger)
			outcome, precheckErr = t.Run(gctx, tracker.PrecheckJob(cfg.PrecheckPath),
				cfg.PollInterval.Std(), cfg.MaxWait.Std())
			if vxrail.IsUnauthorized(precheckErr) {
				return precheckErr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		exitOnError(err)
	}
	if err := ctx.Err(); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if system == nil {
		system = healthReport.System()
	}

	opts := []report.Option{
		report.WithHealth(healthReport),
		report.WithSystem(system),
		report.WithSupport(support),
	}
	if checkPrecheck {
		opts = append(opts, report.WithPrecheck(outcome, precheckErr))
	}
	r := report.New(client.Host(), opts...)

	saved := deliver(ctx, r, m, cfg, logger, !checkNoSave)

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

// needsSystemFetch reports whether system information has to be fetched on
// its own. The cluster kind decodes it from the same /v3/system response.
func needsSystemFetch(kinds []health.Kind) bool {
	return len(kinds) > 0 && !slices.Contains(kinds, health.KindCluster)
}

// jsonGetter is the part of the API client used for report decorations.
type jsonGetter interface {
	GetJSON(ctx context.Context, path string, out any) error
}

// fetchOptional decodes path into out for a part of the report the verdict
// does not depend on. Failures are logged and reported as false, except a
// rejected credential, which is returned.
func fetchOptional(ctx context.Context, c jsonGetter, path string, out any, logger *zap.Logger) (bool, error) {
	err := c.GetJSON(ctx, path, out)
	switch {
	case err == nil:
		return true, nil
	case vxrail.IsUnauthorized(err):
		return false, err
	default:
		logger.Debug("optional endpoint unavailable",
			zap.String("path", path), zap.String("class", vxrail.Class(err)))
		return false, nil
	}
}

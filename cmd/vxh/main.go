// Package main provides the vxh CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vxkit/vxh/internal/config"
	"github.com/vxkit/vxh/internal/credentials"
	"github.com/vxkit/vxh/internal/logging"
	"github.com/vxkit/vxh/internal/metrics"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/sink"
	"github.com/vxkit/vxh/internal/storage"
	"github.com/vxkit/vxh/internal/tracker"
	"github.com/vxkit/vxh/internal/vxrail"
)

// Version is set at build time via ldflags
var Version = "dev"

// Global flags
var (
	humanOutput bool
	verbose     bool
	configFlag  string
	hostFlag    string
	userFlag    string
	verifyTLS   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vxh",
	Short: "VxRail Manager health checks",
	Long: `vxh queries a VxRail Manager's REST API for cluster, host and disk health,
runs pre-checks and tracks them to completion, and records each run.

Connection settings come from ~/.config/vxh/config.yml, then VXRAIL_*
environment variables (a .env file in the working directory is loaded),
then flags. The password is read from VXRAIL_PASSWORD or prompted for.

All commands output JSON by default; use --human for tables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.config/vxh/config.yml)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "VxRail Manager host, IP or URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "username", "u", "", "VxRail Manager username")
	rootCmd.PersistentFlags().BoolVar(&verifyTLS, "verify-tls", false, "Verify the manager's TLS certificate")
	rootCmd.Version = Version
}

// mustLoadConfig merges the config file, environment and flags, exits on error.
func mustLoadConfig(cmd *cobra.Command) *config.Config {
	// A missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if userFlag != "" {
		cfg.Username = userFlag
	}
	if cmd.Flags().Changed("verify-tls") {
		cfg.VerifyTLS = verifyTLS
	}

	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// configPath returns the config file named by --config or the default.
func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.Path()
}

// newLogger builds the stderr logger for cfg.
func newLogger(cfg *config.Config) *zap.Logger {
	return logging.New(logging.Options{Verbose: verbose, Level: cfg.LogLevel})
}

// mustConnect resolves credentials and creates the API client, exits on error.
// Static values from config and flags come first, then the environment, then
// an interactive prompt when stdin is a terminal.
func mustConnect(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *vxrail.Client {
	providers := []credentials.Provider{
		credentials.Static(vxrail.Credentials{Host: cfg.Host, Username: cfg.Username}),
		credentials.Env{Getenv: os.Getenv},
	}
	if prompt := credentials.NewPrompt(); prompt.Interactive() {
		providers = append(providers, prompt)
	}

	creds, err := credentials.Resolve(ctx, providers...)
	if err != nil {
		if creds.Host == "" {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "%v", err)
	}

	opts := []vxrail.ClientOption{
		vxrail.WithVerifyTLS(cfg.VerifyTLS),
		vxrail.WithTimeout(cfg.Timeout.Std()),
		vxrail.WithRateLimit(cfg.RateLimit),
		vxrail.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, vxrail.WithObserver(m))
	}

	client, err := vxrail.NewClient(creds, opts...)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	logger.Debug("connecting", zap.Object("credentials", creds), zap.Bool("verify_tls", cfg.VerifyTLS))
	return client
}

// newTracker creates a request tracker with the configured miss bound.
func newTracker(client *vxrail.Client, cfg *config.Config, logger *zap.Logger) *tracker.Tracker {
	return tracker.New(client,
		tracker.WithLogger(logger),
		tracker.WithMaxConsecutiveMisses(cfg.MaxPollMisses))
}

// openSinks builds the report sinks enabled by cfg. save controls the file
// and history sinks; the textfile and Kafka sinks follow their own settings.
func openSinks(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger, save bool) (*sink.Multi, *sink.FileSink) {
	multi := &sink.Multi{Logger: logger}
	var file *sink.FileSink

	if save {
		file = &sink.FileSink{Dir: cfg.OutputDir}
		multi.Sinks = append(multi.Sinks, file)

		if cfg.JournalFile != "" {
			multi.Sinks = append(multi.Sinks, &sink.JournalSink{Path: cfg.JournalFile})
		}
		if cfg.HistoryDB != "" {
			h, err := storage.OpenHistory(cfg.HistoryDB)
			if err != nil {
				logger.Warn("run history unavailable", zap.String("path", cfg.HistoryDB), zap.Error(err))
			} else {
				multi.Sinks = append(multi.Sinks, &sink.HistorySink{History: h})
			}
		}
	}
	if cfg.MetricsFile != "" {
		multi.Sinks = append(multi.Sinks, &sink.TextfileSink{Metrics: m, Path: cfg.MetricsFile})
	}
	if cfg.Kafka.Enabled() {
		multi.Sinks = append(multi.Sinks, sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	return multi, file
}

// deliver writes r to every enabled sink and returns the report file path,
// if one was written. Sink failures are reported but do not change the exit
// code.
func deliver(ctx context.Context, r *report.Report, m *metrics.Metrics, cfg *config.Config, logger *zap.Logger, save bool) string {
	multi, file := openSinks(cfg, m, logger, save)
	defer multi.Close()

	if err := multi.Write(ctx, r); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if file == nil {
		return ""
	}
	return file.LastPath
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/storemap/internal/config"
	"github.com/UnknownOlympus/storemap/internal/geocoding"
	"github.com/UnknownOlympus/storemap/internal/metrics"
	"github.com/UnknownOlympus/storemap/internal/repository"
	"github.com/UnknownOlympus/storemap/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "storemap",
	Short: "Geocode unresolved store addresses",
	Long: "Reads store records without coordinates, resolves their addresses with the configured " +
		"geocoding provider and writes the coordinates back in batches. One invocation is one run; " +
		"it stops when the backlog is empty, the daily limit is reached or the provider throttles.",
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		cfg = config.MustLoad()
	},
	RunE: runEnrichment,
}

func init() {
	rootCmd.Flags().Int("batch-size", 0, "records fetched and committed together (overrides STOREMAP_BATCH_SIZE)")
	rootCmd.Flags().Int("workers", 0, "concurrent provider calls (overrides STOREMAP_WORKERS)")
	rootCmd.Flags().Int("daily-limit", 0, "successful resolutions allowed in this run (overrides STOREMAP_DAILY_LIMIT)")

	rootCmd.AddCommand(statusCmd)
}

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEnrichment(cmd *cobra.Command, _ []string) error {
	// Cancel the run on interrupt, already obtained results are still committed.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := applyOverrides(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	geoProvider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.ProviderType),
		APIKey:    cfg.APIKey,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.ProviderType)

	dtb, err := repository.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dtb.Close()

	repo := repository.NewRepository(dtb, logger, cfg.MaxAttempts)
	coordinator := service.NewCoordinator(
		logger,
		geoProvider,
		cfg.ProviderType, // Provider name for metrics
		appMetrics,
		cfg.Workers,
		cfg.RequestTimeout,
		cfg.AddrPrefix,
	)
	runner := service.NewRunner(logger, repo, coordinator, appMetrics, cfg.BatchSize, cfg.DailyLimit)

	if cfg.Port > 0 {
		server := startMonitoringServer(ctx, logger, reg, dtb, cfg.Port)
		defer shutdownMonitoringServer(ctx, logger, server)
	}

	summary := runner.Run(ctx)
	printSummary(cmd.OutOrStdout(), summary)

	if cfg.PushgatewayURL != "" {
		pushMetrics(ctx, logger, reg, cfg.PushgatewayURL, summary.RunID)
	}

	return summary.Err
}

// applyOverrides copies explicitly set command line flags over the loaded configuration.
func applyOverrides(flags *pflag.FlagSet, c *config.Config) error {
	overrides := map[string]*int{
		"batch-size":  &c.BatchSize,
		"workers":     &c.Workers,
		"daily-limit": &c.DailyLimit,
	}
	for name, target := range overrides {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetInt(name)
		if err != nil {
			return fmt.Errorf("failed to read --%s: %w", name, err)
		}
		*target = value
	}

	return nil
}

// printSummary writes the human readable result of a run.
func printSummary(out io.Writer, summary service.Summary) {
	fmt.Fprintf(out, "Run %s finished: %s\n", summary.RunID, summary.Reason)
	fmt.Fprintf(out, "  resolved:  %d (in %d batches)\n", summary.Resolved, summary.Batches)
	fmt.Fprintf(out, "  not found: %d\n", summary.NotFound)
	fmt.Fprintf(out, "  errors:    %d\n", summary.Transient)
	fmt.Fprintf(out, "  discarded: %d\n", summary.Discarded)
	fmt.Fprintf(out, "  duration:  %s\n", summary.Duration.Round(time.Millisecond))

	if summary.Err != nil {
		fmt.Fprintf(out, "Run failed: %v\n", summary.Err)
	}
	if summary.NeedsRerun() {
		fmt.Fprintln(out, "Unresolved records remain. Run storemap again tomorrow to continue.")
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

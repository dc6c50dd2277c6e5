package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/UnknownOlympus/storemap/internal/models"
	"github.com/UnknownOlympus/storemap/internal/repository"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show geocoding progress",
	Long:  "Display how many store records are resolved, still unresolved or permanently failed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := setupLogger(cfg.Env)

		dtb, err := repository.NewDatabase(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dtb.Close()

		return reportStatus(ctx, cmd.OutOrStdout(), repository.NewRepository(dtb, logger, cfg.MaxAttempts))
	},
}

// reportStatus prints the number of records per coordinate state.
func reportStatus(ctx context.Context, out io.Writer, repo repository.Interface) error {
	counts, err := repo.CountByState(ctx)
	if err != nil {
		return err
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "STATE\tRECORDS\n")
	for _, state := range []models.RecordState{
		models.StateResolved,
		models.StateUnresolved,
		models.StatePermanentlyFailed,
	} {
		fmt.Fprintf(writer, "%s\t%d\n", state, counts[state])
	}
	fmt.Fprintf(writer, "total\t%d\n", total)

	return writer.Flush()
}

package repository

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/storemap/internal/models"
)

// Repository reads the geocoding backlog from the store table and writes results back to it.
type Repository struct {
	db          Database
	log         *slog.Logger
	maxAttempts int
}

// Source pulls the next batch of unresolved records.
type Source interface {
	FetchUnresolved(ctx context.Context, afterID int64, limit int) ([]models.Record, error)
}

// Sink persists the outcome of a processed batch.
type Sink interface {
	CommitResults(ctx context.Context, results []models.GeocodeResult) (int64, error)
	RecordFailures(ctx context.Context, failures []models.Failure) error
}

// Interface is the full store-of-record surface used by the commands.
type Interface interface {
	Source
	Sink
	CountByState(ctx context.Context) (map[models.RecordState]int64, error)
}

// NewRepository creates a new instance of Repository with the provided Database.
// Records with maxAttempts or more recorded not-found attempts are treated as permanently failed.
func NewRepository(db Database, log *slog.Logger, maxAttempts int) *Repository {
	return &Repository{db: db, log: log, maxAttempts: maxAttempts}
}

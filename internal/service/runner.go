package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/storemap/internal/metrics"
	"github.com/UnknownOlympus/storemap/internal/repository"
	"github.com/google/uuid"
)

// RunState is a state of the run controller.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateFetching     RunState = "fetching"
	StateCoordinating RunState = "coordinating"
	StatePersisting   RunState = "persisting"
	StateTerminated   RunState = "terminated"
)

// Reason explains why a run terminated.
type Reason string

const (
	ReasonExhausted    Reason = "exhausted"
	ReasonQuotaReached Reason = "quota-reached"
	ReasonRateLimited  Reason = "rate-limited"
	ReasonFatalError   Reason = "fatal-error"
)

const defaultPersistTimeout = 30 * time.Second

// Store is the part of the repository a run reads from and writes to.
type Store interface {
	repository.Source
	repository.Sink
}

// Summary is reported to the caller once a run terminates.
type Summary struct {
	RunID     string
	Resolved  int
	NotFound  int
	Transient int
	Discarded int
	Batches   int
	Reason    Reason
	Err       error
	Duration  time.Duration
}

// NeedsRerun reports whether unresolved records may remain because the run was cut short
// by the provider rather than by the backlog running out.
func (s Summary) NeedsRerun() bool {
	return s.Reason == ReasonQuotaReached || s.Reason == ReasonRateLimited
}

// Runner drives one enrichment run: fetch a batch, geocode it, persist it, repeat.
type Runner struct {
	log            *slog.Logger
	store          Store
	coordinator    *Coordinator
	metrics        *metrics.Metrics
	batchSize      int
	dailyLimit     int
	persistTimeout time.Duration
	state          RunState
}

// NewRunner creates a Runner. A Runner is meant to execute a single run.
func NewRunner(
	log *slog.Logger,
	store Store,
	coordinator *Coordinator,
	metrics *metrics.Metrics,
	batchSize int,
	dailyLimit int,
) *Runner {
	return &Runner{
		log:            log,
		store:          store,
		coordinator:    coordinator,
		metrics:        metrics,
		batchSize:      batchSize,
		dailyLimit:     dailyLimit,
		persistTimeout: defaultPersistTimeout,
		state:          StateIdle,
	}
}

// State returns the current state of the run.
func (r *Runner) State() RunState {
	return r.state
}

// Run processes the backlog until it is exhausted, the daily limit is reached,
// the provider throttles, or an unrecoverable error occurs.
//
// Results of a batch are persisted even when the batch was cut short. Persisting is
// detached from ctx cancellation so lookups already paid for are not lost on shutdown.
func (r *Runner) Run(ctx context.Context) Summary {
	startTime := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	log := r.log.With("run_id", summary.RunID)
	gov := NewGovernor(r.dailyLimit)
	var afterID int64

	log.InfoContext(ctx, "Geocoding run started", "batch_size", r.batchSize, "daily_limit", r.dailyLimit)
	r.metrics.QuotaRemaining.Set(float64(gov.Remaining()))

	finish := func(reason Reason, err error) Summary {
		r.transition(ctx, log, StateTerminated)
		summary.Reason = reason
		summary.Err = err
		summary.Duration = time.Since(startTime)
		r.metrics.Runs.WithLabelValues(string(reason)).Inc()

		attrs := []any{
			"reason", reason,
			"resolved", summary.Resolved,
			"not_found", summary.NotFound,
			"transient", summary.Transient,
			"discarded", summary.Discarded,
			"batches", summary.Batches,
			"duration", summary.Duration,
		}
		if err != nil {
			log.ErrorContext(ctx, "Geocoding run failed", append(attrs, "error", err)...)
		} else {
			log.InfoContext(ctx, "Geocoding run finished", attrs...)
		}

		return summary
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(ReasonFatalError, fmt.Errorf("run interrupted: %w", err))
		}
		if gov.Remaining() == 0 {
			return finish(ReasonQuotaReached, nil)
		}

		r.transition(ctx, log, StateFetching)
		batch, err := r.store.FetchUnresolved(ctx, afterID, gov.Clamp(r.batchSize))
		if err != nil {
			return finish(ReasonFatalError, fmt.Errorf("failed to fetch unresolved records: %w", err))
		}
		if len(batch) == 0 {
			return finish(ReasonExhausted, nil)
		}
		afterID = batch[len(batch)-1].ID

		r.transition(ctx, log, StateCoordinating)
		report := r.coordinator.Process(ctx, batch, gov)

		r.transition(ctx, log, StatePersisting)
		summary.NotFound += report.NotFound
		summary.Transient += report.Transient
		summary.Discarded += report.Discarded
		committed, err := r.persist(ctx, report)
		summary.Resolved += int(committed)
		if err != nil {
			return finish(ReasonFatalError, err)
		}
		summary.Batches++
		r.metrics.BatchesCommitted.Inc()

		log.InfoContext(ctx, "Batch committed",
			"batch", summary.Batches,
			"size", len(batch),
			"resolved", report.Resolved,
			"not_found", report.NotFound,
			"transient", report.Transient,
			"discarded", report.Discarded,
			"committed", committed,
			"total_resolved", summary.Resolved,
			"remaining_quota", gov.Remaining(),
		)

		if report.Status == BatchAbortedRateLimited {
			return finish(ReasonRateLimited, nil)
		}
		if gov.Exhausted() {
			return finish(ReasonQuotaReached, nil)
		}
	}
}

// persist writes the batch results and not-found failures. It returns the number of
// records resolved by the commit, which stays valid when recording failures fails afterwards.
func (r *Runner) persist(ctx context.Context, report BatchReport) (int64, error) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
	defer cancel()

	committed, err := r.store.CommitResults(persistCtx, report.Results)
	if err != nil {
		return 0, fmt.Errorf("failed to commit batch results: %w", err)
	}
	if err = r.store.RecordFailures(persistCtx, report.Failures); err != nil {
		return committed, fmt.Errorf("failed to record not-found failures: %w", err)
	}

	return committed, nil
}

func (r *Runner) transition(ctx context.Context, log *slog.Logger, to RunState) {
	log.DebugContext(ctx, "Run state changed", "from", r.state, "to", to)
	r.state = to
}

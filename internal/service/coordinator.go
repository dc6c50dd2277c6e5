package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/storemap/internal/geocoding"
	"github.com/UnknownOlympus/storemap/internal/metrics"
	"github.com/UnknownOlympus/storemap/internal/models"
	"golang.org/x/sync/semaphore"
)

// BatchStatus tells the run controller how a batch ended.
type BatchStatus string

const (
	BatchCompleted          BatchStatus = "completed"
	BatchAbortedRateLimited BatchStatus = "aborted-rate-limited"
)

// BatchReport is what a single batch produced.
// Results and Failures only contain lookups that completed before the batch was stopped.
type BatchReport struct {
	Results    []models.GeocodeResult
	Failures   []models.Failure
	Dispatched int
	Resolved   int
	NotFound   int
	Transient  int
	Discarded  int
	Status     BatchStatus
}

type lookupResult struct {
	record  models.Record
	outcome models.Outcome
}

// Coordinator geocodes one batch of records with bounded concurrency.
// With a single worker the batch is processed strictly in order.
type Coordinator struct {
	log            *slog.Logger       // Logger for batch activity
	provider       geocoding.Provider // Provider queried for every record
	providerName   string             // Name of the provider for metrics labeling
	metrics        *metrics.Metrics   // Metrics for tracking lookups
	workers        int                // Maximum number of provider calls in flight
	requestTimeout time.Duration      // Deadline of a single provider call
	addressPrefix  string             // Prepended to every address before lookup
}

// NewCoordinator creates a Coordinator. A workers value below one is treated as one.
func NewCoordinator(
	log *slog.Logger,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	workers int,
	requestTimeout time.Duration,
	addressPrefix string,
) *Coordinator {
	return &Coordinator{
		log:            log,
		provider:       provider,
		providerName:   providerName,
		metrics:        metrics,
		workers:        max(workers, 1),
		requestTimeout: requestTimeout,
		addressPrefix:  addressPrefix,
	}
}

// Process dispatches the batch to the provider and collects the outcomes.
//
// The governor is consulted as each result arrives. Once it is exhausted, or as
// soon as any lookup reports throttling, no further records are dispatched,
// in-flight calls are cancelled and whatever they return is discarded.
// Process returns only after every dispatched call has finished.
func (c *Coordinator) Process(ctx context.Context, batch []models.Record, gov *Governor) BatchReport {
	report := BatchReport{Status: BatchCompleted}
	if len(batch) == 0 || gov.Remaining() == 0 {
		return report
	}

	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	sem := semaphore.NewWeighted(int64(c.workers))
	results := make(chan lookupResult, len(batch))
	dispatchedCh := make(chan int, 1)

	go c.dispatch(stopCtx, sem, batch, results, dispatchedCh)

	stopped := false
	received, total := 0, -1
	for total < 0 || received < total {
		select {
		case n := <-dispatchedCh:
			total = n
			dispatchedCh = nil
		case res := <-results:
			received++
			if stopped {
				report.Discarded++
				c.metrics.RecordsProcessed.WithLabelValues(metrics.LabelDiscarded).Inc()
			} else if !c.handle(ctx, res, gov, &report) {
				stopped = true
				stop()
			}
			// Released after handling so the dispatcher observes a stop first.
			sem.Release(1)
		}
	}
	report.Dispatched = total

	c.metrics.QuotaRemaining.Set(float64(gov.Remaining()))

	return report
}

// dispatch starts one lookup per record while slots are available and reports
// how many it started.
func (c *Coordinator) dispatch(
	ctx context.Context,
	sem *semaphore.Weighted,
	batch []models.Record,
	results chan<- lookupResult,
	done chan<- int,
) {
	started := 0
	for _, record := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}
		started++
		go c.lookup(ctx, record, results)
	}
	done <- started
}

func (c *Coordinator) lookup(ctx context.Context, record models.Record, results chan<- lookupResult) {
	c.metrics.ActiveWorkers.Inc()
	defer c.metrics.ActiveWorkers.Dec()

	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	c.log.DebugContext(ctx, "Processing record", "record", record.ID)

	startTime := time.Now()
	outcome := geocoding.Lookup(callCtx, c.provider, c.addressPrefix+record.Address)
	c.metrics.RequestSeconds.WithLabelValues(c.providerName).Observe(time.Since(startTime).Seconds())

	results <- lookupResult{record: record, outcome: outcome}
}

// handle applies one outcome to the report and the governor.
// It returns false when the batch must stop.
func (c *Coordinator) handle(ctx context.Context, res lookupResult, gov *Governor, report *BatchReport) bool {
	outcome := res.outcome
	record := res.record

	switch outcome.Status {
	case models.OutcomeResolved:
		if !gov.Consume() {
			report.Discarded++
			c.metrics.RecordsProcessed.WithLabelValues(metrics.LabelDiscarded).Inc()
			return false
		}
		report.Resolved++
		report.Results = append(report.Results, models.GeocodeResult{
			RecordID:    record.ID,
			Coordinates: outcome.Coordinates,
			ResolvedAt:  time.Now(),
		})
		c.metrics.RecordsProcessed.WithLabelValues(outcome.Status.String()).Inc()
		if gov.Exhausted() {
			c.log.InfoContext(ctx, "Daily limit reached, stopping batch", "limit", gov.Ceiling())
			return false
		}
		return true

	case models.OutcomeNotFound:
		report.NotFound++
		report.Failures = append(report.Failures, models.Failure{RecordID: record.ID, Reason: outcome.Err.Error()})
		c.metrics.RecordsProcessed.WithLabelValues(outcome.Status.String()).Inc()
		c.log.InfoContext(ctx, "No match for address", "record", record.ID, "address", record.Address)
		return true

	case models.OutcomeRateLimited:
		report.Status = BatchAbortedRateLimited
		c.metrics.RecordsProcessed.WithLabelValues(outcome.Status.String()).Inc()
		c.metrics.APIErrors.Inc()
		c.log.WarnContext(ctx, "Provider is throttling requests, aborting batch",
			"record", record.ID, "error", outcome.Err)
		return false

	default:
		report.Transient++
		c.metrics.RecordsProcessed.WithLabelValues(outcome.Status.String()).Inc()
		c.metrics.APIErrors.Inc()
		c.log.ErrorContext(ctx, "Failed to geocode", "record", record.ID, "error", outcome.Err)
		return true
	}
}

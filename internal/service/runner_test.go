package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/storemap/internal/metrics"
	"github.com/UnknownOlympus/storemap/internal/models"
	"github.com/UnknownOlympus/storemap/internal/service"
	"github.com/UnknownOlympus/storemap/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type runnerOptions struct {
	batchSize  int
	workers    int
	dailyLimit int
}

func newRunner(store service.Store, provider *fakeProvider, opts runnerOptions) (*service.Runner, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	coordinator := service.NewCoordinator(slog.Default(), provider, "fake", m, opts.workers, time.Second, "")
	return service.NewRunner(slog.Default(), store, coordinator, m, opts.batchSize, opts.dailyLimit), m
}

func TestRunner_QuotaReached(t *testing.T) {
	t.Parallel()
	store := newMemoryStore(addresses(10)...)
	provider := &fakeProvider{delay: time.Millisecond}
	runner, m := newRunner(store, provider, runnerOptions{batchSize: 5, workers: 3, dailyLimit: 7})

	summary := runner.Run(t.Context())

	require.NoError(t, summary.Err)
	assert.Equal(t, service.ReasonQuotaReached, summary.Reason)
	assert.Equal(t, 7, summary.Resolved)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 7, store.resolved())
	assert.Equal(t, int32(7), provider.calls.Load())
	assert.True(t, summary.NeedsRerun())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, service.StateTerminated, runner.State())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Runs.WithLabelValues("quota-reached")), 0)
}

func TestRunner_ExhaustedAndIdempotent(t *testing.T) {
	t.Parallel()
	store := newMemoryStore(addresses(4)...)
	provider := &fakeProvider{}
	opts := runnerOptions{batchSize: 3, workers: 2, dailyLimit: 100}

	first, _ := newRunner(store, provider, opts)
	summary := first.Run(t.Context())

	require.NoError(t, summary.Err)
	assert.Equal(t, service.ReasonExhausted, summary.Reason)
	assert.Equal(t, 4, summary.Resolved)
	assert.False(t, summary.NeedsRerun())

	second, _ := newRunner(store, provider, opts)
	summary = second.Run(t.Context())

	require.NoError(t, summary.Err)
	assert.Equal(t, service.ReasonExhausted, summary.Reason)
	assert.Zero(t, summary.Resolved)
	assert.Zero(t, summary.Batches)
	assert.Equal(t, int32(4), provider.calls.Load())
	assert.Zero(t, store.overwrites)
}

func TestRunner_NotFoundLeavesRecordUnresolved(t *testing.T) {
	t.Parallel()
	store := newMemoryStore("서울특별시 강남구 테헤란로 152", "해당없음", "서울특별시 종로구 세종대로 175")
	provider := &fakeProvider{notFound: map[string]bool{"해당없음": true}}
	runner, _ := newRunner(store, provider, runnerOptions{batchSize: 2, workers: 2, dailyLimit: 100})

	summary := runner.Run(t.Context())

	require.NoError(t, summary.Err)
	assert.Equal(t, service.ReasonExhausted, summary.Reason)
	assert.Equal(t, 2, summary.Resolved)
	assert.Equal(t, 1, summary.NotFound)
	assert.Nil(t, store.row(2).coords)
	assert.Equal(t, 1, store.row(2).attempts)
	assert.Equal(t, int32(3), provider.calls.Load(), "a failed record is not retried within the run")
}

func TestRunner_PermanentlyFailedRecordsAreSkipped(t *testing.T) {
	t.Parallel()
	store := newMemoryStore("해당없음", "서울특별시 강남구 테헤란로 152")
	store.rows[1].attempts = store.maxAttempts
	provider := &fakeProvider{}
	runner, _ := newRunner(store, provider, runnerOptions{batchSize: 5, workers: 1, dailyLimit: 100})

	summary := runner.Run(t.Context())

	assert.Equal(t, service.ReasonExhausted, summary.Reason)
	assert.Equal(t, 1, summary.Resolved)
	assert.Equal(t, []string{"서울특별시 강남구 테헤란로 152"}, provider.calledWith())
}

func TestRunner_RateLimitedKeepsEarlierResults(t *testing.T) {
	t.Parallel()
	addrs := addresses(5)
	store := newMemoryStore(addrs...)
	provider := &fakeProvider{rateLimited: map[string]bool{addrs[3]: true}}
	runner, _ := newRunner(store, provider, runnerOptions{batchSize: 2, workers: 1, dailyLimit: 100})

	summary := runner.Run(t.Context())

	require.NoError(t, summary.Err)
	assert.Equal(t, service.ReasonRateLimited, summary.Reason)
	assert.Equal(t, 3, summary.Resolved)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 3, store.resolved())
	assert.Equal(t, int32(4), provider.calls.Load())
	assert.Nil(t, store.row(5).coords)
	assert.True(t, summary.NeedsRerun())
}

func TestRunner_PersistenceFailure(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	provider := &fakeProvider{}
	runner, m := newRunner(repo, provider, runnerOptions{batchSize: 5, workers: 2, dailyLimit: 100})
	batch := records(addresses(2)...)

	repo.On("FetchUnresolved", mock.Anything, int64(0), 5).Return(batch, nil).Once()
	repo.On("CommitResults", mock.Anything, mock.AnythingOfType("[]models.GeocodeResult")).
		Return(int64(0), assert.AnError).Once()

	summary := runner.Run(t.Context())

	assert.Equal(t, service.ReasonFatalError, summary.Reason)
	require.ErrorIs(t, summary.Err, assert.AnError)
	assert.ErrorContains(t, summary.Err, "failed to commit batch results")
	assert.Zero(t, summary.Resolved)
	assert.Zero(t, summary.Batches)
	repo.AssertNotCalled(t, "RecordFailures", mock.Anything, mock.Anything)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Runs.WithLabelValues("fatal-error")), 0)
}

func TestRunner_RecordFailuresError(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	provider := &fakeProvider{notFound: map[string]bool{"해당없음": true}}
	runner, _ := newRunner(repo, provider, runnerOptions{batchSize: 5, workers: 1, dailyLimit: 100})

	repo.On("FetchUnresolved", mock.Anything, int64(0), 5).Return(records("서울 1", "해당없음"), nil).Once()
	repo.On("CommitResults", mock.Anything, mock.MatchedBy(func(results []models.GeocodeResult) bool {
		return len(results) == 1 && results[0].RecordID == 1
	})).Return(int64(1), nil).Once()
	repo.On("RecordFailures", mock.Anything, []models.Failure{{RecordID: 2, Reason: "no candidate found for address"}}).
		Return(assert.AnError).Once()

	summary := runner.Run(t.Context())

	assert.Equal(t, service.ReasonFatalError, summary.Reason)
	require.ErrorIs(t, summary.Err, assert.AnError)
	assert.ErrorContains(t, summary.Err, "failed to record not-found failures")
	assert.Equal(t, 1, summary.Resolved, "committed coordinates must be reported")
	assert.Equal(t, 1, summary.NotFound)
	assert.Zero(t, summary.Batches)
}

func TestRunner_ResolvedCountsCommittedRows(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	runner, _ := newRunner(repo, &fakeProvider{}, runnerOptions{batchSize: 5, workers: 1, dailyLimit: 100})

	repo.On("FetchUnresolved", mock.Anything, int64(0), 5).Return(records(addresses(2)...), nil).Once()
	repo.On("FetchUnresolved", mock.Anything, int64(2), 5).Return([]models.Record{}, nil).Once()
	repo.On("CommitResults", mock.Anything, mock.AnythingOfType("[]models.GeocodeResult")).
		Return(int64(1), nil).Once()
	repo.On("RecordFailures", mock.Anything, mock.Anything).Return(nil).Once()

	summary := runner.Run(t.Context())

	require.NoError(t, summary.Err)
	assert.Equal(t, service.ReasonExhausted, summary.Reason)
	assert.Equal(t, 1, summary.Resolved, "rows resolved by another run must not be counted")
	assert.Equal(t, 1, summary.Batches)
}

func TestRunner_FetchFailure(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	runner, _ := newRunner(repo, &fakeProvider{}, runnerOptions{batchSize: 5, workers: 1, dailyLimit: 100})

	repo.On("FetchUnresolved", mock.Anything, int64(0), 5).Return(nil, assert.AnError).Once()

	summary := runner.Run(t.Context())

	assert.Equal(t, service.ReasonFatalError, summary.Reason)
	require.ErrorIs(t, summary.Err, assert.AnError)
	assert.ErrorContains(t, summary.Err, "failed to fetch unresolved records")
}

func TestRunner_KeysetCursorAdvances(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	provider := &fakeProvider{}
	runner, _ := newRunner(repo, provider, runnerOptions{batchSize: 2, workers: 1, dailyLimit: 100})

	repo.On("FetchUnresolved", mock.Anything, int64(0), 2).
		Return([]models.Record{{ID: 10, Address: "a"}, {ID: 12, Address: "b"}}, nil).Once()
	repo.On("FetchUnresolved", mock.Anything, int64(12), 2).Return([]models.Record{}, nil).Once()
	repo.On("CommitResults", mock.Anything, mock.Anything).Return(int64(2), nil).Once()
	repo.On("RecordFailures", mock.Anything, mock.Anything).Return(nil).Once()

	summary := runner.Run(t.Context())

	assert.Equal(t, service.ReasonExhausted, summary.Reason)
	assert.Equal(t, 2, summary.Resolved)
}

func TestRunner_CancelledContext(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	runner, _ := newRunner(repo, &fakeProvider{}, runnerOptions{batchSize: 5, workers: 1, dailyLimit: 100})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	summary := runner.Run(ctx)

	assert.Equal(t, service.ReasonFatalError, summary.Reason)
	require.ErrorIs(t, summary.Err, context.Canceled)
	repo.AssertNotCalled(t, "FetchUnresolved", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_ZeroDailyLimit(t *testing.T) {
	t.Parallel()
	repo := mocks.NewInterface(t)
	runner, _ := newRunner(repo, &fakeProvider{}, runnerOptions{batchSize: 5, workers: 1, dailyLimit: 0})

	summary := runner.Run(t.Context())

	assert.Equal(t, service.ReasonQuotaReached, summary.Reason)
	assert.Zero(t, summary.Resolved)
}

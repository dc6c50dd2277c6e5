package service_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/storemap/internal/geocoding"
	"github.com/UnknownOlympus/storemap/internal/models"
)

type storeRow struct {
	address  string
	coords   *models.Coordinates
	attempts int
}

// memoryStore mirrors the predicates of the postgres repository.
type memoryStore struct {
	mu          sync.Mutex
	rows        map[int64]*storeRow
	maxAttempts int
	overwrites  int
}

func newMemoryStore(addresses ...string) *memoryStore {
	store := &memoryStore{rows: make(map[int64]*storeRow), maxAttempts: 3}
	for i, address := range addresses {
		store.rows[int64(i+1)] = &storeRow{address: address}
	}
	return store
}

func (s *memoryStore) FetchUnresolved(_ context.Context, afterID int64, limit int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.rows))
	for id, row := range s.rows {
		if id > afterID && row.coords == nil && row.address != "" && row.attempts < s.maxAttempts {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	records := make([]models.Record, 0, limit)
	for _, id := range ids {
		if len(records) == limit {
			break
		}
		records = append(records, models.Record{ID: id, Address: s.rows[id].address})
	}
	return records, nil
}

func (s *memoryStore) CommitResults(_ context.Context, results []models.GeocodeResult) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, res := range results {
		row := s.rows[res.RecordID]
		if row.coords != nil {
			s.overwrites++
			continue
		}
		coords := res.Coordinates
		row.coords = &coords
		updated++
	}
	return updated, nil
}

func (s *memoryStore) RecordFailures(_ context.Context, failures []models.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range failures {
		s.rows[f.RecordID].attempts++
	}
	return nil
}

func (s *memoryStore) resolved() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, row := range s.rows {
		if row.coords != nil {
			count++
		}
	}
	return count
}

func (s *memoryStore) row(id int64) storeRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.rows[id]
}

// fakeProvider resolves every address unless told otherwise and tracks concurrency.
type fakeProvider struct {
	delay       time.Duration
	notFound    map[string]bool
	rateLimited map[string]bool
	transient   map[string]bool

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu     sync.Mutex
	called []string
}

func (p *fakeProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	p.calls.Add(1)
	current := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.maxInFlight.Load()
		if current <= peak || p.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	p.mu.Lock()
	p.called = append(p.called, address)
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case p.rateLimited[address]:
		return nil, geocoding.ErrRateLimited
	case p.notFound[address]:
		return nil, geocoding.ErrNotFound
	case p.transient[address]:
		return nil, fmt.Errorf("connection reset: %s", address)
	}
	return &models.Coordinates{Longitude: 127.0, Latitude: 37.5}, nil
}

func (p *fakeProvider) calledWith() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.called)
}

func addresses(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("서울특별시 강남구 테헤란로 %d", i+1)
	}
	return out
}

func records(addrs ...string) []models.Record {
	out := make([]models.Record, len(addrs))
	for i, address := range addrs {
		out[i] = models.Record{ID: int64(i + 1), Address: address}
	}
	return out
}

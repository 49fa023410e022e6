package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/cache"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
	"github.com/couchcryptid/quake-risk-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- mocks ---

type mockProvider struct {
	source domain.Source
	events []domain.SeismicEvent
	err    error
	calls  atomic.Int64
	// block, when set, makes Fetch wait on it and ignore cancellation.
	block chan struct{}
}

func (m *mockProvider) Name() domain.Source { return m.source }

func (m *mockProvider) Fetch(_ context.Context, _ domain.Query) ([]domain.SeismicEvent, int, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.events, 1, nil
}

type mockStore struct {
	mu       sync.Mutex
	upserts  [][]domain.SeismicEvent
	stored   []domain.SeismicEvent
	err      error
	queryErr error
}

func (m *mockStore) UpsertEvents(_ context.Context, events []domain.SeismicEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.upserts = append(m.upserts, events)
	return len(events), nil
}

func (m *mockStore) QueryEvents(_ context.Context, _ domain.Query) ([]domain.SeismicEvent, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.stored, nil
}

func (m *mockStore) cycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.SeismicEvent
	fetchedAt time.Time
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, events []domain.SeismicEvent, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, events...)
	m.fetchedAt = fetchedAt
	return nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quake(id string, src domain.Source, mag, lat, lon float64, at time.Time) domain.SeismicEvent {
	return domain.SeismicEvent{
		ID:        id,
		Source:    src,
		Magnitude: mag,
		Time:      at,
		Latitude:  lat,
		Longitude: lon,
		DepthKm:   10,
	}
}

func newAggregator(t *testing.T, opts pipeline.AggregatorOptions, providers ...pipeline.Provider) (*pipeline.Aggregator, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	if opts.Clock == nil {
		opts.Clock = clockwork.NewFakeClockAt(epoch)
	}
	return pipeline.NewAggregator(providers, fusion.New(fusion.Default()), opts, discardLogger(), metrics), metrics
}

func lastDay() domain.Query {
	return domain.Query{Start: epoch.Add(-24 * time.Hour), End: epoch}
}

var errUpstream = errors.New("upstream unavailable")

var _ pipeline.Cache = (*cache.Memory)(nil)

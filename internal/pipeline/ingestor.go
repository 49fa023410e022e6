package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// EventWriter persists fused events.
type EventWriter interface {
	UpsertEvents(ctx context.Context, events []domain.SeismicEvent) (int, error)
}

// Publisher emits fused events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events []domain.SeismicEvent, fetchedAt time.Time) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Ingestor periodically collects a fused cycle and hands it to the store
// and the sink. Either may be nil.
type Ingestor struct {
	agg      *Aggregator
	store    EventWriter
	sink     Publisher
	request  Request
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// NewIngestor creates an Ingestor that runs req every interval.
func NewIngestor(agg *Aggregator, store EventWriter, sink Publisher, req Request, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		agg:      agg,
		store:    store,
		sink:     sink,
		request:  req,
		interval: interval,
		clock:    agg.Clock(),
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one cycle has been stored and
// published.
func (in *Ingestor) CheckReadiness(_ context.Context) error {
	if !in.ready.Load() {
		return errors.New("ingest has not completed a cycle yet")
	}
	return nil
}

// Run executes ingest cycles until the context is cancelled. A failed
// cycle is retried with exponential backoff; a successful one waits for
// the next interval.
func (in *Ingestor) Run(ctx context.Context) error {
	in.logger.Info("ingest started", "interval", in.interval, "window_hours", in.request.Hours)
	in.metrics.IngestRunning.Set(1)
	defer in.metrics.IngestRunning.Set(0)

	backoff := initialBackoff
	for {
		err := in.RunOnce(ctx)
		if ctx.Err() != nil {
			in.logger.Info("ingest stopping", "reason", ctx.Err())
			return nil
		}

		wait := in.interval
		if err != nil {
			in.logger.Error("ingest cycle failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			in.logger.Info("ingest stopping", "reason", ctx.Err())
			return nil
		case <-in.clock.After(wait):
		}
	}
}

// RunOnce performs a single collect, store and publish cycle.
func (in *Ingestor) RunOnce(ctx context.Context) error {
	q, err := in.request.Query(in.clock.Now())
	if err != nil {
		return err
	}
	res, err := in.agg.Collect(ctx, q)
	if err != nil {
		in.metrics.IngestCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("collect: %w", err)
	}
	if !res.anyProviderSucceeded() {
		in.metrics.IngestCycles.WithLabelValues("error").Inc()
		return errors.New("collect: every provider failed")
	}

	if in.store != nil && len(res.Events) > 0 {
		n, err := in.store.UpsertEvents(ctx, res.Events)
		if err != nil {
			in.metrics.IngestCycles.WithLabelValues("error").Inc()
			return fmt.Errorf("store events: %w", err)
		}
		in.metrics.EventsStored.Add(float64(n))
	}
	if in.sink != nil && len(res.Events) > 0 {
		if err := in.sink.Publish(ctx, res.Events, res.FetchedAt); err != nil {
			in.metrics.IngestCycles.WithLabelValues("error").Inc()
			return fmt.Errorf("publish events: %w", err)
		}
		in.metrics.EventsPublished.Add(float64(len(res.Events)))
	}

	in.metrics.IngestCycles.WithLabelValues("success").Inc()
	in.ready.Store(true)
	in.logger.Info("ingest cycle complete", "cycle_id", res.CycleID, "events", len(res.Events))
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/cache"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Provider fetches normalized events from one seismic network. The int
// result counts records dropped during normalization.
type Provider interface {
	Name() domain.Source
	Fetch(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, int, error)
}

// Cache stores fused results by request key.
type Cache interface {
	Get(ctx context.Context, key string) (cache.Entry, bool, error)
	Set(ctx context.Context, key string, e cache.Entry) error
}

// EventReader reads previously fused events, typically from the event store.
type EventReader interface {
	QueryEvents(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, error)
}

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 10 * time.Second

// ProviderStatus reports how one provider fared in a fetch cycle.
type ProviderStatus struct {
	Source     domain.Source `json:"source"`
	Events     int           `json:"events"`
	Dropped    int           `json:"dropped"`
	DurationMs int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
}

// Result is one fused fetch cycle.
type Result struct {
	CycleID   string
	Events    []domain.SeismicEvent
	Stats     fusion.Stats
	Providers []ProviderStatus
	FetchedAt time.Time
	Cached    bool
	FromStore bool
}

// AggregatorOptions configures an Aggregator. Zero values fall back to
// defaults; a nil Cache or Fallback disables that feature.
type AggregatorOptions struct {
	Timeout time.Duration
	// RateLimit is the sustained request rate allowed per provider, in
	// requests per second. Zero disables limiting.
	RateLimit float64
	Cache     Cache
	Fallback  EventReader
	Clock     clockwork.Clock
}

// Aggregator fans a query out to every provider concurrently and fuses
// the combined result.
type Aggregator struct {
	providers []Provider
	limiters  map[domain.Source]*rate.Limiter
	engine    *fusion.Engine
	cache     Cache
	fallback  EventReader
	clock     clockwork.Clock
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	flights   singleflight.Group
}

// NewAggregator creates an Aggregator over the given providers.
func NewAggregator(providers []Provider, engine *fusion.Engine, opts AggregatorOptions, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	a := &Aggregator{
		providers: providers,
		limiters:  make(map[domain.Source]*rate.Limiter, len(providers)),
		engine:    engine,
		cache:     opts.Cache,
		fallback:  opts.Fallback,
		clock:     opts.Clock,
		timeout:   opts.Timeout,
		logger:    logger,
		metrics:   metrics,
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.timeout <= 0 {
		a.timeout = DefaultProviderTimeout
	}
	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), 1)
		for _, p := range providers {
			a.limiters[p.Name()] = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
		}
	}
	return a
}

// Clock returns the clock requests are resolved against.
func (a *Aggregator) Clock() clockwork.Clock { return a.clock }

// Fetch serves req from the cache when a live entry exists, otherwise
// collects from the providers and caches the fused result. Concurrent
// misses for the same request share one collection. Cache failures are
// logged and treated as misses.
func (a *Aggregator) Fetch(ctx context.Context, req Request) (Result, error) {
	q, err := req.Query(a.clock.Now())
	if err != nil {
		return Result{}, err
	}
	key := req.Key()

	if a.cache != nil {
		entry, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("cache lookup failed", "error", err)
		}
		if ok {
			a.metrics.CacheLookups.WithLabelValues("hit").Inc()
			return Result{
				CycleID:   entry.CycleID,
				Events:    entry.Events,
				Stats:     entry.Stats,
				FetchedAt: entry.FetchedAt,
				Cached:    true,
			}, nil
		}
		a.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// Identical requests arriving together share one upstream cycle. The
	// cycle outlives any single caller so the others still get a result.
	ch := a.flights.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		res, err := a.Collect(fctx, q)
		if err != nil {
			return Result{}, err
		}
		// A cycle in which every provider failed is not worth remembering.
		if a.cache != nil && res.anyProviderSucceeded() {
			entry := cache.Entry{CycleID: res.CycleID, Events: res.Events, Stats: res.Stats, FetchedAt: res.FetchedAt}
			if err := a.cache.Set(fctx, key, entry); err != nil {
				a.logger.Warn("cache store failed", "error", err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// Collect queries every provider concurrently, each under its own timeout,
// and fuses whatever arrived. A provider that fails or times out
// contributes no events. When every provider fails and a fallback reader
// is configured, previously stored events are returned instead.
func (a *Aggregator) Collect(ctx context.Context, q domain.Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		CycleID:   uuid.NewString(),
		FetchedAt: a.clock.Now(),
		Providers: make([]ProviderStatus, len(a.providers)),
	}
	batches := make([][]domain.SeismicEvent, len(a.providers))

	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batches[i], res.Providers[i] = a.fetchOne(ctx, p, q)
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var all []domain.SeismicEvent
	for i := range batches {
		all = append(all, batches[i]...)
	}

	if !res.anyProviderSucceeded() && a.fallback != nil {
		// Stored cycles may hold reports of one earthquake from different
		// networks, so they go through fusion like fresh ones.
		stored, err := a.fallback.QueryEvents(ctx, q)
		if err != nil {
			a.logger.Error("fallback query failed", "cycle_id", res.CycleID, "error", err)
		} else {
			all = stored
			res.FromStore = true
			a.logger.Warn("all providers failed, serving stored events",
				"cycle_id", res.CycleID, "events", len(stored))
		}
	}

	res.Events, res.Stats = a.engine.Fuse(all)
	if q.Limit > 0 && len(res.Events) > q.Limit {
		res.Events = res.Events[:q.Limit]
	}

	a.metrics.EventsBeforeFusion.Add(float64(res.Stats.Before))
	a.metrics.EventsAfterFusion.Add(float64(res.Stats.After))
	a.metrics.DuplicatesRemoved.Add(float64(res.Stats.Duplicates))
	a.logger.Info("fetch cycle complete",
		"cycle_id", res.CycleID,
		"before_dedup", res.Stats.Before,
		"after_dedup", res.Stats.After,
		"duplicates", res.Stats.Duplicates,
	)
	return res, nil
}

type fetchOutcome struct {
	events  []domain.SeismicEvent
	dropped int
	err     error
}

func (a *Aggregator) fetchOne(ctx context.Context, p Provider, q domain.Query) ([]domain.SeismicEvent, ProviderStatus) {
	name := string(p.Name())
	status := ProviderStatus{Source: p.Name()}

	pctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if lim := a.limiters[p.Name()]; lim != nil {
		if err := lim.Wait(pctx); err != nil {
			a.metrics.ProviderFetches.WithLabelValues(name, "rate_limited").Inc()
			a.logger.Warn("provider rate limited", "provider", name, "error", err)
			status.Error = "rate limited"
			return nil, status
		}
	}

	start := time.Now()
	done := make(chan fetchOutcome, 1)
	go func() {
		events, dropped, err := p.Fetch(pctx, q)
		done <- fetchOutcome{events: events, dropped: dropped, err: err}
	}()

	// A provider that ignores cancellation is abandoned; its late result
	// lands in the buffered channel and is discarded.
	var out fetchOutcome
	select {
	case out = <-done:
	case <-pctx.Done():
		out.err = pctx.Err()
	}
	elapsed := time.Since(start)
	status.DurationMs = elapsed.Milliseconds()
	a.metrics.ProviderFetchDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if out.err != nil {
		outcome := "error"
		if errors.Is(out.err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		a.metrics.ProviderFetches.WithLabelValues(name, outcome).Inc()
		a.logger.Warn("provider fetch failed", "provider", name, "outcome", outcome, "error", out.err)
		status.Error = out.err.Error()
		return nil, status
	}

	a.metrics.ProviderFetches.WithLabelValues(name, "success").Inc()
	a.metrics.ProviderEvents.WithLabelValues(name).Add(float64(len(out.events)))
	if out.dropped > 0 {
		a.metrics.ProviderDropped.WithLabelValues(name).Add(float64(out.dropped))
	}
	status.Events = len(out.events)
	status.Dropped = out.dropped
	return out.events, status
}

func (r Result) anyProviderSucceeded() bool {
	for i := range r.Providers {
		if r.Providers[i].Error == "" {
			return true
		}
	}
	return false
}

package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/cache"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_FusesAcrossProviders(t *testing.T) {
	usgs := &mockProvider{source: domain.SourceUSGS, events: []domain.SeismicEvent{
		quake("usgs_a", domain.SourceUSGS, 5.0, 14.00, 121.00, epoch.Add(-time.Hour)),
		quake("usgs_c", domain.SourceUSGS, 4.0, 35.00, 139.00, epoch.Add(-2*time.Hour)),
	}}
	phivolcs := &mockProvider{source: domain.SourcePHIVOLCS, events: []domain.SeismicEvent{
		quake("phivolcs_b", domain.SourcePHIVOLCS, 5.1, 14.05, 121.02, epoch.Add(-time.Hour+30*time.Second)),
	}}
	agg, metrics := newAggregator(t, pipeline.AggregatorOptions{}, usgs, phivolcs)

	res, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)

	ids := make([]string, len(res.Events))
	for i := range res.Events {
		ids[i] = res.Events[i].ID
	}
	if diff := cmp.Diff([]string{"phivolcs_b", "usgs_c"}, ids); diff != "" {
		t.Errorf("fused ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, res.Stats.Before)
	assert.Equal(t, 2, res.Stats.After)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.NotEmpty(t, res.CycleID)
	assert.True(t, res.FetchedAt.Equal(epoch))
	assert.False(t, res.Cached)

	require.Len(t, res.Providers, 2)
	assert.Equal(t, domain.SourceUSGS, res.Providers[0].Source)
	assert.Equal(t, 2, res.Providers[0].Events)
	assert.Equal(t, 1, res.Providers[0].Dropped)
	assert.Empty(t, res.Providers[0].Error)

	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.EventsBeforeFusion), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DuplicatesRemoved), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderFetches.WithLabelValues("phivolcs", "success")), 1e-9)
}

func TestCollect_ProviderErrorIsIsolated(t *testing.T) {
	good := &mockProvider{source: domain.SourceEMSC, events: []domain.SeismicEvent{
		quake("emsc_1", domain.SourceEMSC, 4.5, 10, 120, epoch.Add(-time.Hour)),
	}}
	bad := &mockProvider{source: domain.SourceJMA, err: errUpstream}
	agg, metrics := newAggregator(t, pipeline.AggregatorOptions{}, good, bad)

	res, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "emsc_1", res.Events[0].ID)
	assert.Contains(t, res.Providers[1].Error, "upstream unavailable")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderFetches.WithLabelValues("jma", "error")), 1e-9)
}

func TestCollect_SlowProviderIsAbandoned(t *testing.T) {
	fast := &mockProvider{source: domain.SourceUSGS, events: []domain.SeismicEvent{
		quake("usgs_1", domain.SourceUSGS, 4.5, 10, 120, epoch.Add(-time.Hour)),
	}}
	stuck := &mockProvider{
		source: domain.SourcePHIVOLCS,
		events: []domain.SeismicEvent{quake("phivolcs_late", domain.SourcePHIVOLCS, 4.5, 10, 120, epoch.Add(-time.Hour))},
		block:  make(chan struct{}),
	}
	t.Cleanup(func() { close(stuck.block) })
	agg, metrics := newAggregator(t, pipeline.AggregatorOptions{Timeout: 50 * time.Millisecond}, fast, stuck)

	start := time.Now()
	res, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "usgs_1", res.Events[0].ID, "late result is never merged")
	assert.Contains(t, res.Providers[1].Error, "deadline exceeded")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderFetches.WithLabelValues("phivolcs", "timeout")), 1e-9)
}

func TestCollect_RateLimited(t *testing.T) {
	p := &mockProvider{source: domain.SourceUSGS}
	agg, metrics := newAggregator(t, pipeline.AggregatorOptions{RateLimit: 1, Timeout: 100 * time.Millisecond}, p)

	_, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)

	res, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)
	assert.Equal(t, "rate limited", res.Providers[0].Error)
	assert.Equal(t, int64(1), p.calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderFetches.WithLabelValues("usgs", "rate_limited")), 1e-9)
}

func TestCollect_Limit(t *testing.T) {
	p := &mockProvider{source: domain.SourceUSGS, events: []domain.SeismicEvent{
		quake("usgs_1", domain.SourceUSGS, 4.5, 10, 120, epoch.Add(-time.Hour)),
		quake("usgs_2", domain.SourceUSGS, 4.5, 40, 20, epoch.Add(-2*time.Hour)),
	}}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{}, p)

	q := lastDay()
	q.Limit = 1
	res, err := agg.Collect(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "usgs_1", res.Events[0].ID)
}

func TestCollect_InvalidQuery(t *testing.T) {
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{}, &mockProvider{source: domain.SourceUSGS})
	_, err := agg.Collect(context.Background(), domain.Query{})
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestCollect_CancelledContext(t *testing.T) {
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{}, &mockProvider{source: domain.SourceUSGS})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Collect(ctx, lastDay())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollect_FallsBackToStore(t *testing.T) {
	store := &mockStore{stored: []domain.SeismicEvent{
		quake("usgs_old", domain.SourceUSGS, 5, 10, 120, epoch.Add(-3*time.Hour)),
	}}
	p := &mockProvider{source: domain.SourceUSGS, err: errUpstream}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{Fallback: store}, p)

	res, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)
	assert.True(t, res.FromStore)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "usgs_old", res.Events[0].ID)
	assert.Equal(t, 1, res.Stats.PerSource[domain.SourceUSGS])
}

func TestCollect_FallbackFailureDegradesToEmpty(t *testing.T) {
	store := &mockStore{queryErr: errUpstream}
	p := &mockProvider{source: domain.SourceUSGS, err: errUpstream}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{Fallback: store}, p)

	res, err := agg.Collect(context.Background(), lastDay())
	require.NoError(t, err)
	assert.False(t, res.FromStore)
	assert.Empty(t, res.Events)
}

func TestFetch_ServesFromCacheUntilExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := &mockProvider{source: domain.SourceUSGS, events: []domain.SeismicEvent{
		quake("usgs_1", domain.SourceUSGS, 4.5, 10, 120, epoch.Add(-time.Hour)),
	}}
	agg, metrics := newAggregator(t, pipeline.AggregatorOptions{
		Clock: clock,
		Cache: cache.NewMemory(clock, time.Minute, 8),
	}, p)
	req := pipeline.Request{Hours: 24}
	ctx := context.Background()

	first, err := agg.Fetch(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := agg.Fetch(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.CycleID, second.CycleID)
	assert.Equal(t, int64(1), p.calls.Load())

	clock.Advance(time.Minute + time.Second)
	third, err := agg.Fetch(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotEqual(t, first.CycleID, third.CycleID)
	assert.Equal(t, int64(2), p.calls.Load())

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 1e-9)
}

func TestFetch_DifferentRequestsDoNotShareEntries(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := &mockProvider{source: domain.SourceUSGS}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{Clock: clock, Cache: cache.NewMemory(clock, time.Minute, 8)}, p)

	_, err := agg.Fetch(context.Background(), pipeline.Request{Hours: 24})
	require.NoError(t, err)
	_, err = agg.Fetch(context.Background(), pipeline.Request{Hours: 24, Region: "japan"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.calls.Load())
}

func TestFetch_FailedCycleNotCached(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := &mockProvider{source: domain.SourceUSGS, err: errUpstream}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{Clock: clock, Cache: cache.NewMemory(clock, time.Minute, 8)}, p)

	for range 2 {
		res, err := agg.Fetch(context.Background(), pipeline.Request{Hours: 24})
		require.NoError(t, err)
		assert.Empty(t, res.Events)
	}
	assert.Equal(t, int64(2), p.calls.Load())
}

func TestFetch_InvalidRequest(t *testing.T) {
	p := &mockProvider{source: domain.SourceUSGS}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{}, p)

	_, err := agg.Fetch(context.Background(), pipeline.Request{Hours: 24, Region: "atlantis"})
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Zero(t, p.calls.Load())
}

func TestFetch_ConcurrentIdenticalRequestsShareOneCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := &mockProvider{
		source: domain.SourceUSGS,
		events: []domain.SeismicEvent{quake("usgs_1", domain.SourceUSGS, 4.5, 10, 120, epoch.Add(-time.Hour))},
		block:  make(chan struct{}),
	}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{
		Clock:     clock,
		RateLimit: 1,
		Cache:     cache.NewMemory(clock, time.Minute, 8),
	}, p)

	const callers = 15
	results := make([]pipeline.Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = agg.Fetch(context.Background(), pipeline.Request{Hours: 24})
		}()
	}

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(p.block)
	wg.Wait()

	assert.Equal(t, int64(1), p.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, results[i].Events, 1, "caller %d", i)
		assert.Equal(t, results[0].CycleID, results[i].CycleID)
	}
}

func TestFetch_CancelledCallerDoesNotAbortSharedCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := &mockProvider{
		source: domain.SourceUSGS,
		events: []domain.SeismicEvent{quake("usgs_1", domain.SourceUSGS, 4.5, 10, 120, epoch.Add(-time.Hour))},
		block:  make(chan struct{}),
	}
	agg, _ := newAggregator(t, pipeline.AggregatorOptions{Clock: clock, Cache: cache.NewMemory(clock, time.Minute, 8)}, p)
	req := pipeline.Request{Hours: 24}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agg.Fetch(ctx, req)
	require.ErrorIs(t, err, context.Canceled)

	close(p.block)
	res, err := agg.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, int64(1), p.calls.Load())
}

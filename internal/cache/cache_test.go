package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(id string) Entry {
	return Entry{
		CycleID:   "cycle-" + id,
		Events:    []domain.SeismicEvent{{ID: id, Source: domain.SourceUSGS, Magnitude: 4.2, Time: epoch}},
		Stats:     fusion.Stats{Before: 2, After: 1, Duplicates: 1},
		FetchedAt: epoch,
	}
}

func TestMemory_HitWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := NewMemory(clock, time.Minute, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry("a")))
	clock.Advance(59 * time.Second)

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cycle-a", got.CycleID)
	assert.Equal(t, 1, got.Stats.Duplicates)
}

func TestMemory_ExpiresAtTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := NewMemory(clock, time.Minute, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry("a")))
	clock.Advance(time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on access")
}

func TestMemory_Miss(t *testing.T) {
	c := NewMemory(clockwork.NewFakeClockAt(epoch), time.Minute, 10)
	_, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_SetRefreshesTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := NewMemory(clock, time.Minute, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry("a")))
	clock.Advance(45 * time.Second)
	require.NoError(t, c.Set(ctx, "k", entry("b")))
	clock.Advance(45 * time.Second)

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cycle-b", got.CycleID)
	assert.Equal(t, 1, c.Len())
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemory(clockwork.NewFakeClockAt(epoch), time.Hour, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", entry("a")))
	require.NoError(t, c.Set(ctx, "b", entry("b")))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "c", entry("c")))
	assert.Equal(t, 2, c.Len())

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemory_MinimumCapacity(t *testing.T) {
	c := NewMemory(clockwork.NewFakeClockAt(epoch), time.Hour, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", entry("a")))
	require.NoError(t, c.Set(ctx, "b", entry("b")))
	assert.Equal(t, 1, c.Len())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	c := NewMemory(clockwork.NewRealClock(), time.Minute, 16)
	ctx := context.Background()

	done := make(chan struct{})
	for w := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range 200 {
				key := fmt.Sprintf("k%d", (w+i)%32)
				_ = c.Set(ctx, key, entry(key))
				_, _, _ = c.Get(ctx, key)
			}
		}()
	}
	for range 8 {
		<-done
	}
	assert.LessOrEqual(t, c.Len(), 16)
}

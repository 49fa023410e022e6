//go:build integration

package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := testcontainers.Run(ctx, "postgres:16-alpine",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "quake",
			"POSTGRES_PASSWORD": "quake",
			"POSTGRES_DB":       "quake",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://quake:quake@%s/quake?sslmode=disable", endpoint)
}

func TestStore_UpsertAndQuery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Connect(ctx, startPostgres(ctx, t), logger)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are idempotent")
	require.NoError(t, store.CheckReadiness(ctx))

	felt := 12
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []domain.SeismicEvent{
		{ID: "phivolcs_1", Source: domain.SourcePHIVOLCS, Magnitude: 4.1, Place: "Albay", Time: base,
			Latitude: 13.3, Longitude: 123.7, DepthKm: 5, Felt: &felt},
		{ID: "jma_1", Source: domain.SourceJMA, Magnitude: 5.2, Place: "Kagoshima", Time: base.Add(-time.Hour),
			Latitude: 31.6, Longitude: 130.6, DepthKm: 10, URL: "https://example.test/jma_1"},
		{ID: "usgs_1", Source: domain.SourceUSGS, Magnitude: 2.0, Time: base.Add(-2 * time.Hour),
			Latitude: 13.0, Longitude: 123.0, DepthKm: 10},
	}
	n, err := store.UpsertEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Re-upserting replaces rather than duplicates.
	events[0].Magnitude = 4.3
	_, err = store.UpsertEvents(ctx, events[:1])
	require.NoError(t, err)

	all, err := store.QueryEvents(ctx, domain.Query{Start: base.Add(-24 * time.Hour), End: base})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "phivolcs_1", all[0].ID)
	assert.InDelta(t, 4.3, all[0].Magnitude, 1e-9)
	require.NotNil(t, all[0].Felt)
	assert.Equal(t, 12, *all[0].Felt)
	assert.True(t, all[0].Time.Equal(base))
	assert.Equal(t, "https://example.test/jma_1", all[1].URL)
	assert.Empty(t, all[2].URL)

	region, err := domain.LookupRegion("philippines")
	require.NoError(t, err)
	ph, err := store.QueryEvents(ctx, domain.Query{Start: base.Add(-24 * time.Hour), End: base, MinMagnitude: 3, Region: region})
	require.NoError(t, err)
	require.Len(t, ph, 1)
	assert.Equal(t, "phivolcs_1", ph[0].ID)

	limited, err := store.QueryEvents(ctx, domain.Query{Start: base.Add(-24 * time.Hour), End: base, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// Package postgres persists fused seismic events.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store reads and writes events in Postgres. It implements
// pipeline.EventWriter and pipeline.EventReader.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool against url and verifies it with a ping.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Migrate applies any pending embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() { s.pool.Close() }

const upsertSQL = `
INSERT INTO seismic_events
    (id, source, magnitude, magnitude_type, place, occurred_at, latitude, longitude, depth_km, url, felt, tsunami)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
ON CONFLICT (id) DO UPDATE SET
    source         = EXCLUDED.source,
    magnitude      = EXCLUDED.magnitude,
    magnitude_type = EXCLUDED.magnitude_type,
    place          = EXCLUDED.place,
    occurred_at    = EXCLUDED.occurred_at,
    latitude       = EXCLUDED.latitude,
    longitude      = EXCLUDED.longitude,
    depth_km       = EXCLUDED.depth_km,
    url            = EXCLUDED.url,
    felt           = EXCLUDED.felt,
    tsunami        = EXCLUDED.tsunami,
    updated_at     = now()`

// UpsertEvents writes events in one transaction, replacing rows with the
// same id. It returns the number of rows written.
func (s *Store) UpsertEvents(ctx context.Context, events []domain.SeismicEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for i := range events {
		e := events[i]
		batch.Queue(upsertSQL,
			e.ID, string(e.Source), e.Magnitude, e.MagnitudeType, e.Place, e.Time.UTC(),
			e.Latitude, e.Longitude, e.DepthKm, e.URL, e.Felt, e.Tsunami)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for range events {
			if _, err := br.Exec(); err != nil {
				br.Close() //nolint:errcheck // the Exec error is the one worth reporting
				return err
			}
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("upsert events: %w", err)
	}
	return len(events), nil
}

// QueryEvents returns stored events matching q, newest first.
func (s *Store) QueryEvents(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, args := buildQuery(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

const selectColumns = `SELECT id, source, magnitude, magnitude_type, place, occurred_at, latitude, longitude, depth_km, url, felt, tsunami
FROM seismic_events`

func buildQuery(q domain.Query) (string, []any) {
	var b strings.Builder
	b.WriteString(selectColumns)
	b.WriteString("\nWHERE occurred_at >= $1 AND occurred_at <= $2 AND magnitude >= $3")
	args := []any{q.Start.UTC(), q.End.UTC(), q.MinMagnitude}

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if r := q.Region; r != nil {
		b.WriteString(" AND latitude BETWEEN " + next(r.MinLat) + " AND " + next(r.MaxLat))
		if r.MinLon <= r.MaxLon {
			b.WriteString(" AND longitude BETWEEN " + next(r.MinLon) + " AND " + next(r.MaxLon))
		} else {
			b.WriteString(" AND (longitude >= " + next(r.MinLon) + " OR longitude <= " + next(r.MaxLon) + ")")
		}
	}
	b.WriteString("\nORDER BY occurred_at DESC, id")
	if q.Limit > 0 {
		b.WriteString("\nLIMIT " + next(q.Limit))
	}
	return b.String(), args
}

func scanEvent(row pgx.CollectableRow) (domain.SeismicEvent, error) {
	var (
		e      domain.SeismicEvent
		source string
		url    *string
	)
	err := row.Scan(&e.ID, &source, &e.Magnitude, &e.MagnitudeType, &e.Place, &e.Time,
		&e.Latitude, &e.Longitude, &e.DepthKm, &url, &e.Felt, &e.Tsunami)
	if err != nil {
		return e, err
	}
	e.Source = domain.Source(source)
	e.Time = e.Time.UTC()
	if url != nil {
		e.URL = *url
	}
	return e, nil
}

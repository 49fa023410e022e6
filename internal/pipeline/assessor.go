package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/catalog"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
	"github.com/couchcryptid/quake-risk-service/internal/risk"
	"golang.org/x/sync/errgroup"
)

// AssessorOptions selects the two event populations an assessment draws
// on: recent local seismicity, and large distant earthquakes old enough to
// still count under the triggering rules.
type AssessorOptions struct {
	Recent  Request
	Trigger Request
	Workers int
}

// DefaultAssessorOptions returns 30 days of M2.5+ and five years of M6+.
func DefaultAssessorOptions() AssessorOptions {
	return AssessorOptions{
		Recent:  Request{Hours: 720, MinMagnitude: 2.5},
		Trigger: Request{Hours: MaxHours, MinMagnitude: 6},
		Workers: 4,
	}
}

// Assessor scores catalog volcanoes against freshly fetched events.
type Assessor struct {
	agg     *Aggregator
	engine  *fusion.Engine
	catalog *catalog.Catalog
	model   risk.Model
	opts    AssessorOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAssessor creates an Assessor using model for every volcano in cat.
func NewAssessor(agg *Aggregator, engine *fusion.Engine, cat *catalog.Catalog, model risk.Model, opts AssessorOptions, logger *slog.Logger, metrics *observability.Metrics) *Assessor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Assessor{
		agg:     agg,
		engine:  engine,
		catalog: cat,
		model:   model,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// ModelVersion reports the active risk model.
func (a *Assessor) ModelVersion() string { return a.model.Version() }

// AssessAll scores every volcano, highest annual probability first.
func (a *Assessor) AssessAll(ctx context.Context) ([]risk.Assessment, error) {
	start := time.Now()
	events, err := a.events(ctx)
	if err != nil {
		return nil, err
	}
	out, err := risk.AssessAll(ctx, a.model, a.catalog.All(), events, a.agg.Clock().Now(), a.opts.Workers)
	if err != nil {
		return nil, err
	}
	a.metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("catalog assessed", "volcanoes", len(out), "events", len(events), "model", a.model.Version())
	return out, nil
}

// Assess scores one volcano. An unknown id yields catalog.ErrVolcanoNotFound.
func (a *Assessor) Assess(ctx context.Context, id string) (risk.Assessment, error) {
	v, err := a.catalog.Get(id)
	if err != nil {
		return risk.Assessment{}, err
	}
	events, err := a.events(ctx)
	if err != nil {
		return risk.Assessment{}, err
	}
	return a.model.Assess(v, events, a.agg.Clock().Now()), nil
}

// events fetches both populations concurrently and fuses their union, so
// an event present in both windows is counted once.
func (a *Assessor) events(ctx context.Context) ([]domain.SeismicEvent, error) {
	var recent, trigger Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = a.agg.Fetch(gctx, a.opts.Recent)
		if err != nil {
			return fmt.Errorf("fetch recent events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		trigger, err = a.agg.Fetch(gctx, a.opts.Trigger)
		if err != nil {
			return fmt.Errorf("fetch triggering events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make([]domain.SeismicEvent, 0, len(recent.Events)+len(trigger.Events))
	union = append(union, recent.Events...)
	union = append(union, trigger.Events...)
	fused, _ := a.engine.Fuse(union)
	return fused, nil
}

// Package risk composes seismic analytics, triggering rules and static
// volcano attributes into a bounded eruption probability, a category and
// a confidence level.
//
// Two models are available behind the Model interface. MultiFactor (v2)
// is canonical. TriggerOnly (v1) keeps the earlier baseline × triggering
// scoring with its own four-tier scale for comparison.
package risk

import (
	"context"
	"sort"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/analytics"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/triggering"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxMultiplier caps the product of all factors.
	MaxMultiplier = 10.0
	// MaxAnnualProbability is the ceiling on the one-year probability.
	MaxAnnualProbability = 0.65
	// MaxMonthlyProbability is the ceiling on the 30-day probability.
	MaxMonthlyProbability = 0.20
)

// Category is a discrete risk tier.
type Category string

const (
	CategoryBackground Category = "background"
	CategoryLow        Category = "low"
	CategoryModerate   Category = "moderate"
	CategoryElevated   Category = "elevated"
	CategoryHigh       Category = "high"
	CategoryVeryHigh   Category = "very_high"
	CategoryCritical   Category = "critical"
)

// Confidence reflects how much data backs an assessment.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Factors are the individual multipliers. A neutral factor is 1.
type Factors struct {
	Triggering     float64 `json:"triggering"`
	DepthMigration float64 `json:"depth_migration"`
	BValue         float64 `json:"b_value"`
	Acceleration   float64 `json:"acceleration"`
	Clustering     float64 `json:"clustering"`
	Hydrothermal   float64 `json:"hydrothermal"`
	RecentActivity float64 `json:"recent_activity"`
}

// Neutral returns factors that leave the baseline unchanged.
func Neutral() Factors {
	return Factors{1, 1, 1, 1, 1, 1, 1}
}

// Product multiplies every factor.
func (f Factors) Product() float64 {
	return f.Triggering * f.DepthMigration * f.BValue * f.Acceleration *
		f.Clustering * f.Hydrothermal * f.RecentActivity
}

// Statistics carries the supporting numbers behind the factors.
type Statistics struct {
	NearbyEvents          int                             `json:"nearby_events"`
	RecentNearFieldEvents int                             `json:"recent_near_field_events"`
	HydrothermalGrade     int                             `json:"hydrothermal_grade"`
	CompletenessMagnitude float64                         `json:"completeness_magnitude"`
	BValue                *analytics.BValueResult         `json:"b_value,omitempty"`
	DepthMigration        *analytics.DepthMigrationResult `json:"depth_migration,omitempty"`
	Acceleration          *analytics.AccelerationResult   `json:"acceleration,omitempty"`
	Clusters              []analytics.Cluster             `json:"clusters,omitempty"`
	Bracketing            bool                            `json:"bracketing"`
	Triggering            triggering.Result               `json:"triggering"`
}

// Assessment is the risk record for one volcano at one instant.
type Assessment struct {
	ID               string     `json:"id"`
	VolcanoID        string     `json:"volcano_id"`
	VolcanoName      string     `json:"volcano_name"`
	Model            string     `json:"model"`
	AssessedAt       time.Time  `json:"assessed_at"`
	BaselineRate     float64    `json:"baseline_rate"`
	Factors          Factors    `json:"factors"`
	Multiplier       float64    `json:"multiplier"`
	Probability30Day float64    `json:"probability_30_day"`
	Probability1Year float64    `json:"probability_1_year"`
	Category         Category   `json:"category"`
	Confidence       Confidence `json:"confidence"`
	Guidance         string     `json:"guidance"`
	Notes            []string   `json:"notes"`
	Statistics       Statistics `json:"statistics"`
}

// Model scores one volcano. Implementations are pure functions of their
// inputs and safe for concurrent use.
type Model interface {
	Version() string
	Assess(v domain.Volcano, events []domain.SeismicEvent, now time.Time) Assessment
}

// ForVersion returns the model registered under version ("v1" or "v2").
// An empty version selects the canonical model.
func ForVersion(version string, trigger *triggering.Evaluator) (Model, bool) {
	switch version {
	case "", VersionMultiFactor:
		return NewMultiFactor(trigger), true
	case VersionTriggerOnly:
		return NewTriggerOnly(trigger), true
	default:
		return nil, false
	}
}

// BaselineRate is the annual eruption rate for a status. Unknown statuses
// fall back to the dormant rate.
func BaselineRate(s domain.VolcanoStatus) float64 {
	switch s {
	case domain.StatusActive:
		return 0.03
	case domain.StatusPotentiallyActive:
		return 0.008
	default:
		return 0.001
	}
}

// Probabilities converts a baseline and multiplier into bounded one-year
// and 30-day probabilities. The multiplier is capped at MaxMultiplier.
func Probabilities(baseline, multiplier float64) (p1y, p30d float64) {
	multiplier = min(max(multiplier, 0), MaxMultiplier)
	p1y = min(max(baseline*multiplier, 0), MaxAnnualProbability)
	p30d = min(p1y/12, MaxMonthlyProbability)
	return p1y, p30d
}

// categoryFloors lists the lower P1y bound of each tier above background.
var categoryFloors = []struct {
	floor    float64
	category Category
}{
	{0.30, CategoryCritical},
	{0.15, CategoryVeryHigh},
	{0.07, CategoryHigh},
	{0.04, CategoryElevated},
	{0.02, CategoryModerate},
	{0.005, CategoryLow},
}

// Categorize maps a one-year probability to a tier.
func Categorize(p1y float64) Category {
	for _, t := range categoryFloors {
		if p1y >= t.floor {
			return t.category
		}
	}
	return CategoryBackground
}

// ConfidenceFor grades data sufficiency from monitoring stations and the
// number of nearby events. Without nearby events confidence is always low.
func ConfidenceFor(stations, nearbyEvents int) Confidence {
	if nearbyEvents <= 0 {
		return ConfidenceLow
	}
	score := 0
	switch {
	case stations >= 5:
		score += 2
	case stations >= 2:
		score++
	}
	switch {
	case nearbyEvents >= 50:
		score += 2
	case nearbyEvents >= 10:
		score++
	}
	switch {
	case score >= 4:
		return ConfidenceHigh
	case score >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func newAssessment(v domain.Volcano, version string, now time.Time) Assessment {
	return Assessment{
		ID:           uuid.NewString(),
		VolcanoID:    v.ID(),
		VolcanoName:  v.Name(),
		Model:        version,
		AssessedAt:   now,
		BaselineRate: BaselineRate(v.Status()),
		Factors:      Neutral(),
		Notes:        []string{},
	}
}

// AssessAll scores every volcano with at most workers concurrent
// assessments and returns them sorted by descending one-year probability,
// ties broken by volcano ID. It stops early only if ctx is cancelled.
func AssessAll(ctx context.Context, m Model, volcanoes []domain.Volcano, events []domain.SeismicEvent, now time.Time, workers int) ([]Assessment, error) {
	if workers <= 0 {
		workers = 4
	}
	out := make([]Assessment, len(volcanoes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range volcanoes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = m.Assess(v, events, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortByProbability(out)
	return out, nil
}

// SortByProbability orders assessments by descending one-year probability,
// then ascending volcano ID.
func SortByProbability(as []Assessment) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].Probability1Year != as[j].Probability1Year {
			return as[i].Probability1Year > as[j].Probability1Year
		}
		return as[i].VolcanoID < as[j].VolcanoID
	})
}

package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

const (
	// DefaultDepthWindow is the look-back for depth migration analysis.
	DefaultDepthWindow = 14 * 24 * time.Hour

	// MinDepthEvents is the smallest sample fitted for depth migration.
	MinDepthEvents = 10

	maxPlausibleDepthKm = 100.0

	// depthNoiseKmPerDay is the slope below which depth is called stable.
	depthNoiseKmPerDay = 0.1

	// depthSignificantKmPerDay and depthMinR2 must both be exceeded before
	// a migration is reported as detected.
	depthSignificantKmPerDay = 0.5
	depthMinR2               = 0.3
)

// MigrationDirection describes the sign of a depth-versus-time trend.
type MigrationDirection string

const (
	MigrationInsufficient MigrationDirection = "insufficient"
	MigrationShallowing   MigrationDirection = "shallowing"
	MigrationDeepening    MigrationDirection = "deepening"
	MigrationStable       MigrationDirection = "stable"
)

// DepthMigrationResult summarises a hypocentre depth trend.
type DepthMigrationResult struct {
	Sufficient   bool               `json:"sufficient"`
	Detected     bool               `json:"detected"`
	Direction    MigrationDirection `json:"direction"`
	RateKmPerDay float64            `json:"rate_km_per_day"`
	R2           float64            `json:"r2"`
	EventCount   int                `json:"event_count"`
	MeanDepthKm  float64            `json:"mean_depth_km,omitempty"`
	ShallowestKm float64            `json:"shallowest_km,omitempty"`
	DeepestKm    float64            `json:"deepest_km,omitempty"`
	Note         string             `json:"note,omitempty"`
}

// AnalyzeDepthMigration fits depth against elapsed days for events inside
// (now-window, now] with depth in [0, 100] km. A negative slope means
// hypocentres are rising. A window of zero uses DefaultDepthWindow.
func AnalyzeDepthMigration(events []domain.SeismicEvent, now time.Time, window time.Duration) DepthMigrationResult {
	if window <= 0 {
		window = DefaultDepthWindow
	}
	start := now.Add(-window)

	selected := make([]domain.SeismicEvent, 0, len(events))
	for i := range events {
		e := events[i]
		if !e.Time.After(start) || e.Time.After(now) {
			continue
		}
		if e.DepthKm < 0 || e.DepthKm > maxPlausibleDepthKm {
			continue
		}
		selected = append(selected, e)
	}
	return depthTrend(selected, MinDepthEvents)
}

// depthTrend runs the depth regression on events as given, requiring at
// least minEvents members.
func depthTrend(events []domain.SeismicEvent, minEvents int) DepthMigrationResult {
	res := DepthMigrationResult{EventCount: len(events), Direction: MigrationInsufficient}
	if len(events) < minEvents || len(events) < 2 {
		res.Note = InsufficientData
		return res
	}

	sorted := make([]domain.SeismicEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	t0 := sorted[0].Time
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	res.ShallowestKm = math.Inf(1)
	res.DeepestKm = math.Inf(-1)
	for i := range sorted {
		xs[i] = sorted[i].Time.Sub(t0).Hours() / 24
		ys[i] = sorted[i].DepthKm
		res.ShallowestKm = math.Min(res.ShallowestKm, ys[i])
		res.DeepestKm = math.Max(res.DeepestKm, ys[i])
	}
	res.MeanDepthKm = mean(ys)

	fit, ok := LinearFit(xs, ys)
	if !ok {
		// Every event at the same instant: no time axis to fit.
		res.Note = InsufficientData
		return res
	}

	res.Sufficient = true
	res.RateKmPerDay = fit.Slope
	res.R2 = fit.R2
	switch {
	case fit.Slope < -depthNoiseKmPerDay:
		res.Direction = MigrationShallowing
	case fit.Slope > depthNoiseKmPerDay:
		res.Direction = MigrationDeepening
	default:
		res.Direction = MigrationStable
	}
	res.Detected = math.Abs(fit.Slope) > depthSignificantKmPerDay && fit.R2 > depthMinR2
	return res
}

package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/analytics"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
	"github.com/couchcryptid/quake-risk-service/internal/triggering"
)

// VersionMultiFactor identifies the canonical model.
const VersionMultiFactor = "v2"

const (
	// AnalysisRadiusKm bounds the events fed to b-value, depth and
	// acceleration analysis.
	AnalysisRadiusKm = 50.0

	// Recent near-field activity is counted within this radius and window.
	nearFieldRadiusKm = 30.0
	nearFieldWindow   = 30 * 24 * time.Hour

	// clusterWindow limits clustering to current activity.
	clusterWindow = 30 * 24 * time.Hour

	fastShallowingKmPerDay = 2.0
	maxClusteringFactor    = 2.0
)

// hydrothermalFactors is indexed by the 0-3 activity ordinal.
var hydrothermalFactors = [4]float64{1.0, 1.1, 1.2, 1.35}

// MultiFactor combines triggering, analytics and static attributes.
type MultiFactor struct {
	trigger  *triggering.Evaluator
	clusters analytics.ClusterOptions
}

// NewMultiFactor creates the v2 model. A nil evaluator uses the default
// triggering rules.
func NewMultiFactor(trigger *triggering.Evaluator) *MultiFactor {
	if trigger == nil {
		trigger = triggering.New()
	}
	return &MultiFactor{trigger: trigger, clusters: analytics.DefaultClusterOptions()}
}

func (m *MultiFactor) Version() string { return VersionMultiFactor }

// Assess scores v against events as of now. Events after now are ignored.
// Sparse data degrades individual factors to 1 and lowers confidence; it
// never fails the assessment.
func (m *MultiFactor) Assess(v domain.Volcano, events []domain.SeismicEvent, now time.Time) Assessment {
	a := newAssessment(v, VersionMultiFactor, now)
	lat, lon := v.Location()

	var nearby, recentCluster []domain.SeismicEvent
	recentNearField := 0
	for i := range events {
		e := events[i]
		if e.Time.After(now) {
			continue
		}
		d := geo.Distance(lat, lon, e.Latitude, e.Longitude)
		if d > AnalysisRadiusKm {
			continue
		}
		nearby = append(nearby, e)
		if now.Sub(e.Time) <= clusterWindow {
			recentCluster = append(recentCluster, e)
		}
		if d <= nearFieldRadiusKm && now.Sub(e.Time) <= nearFieldWindow {
			recentNearField++
		}
	}

	stats := &a.Statistics
	stats.NearbyEvents = len(nearby)
	stats.RecentNearFieldEvents = recentNearField

	trig := m.trigger.Evaluate(events, lat, lon, now)
	stats.Triggering = trig
	a.Factors.Triggering = trig.Factor

	mc, _ := analytics.EstimateCompleteness(nearby)
	stats.CompletenessMagnitude = mc
	bv := analytics.AnalyzeBValue(nearby, mc)
	stats.BValue = &bv
	a.Factors.BValue = bValueFactor(bv)

	depth := analytics.AnalyzeDepthMigration(nearby, now, 0)
	stats.DepthMigration = &depth
	a.Factors.DepthMigration = depthFactor(depth)

	accel := analytics.AnalyzeAcceleration(nearby, now, 0)
	stats.Acceleration = &accel
	a.Factors.Acceleration = accelerationFactor(accel)

	clusters := analytics.IdentifyClusters(recentCluster, lat, lon, m.clusters)
	stats.Clusters = clusters
	stats.Bracketing = analytics.Bracketing(clusters)
	a.Factors.Clustering = clusteringFactor(clusters, stats.Bracketing)

	stats.HydrothermalGrade = min(max(v.HydrothermalActivity(), 0), 3)
	a.Factors.Hydrothermal = hydrothermalFactors[stats.HydrothermalGrade]
	a.Factors.RecentActivity = recentActivityFactor(recentNearField)

	raw := a.Factors.Product()
	a.Multiplier = math.Min(raw, MaxMultiplier)
	a.Probability1Year, a.Probability30Day = Probabilities(a.BaselineRate, a.Multiplier)
	a.Category = Categorize(a.Probability1Year)
	a.Confidence = ConfidenceFor(v.MonitoringStations(), len(nearby))
	a.Guidance = Guidance(a.Category)
	a.Notes = m.notes(a, raw)
	return a
}

func bValueFactor(r analytics.BValueResult) float64 {
	switch r.Class {
	case analytics.BValueLow:
		return 1.3
	case analytics.BValueHigh:
		return 1.2
	default:
		return 1.0
	}
}

func depthFactor(r analytics.DepthMigrationResult) float64 {
	if !r.Detected || r.Direction != analytics.MigrationShallowing {
		return 1.0
	}
	if math.Abs(r.RateKmPerDay) > fastShallowingKmPerDay {
		return 2.0
	}
	return 1.5
}

func accelerationFactor(r analytics.AccelerationResult) float64 {
	switch r.Trend {
	case analytics.TrendAccelerating:
		return 2.0
	case analytics.TrendIncreasing:
		return 1.3
	default:
		return 1.0
	}
}

func clusteringFactor(clusters []analytics.Cluster, bracketing bool) float64 {
	f := 1.0
	if bracketing {
		f *= 1.5
	}
	var swarm, shallowing bool
	for i := range clusters {
		swarm = swarm || clusters[i].Swarm
		shallowing = shallowing || clusters[i].Shallowing()
	}
	if swarm {
		f *= 1.2
	}
	if shallowing {
		f *= 1.2
	}
	return math.Min(f, maxClusteringFactor)
}

func recentActivityFactor(n int) float64 {
	switch {
	case n >= 50:
		return 2.0
	case n >= 20:
		return 1.5
	case n >= 5:
		return 1.2
	default:
		return 1.0
	}
}

func (m *MultiFactor) notes(a Assessment, raw float64) []string {
	s := a.Statistics
	notes := []string{}

	if a.Factors.Triggering > 1 {
		notes = append(notes, triggeringNote(s.Triggering))
	}
	if a.Factors.DepthMigration > 1 {
		notes = append(notes, fmt.Sprintf("Hypocentres shallowing at %.2f km/day (R² %.2f) over the last %d days.",
			math.Abs(s.DepthMigration.RateKmPerDay), s.DepthMigration.R2, int(analytics.DefaultDepthWindow.Hours()/24)))
	}
	if a.Factors.BValue > 1 {
		notes = append(notes, fmt.Sprintf("b-value %.2f ± %.2f from %d events: %s.",
			s.BValue.BValue, s.BValue.Uncertainty, s.BValue.SampleSize, s.BValue.Interpretation))
	}
	if a.Factors.Acceleration > 1 {
		note := fmt.Sprintf("Daily event rate %s over the last 30 days.", s.Acceleration.Trend)
		if s.Acceleration.TimeToFailure != nil {
			note += fmt.Sprintf(" Inverse-rate extrapolation reaches zero on %s.", s.Acceleration.TimeToFailure.Format(time.DateOnly))
		}
		notes = append(notes, note)
	}
	if a.Factors.Clustering > 1 {
		notes = append(notes, clusteringNote(s.Clusters, s.Bracketing))
	}
	if a.Factors.Hydrothermal > 1 {
		notes = append(notes, fmt.Sprintf("Hydrothermal activity grade %d increases sensitivity to stress changes.", s.HydrothermalGrade))
	}
	if a.Factors.RecentActivity > 1 {
		notes = append(notes, fmt.Sprintf("%d events within %.0f km in the last 30 days.", s.RecentNearFieldEvents, nearFieldRadiusKm))
	}
	if raw > MaxMultiplier {
		notes = append(notes, fmt.Sprintf("Combined multiplier %.1f capped at %.0f.", raw, MaxMultiplier))
	}
	if s.NearbyEvents == 0 {
		notes = append(notes, fmt.Sprintf("No recorded seismicity within %.0f km; assessment rests on baseline and regional triggering only.", AnalysisRadiusKm))
	}
	return notes
}

func triggeringNote(r triggering.Result) string {
	if len(r.Matches) == 0 {
		return fmt.Sprintf("Triggering factor %.2f.", r.Factor)
	}
	top := r.Matches[0]
	return fmt.Sprintf("M%.1f event %.0f km away %.0f days ago qualifies under %s (factor %.2f).",
		top.Magnitude, top.DistanceKm, top.ElapsedDays, top.Rule, r.Factor)
}

func clusteringNote(clusters []analytics.Cluster, bracketing bool) string {
	swarms := 0
	for i := range clusters {
		if clusters[i].Swarm {
			swarms++
		}
	}
	note := fmt.Sprintf("%d active seismic clusters", len(clusters))
	if swarms > 0 {
		note += fmt.Sprintf(", %d with swarm character", swarms)
	}
	if bracketing {
		note += ", on opposing flanks of the edifice"
	}
	return note + "."
}

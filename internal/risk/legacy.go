package risk

import (
	"fmt"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
	"github.com/couchcryptid/quake-risk-service/internal/triggering"
)

// VersionTriggerOnly identifies the legacy single-factor model.
const VersionTriggerOnly = "v1"

// TriggerOnly scores baseline × triggering factor with no analytics. It
// uses a coarser four-tier scale than MultiFactor.
type TriggerOnly struct {
	trigger *triggering.Evaluator
}

// NewTriggerOnly creates the v1 model. A nil evaluator uses the default
// triggering rules.
func NewTriggerOnly(trigger *triggering.Evaluator) *TriggerOnly {
	if trigger == nil {
		trigger = triggering.New()
	}
	return &TriggerOnly{trigger: trigger}
}

func (m *TriggerOnly) Version() string { return VersionTriggerOnly }

func (m *TriggerOnly) Assess(v domain.Volcano, events []domain.SeismicEvent, now time.Time) Assessment {
	a := newAssessment(v, VersionTriggerOnly, now)
	lat, lon := v.Location()

	nearby := 0
	for i := range events {
		e := events[i]
		if e.Time.After(now) {
			continue
		}
		if geo.Distance(lat, lon, e.Latitude, e.Longitude) <= AnalysisRadiusKm {
			nearby++
		}
	}
	a.Statistics.NearbyEvents = nearby

	trig := m.trigger.Evaluate(events, lat, lon, now)
	a.Statistics.Triggering = trig
	a.Factors.Triggering = trig.Factor

	a.Multiplier = min(trig.Factor, MaxMultiplier)
	a.Probability1Year, a.Probability30Day = Probabilities(a.BaselineRate, a.Multiplier)
	a.Category = legacyCategory(a.Probability1Year)
	a.Confidence = ConfidenceFor(v.MonitoringStations(), nearby)
	a.Guidance = Guidance(a.Category)
	if trig.Factor > 1 {
		a.Notes = append(a.Notes, triggeringNote(trig))
	}
	if trig.HistoricalCount > 0 {
		a.Notes = append(a.Notes, fmt.Sprintf("%d historical events meet a triggering rule's magnitude and distance test.", trig.HistoricalCount))
	}
	return a
}

func legacyCategory(p1y float64) Category {
	switch {
	case p1y >= 0.15:
		return CategoryVeryHigh
	case p1y >= 0.05:
		return CategoryHigh
	case p1y >= 0.01:
		return CategoryModerate
	default:
		return CategoryLow
	}
}

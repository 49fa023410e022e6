// Package triggering evaluates published rules linking large earthquakes to
// a temporary rise in eruption likelihood at nearby volcanoes.
//
// Each qualifying event contributes increase × (1 − elapsed/duration),
// decaying linearly to zero at the end of the rule's effect window. The
// factor for a rule is 1 plus its largest contribution, and the combined
// factor is 1 plus the largest contribution across all rules. Contributions
// are never summed into the factor: SummedLoad and HistoricalCount are
// reported alongside as separate statistics.
package triggering

import (
	"sort"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
)

// Year is the Julian year used to express rule durations.
const Year = time.Duration(365.25 * 24 * float64(time.Hour))

// Rule is one distance/magnitude/time-decay triggering model.
type Rule struct {
	Name          string        `json:"name"`
	Reference     string        `json:"reference"`
	MinMagnitude  float64       `json:"min_magnitude"`
	MaxDistanceKm float64       `json:"max_distance_km"`
	Duration      time.Duration `json:"duration"`
	Increase      float64       `json:"increase"`
}

// Qualifies reports whether an event of magnitude mag at distanceKm meets
// the rule's magnitude and distance thresholds, ignoring time.
func (r Rule) Qualifies(mag, distanceKm float64) bool {
	return mag >= r.MinMagnitude && distanceKm <= r.MaxDistanceKm
}

// Contribution is the decayed increase after elapsed time. It is zero for
// negative elapsed time and once the effect window has passed.
func (r Rule) Contribution(elapsed time.Duration) float64 {
	if elapsed < 0 || r.Duration <= 0 || elapsed >= r.Duration {
		return 0
	}
	return r.Increase * (1 - float64(elapsed)/float64(r.Duration))
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:          "nishimura-2017",
			Reference:     "Nishimura (2017), eruption rate increase within 200 km of M7.5+ earthquakes",
			MinMagnitude:  7.5,
			MaxDistanceKm: 200,
			Duration:      5 * Year,
			Increase:      0.5,
		},
		{
			Name:          "linde-sacks-1998",
			Reference:     "Linde & Sacks (1998), distant triggering by M8+ earthquakes",
			MinMagnitude:  8.0,
			MaxDistanceKm: 750,
			Duration:      Year,
			Increase:      0.8,
		},
		{
			Name:          "hill-2002-local",
			Reference:     "Hill et al. (2002), dynamic triggering of local unrest",
			MinMagnitude:  6.0,
			MaxDistanceKm: 50,
			Duration:      90 * 24 * time.Hour,
			Increase:      0.3,
		},
	}
}

// Match is an event contributing to one rule.
type Match struct {
	Rule         string    `json:"rule"`
	EventID      string    `json:"event_id"`
	Magnitude    float64   `json:"magnitude"`
	DistanceKm   float64   `json:"distance_km"`
	EventTime    time.Time `json:"event_time"`
	ElapsedDays  float64   `json:"elapsed_days"`
	Contribution float64   `json:"contribution"`
}

// Result is the outcome of evaluating all rules for one location.
type Result struct {
	// Factor is 1 + the largest decayed contribution across rules.
	Factor float64 `json:"factor"`
	// DominantRule names the rule that produced Factor, empty when none fired.
	DominantRule string `json:"dominant_rule,omitempty"`
	// RuleFactors holds 1 + the largest contribution per rule.
	RuleFactors map[string]float64 `json:"rule_factors"`
	// Matches lists every positive contribution, largest first.
	Matches []Match `json:"matches,omitempty"`
	// SummedLoad is the sum of every decayed contribution across rules.
	SummedLoad float64 `json:"summed_load"`
	// HistoricalCount counts distinct events meeting any rule's magnitude
	// and distance test, whether or not their effect has decayed.
	HistoricalCount int `json:"historical_count"`
}

// Evaluator applies a fixed rule set.
type Evaluator struct {
	rules []Rule
}

// New creates an Evaluator. With no rules it uses DefaultRules.
func New(rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the evaluator's rules.
func (e *Evaluator) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate scores events against every rule for a volcano at (lat, lon)
// as of now. Events timestamped after now are ignored.
func (e *Evaluator) Evaluate(events []domain.SeismicEvent, lat, lon float64, now time.Time) Result {
	res := Result{Factor: 1, RuleFactors: make(map[string]float64, len(e.rules))}
	for _, r := range e.rules {
		res.RuleFactors[r.Name] = 1
	}

	var best float64
	for i := range events {
		ev := events[i]
		elapsed := now.Sub(ev.Time)
		if elapsed < 0 {
			continue
		}
		dist := geo.Distance(lat, lon, ev.Latitude, ev.Longitude)

		qualified := false
		for _, r := range e.rules {
			if !r.Qualifies(ev.Magnitude, dist) {
				continue
			}
			qualified = true

			c := r.Contribution(elapsed)
			if c <= 0 {
				continue
			}
			res.SummedLoad += c
			res.Matches = append(res.Matches, Match{
				Rule:         r.Name,
				EventID:      ev.ID,
				Magnitude:    ev.Magnitude,
				DistanceKm:   dist,
				EventTime:    ev.Time,
				ElapsedDays:  elapsed.Hours() / 24,
				Contribution: c,
			})
			if 1+c > res.RuleFactors[r.Name] {
				res.RuleFactors[r.Name] = 1 + c
			}
			if c > best {
				best = c
				res.DominantRule = r.Name
			}
		}
		if qualified {
			res.HistoricalCount++
		}
	}

	res.Factor = 1 + best
	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].Contribution > res.Matches[j].Contribution
	})
	return res
}

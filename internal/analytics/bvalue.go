package analytics

import (
	"math"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

// InsufficientData is the note attached to any analysis that declines to
// produce a number because its sample is too small.
const InsufficientData = "insufficient data for reliable estimate"

const (
	// MinBValueEvents is the smallest sample the Aki estimator is run on.
	MinBValueEvents = 20

	bValueLowThreshold  = 0.7
	bValueHighThreshold = 1.3

	// magnitudeBin is the catalog rounding width; the Aki estimator
	// subtracts half of it from the completeness magnitude.
	magnitudeBin = 0.1

	// completenessCorrection is added to the maximum-curvature estimate,
	// which is known to underestimate Mc.
	completenessCorrection = 0.2
)

// BValueClass labels a b-value against the tectonic norm of about 1.
type BValueClass string

const (
	BValueInsufficient BValueClass = "insufficient"
	BValueLow          BValueClass = "low"
	BValueNormal       BValueClass = "normal"
	BValueHigh         BValueClass = "high"
)

// BValueResult is the outcome of a Gutenberg-Richter b-value estimate.
type BValueResult struct {
	Sufficient     bool        `json:"sufficient"`
	BValue         float64     `json:"b_value,omitempty"`
	Uncertainty    float64     `json:"uncertainty,omitempty"`
	Completeness   float64     `json:"completeness_magnitude"`
	MeanMagnitude  float64     `json:"mean_magnitude,omitempty"`
	SampleSize     int         `json:"sample_size"`
	Class          BValueClass `json:"class"`
	Interpretation string      `json:"interpretation"`
}

// AnalyzeBValue estimates the b-value of events at or above the
// completeness magnitude mc using the Aki maximum-likelihood estimator
//
//	b = log10(e) / (mean(M) - (mc - Δ/2))
//
// with Δ the 0.1 magnitude bin. The Shi & Bolt (1982) standard error is
// reported as Uncertainty. Fewer than MinBValueEvents qualifying events
// yield an insufficient result with no b-value.
func AnalyzeBValue(events []domain.SeismicEvent, mc float64) BValueResult {
	mags := make([]float64, 0, len(events))
	for i := range events {
		if events[i].Magnitude >= mc {
			mags = append(mags, events[i].Magnitude)
		}
	}

	res := BValueResult{Completeness: mc, SampleSize: len(mags)}
	if len(mags) < MinBValueEvents {
		res.Class = BValueInsufficient
		res.Interpretation = InsufficientData
		return res
	}

	m := mean(mags)
	denom := m - (mc - magnitudeBin/2)
	if denom <= 0 {
		res.Class = BValueInsufficient
		res.Interpretation = InsufficientData
		return res
	}
	b := math.Log10(math.E) / denom

	var ss float64
	for _, v := range mags {
		ss += (v - m) * (v - m)
	}
	n := float64(len(mags))
	res.Uncertainty = 2.3 * b * b * math.Sqrt(ss/(n*(n-1)))

	res.Sufficient = true
	res.BValue = b
	res.MeanMagnitude = m
	switch {
	case b < bValueLowThreshold:
		res.Class = BValueLow
		res.Interpretation = "low b-value: elevated differential stress"
	case b > bValueHighThreshold:
		res.Class = BValueHigh
		res.Interpretation = "high b-value: fluid pressurisation or swarm behaviour"
	default:
		res.Class = BValueNormal
		res.Interpretation = "b-value within the tectonic norm"
	}
	return res
}

// EstimateCompleteness estimates the magnitude of completeness by maximum
// curvature: the most populated 0.1 magnitude bin, plus a 0.2 correction.
// It returns false for an empty event set.
func EstimateCompleteness(events []domain.SeismicEvent) (float64, bool) {
	if len(events) == 0 {
		return 0, false
	}
	counts := make(map[int]int)
	for i := range events {
		counts[int(math.Round(events[i].Magnitude/magnitudeBin))]++
	}
	bestBin, bestCount := 0, -1
	for bin, c := range counts {
		// Lower bins win ties so the result does not depend on map order.
		if c > bestCount || (c == bestCount && bin < bestBin) {
			bestBin, bestCount = bin, c
		}
	}
	mc := float64(bestBin)*magnitudeBin + completenessCorrection
	return math.Round(mc*10) / 10, true
}

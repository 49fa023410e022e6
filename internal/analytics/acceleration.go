package analytics

import (
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

const (
	// DefaultAccelerationWindow is the look-back binned into daily counts.
	DefaultAccelerationWindow = 30 * 24 * time.Hour

	// MinAccelerationEvents is the smallest event count analysed.
	MinAccelerationEvents = 10

	// trendMinR2 is the fit quality both the count trend and the inverse
	// rate fit must reach.
	trendMinR2 = 0.5

	// minInversePoints is the number of non-empty days the Failure
	// Forecast Method needs.
	minInversePoints = 5

	// maxForecastHorizon bounds time-to-failure projections.
	maxForecastHorizon = 365 * 24 * time.Hour
)

// Trend classifies the evolution of the daily event rate.
type Trend string

const (
	TrendInsufficient Trend = "insufficient"
	TrendAccelerating Trend = "accelerating"
	TrendIncreasing   Trend = "increasing"
	TrendStable       Trend = "stable"
	TrendDecreasing   Trend = "decreasing"
)

// AccelerationResult describes the seismicity rate trend and, when the
// inverse rate falls linearly, a Failure Forecast Method projection.
type AccelerationResult struct {
	Sufficient    bool       `json:"sufficient"`
	Trend         Trend      `json:"trend"`
	EventCount    int        `json:"event_count"`
	DailyCounts   []int      `json:"daily_counts,omitempty"`
	CountFit      Fit        `json:"count_fit"`
	InverseFit    *Fit       `json:"inverse_rate_fit,omitempty"`
	PowerLaw      bool       `json:"power_law"`
	TimeToFailure *time.Time `json:"time_to_failure,omitempty"`
	Note          string     `json:"note,omitempty"`
}

// AnalyzeAcceleration bins events in [now-window, now] into daily counts
// and regresses count on day index. A positive, well-fitted slope
// triggers a second fit of 1/count over the non-empty days; a negative
// well-fitted inverse slope indicates power-law acceleration, and the
// day its line reaches zero is reported as TimeToFailure when it falls
// within a year of now. A window of zero uses DefaultAccelerationWindow.
func AnalyzeAcceleration(events []domain.SeismicEvent, now time.Time, window time.Duration) AccelerationResult {
	if window <= 0 {
		window = DefaultAccelerationWindow
	}
	days := int(window / (24 * time.Hour))
	if days < 2 {
		days = 2
	}
	start := now.Add(-time.Duration(days) * 24 * time.Hour)

	counts := make([]int, days)
	total := 0
	for i := range events {
		t := events[i].Time
		if t.Before(start) || t.After(now) {
			continue
		}
		idx := int(t.Sub(start) / (24 * time.Hour))
		if idx >= days {
			idx = days - 1
		}
		counts[idx]++
		total++
	}

	res := AccelerationResult{EventCount: total, Trend: TrendInsufficient}
	if total < MinAccelerationEvents {
		res.Note = InsufficientData
		return res
	}
	res.Sufficient = true
	res.DailyCounts = counts

	xs := make([]float64, days)
	ys := make([]float64, days)
	for i, c := range counts {
		xs[i] = float64(i)
		ys[i] = float64(c)
	}
	countFit, _ := LinearFit(xs, ys)
	res.CountFit = countFit

	switch {
	case countFit.Slope > 0 && countFit.R2 >= trendMinR2:
		res.Trend = TrendIncreasing
	case countFit.Slope < 0 && countFit.R2 >= trendMinR2:
		res.Trend = TrendDecreasing
	default:
		res.Trend = TrendStable
		return res
	}
	if res.Trend != TrendIncreasing {
		return res
	}

	var ix, iy []float64
	for i, c := range counts {
		if c == 0 {
			continue
		}
		ix = append(ix, float64(i))
		iy = append(iy, 1/float64(c))
	}
	if len(ix) < minInversePoints {
		return res
	}
	invFit, ok := LinearFit(ix, iy)
	if !ok {
		return res
	}
	res.InverseFit = &invFit
	if invFit.Slope >= 0 || invFit.R2 < trendMinR2 {
		return res
	}

	res.Trend = TrendAccelerating
	res.PowerLaw = true

	zeroDay := -invFit.Intercept / invFit.Slope
	ttf := start.Add(time.Duration(zeroDay * float64(24*time.Hour)))
	if ttf.After(now) && !ttf.After(now.Add(maxForecastHorizon)) {
		res.TimeToFailure = &ttf
	}
	return res
}

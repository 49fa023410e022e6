package triggering

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now    = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	volLat = 13.257
	volLon = 123.685
)

// northOf returns an event km due north of the volcano.
func northOf(id string, km, mag float64, ago time.Duration) domain.SeismicEvent {
	dLat := km / (geo.EarthRadiusKm * math.Pi / 180)
	return domain.SeismicEvent{
		ID:        id,
		Source:    domain.SourceUSGS,
		Magnitude: mag,
		Latitude:  volLat + dLat,
		Longitude: volLon,
		DepthKm:   20,
		Time:      now.Add(-ago),
	}
}

func TestRule_Contribution(t *testing.T) {
	r := Rule{Name: "r", Duration: Year, Increase: 0.8}

	assert.InDelta(t, 0.8, r.Contribution(0), 1e-12)
	assert.InDelta(t, 0.4, r.Contribution(Year/2), 1e-12)
	assert.Zero(t, r.Contribution(Year))
	assert.Zero(t, r.Contribution(2*Year))
	assert.Zero(t, r.Contribution(-time.Hour))
}

func TestEvaluate_MaxAcrossRules(t *testing.T) {
	events := []domain.SeismicEvent{northOf("usgs_m8", 100, 8.0, Year/2)}

	res := New().Evaluate(events, volLat, volLon, now)

	// nishimura: 0.5 × (1 − 0.5/5) = 0.45; linde-sacks: 0.8 × (1 − 0.5) = 0.4
	assert.InDelta(t, 1.45, res.Factor, 1e-9)
	assert.Equal(t, "nishimura-2017", res.DominantRule)
	assert.InDelta(t, 1.45, res.RuleFactors["nishimura-2017"], 1e-9)
	assert.InDelta(t, 1.4, res.RuleFactors["linde-sacks-1998"], 1e-9)
	assert.InDelta(t, 1.0, res.RuleFactors["hill-2002-local"], 1e-9)
	assert.InDelta(t, 0.85, res.SummedLoad, 1e-9)
	assert.Equal(t, 1, res.HistoricalCount)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "nishimura-2017", res.Matches[0].Rule)
	assert.InDelta(t, 100, res.Matches[0].DistanceKm, 1e-6)
}

func TestEvaluate_ManySmallEventsDoNotCompound(t *testing.T) {
	var events []domain.SeismicEvent
	for i := range 10 {
		events = append(events, northOf("usgs_"+string(rune('a'+i)), 100, 7.6, Year))
	}

	res := New().Evaluate(events, volLat, volLon, now)

	assert.InDelta(t, 1.4, res.Factor, 1e-9, "max, not sum")
	assert.InDelta(t, 4.0, res.SummedLoad, 1e-9)
	assert.Equal(t, 10, res.HistoricalCount)
}

func TestEvaluate_ExpiredAndFutureEvents(t *testing.T) {
	events := []domain.SeismicEvent{
		northOf("usgs_old", 100, 7.8, 6*Year),
		northOf("usgs_future", 10, 8.5, -24*time.Hour),
	}

	res := New().Evaluate(events, volLat, volLon, now)

	assert.InDelta(t, 1.0, res.Factor, 1e-12)
	assert.Empty(t, res.DominantRule)
	assert.Empty(t, res.Matches)
	assert.Zero(t, res.SummedLoad)
	assert.Equal(t, 1, res.HistoricalCount, "expired event still counts historically")
}

func TestEvaluate_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		event  domain.SeismicEvent
		factor float64
	}{
		{"local M6.5 within hill window", northOf("usgs_1", 40, 6.5, 45*24*time.Hour), 1.15},
		{"local M6.5 beyond 50 km", northOf("usgs_2", 60, 6.5, 45*24*time.Hour), 1.0},
		{"M7.4 below nishimura threshold", northOf("usgs_3", 150, 7.4, time.Hour), 1.0},
		{"M7.9 beyond 200 km", northOf("usgs_4", 300, 7.9, time.Hour), 1.0},
		{"M8.1 at 700 km", northOf("usgs_5", 700, 8.1, 0), 1.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Evaluate([]domain.SeismicEvent{tt.event}, volLat, volLon, now)
			assert.InDelta(t, tt.factor, res.Factor, 1e-6)
		})
	}
}

func TestEvaluate_CustomRules(t *testing.T) {
	only := Rule{Name: "only", MinMagnitude: 5, MaxDistanceKm: 20, Duration: 10 * 24 * time.Hour, Increase: 1}
	e := New(only)
	require.Len(t, e.Rules(), 1)

	res := e.Evaluate([]domain.SeismicEvent{northOf("usgs_x", 10, 5.5, 5*24*time.Hour)}, volLat, volLon, now)
	assert.InDelta(t, 1.5, res.Factor, 1e-9)
}

func TestEvaluate_AddingEventsNeverLowersFactor(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	randomEvent := func(i int) domain.SeismicEvent {
		return northOf(
			"usgs_r"+string(rune('a'+i%26)),
			rng.Float64()*900,
			5.5+rng.Float64()*3.5,
			time.Duration(rng.Float64()*float64(6*Year)),
		)
	}

	e := New()
	for iter := range 200 {
		var events []domain.SeismicEvent
		for i := range rng.IntN(8) {
			events = append(events, randomEvent(i))
		}
		before := e.Evaluate(events, volLat, volLon, now)
		after := e.Evaluate(append(events, randomEvent(iter)), volLat, volLon, now)

		assert.GreaterOrEqual(t, after.Factor, before.Factor)
		assert.GreaterOrEqual(t, after.SummedLoad, before.SummedLoad)
		assert.GreaterOrEqual(t, after.HistoricalCount, before.HistoricalCount)
	}
}

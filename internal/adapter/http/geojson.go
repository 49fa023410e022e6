package http

import (
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/pipeline"
)

type featureCollection struct {
	Type     string       `json:"type"`
	Metadata metadata     `json:"metadata"`
	Features []feature    `json:"features"`
	Stats    fusion.Stats `json:"stats"`
}

type metadata struct {
	Generated int64  `json:"generated"`
	CycleID   string `json:"cycle_id"`
	Count     int    `json:"count"`
	Cached    bool   `json:"cached"`
}

type feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Type        string     `json:"type"`
	Coordinates [3]float64 `json:"coordinates"`
}

type properties struct {
	Mag     float64 `json:"mag"`
	MagType string  `json:"magType"`
	Place   string  `json:"place"`
	Time    int64   `json:"time"`
	Source  string  `json:"source"`
	URL     string  `json:"url,omitempty"`
	Felt    *int    `json:"felt,omitempty"`
	Tsunami int     `json:"tsunami"`
}

// toFeatureCollection renders events as GeoJSON points with
// [longitude, latitude, depth] coordinates and epoch-millisecond times.
func toFeatureCollection(res pipeline.Result, now time.Time) featureCollection {
	fc := featureCollection{
		Type: "FeatureCollection",
		Metadata: metadata{
			Generated: now.UnixMilli(),
			CycleID:   res.CycleID,
			Count:     len(res.Events),
			Cached:    res.Cached,
		},
		Features: make([]feature, 0, len(res.Events)),
		Stats:    res.Stats,
	}
	for i := range res.Events {
		e := res.Events[i]
		tsunami := 0
		if e.Tsunami {
			tsunami = 1
		}
		fc.Features = append(fc.Features, feature{
			Type:     "Feature",
			ID:       e.ID,
			Geometry: geometry{Type: "Point", Coordinates: [3]float64{e.Longitude, e.Latitude, e.DepthKm}},
			Properties: properties{
				Mag:     e.Magnitude,
				MagType: e.MagnitudeType,
				Place:   e.Place,
				Time:    e.Time.UnixMilli(),
				Source:  string(e.Source),
				URL:     e.URL,
				Felt:    e.Felt,
				Tsunami: tsunami,
			},
		})
	}
	return fc
}

package domain

import (
	"errors"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/geo"
)

// DefaultDepthKm replaces a missing hypocentre depth. Zero would read as a
// surface rupture, which is physically misleading for most catalog entries.
const DefaultDepthKm = 10.0

// ErrInvalidQuery is returned when a Query cannot be satisfied.
var ErrInvalidQuery = errors.New("invalid query")

// Source identifies the seismic network that reported an event.
type Source string

const (
	SourceUSGS     Source = "usgs"
	SourceEMSC     Source = "emsc"
	SourceJMA      Source = "jma"
	SourcePHIVOLCS Source = "phivolcs"
)

// Priority ranks sources for fusion. Regional and national agencies
// outrank global aggregators because of their local calibration.
// Unknown sources rank zero.
func (s Source) Priority() int {
	switch s {
	case SourcePHIVOLCS:
		return 4
	case SourceJMA:
		return 3
	case SourceEMSC:
		return 2
	case SourceUSGS:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether s has strictly higher priority than other.
func (s Source) Outranks(other Source) bool {
	return s.Priority() > other.Priority()
}

// AllSources lists every known source from highest to lowest priority.
var AllSources = []Source{SourcePHIVOLCS, SourceJMA, SourceEMSC, SourceUSGS}

// SeismicEvent is the unified earthquake record produced by normalization.
// Values are never mutated after creation; fusion selects between them.
type SeismicEvent struct {
	ID            string    `json:"id"`
	Source        Source    `json:"source"`
	Magnitude     float64   `json:"magnitude"`
	MagnitudeType string    `json:"magnitude_type"`
	Place         string    `json:"place"`
	Time          time.Time `json:"time"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	DepthKm       float64   `json:"depth_km"`
	URL           string    `json:"url,omitempty"`
	Felt          *int      `json:"felt,omitempty"`
	Tsunami       bool      `json:"tsunami"`
}

// Query filters events by time window, minimum magnitude and an optional
// bounding box.
type Query struct {
	Start        time.Time
	End          time.Time
	MinMagnitude float64
	Limit        int
	Region       *geo.BoundingBox
}

// Validate checks that the query describes a usable window.
func (q Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return errors.Join(ErrInvalidQuery, errors.New("time window is required"))
	}
	if !q.End.After(q.Start) {
		return errors.Join(ErrInvalidQuery, errors.New("end must be after start"))
	}
	if q.Limit < 0 {
		return errors.Join(ErrInvalidQuery, errors.New("limit must not be negative"))
	}
	return nil
}

// Matches reports whether an event satisfies the query filters. Limit is
// not considered.
func (q Query) Matches(e SeismicEvent) bool {
	if e.Time.Before(q.Start) || e.Time.After(q.End) {
		return false
	}
	if e.Magnitude < q.MinMagnitude {
		return false
	}
	if q.Region != nil && !q.Region.Contains(e.Latitude, e.Longitude) {
		return false
	}
	return true
}

// Filter returns the events matching q, truncated to q.Limit when set.
// Input order is preserved.
func (q Query) Filter(events []SeismicEvent) []SeismicEvent {
	out := make([]SeismicEvent, 0, len(events))
	for i := range events {
		if !q.Matches(events[i]) {
			continue
		}
		out = append(out, events[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

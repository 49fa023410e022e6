// Package fusion merges earthquake reports from several networks into one
// authoritative list, keeping the highest-priority report of each event.
package fusion

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
)

// Options sets the thresholds under which two reports are treated as the
// same physical earthquake. All comparisons are strict.
type Options struct {
	MaxTimeDelta      time.Duration
	MaxDistanceKm     float64
	MaxMagnitudeDelta float64
}

// Default returns the production matching thresholds.
func Default() Options {
	return Options{
		MaxTimeDelta:      2 * time.Minute,
		MaxDistanceKm:     100,
		MaxMagnitudeDelta: 0.5,
	}
}

// Stats summarises one fusion pass.
type Stats struct {
	Before     int                   `json:"before_dedup"`
	After      int                   `json:"after_dedup"`
	Duplicates int                   `json:"duplicates_removed"`
	Replaced   int                   `json:"replaced_by_priority"`
	PerSource  map[domain.Source]int `json:"per_source"`
}

// Engine deduplicates a full fetch cycle of events.
type Engine struct {
	opts Options
}

// New creates an Engine with the given thresholds.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Fuse returns the deduplicated events sorted newest first, together with
// per-source and before/after counts. The input slice is not modified.
//
// Events are visited newest first; each is compared against every event
// already accepted. A match replaces the accepted event only when the new
// source strictly outranks it, so equal-priority ties keep the first one
// seen. The scan is quadratic, which is fine for per-cycle provider limits.
func (e *Engine) Fuse(events []domain.SeismicEvent) ([]domain.SeismicEvent, Stats) {
	stats := Stats{
		Before:    len(events),
		PerSource: make(map[domain.Source]int),
	}
	for i := range events {
		stats.PerSource[events[i].Source]++
	}

	sorted := make([]domain.SeismicEvent, len(events))
	copy(sorted, events)
	sortNewestFirst(sorted)

	accepted := make([]domain.SeismicEvent, 0, len(sorted))
	for _, candidate := range sorted {
		idx := e.findMatch(accepted, candidate)
		if idx < 0 {
			accepted = append(accepted, candidate)
			continue
		}
		stats.Duplicates++
		if candidate.Source.Outranks(accepted[idx].Source) {
			accepted[idx] = candidate
			stats.Replaced++
			accepted = e.absorb(accepted, idx, &stats)
		}
	}

	// Replacements can carry a slightly different origin time.
	sortNewestFirst(accepted)
	stats.After = len(accepted)
	return accepted, stats
}

// SameEvent reports whether two reports describe the same earthquake.
func (e *Engine) SameEvent(a, b domain.SeismicEvent) bool {
	dt := a.Time.Sub(b.Time)
	if dt < 0 {
		dt = -dt
	}
	if dt >= e.opts.MaxTimeDelta {
		return false
	}
	if math.Abs(a.Magnitude-b.Magnitude) >= e.opts.MaxMagnitudeDelta {
		return false
	}
	return geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude) < e.opts.MaxDistanceKm
}

// absorb merges accepted entries that match the new representative at idx.
// A replacement can bridge two reports that did not match each other, so
// the outranked side of each such pair is dropped.
func (e *Engine) absorb(accepted []domain.SeismicEvent, idx int, stats *Stats) []domain.SeismicEvent {
	rep := accepted[idx]
	out := accepted[:0]
	keepRep := true
	for i := range accepted {
		if i == idx {
			continue
		}
		other := accepted[i]
		if other.ID != rep.ID && !e.SameEvent(other, rep) {
			continue
		}
		if other.Source.Outranks(rep.Source) {
			keepRep = false
		}
	}
	for i := range accepted {
		other := accepted[i]
		switch {
		case i == idx:
			if !keepRep {
				stats.Duplicates++
				continue
			}
		case keepRep && (other.ID == rep.ID || e.SameEvent(other, rep)):
			stats.Duplicates++
			continue
		}
		out = append(out, other)
	}
	return out
}

func (e *Engine) findMatch(accepted []domain.SeismicEvent, candidate domain.SeismicEvent) int {
	for i := range accepted {
		if accepted[i].ID == candidate.ID || e.SameEvent(accepted[i], candidate) {
			return i
		}
	}
	return -1
}

func sortNewestFirst(events []domain.SeismicEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.After(events[j].Time)
	})
}

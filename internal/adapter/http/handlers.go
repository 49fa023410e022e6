package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/catalog"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/pipeline"
	"github.com/couchcryptid/quake-risk-service/internal/risk"
	"github.com/go-chi/chi/v5"
)

const defaultHours = 24

type earthquakesResponse struct {
	Success   bool                      `json:"success"`
	Generated time.Time                 `json:"generated"`
	FetchedAt time.Time                 `json:"fetched_at"`
	CycleID   string                    `json:"cycle_id"`
	Cached    bool                      `json:"cached"`
	FromStore bool                      `json:"from_store,omitempty"`
	Count     int                       `json:"count"`
	Stats     fusion.Stats              `json:"stats"`
	Providers []pipeline.ProviderStatus `json:"providers,omitempty"`
	Events    []domain.SeismicEvent     `json:"events"`
}

type riskListResponse struct {
	Success     bool              `json:"success"`
	Generated   time.Time         `json:"generated"`
	Model       string            `json:"model"`
	Count       int               `json:"count"`
	Assessments []risk.Assessment `json:"assessments"`
}

type riskResponse struct {
	Success    bool            `json:"success"`
	Generated  time.Time       `json:"generated"`
	Assessment risk.Assessment `json:"assessment"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleEarthquakes(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.URL.Query().Get("format"), "geojson") {
		s.handleEarthquakesGeoJSON(w, r)
		return
	}
	res, ok := s.fetch(w, r)
	if !ok {
		return
	}
	events := res.Events
	if events == nil {
		events = []domain.SeismicEvent{}
	}
	writeJSON(w, http.StatusOK, earthquakesResponse{
		Success:   true,
		Generated: s.clock.Now().UTC(),
		FetchedAt: res.FetchedAt.UTC(),
		CycleID:   res.CycleID,
		Cached:    res.Cached,
		FromStore: res.FromStore,
		Count:     len(events),
		Stats:     res.Stats,
		Providers: res.Providers,
		Events:    events,
	})
}

func (s *Server) handleEarthquakesGeoJSON(w http.ResponseWriter, r *http.Request) {
	res, ok := s.fetch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(toFeatureCollection(res, s.clock.Now())) //nolint:errcheck // client went away
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) (pipeline.Result, bool) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return pipeline.Result{}, false
	}
	res, err := s.events.Fetch(r.Context(), req)
	if err != nil {
		s.handleError(w, r, err)
		return pipeline.Result{}, false
	}
	return res, true
}

func (s *Server) handleRiskAll(w http.ResponseWriter, r *http.Request) {
	out, err := s.assessor.AssessAll(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, riskListResponse{
		Success:     true,
		Generated:   s.clock.Now().UTC(),
		Model:       s.assessor.ModelVersion(),
		Count:       len(out),
		Assessments: out,
	})
}

func (s *Server) handleRiskOne(w http.ResponseWriter, r *http.Request) {
	a, err := s.assessor.Assess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, riskResponse{
		Success:    true,
		Generated:  s.clock.Now().UTC(),
		Assessment: a,
	})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrVolcanoNotFound):
		writeError(w, http.StatusNotFound, catalog.ErrVolcanoNotFound.Error())
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case r.Context().Err() != nil:
		// Client disconnected; nobody is listening for a body.
		s.logger.Debug("request cancelled", "path", r.URL.Path)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseRequest reads hours, min_magnitude, limit, and region.
func parseRequest(r *http.Request) (pipeline.Request, error) {
	q := r.URL.Query()
	req := pipeline.Request{Hours: defaultHours, Region: q.Get("region")}

	if v := q.Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid hours %q", v)
		}
		req.Hours = n
	}
	if v := q.Get("min_magnitude"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid min_magnitude %q", v)
		}
		req.MinMagnitude = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid limit %q", v)
		}
		req.Limit = n
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

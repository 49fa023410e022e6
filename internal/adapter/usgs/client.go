// Package usgs fetches events from the USGS FDSN event service.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public USGS earthquake catalog.
const DefaultBaseURL = "https://earthquake.usgs.gov"

const queryPath = "/fdsnws/event/1/query"

// Client queries the USGS GeoJSON feed and normalizes its features.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a USGS client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(retries).
			SetRetryWaitTime(500 * time.Millisecond).
			SetHeader("Accept", "application/geo+json"),
		logger: logger,
	}
}

func (c *Client) Name() domain.Source { return domain.SourceUSGS }

// Fetch returns normalized events matching q and the number of features
// dropped during normalization.
func (c *Client) Fetch(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, int, error) {
	params := map[string]string{
		"format":    "geojson",
		"orderby":   "time",
		"starttime": q.Start.UTC().Format(time.RFC3339),
		"endtime":   q.End.UTC().Format(time.RFC3339),
	}
	if q.MinMagnitude > 0 {
		params["minmagnitude"] = strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	if r := q.Region; r != nil && r.MinLon <= r.MaxLon {
		params["minlatitude"] = strconv.FormatFloat(r.MinLat, 'f', -1, 64)
		params["maxlatitude"] = strconv.FormatFloat(r.MaxLat, 'f', -1, 64)
		params["minlongitude"] = strconv.FormatFloat(r.MinLon, 'f', -1, 64)
		params["maxlongitude"] = strconv.FormatFloat(r.MaxLon, 'f', -1, 64)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(queryPath)
	if err != nil {
		return nil, 0, fmt.Errorf("usgs request: %w", err)
	}
	// FDSN answers 204 when nothing matches.
	if resp.StatusCode() == http.StatusNoContent {
		return nil, 0, nil
	}
	if resp.IsError() {
		return nil, 0, fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode(), resp.String())
	}

	var fc featureCollection
	if err := json.Unmarshal(resp.Body(), &fc); err != nil {
		return nil, 0, fmt.Errorf("decode usgs response: %w", err)
	}

	events := make([]domain.SeismicEvent, 0, len(fc.Features))
	dropped := 0
	for _, f := range fc.Features {
		e, ok := domain.NormalizeUSGS(f)
		if !ok {
			dropped++
			continue
		}
		if q.Matches(e) {
			events = append(events, e)
		}
	}
	if dropped > 0 {
		c.logger.Debug("dropped malformed usgs features", "count", dropped)
	}
	return events, dropped, nil
}

type featureCollection struct {
	Features []domain.USGSFeature `json:"features"`
}

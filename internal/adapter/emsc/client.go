// Package emsc fetches events from the EMSC seismic portal FDSN service.
package emsc

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

// DefaultBaseURL is the public EMSC seismic portal.
const DefaultBaseURL = "https://www.seismicportal.eu"

const queryPath = "/fdsnws/event/1/query"

// isoMillis is the timestamp form the portal accepts for start and end.
const isoMillis = "2006-01-02T15:04:05.000"

// Client queries the EMSC JSON feed.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates an EMSC client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(retries).
			SetRetryWaitTime(500 * time.Millisecond),
		logger: logger,
	}
}

func (c *Client) Name() domain.Source { return domain.SourceEMSC }

func (c *Client) Fetch(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, int, error) {
	params := map[string]string{
		"format":  "json",
		"orderby": "time",
		"start":   q.Start.UTC().Format(isoMillis),
		"end":     q.End.UTC().Format(isoMillis),
	}
	if q.MinMagnitude > 0 {
		params["minmag"] = strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	if r := q.Region; r != nil && r.MinLon <= r.MaxLon {
		params["minlat"] = strconv.FormatFloat(r.MinLat, 'f', -1, 64)
		params["maxlat"] = strconv.FormatFloat(r.MaxLat, 'f', -1, 64)
		params["minlon"] = strconv.FormatFloat(r.MinLon, 'f', -1, 64)
		params["maxlon"] = strconv.FormatFloat(r.MaxLon, 'f', -1, 64)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(queryPath)
	if err != nil {
		return nil, 0, fmt.Errorf("emsc request: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, 0, nil
	}
	if resp.IsError() {
		return nil, 0, fmt.Errorf("emsc API error: status %d: %s", resp.StatusCode(), resp.String())
	}

	var body struct {
		Features []domain.EMSCFeature `json:"features"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, 0, fmt.Errorf("decode emsc response: %w", err)
	}

	events := make([]domain.SeismicEvent, 0, len(body.Features))
	dropped := 0
	for _, f := range body.Features {
		e, ok := domain.NormalizeEMSC(f)
		if !ok {
			dropped++
			continue
		}
		if q.Matches(e) {
			events = append(events, e)
		}
	}
	if dropped > 0 {
		c.logger.Debug("dropped malformed emsc features", "count", dropped)
	}
	return events, dropped, nil
}

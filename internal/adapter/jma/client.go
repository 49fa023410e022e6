// Package jma reads the Japan Meteorological Agency earthquake list.
package jma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL serves the JMA bosai data files.
const DefaultBaseURL = "https://www.jma.go.jp/bosai"

const listPath = "/quake/data/list.json"

// Client downloads the JMA list, which has no server-side filtering; the
// query is applied after normalization.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a JMA client. An empty baseURL uses DefaultBaseURL.
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

func (c *Client) Name() domain.Source { return domain.SourceJMA }

func (c *Client) Fetch(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, int, error) {
	resp, err := c.http.R().SetContext(ctx).Get(listPath)
	if err != nil {
		return nil, 0, fmt.Errorf("jma request: %w", err)
	}
	if resp.IsError() {
		return nil, 0, fmt.Errorf("jma API error: status %d: %s", resp.StatusCode(), resp.String())
	}

	var entries []domain.JMAEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, 0, fmt.Errorf("decode jma response: %w", err)
	}

	// The list repeats an event once per bulletin revision; the first
	// entry for each eid is the most recent.
	seen := make(map[string]struct{}, len(entries))
	events := make([]domain.SeismicEvent, 0, len(entries))
	dropped := 0
	for _, entry := range entries {
		if _, dup := seen[entry.EID]; dup && entry.EID != "" {
			continue
		}
		e, ok := domain.NormalizeJMA(entry)
		if !ok {
			dropped++
			continue
		}
		seen[entry.EID] = struct{}{}
		events = append(events, e)
	}
	if dropped > 0 {
		c.logger.Debug("dropped jma entries without hypocentre", "count", dropped)
	}
	return q.Filter(events), dropped, nil
}

// Package phivolcs scrapes the PHIVOLCS earthquake information bulletin.
// The agency publishes an HTML table rather than a machine-readable feed.
package phivolcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultBaseURL is the public bulletin site.
const DefaultBaseURL = "https://earthquake.phivolcs.dost.gov.ph"

// bulletinColumns is the number of cells in a data row: date-time,
// latitude, longitude, depth, magnitude, location.
const bulletinColumns = 6

// Client downloads and parses the bulletin page.
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a PHIVOLCS client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(retries).
			SetRetryWaitTime(time.Second).
			SetHeader("Accept", "text/html"),
		baseURL: baseURL,
		logger:  logger,
	}
}

func (c *Client) Name() domain.Source { return domain.SourcePHIVOLCS }

func (c *Client) Fetch(ctx context.Context, q domain.Query) ([]domain.SeismicEvent, int, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/")
	if err != nil {
		return nil, 0, fmt.Errorf("phivolcs request: %w", err)
	}
	if resp.IsError() {
		return nil, 0, fmt.Errorf("phivolcs error: status %d", resp.StatusCode())
	}

	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return nil, 0, fmt.Errorf("parse base url: %w", err)
	}
	rows, err := ParseBulletin(bytes.NewReader(resp.Body()), base)
	if err != nil {
		return nil, 0, err
	}

	events := make([]domain.SeismicEvent, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		e, ok := domain.NormalizePHIVOLCS(row)
		if !ok {
			dropped++
			continue
		}
		events = append(events, e)
	}
	if dropped > 0 {
		c.logger.Debug("dropped unparseable phivolcs rows", "count", dropped)
	}
	return q.Filter(events), dropped, nil
}

// ParseBulletin extracts every table row with exactly the bulletin's six
// data cells. Links in the row are resolved against base.
func ParseBulletin(r io.Reader, base *url.URL) ([]domain.PHIVOLCSRow, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse phivolcs html: %w", err)
	}

	var rows []domain.PHIVOLCSRow
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			if row, ok := parseRow(n, base); ok {
				rows = append(rows, row)
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return rows, nil
}

func parseRow(tr *html.Node, base *url.URL) (domain.PHIVOLCSRow, bool) {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	if len(cells) != bulletinColumns {
		return domain.PHIVOLCSRow{}, false
	}

	row := domain.PHIVOLCSRow{
		DateTime:  text(cells[0]),
		Latitude:  text(cells[1]),
		Longitude: text(cells[2]),
		DepthKm:   text(cells[3]),
		Magnitude: text(cells[4]),
		Location:  text(cells[5]),
	}
	if href := firstHref(cells[0]); href != "" && base != nil {
		if u, err := base.Parse(strings.ReplaceAll(href, `\`, "/")); err == nil {
			row.Link = u.String()
		}
	}
	return row, true
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func firstHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		for _, a := range n.Attr {
			if a.Key == "href" {
				return a.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if h := firstHref(c); h != "" {
			return h
		}
	}
	return ""
}

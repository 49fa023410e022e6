// Command assess scores volcanoes against a saved event file without
// contacting any seismic network. The file holds a JSON array of fused
// events, such as the "events" field of an /api/v1/earthquakes response.
//
// Usage:
//
//	go run ./cmd/assess \
//	  -events data/events.json \
//	  -volcano mayon \
//	  -model v2 \
//	  -now 2026-03-01T12:00:00Z
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/catalog"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/risk"
	"github.com/couchcryptid/quake-risk-service/internal/triggering"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

type options struct {
	eventsPath  string
	catalogPath string
	volcano     string
	model       string
	now         string
	workers     int
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.eventsPath, "events", "", "path to a JSON array of seismic events")
	flag.StringVar(&opts.catalogPath, "catalog", sharedcfg.EnvOrDefault("VOLCANO_CATALOG", ""), "volcano catalog JSON (default: built-in)")
	flag.StringVar(&opts.volcano, "volcano", "", "score only this volcano id")
	flag.StringVar(&opts.model, "model", sharedcfg.EnvOrDefault("RISK_MODEL", "v2"), "risk model version (v1 or v2)")
	flag.StringVar(&opts.now, "now", "", "assessment instant in RFC3339 (default: current time)")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent assessments")
	flag.Parse()

	if opts.eventsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), opts, clockwork.NewRealClock(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "assess:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, clock clockwork.Clock, out io.Writer) error {
	now := clock.Now().UTC()
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		now = t.UTC()
	}

	events, err := readEvents(opts.eventsPath)
	if err != nil {
		return err
	}
	events, stats := fusion.New(fusion.Default()).Fuse(events)

	cat, err := catalog.Builtin()
	if opts.catalogPath != "" {
		cat, err = catalog.LoadFile(opts.catalogPath)
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	model, ok := risk.ForVersion(opts.model, triggering.New())
	if !ok {
		return fmt.Errorf("unknown risk model %q", opts.model)
	}

	volcanoes := cat.All()
	if opts.volcano != "" {
		v, err := cat.Get(opts.volcano)
		if err != nil {
			return err
		}
		volcanoes = []domain.Volcano{v}
	}

	assessments, err := risk.AssessAll(ctx, model, volcanoes, events, now, opts.workers)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Generated   time.Time         `json:"generated"`
		Model       string            `json:"model"`
		Stats       fusion.Stats      `json:"stats"`
		Assessments []risk.Assessment `json:"assessments"`
	}{now, model.Version(), stats, assessments})
}

func readEvents(path string) ([]domain.SeismicEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	var events []domain.SeismicEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode events %s: %w", path, err)
	}
	return events, nil
}

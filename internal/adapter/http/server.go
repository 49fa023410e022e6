package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/pipeline"
	"github.com/couchcryptid/quake-risk-service/internal/risk"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EventFetcher returns a fused event set for a request.
type EventFetcher interface {
	Fetch(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// RiskAssessor scores catalog volcanoes.
type RiskAssessor interface {
	AssessAll(ctx context.Context) ([]risk.Assessment, error)
	Assess(ctx context.Context, id string) (risk.Assessment, error)
	ModelVersion() string
}

// Server exposes the query API alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	events     EventFetcher
	assessor   RiskAssessor
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// the /api/v1 routes.
func NewServer(addr string, events EventFetcher, assessor RiskAssessor, ready sharedobs.ReadinessChecker, clock clockwork.Clock, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		events:   events,
		assessor: assessor,
		clock:    clock,
		logger:   logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/earthquakes", s.handleEarthquakes)
		r.Get("/earthquakes.geojson", s.handleEarthquakesGeoJSON)
		r.Get("/volcanoes/risk", s.handleRiskAll)
		r.Get("/volcanoes/{id}/risk", s.handleRiskOne)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

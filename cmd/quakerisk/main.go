package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-risk-service/internal/adapter/emsc"
	httpadapter "github.com/couchcryptid/quake-risk-service/internal/adapter/http"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/jma"
	kafkaadapter "github.com/couchcryptid/quake-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/phivolcs"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/postgres"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-risk-service/internal/cache"
	"github.com/couchcryptid/quake-risk-service/internal/catalog"
	"github.com/couchcryptid/quake-risk-service/internal/config"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
	"github.com/couchcryptid/quake-risk-service/internal/pipeline"
	"github.com/couchcryptid/quake-risk-service/internal/risk"
	"github.com/couchcryptid/quake-risk-service/internal/triggering"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checkers []sharedobs.ReadinessChecker
	opts := pipeline.AggregatorOptions{
		Timeout:   cfg.ProviderTimeout,
		RateLimit: cfg.ProviderRateLimit,
		Clock:     clock,
	}

	// Fused-result cache: Redis when configured, otherwise in-process.
	var redisCache *cache.Redis
	if cfg.RedisAddr != "" {
		redisCache, err = cache.NewRedis(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		opts.Cache = redisCache
		checkers = append(checkers, redisCache)
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		opts.Cache = cache.NewMemory(clock, cfg.CacheTTL, cfg.CacheSize)
		logger.Info("memory cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	}

	// Event store (feature-flagged via DATABASE_URL).
	var store *postgres.Store
	var storeWriter pipeline.EventWriter
	if cfg.DatabaseURL != "" {
		store, err = postgres.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		opts.Fallback = store
		storeWriter = store
		checkers = append(checkers, store)
	} else {
		logger.Info("event store disabled")
	}

	// Event sink (feature-flagged via KAFKA_ENABLED).
	var publisher *kafkaadapter.Publisher
	var sink pipeline.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		sink = publisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	engine := fusion.New(fusion.Default())
	agg := pipeline.NewAggregator(buildProviders(cfg, logger), engine, opts, logger, metrics)

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load volcano catalog", "error", err)
		os.Exit(1)
	}
	model, ok := risk.ForVersion(cfg.RiskModel, triggering.New())
	if !ok {
		logger.Error("unknown risk model", "model", cfg.RiskModel)
		os.Exit(1)
	}
	assessor := pipeline.NewAssessor(agg, engine, cat, model, pipeline.AssessorOptions{
		Recent:  pipeline.RequestFor(cfg.RecentWindow, cfg.RecentMinMagnitude),
		Trigger: pipeline.RequestFor(cfg.TriggerWindow, cfg.TriggerMinMagnitude),
		Workers: cfg.AssessWorkers,
	}, logger, metrics)
	logger.Info("risk assessment ready", "model", model.Version(), "volcanoes", cat.Len())

	// Periodic ingest only runs when there is somewhere to put the events.
	var ingestor *pipeline.Ingestor
	if storeWriter != nil || sink != nil {
		ingestor = pipeline.NewIngestor(agg, storeWriter, sink,
			pipeline.RequestFor(cfg.IngestWindow, cfg.IngestMinMagnitude), cfg.IngestInterval, logger, metrics)
		checkers = append(checkers, ingestor)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, agg, assessor, httpadapter.AllReady(checkers...), clock, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest loop.
	if ingestor != nil {
		go func() {
			if err := ingestor.Run(ctx); err != nil {
				logger.Error("ingest error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if store != nil {
		store.Close()
	}

	logger.Info("shutdown complete")
}

func buildProviders(cfg *config.Config, logger *slog.Logger) []pipeline.Provider {
	providers := make([]pipeline.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "usgs":
			providers = append(providers, usgs.NewClient(cfg.USGSBaseURL, cfg.ProviderTimeout, cfg.ProviderRetries, logger))
		case "emsc":
			providers = append(providers, emsc.NewClient(cfg.EMSCBaseURL, cfg.ProviderTimeout, cfg.ProviderRetries, logger))
		case "jma":
			providers = append(providers, jma.NewClient(cfg.JMABaseURL, cfg.ProviderTimeout, cfg.ProviderRetries, logger))
		case "phivolcs":
			providers = append(providers, phivolcs.NewClient(cfg.PHIVOLCSBaseURL, cfg.ProviderTimeout, cfg.ProviderRetries, logger))
		}
	}
	return providers
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Builtin()
	}
	return catalog.LoadFile(path)
}

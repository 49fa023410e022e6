package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream seismic networks.
	Providers         []string
	ProviderTimeout   time.Duration
	ProviderRetries   int
	ProviderRateLimit float64
	USGSBaseURL       string
	EMSCBaseURL       string
	JMABaseURL        string
	PHIVOLCSBaseURL   string

	// Fused-result cache.
	CacheTTL  time.Duration
	CacheSize int
	RedisAddr string

	// Periodic ingest into the store and sink.
	IngestInterval     time.Duration
	IngestWindow       time.Duration
	IngestMinMagnitude float64

	// Risk assessment inputs.
	RiskModel           string
	AssessWorkers       int
	RecentWindow        time.Duration
	RecentMinMagnitude  float64
	TriggerWindow       time.Duration
	TriggerMinMagnitude float64
	CatalogPath         string

	DatabaseURL string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

var knownProviders = map[string]bool{"usgs": true, "emsc": true, "jma": true, "phivolcs": true}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var errs []error
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Providers:         parseList(sharedcfg.EnvOrDefault("PROVIDERS", "usgs,emsc,jma,phivolcs")),
		ProviderTimeout:   parseDuration("PROVIDER_TIMEOUT", "10s", &errs),
		ProviderRetries:   parseInt("PROVIDER_RETRIES", "1", 0, &errs),
		ProviderRateLimit: parseFloat("PROVIDER_RATE_LIMIT", "1", &errs),
		USGSBaseURL:       os.Getenv("USGS_BASE_URL"),
		EMSCBaseURL:       os.Getenv("EMSC_BASE_URL"),
		JMABaseURL:        os.Getenv("JMA_BASE_URL"),
		PHIVOLCSBaseURL:   os.Getenv("PHIVOLCS_BASE_URL"),

		CacheTTL:  parseDuration("CACHE_TTL", "60s", &errs),
		CacheSize: parseInt("CACHE_SIZE", "256", 1, &errs),
		RedisAddr: os.Getenv("REDIS_ADDR"),

		IngestInterval:     parseDuration("INGEST_INTERVAL", "5m", &errs),
		IngestWindow:       parseDuration("INGEST_WINDOW", "24h", &errs),
		IngestMinMagnitude: parseFloat("INGEST_MIN_MAGNITUDE", "0", &errs),

		RiskModel:           sharedcfg.EnvOrDefault("RISK_MODEL", "v2"),
		AssessWorkers:       parseInt("ASSESS_WORKERS", "4", 1, &errs),
		RecentWindow:        parseDuration("RECENT_WINDOW", "720h", &errs),
		RecentMinMagnitude:  parseFloat("RECENT_MIN_MAGNITUDE", "2.5", &errs),
		TriggerWindow:       parseDuration("TRIGGER_WINDOW", "43830h", &errs),
		TriggerMinMagnitude: parseFloat("TRIGGER_MIN_MAGNITUDE", "6", &errs),
		CatalogPath:         os.Getenv("VOLCANO_CATALOG"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "fused-earthquakes"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if len(cfg.Providers) == 0 {
		return nil, errors.New("PROVIDERS must name at least one provider")
	}
	for _, p := range cfg.Providers {
		if !knownProviders[p] {
			return nil, fmt.Errorf("PROVIDERS: unknown provider %q", p)
		}
	}
	if cfg.RiskModel != "v1" && cfg.RiskModel != "v2" {
		return nil, fmt.Errorf("RISK_MODEL must be v1 or v2, got %q", cfg.RiskModel)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s", key))
		return 0
	}
	return d
}

func parseInt(key, def string, minValue int, errs *[]error) int {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n < minValue {
		*errs = append(*errs, fmt.Errorf("invalid %s", key))
		return 0
	}
	return n
}

func parseFloat(key, def string, errs *[]error) float64 {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || f < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s", key))
		return 0
	}
	return f
}

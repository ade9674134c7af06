package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Default published model results.
const (
	DefaultCladesURL   = "https://nextstrain-data.s3.amazonaws.com/files/workflows/forecasts-ncov/gisaid/nextstrain_clades/global/mlr/latest_results.json"
	DefaultLineagesURL = "https://nextstrain-data.s3.amazonaws.com/files/workflows/forecasts-ncov/gisaid/pango_lineages/global/mlr/latest_results.json"
)

// Model is one named model result to refresh.
type Model struct {
	Name     string
	Location string // http(s) URL or local path
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Models          []Model
	CasesLocation   string
	Sites           []string
	RefreshInterval time.Duration
	FetchTimeout    time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	ChartCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	models, err := ParseModels(sharedcfg.EnvOrDefault("MODELS",
		"mlr_clades="+DefaultCladesURL+",mlr_lineages="+DefaultLineagesURL))
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("CHART_CACHE_SIZE", "256")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Models:          models,
		CasesLocation:   sharedcfg.EnvOrDefault("CASES_LOCATION", ""),
		Sites:           parseList(sharedcfg.EnvOrDefault("MODEL_SITES", "")),
		RefreshInterval: refreshInterval,
		FetchTimeout:    fetchTimeout,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:   sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "model-snapshots"),

		ChartCacheSize: cacheSize,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// ParseModels parses a comma-separated list of name=location pairs.
func ParseModels(s string) ([]Model, error) {
	var models []Model
	seen := make(map[string]bool)
	for _, part := range parseList(s) {
		name, loc, ok := strings.Cut(part, "=")
		name, loc = strings.TrimSpace(name), strings.TrimSpace(loc)
		if !ok || name == "" || loc == "" {
			return nil, fmt.Errorf("invalid MODELS entry %q: want name=location", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("invalid MODELS: duplicate model %q", name)
		}
		seen[name] = true
		models = append(models, Model{Name: name, Location: loc})
	}
	if len(models) == 0 {
		return nil, errors.New("MODELS must name at least one model")
	}
	return models, nil
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

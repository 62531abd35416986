// Package config handles application configuration from environment
// variables and the optional YAML source catalog.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"regiq/internal/model"
)

// Config holds the process-level application configuration.
type Config struct {
	DatabasePath string
	ListenAddr   string
	LogLevel     string
	UserAgent    string
	SourcesFile  string
	Sync         SyncConfig
}

// SyncConfig holds orchestrator-wide defaults. Per-source values in the
// catalog override LookbackDays.
type SyncConfig struct {
	LookbackDays    int
	DedupWindowDays int
	BatchSize       int
	BatchDelay      time.Duration
	FetchTimeout    time.Duration
}

// RetryConfig holds the backoff constants for transient fetch failures.
// These vary per source, so they are configuration rather than literals.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// SourceConfig describes one external source in the catalog.
type SourceConfig struct {
	Name         string            `yaml:"name"`
	Kind         model.SourceKind  `yaml:"kind"`
	Policy       model.DedupPolicy `yaml:"policy"`
	URL          string            `yaml:"url"`
	Agency       string            `yaml:"agency"`
	Category     string            `yaml:"category"`
	Jurisdiction string            `yaml:"jurisdiction"`
	BaseScore    int               `yaml:"base_score"`
	LookbackDays int               `yaml:"lookback_days"`
	MaxPages     int               `yaml:"max_pages"`
	Enabled      *bool             `yaml:"enabled"`
	Retry        RetryConfig       `yaml:"retry"`
}

// IsEnabled reports whether the source should run; sources are enabled
// unless the catalog says otherwise.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: envOrDefault("DATABASE_PATH", "./data/regiq.db"),
		ListenAddr:   envOrDefault("LISTEN_ADDR", ":8080"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		UserAgent:    envOrDefault("USER_AGENT", "RegIQ-Ingest/1.0 (+https://regiq.example.com/bot)"),
		SourcesFile:  os.Getenv("SOURCES_CONFIG"),
		Sync: SyncConfig{
			LookbackDays:    30,
			DedupWindowDays: 7,
			BatchSize:       2,
			BatchDelay:      3 * time.Second,
			FetchTimeout:    45 * time.Second,
		},
	}

	var err error
	if cfg.Sync.LookbackDays, err = envInt("SYNC_LOOKBACK_DAYS", cfg.Sync.LookbackDays); err != nil {
		return nil, err
	}
	if cfg.Sync.DedupWindowDays, err = envInt("DEDUP_WINDOW_DAYS", cfg.Sync.DedupWindowDays); err != nil {
		return nil, err
	}
	if cfg.Sync.BatchSize, err = envInt("SYNC_BATCH_SIZE", cfg.Sync.BatchSize); err != nil {
		return nil, err
	}
	if cfg.Sync.BatchDelay, err = envDuration("SYNC_BATCH_DELAY", cfg.Sync.BatchDelay); err != nil {
		return nil, err
	}
	if cfg.Sync.FetchTimeout, err = envDuration("FETCH_TIMEOUT", cfg.Sync.FetchTimeout); err != nil {
		return nil, err
	}

	if cfg.Sync.BatchSize < 1 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be at least 1")
	}
	if cfg.Sync.DedupWindowDays < 1 {
		return nil, fmt.Errorf("DEDUP_WINDOW_DAYS must be at least 1")
	}

	return cfg, nil
}

// LoadCatalog merges YAML overrides from path into the built-in source
// defaults. Overrides match defaults by name; an override naming an unknown
// source is an error, since it would otherwise be silently ignored.
func LoadCatalog(defaults []SourceConfig, path string) ([]SourceConfig, error) {
	if path == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path) //nolint:gosec // operator-provided config path
	if err != nil {
		return nil, fmt.Errorf("read source catalog: %w", err)
	}

	var file struct {
		Sources []SourceConfig `yaml:"sources"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse source catalog: %w", err)
	}

	byName := make(map[string]int, len(defaults))
	merged := make([]SourceConfig, len(defaults))
	copy(merged, defaults)
	for i, s := range merged {
		byName[s.Name] = i
	}

	for _, o := range file.Sources {
		i, ok := byName[o.Name]
		if !ok {
			return nil, fmt.Errorf("source catalog: unknown source %q", o.Name)
		}
		merged[i] = mergeSource(merged[i], o)
	}

	return merged, nil
}

func mergeSource(base, override SourceConfig) SourceConfig {
	if override.URL != "" {
		base.URL = override.URL
	}
	if override.Policy != "" {
		base.Policy = override.Policy
	}
	if override.Category != "" {
		base.Category = override.Category
	}
	if override.Jurisdiction != "" {
		base.Jurisdiction = override.Jurisdiction
	}
	if override.BaseScore != 0 {
		base.BaseScore = override.BaseScore
	}
	if override.LookbackDays != 0 {
		base.LookbackDays = override.LookbackDays
	}
	if override.MaxPages != 0 {
		base.MaxPages = override.MaxPages
	}
	if override.Enabled != nil {
		base.Enabled = override.Enabled
	}
	if override.Retry.MaxAttempts != 0 {
		base.Retry.MaxAttempts = override.Retry.MaxAttempts
	}
	if override.Retry.BaseDelay != 0 {
		base.Retry.BaseDelay = override.Retry.BaseDelay
	}
	if override.Retry.MaxDelay != 0 {
		base.Retry.MaxDelay = override.Retry.MaxDelay
	}
	return base
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/alvmarrod/graph-crawler/internal/version"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the public neighbor lookup service
const DefaultEndpoint = "http://hollywood-graph-crawler.bridgesuncc.org/neighbors"

// Config holds all runtime configuration parameters.
// MaxDepth and ConcurrentWorkers come from the command line, not the file.
type Config struct {
	Endpoint         string `json:"endpoint" yaml:"endpoint"`
	Strategy         string `json:"strategy" yaml:"strategy"`
	CrawlBudgetMs    int    `json:"crawl_budget_ms" yaml:"crawl_budget_ms"`
	RequestTimeoutMs int    `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	RetryAttempts    int    `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelayMs     int    `json:"retry_delay_ms" yaml:"retry_delay_ms"`
	UserAgent        string `json:"user_agent" yaml:"user_agent"`
	VisitedShards    int    `json:"visited_shards" yaml:"visited_shards"`
	DBPath           string `json:"db_path" yaml:"db_path"`
	MetricsPath      string `json:"metrics_path" yaml:"metrics_path"`
	MetricsAddr      string `json:"metrics_addr" yaml:"metrics_addr"`
	Debug            bool   `json:"debug" yaml:"debug"`

	MaxDepth          int `json:"-" yaml:"-"`
	ConcurrentWorkers int `json:"-" yaml:"-"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// newConfig presets the fields where zero is a valid setting, so a file
// value of 0 survives decoding
func newConfig() *Config {
	return &Config{
		ConcurrentWorkers: 1,
		RetryDelayMs:      500,
	}
}

// LoadConfig reads configuration from a JSON or YAML file and applies
// defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := newConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Strategy == "" {
		cfg.Strategy = string(storage.StrategyStatic)
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "graph-crawler/" + version.Version
	}
	if cfg.VisitedShards == 0 {
		cfg.VisitedShards = 1
	}
}

// Validate checks that values are sensible
func (cfg *Config) Validate() error {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", cfg.Endpoint)
	}
	switch storage.Strategy(cfg.Strategy) {
	case storage.StrategyStatic, storage.StrategyDynamic:
	default:
		return fmt.Errorf("strategy must be %q or %q, got %q", storage.StrategyStatic, storage.StrategyDynamic, cfg.Strategy)
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max depth must be >= 0")
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent workers must be >= 1")
	}
	if cfg.CrawlBudgetMs < 0 {
		return fmt.Errorf("crawl_budget_ms must be >= 0")
	}
	if cfg.RequestTimeoutMs < 100 {
		return fmt.Errorf("request_timeout_ms must be >= 100")
	}
	if cfg.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0")
	}
	if cfg.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must be >= 0")
	}
	if cfg.VisitedShards < 1 {
		return fmt.Errorf("visited_shards must be >= 1")
	}
	return nil
}

// CrawlBudget returns the dynamic crawl time cap, zero when unbounded
func (cfg *Config) CrawlBudget() time.Duration {
	return time.Duration(cfg.CrawlBudgetMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout
func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
}

// RetryDelay returns the initial retry backoff interval
func (cfg *Config) RetryDelay() time.Duration {
	return time.Duration(cfg.RetryDelayMs) * time.Millisecond
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	CMS       CMSConfig       `mapstructure:"cms"`
	DB        DBConfig        `mapstructure:"db"`
	Blob      BlobConfig      `mapstructure:"blob"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DiscoveryConfig governs orchestrator concurrency and retry policy.
type DiscoveryConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffBaseMs    int `mapstructure:"backoff_base_ms"`
	CacheTTLSeconds  int `mapstructure:"cache_ttl_seconds"`
	BatchSizeDefault int `mapstructure:"batch_size_default"`
}

// FetchConfig configures page fetching and headless rendering.
type FetchConfig struct {
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	HeadlessEnabled   bool   `mapstructure:"headless_enabled"`
	HeadlessParallel  int    `mapstructure:"headless_parallel"`
	SettleWaitMs      int    `mapstructure:"settle_wait_ms"`
}

// ScoringConfig tunes the confidence combination rule.
type ScoringConfig struct {
	AcceptanceThreshold float64 `mapstructure:"acceptance_threshold"`
	FingerprintFloor    float64 `mapstructure:"fingerprint_floor"`
}

// CMSConfig points at the fingerprint registry source.
type CMSConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// BlobConfig sets paths for evidence snapshot persistence.
type BlobConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for outcome event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEARCHSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("discovery.concurrency", 20)
	v.SetDefault("discovery.max_retries", 3)
	v.SetDefault("discovery.backoff_base_ms", 1000)
	v.SetDefault("discovery.cache_ttl_seconds", 0)
	v.SetDefault("discovery.batch_size_default", 100)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.nav_timeout_seconds", 25)
	v.SetDefault("fetch.user_agent", "searchscout-bot/0.1")
	v.SetDefault("fetch.headless_enabled", true)
	v.SetDefault("fetch.headless_parallel", 4)
	v.SetDefault("fetch.settle_wait_ms", 500)
	v.SetDefault("scoring.acceptance_threshold", 0.5)
	v.SetDefault("scoring.fingerprint_floor", 0.9)
	v.SetDefault("db.table", "search_patterns")
	v.SetDefault("blob.prefix", "snapshots")
	v.SetDefault("blob.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Discovery.Concurrency <= 0 {
		return fmt.Errorf("discovery.concurrency must be > 0")
	}
	if c.Discovery.MaxRetries < 0 {
		return fmt.Errorf("discovery.max_retries must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.HeadlessEnabled && c.Fetch.HeadlessParallel <= 0 {
		return fmt.Errorf("fetch.headless_parallel must be > 0 when headless is enabled")
	}
	if c.Scoring.AcceptanceThreshold < 0 || c.Scoring.AcceptanceThreshold > 1 {
		return fmt.Errorf("scoring.acceptance_threshold must be in [0,1]")
	}
	if c.Scoring.FingerprintFloor < 0 || c.Scoring.FingerprintFloor > 1 {
		return fmt.Errorf("scoring.fingerprint_floor must be in [0,1]")
	}
	return nil
}

// FetchTimeout converts the per-fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetch.NavTimeoutSeconds) * time.Second
}

// BackoffBase converts the retry base delay into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Discovery.BackoffBaseMs) * time.Millisecond
}

// CacheTTL converts the cache TTL into a duration; zero means run-scoped.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Discovery.CacheTTLSeconds) * time.Second
}

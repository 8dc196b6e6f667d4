// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sikbang/recipe-harvester/internal/store"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Site     SiteConfig     `mapstructure:"site"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP progress server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SiteConfig describes the crawled site.
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	PageSize    int    `mapstructure:"page_size"`
	EmptyMarker string `mapstructure:"empty_marker"`
}

// CrawlConfig governs the worker pool and its politeness pauses.
type CrawlConfig struct {
	Workers        int `mapstructure:"workers"`
	DetailPauseMs  int `mapstructure:"detail_pause_ms"`
	ListingPauseMs int `mapstructure:"listing_pause_ms"`
}

// HTTPConfig configures the transport and retry behavior.
type HTTPConfig struct {
	UserAgent      string            `mapstructure:"user_agent"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	MaxAttempts    int               `mapstructure:"max_attempts"`
	BackoffMinMs   int               `mapstructure:"backoff_min_ms"`
	BackoffMaxMs   int               `mapstructure:"backoff_max_ms"`
	Headers        map[string]string `mapstructure:"headers"`
}

// HeadlessConfig configures the rendered-page fallback.
type HeadlessConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	MaxParallel   int      `mapstructure:"max_parallel"`
	NavTimeoutSec int      `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int      `mapstructure:"min_html_bytes"`
	Keywords      []string `mapstructure:"keywords"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "csv", "sqlite" or "postgres".
	Backend  string               `mapstructure:"backend"`
	CSV      store.CSVConfig      `mapstructure:"csv"`
	SQLite   store.SQLiteConfig   `mapstructure:"sqlite"`
	Postgres store.PostgresConfig `mapstructure:"postgres"`
}

// ArchiveConfig controls end-of-run artifact archiving.
type ArchiveConfig struct {
	// Backend is one of "none", "local" or "gcs".
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion-event publishing.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DefaultEmptyMarker is the site's "no recipes" body marker.
const DefaultEmptyMarker = "레시피 정보가 없습니다."

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.base_url", "https://www.10000recipe.com")
	v.SetDefault("site.page_size", 40)
	v.SetDefault("site.empty_marker", DefaultEmptyMarker)
	v.SetDefault("crawl.workers", 0)
	v.SetDefault("crawl.detail_pause_ms", 1000)
	v.SetDefault("crawl.listing_pause_ms", 2000)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_min_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 3000)
	v.SetDefault("http.headers", map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		"Referer":         "https://www.10000recipe.com/",
	})
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("store.backend", "csv")
	v.SetDefault("store.csv.recipes_path", "data/recipe_main.csv")
	v.SetDefault("store.csv.reviews_path", "data/recipe_review.csv")
	v.SetDefault("store.sqlite.path", "data/harvest.db")
	v.SetDefault("store.sqlite.enable_wal", true)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "runs")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Site.PageSize <= 0 {
		return fmt.Errorf("site.page_size must be > 0")
	}
	if c.Crawl.Workers < 0 {
		return fmt.Errorf("crawl.workers must be >= 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffMinMs > c.HTTP.BackoffMaxMs {
		return fmt.Errorf("http.backoff_min_ms must not exceed http.backoff_max_ms")
	}
	switch c.Store.Backend {
	case "csv", "sqlite", "postgres":
	default:
		return fmt.Errorf("store.backend must be csv, sqlite or postgres")
	}
	if c.Store.Backend == "postgres" && c.Store.Postgres.DSN == "" {
		return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
	}
	switch c.Archive.Backend {
	case "none", "local", "gcs":
	default:
		return fmt.Errorf("archive.backend must be none, local or gcs")
	}
	if c.Archive.Backend == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir is required for the local backend")
	}
	if c.Archive.Backend == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.PubSub.Enabled {
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required when pubsub is enabled")
		}
	}
	return nil
}

// HTTPTimeout returns the transport timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffMin returns the lower bound of the retry pause.
func (c Config) BackoffMin() time.Duration {
	return time.Duration(c.HTTP.BackoffMinMs) * time.Millisecond
}

// BackoffMax returns the upper bound of the retry pause.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// DetailPause returns the pause applied after each detail fetch.
func (c Config) DetailPause() time.Duration {
	return time.Duration(c.Crawl.DetailPauseMs) * time.Millisecond
}

// ListingPause returns the pause applied after each listing fetch.
func (c Config) ListingPause() time.Duration {
	return time.Duration(c.Crawl.ListingPauseMs) * time.Millisecond
}

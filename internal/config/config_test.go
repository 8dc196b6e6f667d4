package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://www.10000recipe.com", cfg.Site.BaseURL)
	require.Equal(t, 40, cfg.Site.PageSize)
	require.Equal(t, DefaultEmptyMarker, cfg.Site.EmptyMarker)
	require.Equal(t, 5, cfg.HTTP.MaxAttempts)
	require.Equal(t, 1000, cfg.HTTP.BackoffMinMs)
	require.Equal(t, 3000, cfg.HTTP.BackoffMaxMs)
	require.Equal(t, "csv", cfg.Store.Backend)
	require.Equal(t, "data/recipe_main.csv", cfg.Store.CSV.RecipesPath)
	require.Equal(t, "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7", cfg.HTTP.Headers["accept-language"])
	require.False(t, cfg.Headless.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  base_url: https://staging.example.com
crawl:
  workers: 8
store:
  backend: sqlite
  sqlite:
    path: /tmp/harvest.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://staging.example.com", cfg.Site.BaseURL)
	require.Equal(t, 8, cfg.Crawl.Workers)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "/tmp/harvest.db", cfg.Store.SQLite.Path)
	// Defaults still apply to untouched sections.
	require.Equal(t, 40, cfg.Site.PageSize)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no base url", func(c *Config) { c.Site.BaseURL = "" }},
		{"zero page size", func(c *Config) { c.Site.PageSize = 0 }},
		{"zero attempts", func(c *Config) { c.HTTP.MaxAttempts = 0 }},
		{"inverted backoff", func(c *Config) { c.HTTP.BackoffMinMs = 5000 }},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }},
		{"local archive without dir", func(c *Config) { c.Archive.Backend = "local" }},
		{"gcs archive without bucket", func(c *Config) { c.Archive.Backend = "gcs" }},
		{"pubsub without topic", func(c *Config) { c.PubSub.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

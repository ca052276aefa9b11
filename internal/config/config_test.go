package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "data/lakehouse/data.csv", cfg.Paths.DatasetCSV)
	require.Equal(t, "data/location/vn_locations.csv", cfg.Paths.RegistryCSV)
	require.Equal(t, "https://archive-api.open-meteo.com/v1/archive", cfg.Archive.BaseURL)
	require.Equal(t, "Asia/Ho_Chi_Minh", cfg.Archive.Timezone)
	require.Equal(t, 120*time.Second, cfg.ArchiveTimeout())

	require.Equal(t, 365, cfg.Crawl.WindowDays)
	require.Equal(t, 6, cfg.Crawl.MaxAttempts)
	require.Equal(t, 5, cfg.Crawl.WindowDelayMinSec)
	require.Equal(t, 10, cfg.Crawl.WindowDelayMaxSec)
	require.Equal(t, 40, cfg.Crawl.RegionDelayMinSec)
	require.Equal(t, 80, cfg.Crawl.RegionDelayMaxSec)
	require.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), cfg.EpochStart())

	require.Equal(t, "weather_data", cfg.DB.Table)
	require.Equal(t, "noop", cfg.Blob.Provider)
	require.Equal(t, "noop", cfg.Notify.Provider)
	require.False(t, cfg.Server.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crawl:
  window_days: 90
  max_attempts: 3
db:
  dsn: postgres://u:p@localhost:5432/weather
blob:
  provider: local
  local_dir: /tmp/mirror
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 90, cfg.Crawl.WindowDays)
	require.Equal(t, 3, cfg.Crawl.MaxAttempts)
	require.Equal(t, "postgres://u:p@localhost:5432/weather", cfg.DB.DSN)
	require.Equal(t, "local", cfg.Blob.Provider)
	// Untouched keys keep their defaults.
	require.Equal(t, "weather_data", cfg.DB.Table)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"oversized window", func(c *Config) { c.Crawl.WindowDays = 366 }},
		{"zero attempts", func(c *Config) { c.Crawl.MaxAttempts = 0 }},
		{"bad epoch", func(c *Config) { c.Crawl.EpochStart = "01/01/2000" }},
		{"inverted window delay", func(c *Config) { c.Crawl.WindowDelayMinSec = 20; c.Crawl.WindowDelayMaxSec = 10 }},
		{"unknown geocoder", func(c *Config) { c.Geocode.Provider = "dowsing" }},
		{"gcs without bucket", func(c *Config) { c.Blob.Provider = "gcs" }},
		{"local without dir", func(c *Config) { c.Blob.Provider = "local" }},
		{"pubsub without topic", func(c *Config) { c.Notify.Provider = "pubsub"; c.Notify.ProjectID = "p" }},
		{"missing base url", func(c *Config) { c.Archive.BaseURL = "" }},
	}

	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		require.Error(t, cfg.Validate(), tc.name)
	}
}

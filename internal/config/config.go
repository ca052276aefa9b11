// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Geocode GeocodeConfig `mapstructure:"geocode"`
	DB      DBConfig      `mapstructure:"db"`
	Export  ExportConfig  `mapstructure:"export"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig locates the durable artifacts on disk.
type PathsConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	RegistryCSV string `mapstructure:"registry_csv"`
	DatasetCSV  string `mapstructure:"dataset_csv"`
}

// ArchiveConfig governs the remote weather archive client.
type ArchiveConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Timezone       string `mapstructure:"timezone"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// CrawlConfig governs the crawl controller and its retry state machine.
type CrawlConfig struct {
	EpochStart        string `mapstructure:"epoch_start"`
	WindowDays        int    `mapstructure:"window_days"`
	MaxAttempts       int    `mapstructure:"max_attempts"`
	WindowDelayMinSec int    `mapstructure:"window_delay_min_seconds"`
	WindowDelayMaxSec int    `mapstructure:"window_delay_max_seconds"`
	RegionDelayMinSec int    `mapstructure:"region_delay_min_seconds"`
	RegionDelayMaxSec int    `mapstructure:"region_delay_max_seconds"`
}

// GeocodeConfig selects how missing region coordinates are resolved.
type GeocodeConfig struct {
	Provider  string `mapstructure:"provider"` // "nominatim" or "offline"
	UserAgent string `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ExportConfig controls mart export output.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// BlobConfig selects the optional artifact mirror.
type BlobConfig struct {
	Provider  string `mapstructure:"provider"` // "noop", "local" or "gcs"
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig selects the optional run-event publisher.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"` // "noop" or "pubsub"
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls the metrics/health HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level overrides the profile default when non-empty.
	Level string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEATHERMART")
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
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.registry_csv", "data/location/vn_locations.csv")
	v.SetDefault("paths.dataset_csv", "data/lakehouse/data.csv")
	v.SetDefault("archive.base_url", "https://archive-api.open-meteo.com/v1/archive")
	v.SetDefault("archive.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("archive.timeout_seconds", 120)
	v.SetDefault("archive.max_retries", 2)
	v.SetDefault("crawl.epoch_start", "2000-01-01")
	v.SetDefault("crawl.window_days", 365)
	v.SetDefault("crawl.max_attempts", 6)
	v.SetDefault("crawl.window_delay_min_seconds", 5)
	v.SetDefault("crawl.window_delay_max_seconds", 10)
	v.SetDefault("crawl.region_delay_min_seconds", 40)
	v.SetDefault("crawl.region_delay_max_seconds", 80)
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.user_agent", "weathermart/0.1 (vn weather locator)")
	v.SetDefault("db.table", "weather_data")
	v.SetDefault("export.dir", "data/mart/exports")
	v.SetDefault("blob.provider", "noop")
	v.SetDefault("blob.prefix", "lakehouse")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Paths.DatasetCSV == "" {
		return fmt.Errorf("paths.dataset_csv must be set")
	}
	if c.Paths.RegistryCSV == "" {
		return fmt.Errorf("paths.registry_csv must be set")
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive.base_url must be set")
	}
	if c.Archive.TimeoutSeconds <= 0 {
		return fmt.Errorf("archive.timeout_seconds must be > 0")
	}
	if _, err := time.Parse("2006-01-02", c.Crawl.EpochStart); err != nil {
		return fmt.Errorf("crawl.epoch_start must be an ISO date: %w", err)
	}
	if c.Crawl.WindowDays <= 0 || c.Crawl.WindowDays > 365 {
		return fmt.Errorf("crawl.window_days must be in 1..365")
	}
	if c.Crawl.MaxAttempts <= 0 {
		return fmt.Errorf("crawl.max_attempts must be > 0")
	}
	if c.Crawl.WindowDelayMaxSec < c.Crawl.WindowDelayMinSec {
		return fmt.Errorf("crawl.window_delay_max_seconds must be >= min")
	}
	if c.Crawl.RegionDelayMaxSec < c.Crawl.RegionDelayMinSec {
		return fmt.Errorf("crawl.region_delay_max_seconds must be >= min")
	}
	switch c.Geocode.Provider {
	case "nominatim", "offline":
	default:
		return fmt.Errorf("geocode.provider must be nominatim or offline")
	}
	switch c.Blob.Provider {
	case "noop", "local", "gcs":
	default:
		return fmt.Errorf("blob.provider must be noop, local or gcs")
	}
	if c.Blob.Provider == "gcs" && c.Blob.GCSBucket == "" {
		return fmt.Errorf("blob.gcs_bucket must be set when blob.provider is gcs")
	}
	if c.Blob.Provider == "local" && c.Blob.LocalDir == "" {
		return fmt.Errorf("blob.local_dir must be set when blob.provider is local")
	}
	switch c.Notify.Provider {
	case "noop", "pubsub":
	default:
		return fmt.Errorf("notify.provider must be noop or pubsub")
	}
	if c.Notify.Provider == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.TopicID == "") {
		return fmt.Errorf("notify.project_id and notify.topic_id must be set when notify.provider is pubsub")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	return nil
}

// EpochStart returns the parsed global crawl start date.
func (c Config) EpochStart() time.Time {
	t, _ := time.Parse("2006-01-02", c.Crawl.EpochStart)
	return t
}

// ArchiveTimeout converts the archive timeout config into a duration.
func (c Config) ArchiveTimeout() time.Duration {
	return time.Duration(c.Archive.TimeoutSeconds) * time.Second
}

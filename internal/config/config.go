package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Remote library store
	Store StoreConfig `mapstructure:"store"`

	// Local cache paths
	Cache CacheConfig `mapstructure:"cache"`

	// Page viewer behavior
	Viewer ViewerConfig `mapstructure:"viewer"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

// StoreConfig selects and configures the remote library store.
type StoreConfig struct {
	// Driver is "postgres" (metadata rows in Postgres, blobs in
	// S3-compatible storage) or "memory" (process-local, for demos and
	// tests).
	Driver string `mapstructure:"driver"`

	// Postgres settings (driver=postgres).
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// S3-compatible blob storage settings (driver=postgres).
	S3Endpoint  string        `mapstructure:"s3_endpoint"`
	S3Region    string        `mapstructure:"s3_region"`
	S3Bucket    string        `mapstructure:"s3_bucket"`
	S3AccessKey string        `mapstructure:"s3_access_key"`
	S3SecretKey string        `mapstructure:"s3_secret_key"`
	PresignTTL  time.Duration `mapstructure:"presign_ttl"`
}

// CacheConfig for local state.
type CacheConfig struct {
	// Dir is the base directory for all local data.
	Dir string `mapstructure:"dir"`

	// CatalogPath is the SQLite mirror of the last seen listing.
	CatalogPath string `mapstructure:"catalog_path"`

	// KeepDownloads persists downloaded documents on disk so later
	// processes can skip the network fetch.
	KeepDownloads bool `mapstructure:"keep_downloads"`
}

// ViewerConfig for the page viewer session.
type ViewerConfig struct {
	MinScale   float64 `mapstructure:"min_scale"`
	MaxScale   float64 `mapstructure:"max_scale"`
	ZoomStep   float64 `mapstructure:"zoom_step"`
	PixelRatio float64 `mapstructure:"pixel_ratio"`

	// PageGap is the spacing between pages along the scroll axis in
	// continuous mode, in display units.
	PageGap float64 `mapstructure:"page_gap"`

	// Bounded wait for the raster engine to become available.
	EnginePollAttempts int           `mapstructure:"engine_poll_attempts"`
	EnginePollInterval time.Duration `mapstructure:"engine_poll_interval"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	File   string `mapstructure:"file"`   // log file path (empty = stderr)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".folio"

	return &Config{
		Store: StoreConfig{
			Driver:     "memory",
			S3Region:   "us-east-1",
			PresignTTL: 15 * time.Minute,
		},
		Cache: CacheConfig{
			Dir:           dataDir,
			CatalogPath:   filepath.Join(dataDir, "catalog.db"),
			KeepDownloads: false,
		},
		Viewer: ViewerConfig{
			MinScale:           0.25,
			MaxScale:           4.0,
			ZoomStep:           0.25,
			PixelRatio:         1.0,
			PageGap:            16,
			EnginePollAttempts: 20,
			EnginePollInterval: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
		}
		if c.Store.S3Bucket == "" {
			return fmt.Errorf("store.s3_bucket is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	v := c.Viewer
	if v.MinScale <= 0 {
		return fmt.Errorf("viewer.min_scale must be positive")
	}
	if v.MaxScale < v.MinScale {
		return fmt.Errorf("viewer.max_scale must be >= viewer.min_scale")
	}
	if v.ZoomStep <= 0 {
		return fmt.Errorf("viewer.zoom_step must be positive")
	}
	if v.PixelRatio <= 0 {
		return fmt.Errorf("viewer.pixel_ratio must be positive")
	}
	if v.PageGap < 0 {
		return fmt.Errorf("viewer.page_gap cannot be negative")
	}
	if v.EnginePollAttempts < 1 {
		return fmt.Errorf("viewer.engine_poll_attempts must be at least 1")
	}
	if v.EnginePollInterval <= 0 {
		return fmt.Errorf("viewer.engine_poll_interval must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

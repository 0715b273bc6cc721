package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from file and environment.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. configPath may be empty, in which
// case the default locations are searched and a missing file is not an
// error.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "FOLIO",
	}
}

// Load reads configuration from file and environment on top of the
// defaults, then validates the result.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	// Registering defaults also makes every key visible to the
	// environment override pass.
	registerDefaults(v, DefaultConfig())

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	} else {
		v.SetConfigName("folio")
		for _, dir := range defaultConfigDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			// No file found is fine; defaults and env still apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func defaultConfigDirs() []string {
	dirs := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(homeDir, ".config", "folio"),
			filepath.Join(homeDir, ".folio"),
		)
	}
	return dirs
}

func registerDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.postgres_dsn", cfg.Store.PostgresDSN)
	v.SetDefault("store.s3_endpoint", cfg.Store.S3Endpoint)
	v.SetDefault("store.s3_region", cfg.Store.S3Region)
	v.SetDefault("store.s3_bucket", cfg.Store.S3Bucket)
	v.SetDefault("store.s3_access_key", cfg.Store.S3AccessKey)
	v.SetDefault("store.s3_secret_key", cfg.Store.S3SecretKey)
	v.SetDefault("store.presign_ttl", cfg.Store.PresignTTL)

	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.catalog_path", cfg.Cache.CatalogPath)
	v.SetDefault("cache.keep_downloads", cfg.Cache.KeepDownloads)

	v.SetDefault("viewer.min_scale", cfg.Viewer.MinScale)
	v.SetDefault("viewer.max_scale", cfg.Viewer.MaxScale)
	v.SetDefault("viewer.zoom_step", cfg.Viewer.ZoomStep)
	v.SetDefault("viewer.pixel_ratio", cfg.Viewer.PixelRatio)
	v.SetDefault("viewer.page_gap", cfg.Viewer.PageGap)
	v.SetDefault("viewer.engine_poll_attempts", cfg.Viewer.EnginePollAttempts)
	v.SetDefault("viewer.engine_poll_interval", cfg.Viewer.EnginePollInterval)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
}

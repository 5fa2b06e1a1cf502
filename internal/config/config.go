package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cesargomez89/odyvault/internal/constants"
)

const (
	envPrefix      = "ODYVAULT"
	configFileName = "config"
	configFileType = "yaml"
)

// Config holds all application configuration
type Config struct {
	Port                string        `mapstructure:"port"`
	DBPath              string        `mapstructure:"db_path"`
	LogLevel            string        `mapstructure:"log_level"`
	LogFormat           string        `mapstructure:"log_format"`
	Provider            string        `mapstructure:"provider"`
	ProviderURL         string        `mapstructure:"provider_url"`
	RequestInterval     time.Duration `mapstructure:"request_interval"`
	HTTPTimeout         time.Duration `mapstructure:"http_timeout"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	AcquireTimeout      time.Duration `mapstructure:"acquire_timeout"`
	BusyTimeout         time.Duration `mapstructure:"busy_timeout"`
	MaxReaders          int           `mapstructure:"max_readers"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	StaleProgressAfter  time.Duration `mapstructure:"stale_progress_after"`
	VacuumOnMaintenance bool          `mapstructure:"vacuum_on_maintenance"`
	TrackCacheAccess    bool          `mapstructure:"track_cache_access"`
}

// Load reads configuration from an optional config.yaml and ODYVAULT_* environment
// variables on top of the built-in defaults. When no search paths are given the
// working directory and the user config directory are searched.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	if len(searchPaths) == 0 {
		searchPaths = defaultSearchPaths()
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", constants.DefaultPort)
	v.SetDefault("db_path", constants.DefaultDBPath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("provider", constants.DefaultProvider)
	v.SetDefault("provider_url", constants.DefaultProviderURL)
	v.SetDefault("request_interval", constants.DefaultRequestInterval)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("cache_ttl", constants.DefaultCacheTTL)
	v.SetDefault("acquire_timeout", constants.DefaultAcquireTimeout)
	v.SetDefault("busy_timeout", constants.DefaultBusyTimeout)
	v.SetDefault("max_readers", constants.DefaultMaxReaders)
	v.SetDefault("sweep_interval", constants.DefaultSweepInterval)
	v.SetDefault("maintenance_interval", constants.DefaultMaintenanceInterval)
	v.SetDefault("stale_progress_after", constants.DefaultStaleProgressAfter)
	v.SetDefault("vacuum_on_maintenance", false)
	v.SetDefault("track_cache_access", true)
}

func defaultSearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "odyvault"))
	}
	return paths
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errs []string

	// Validate Port
	if c.Port == "" {
		errs = append(errs, "port cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errs = append(errs, fmt.Sprintf("port must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("port must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errs = append(errs, "db_path cannot be empty")
	}

	switch c.Provider {
	case constants.ProviderClaimSearch:
		if c.ProviderURL == "" {
			errs = append(errs, "provider_url cannot be empty")
		} else if u, err := url.ParseRequestURI(c.ProviderURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("provider_url is not a valid URL: %s", c.ProviderURL))
		}
	case constants.ProviderMock:
	default:
		errs = append(errs, fmt.Sprintf("provider must be one of: %s, %s, got: %s",
			constants.ProviderClaimSearch, constants.ProviderMock, c.Provider))
	}

	positive := []struct {
		name string
		val  time.Duration
	}{
		{"cache_ttl", c.CacheTTL},
		{"acquire_timeout", c.AcquireTimeout},
		{"busy_timeout", c.BusyTimeout},
		{"http_timeout", c.HTTPTimeout},
		{"sweep_interval", c.SweepInterval},
		{"maintenance_interval", c.MaintenanceInterval},
		{"stale_progress_after", c.StaleProgressAfter},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got: %s", p.name, p.val))
		}
	}
	if c.RequestInterval < 0 {
		errs = append(errs, fmt.Sprintf("request_interval cannot be negative, got: %s", c.RequestInterval))
	}

	if c.MaxReaders < 1 {
		errs = append(errs, fmt.Sprintf("max_readers must be at least 1, got: %d", c.MaxReaders))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("log_format must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

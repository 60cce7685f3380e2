// Package config holds the dashboard settings. Values are layered: built-in
// defaults, then an optional JSON file, then DASHBOARD_* environment
// variables (optionally seeded from a .env file), then command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/sensors.dashboard/internal/fsutil"
	"github.com/banshee-data/sensors.dashboard/internal/units"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config represents the dashboard configuration. The JSON schema is flat;
// durations are strings such as "10s".
type Config struct {
	// STH-Comet endpoint
	STHHost           string `json:"sth_host" env:"DASHBOARD_STH_HOST"`
	STHPort           int    `json:"sth_port" env:"DASHBOARD_STH_PORT"`
	FiwareService     string `json:"fiware_service" env:"DASHBOARD_FIWARE_SERVICE"`
	FiwareServicePath string `json:"fiware_servicepath" env:"DASHBOARD_FIWARE_SERVICEPATH"`

	// Poll loop
	PollInterval string `json:"poll_interval" env:"DASHBOARD_POLL_INTERVAL"`
	FetchTimeout string `json:"fetch_timeout" env:"DASHBOARD_FETCH_TIMEOUT"`
	LastN        int    `json:"last_n" env:"DASHBOARD_LAST_N"`
	MaxHistory   int    `json:"max_history" env:"DASHBOARD_MAX_HISTORY"` // 0 keeps everything

	// Web UI
	Listen          string `json:"listen" env:"DASHBOARD_LISTEN"`
	Timezone        string `json:"timezone" env:"DASHBOARD_TIMEZONE"`
	RefreshInterval string `json:"refresh_interval" env:"DASHBOARD_REFRESH_INTERVAL"`
	AssetsHost      string `json:"assets_host" env:"DASHBOARD_ASSETS_HOST"`

	// Logging
	LogLevel string `json:"log_level" env:"DASHBOARD_LOG_LEVEL"`
	LogJSON  bool   `json:"log_json" env:"DASHBOARD_LOG_JSON"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		STHHost:           "52.137.83.133",
		STHPort:           8666,
		FiwareService:     "smart",
		FiwareServicePath: "/",
		PollInterval:      "10s",
		FetchTimeout:      "5s",
		LastN:             10,
		MaxHistory:        0,
		Listen:            "0.0.0.0:8050",
		Timezone:          units.DisplayTimezone,
		RefreshInterval:   "10s",
		AssetsHost:        "",
		LogLevel:          "info",
	}
}

// Load builds a validated configuration from defaults, the optional JSON file
// at path and the environment (after loading envFile, if given).
func Load(fsys fsutil.FileSystem, path, envFile string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.MergeFile(fsys, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the JSON file at path onto c. The file must have a .json
// extension and be under 1MB. Fields omitted from the file keep their current
// values, so partial configs are safe.
func (c *Config) MergeFile(fsys fsutil.FileSystem, path string) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// ApplyEnv overlays DASHBOARD_* environment variables onto c. A non-empty
// envFile is loaded first; variables already set in the process win over it.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}

// Save writes c as indented JSON, readable by MergeFile.
func (c *Config) Save(fsys fsutil.FileSystem, path string) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fsys.WriteFile(filepath.Clean(path), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.STHHost == "" {
		return fmt.Errorf("%w: sth_host is required", ErrInvalidConfig)
	}
	if c.STHPort < 1 || c.STHPort > 65535 {
		return fmt.Errorf("%w: sth_port must be between 1 and 65535, got %d", ErrInvalidConfig, c.STHPort)
	}
	if c.FiwareService == "" {
		return fmt.Errorf("%w: fiware_service is required", ErrInvalidConfig)
	}
	for name, v := range map[string]string{
		"poll_interval":    c.PollInterval,
		"fetch_timeout":    c.FetchTimeout,
		"refresh_interval": c.RefreshInterval,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: invalid %s '%s': %v", ErrInvalidConfig, name, v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, v)
		}
	}
	if c.LastN < 1 {
		return fmt.Errorf("%w: last_n must be at least 1, got %d", ErrInvalidConfig, c.LastN)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("%w: max_history must be non-negative, got %d", ErrInvalidConfig, c.MaxHistory)
	}
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}
	if !units.IsTimezoneValid(c.Timezone) {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// BaseURL is the STH-Comet root, e.g. "http://52.137.83.133:8666".
func (c *Config) BaseURL() string {
	return "http://" + net.JoinHostPort(c.STHHost, strconv.Itoa(c.STHPort))
}

// GetPollInterval parses PollInterval, falling back to 10s.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.PollInterval, 10*time.Second)
}

// GetFetchTimeout parses FetchTimeout, falling back to 5s.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.FetchTimeout, 5*time.Second)
}

// GetRefreshInterval parses RefreshInterval, falling back to 10s.
func (c *Config) GetRefreshInterval() time.Duration {
	return parseDuration(c.RefreshInterval, 10*time.Second)
}

// Location loads the display timezone.
func (c *Config) Location() (*time.Location, error) {
	return units.LoadDisplayLocation(c.Timezone)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

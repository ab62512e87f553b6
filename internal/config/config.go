// Package config loads service settings from defaults, an optional YAML
// file and ORBITCOV_* environment variables, and validates the result
// against an embedded CUE schema.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. ORBITCOV_HTTP_ADDR
// or ORBITCOV_AUTH_TOKEN.
const EnvPrefix = "ORBITCOV"

// Auth configures bearer-token protection of mutating endpoints.
type Auth struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Token   string `mapstructure:"token" yaml:"token"`
}

// Config is the effective service configuration.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	TLEFile     string `mapstructure:"tle_file" yaml:"tle_file"`
	TLEURL      string `mapstructure:"tle_url" yaml:"tle_url"`
	ArchiveDir  string `mapstructure:"archive_dir" yaml:"archive_dir"`
	ArchiveKeep int    `mapstructure:"archive_keep" yaml:"archive_keep"`

	// TLERefreshMinutes re-fetches tle_url on this period; 0 disables it.
	TLERefreshMinutes int `mapstructure:"tle_refresh_minutes" yaml:"tle_refresh_minutes"`

	MinElevationDeg float64 `mapstructure:"min_elevation_deg" yaml:"min_elevation_deg"`
	Workers         int     `mapstructure:"workers" yaml:"workers"`
	ShowCoverage    bool    `mapstructure:"show_coverage" yaml:"show_coverage"`

	TrustProxy       bool `mapstructure:"trust_proxy" yaml:"trust_proxy"`
	MaxCoveragePerIP int  `mapstructure:"max_coverage_per_ip" yaml:"max_coverage_per_ip"`
	MaxStreamsPerIP  int  `mapstructure:"max_streams_per_ip" yaml:"max_streams_per_ip"`

	Auth Auth `mapstructure:"auth" yaml:"auth"`
}

// SetDefaults registers every key with its default. Keys must be known to
// viper for environment overrides to apply on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("tle_file", "")
	v.SetDefault("tle_url", "")
	v.SetDefault("tle_refresh_minutes", 0)
	v.SetDefault("archive_dir", "")
	v.SetDefault("archive_keep", 5)
	v.SetDefault("min_elevation_deg", 10.0)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("show_coverage", true)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("max_coverage_per_ip", 4)
	v.SetDefault("max_streams_per_ip", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v, decodes the result
// and validates it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

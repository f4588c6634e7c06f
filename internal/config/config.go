// Package config provides configuration management for tagdoc using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration is read from .tagdoc.yml (or the file named by
// --config / TAGDOC_CONFIG_FILE) with TAGDOC_ environment overrides. It
// covers the template vendor roots, the render cache, the preview server,
// the file watcher, logging and the benchmark timer.
package config

import (
	"fmt"
	"strings"
	"time"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAGDOC"

type Config struct {
	Templates TemplatesConfig `yaml:"templates" mapstructure:"templates"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
}

type TemplatesConfig struct {
	// Vendors maps a namespace vendor to its template root directory.
	Vendors    map[string]string `yaml:"vendors" mapstructure:"vendors"`
	Extension  string            `yaml:"extension" mapstructure:"extension"`
	HTMLHeader bool              `yaml:"html_header" mapstructure:"html_header"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Namespace string        `yaml:"namespace" mapstructure:"namespace"`
	MaxSize   int64         `yaml:"max_size" mapstructure:"max_size"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type BenchmarkConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	CriticalTime time.Duration `yaml:"critical_time" mapstructure:"critical_time"`
}

// Defaults
const (
	DefaultExtension    = ".html"
	DefaultNamespace    = "tagdoc"
	DefaultCacheSize    = 32 << 20
	DefaultCacheTTL     = 10 * time.Minute
	DefaultHost         = "localhost"
	DefaultPort         = 8080
	DefaultDebounce     = 100 * time.Millisecond
	DefaultCriticalTime = 500 * time.Millisecond
)

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, docerrors.NewConfigError("UNMARSHAL_FAILED", "cannot decode configuration").
			WithCause(err)
	}

	if config.Templates.Extension == "" {
		config.Templates.Extension = DefaultExtension
	}
	if !strings.HasPrefix(config.Templates.Extension, ".") {
		config.Templates.Extension = "." + config.Templates.Extension
	}
	// Config files yield lower-cased map keys while Set and defaults keep
	// them as written. Vendors are always keyed lower-case; the loader
	// matches them case-insensitively.
	vendors := make(map[string]string, len(config.Templates.Vendors))
	for vendor, root := range config.Templates.Vendors {
		vendors[strings.ToLower(vendor)] = root
	}
	config.Templates.Vendors = vendors

	// Handle cache settings (cache is on unless disabled explicitly)
	if !v.IsSet("cache.enabled") {
		config.Cache.Enabled = true
	}
	if config.Cache.Namespace == "" {
		config.Cache.Namespace = DefaultNamespace
	}
	if config.Cache.MaxSize == 0 {
		config.Cache.MaxSize = DefaultCacheSize
	}
	if !v.IsSet("cache.ttl") {
		config.Cache.TTL = DefaultCacheTTL
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if !v.IsSet("watch.enabled") {
		config.Watch.Enabled = true
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if config.Benchmark.CriticalTime == 0 {
		config.Benchmark.CriticalTime = DefaultCriticalTime
	}

	if result := ValidateConfigWithDetails(&config); result.HasErrors() {
		first := result.Errors[0]
		return nil, docerrors.NewConfigError("INVALID_CONFIG",
			fmt.Sprintf("invalid configuration: %s", first.Error())).
			WithContext("field", first.Field).
			WithContext("errors", len(result.Errors))
	}

	return &config, nil
}

// Address returns host:port of the preview server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// VendorRoots returns the template roots in no particular order.
func (c *Config) VendorRoots() []string {
	roots := make([]string, 0, len(c.Templates.Vendors))
	for _, root := range c.Templates.Vendors {
		roots = append(roots, root)
	}
	return roots
}

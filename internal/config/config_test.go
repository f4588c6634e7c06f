package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, config *Config)
	}{
		{
			name: "successful load with defaults",
			setup: func() {
				viper.Reset()
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, DefaultExtension, config.Templates.Extension)
				assert.NotNil(t, config.Templates.Vendors)
				assert.True(t, config.Cache.Enabled)
				assert.Equal(t, DefaultNamespace, config.Cache.Namespace)
				assert.Equal(t, int64(DefaultCacheSize), config.Cache.MaxSize)
				assert.Equal(t, DefaultCacheTTL, config.Cache.TTL)
				assert.Equal(t, "localhost:8080", config.Address())
				assert.True(t, config.Watch.Enabled)
				assert.Equal(t, DefaultDebounce, config.Watch.Debounce)
				assert.Equal(t, "info", config.Log.Level)
				assert.Equal(t, "text", config.Log.Format)
				assert.False(t, config.Benchmark.Enabled)
				assert.Equal(t, DefaultCriticalTime, config.Benchmark.CriticalTime)
			},
		},
		{
			name: "explicit values override defaults",
			setup: func() {
				viper.Reset()
				viper.Set("templates.vendors", map[string]string{"ACME": "/srv/acme"})
				viper.Set("templates.extension", "tpl")
				viper.Set("cache.enabled", false)
				viper.Set("cache.ttl", "0s")
				viper.Set("server.port", 3000)
				viper.Set("server.host", "0.0.0.0")
				viper.Set("watch.enabled", false)
				viper.Set("log.level", "debug")
				viper.Set("log.format", "json")
				viper.Set("benchmark.enabled", true)
				viper.Set("benchmark.critical_time", "2s")
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, map[string]string{"acme": "/srv/acme"}, config.Templates.Vendors)
				assert.Equal(t, ".tpl", config.Templates.Extension)
				assert.False(t, config.Cache.Enabled)
				assert.Equal(t, time.Duration(0), config.Cache.TTL)
				assert.Equal(t, "0.0.0.0:3000", config.Address())
				assert.False(t, config.Watch.Enabled)
				assert.Equal(t, "debug", config.Log.Level)
				assert.Equal(t, "json", config.Log.Format)
				assert.True(t, config.Benchmark.Enabled)
				assert.Equal(t, 2*time.Second, config.Benchmark.CriticalTime)
			},
		},
		{
			name: "invalid viper config",
			setup: func() {
				viper.Reset()
				// Set invalid configuration that would cause unmarshal to fail
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "invalid log level",
			setup: func() {
				viper.Reset()
				viper.Set("log.level", "chatty")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 70000)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadReportsConfigError(t *testing.T) {
	v := viper.New()
	v.Set("log.format", "xml")

	_, err := LoadFrom(v)
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrorTypeConfig, docerrors.TypeOf(err))

	var de *docerrors.DocError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_CONFIG", de.Code)
	assert.Equal(t, "log.format", de.Context["field"])
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".tagdoc.yml")
	content := `templates:
  vendors:
    VENDOR: ` + dir + `
  html_header: true
cache:
  max_size: 1024
server:
  allowed_origins:
    - http://localhost:3000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, dir, config.Templates.Vendors["vendor"])
	assert.True(t, config.Templates.HTMLHeader)
	assert.Equal(t, int64(1024), config.Cache.MaxSize)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.AllowedOrigins)
	assert.Equal(t, []string{dir}, config.VendorRoots())
}

func TestValidateConfigWithDetails(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name         string
		mutate       func(c *Config)
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name: "vendor with separator",
			mutate: func(c *Config) {
				c.Templates.Vendors[`A\B`] = dir
			},
			wantErrors: []string{`templates.vendors.A\B`},
		},
		{
			name: "vendor root traversal",
			mutate: func(c *Config) {
				c.Templates.Vendors["ACME"] = "../../etc"
			},
			wantErrors: []string{"templates.vendors.ACME"},
		},
		{
			name: "missing vendor root",
			mutate: func(c *Config) {
				c.Templates.Vendors["ACME"] = filepath.Join(dir, "missing")
			},
			wantWarnings: []string{"templates.vendors.ACME"},
		},
		{
			name: "extension with separator",
			mutate: func(c *Config) {
				c.Templates.Extension = "./html"
			},
			wantErrors: []string{"templates.extension"},
		},
		{
			name: "negative cache values",
			mutate: func(c *Config) {
				c.Cache.MaxSize = -1
				c.Cache.TTL = -time.Second
			},
			wantErrors: []string{"cache.max_size", "cache.ttl"},
		},
		{
			name: "cache namespace delimiter",
			mutate: func(c *Config) {
				c.Cache.Namespace = "a#b"
			},
			wantErrors: []string{"cache.namespace"},
		},
		{
			name: "dangerous host",
			mutate: func(c *Config) {
				c.Server.Host = "localhost; rm -rf /"
			},
			wantErrors: []string{"server.host"},
		},
		{
			name: "privileged port and bare origin",
			mutate: func(c *Config) {
				c.Server.Port = 80
				c.Server.AllowedOrigins = []string{"example.com"}
			},
			wantWarnings: []string{"server.port", "server.allowed_origins"},
		},
		{
			name: "negative debounce",
			mutate: func(c *Config) {
				c.Watch.Debounce = -time.Millisecond
			},
			wantErrors: []string{"watch.debounce"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig(dir)
			tt.mutate(config)

			result := ValidateConfigWithDetails(config)
			assert.Equal(t, len(tt.wantErrors) == 0, result.Valid)
			assert.ElementsMatch(t, tt.wantErrors, fields(result.Errors))
			assert.ElementsMatch(t, tt.wantWarnings, fields(result.Warnings))
		})
	}
}

func TestValidationResultString(t *testing.T) {
	result := &ValidationResult{
		Errors: []ValidationError{{
			Field:       "server.port",
			Message:     "bad port",
			Suggestions: []string{"use 8080"},
		}},
		Warnings: []ValidationError{{Field: "server.host", Message: "odd host"}},
	}

	out := result.String()
	assert.Contains(t, out, "Validation errors:")
	assert.Contains(t, out, "server.port: bad port")
	assert.Contains(t, out, "hint: use 8080")
	assert.Contains(t, out, "Validation warnings:")
	assert.Contains(t, out, "server.host: odd host")
}

func validConfig(root string) *Config {
	return &Config{
		Templates: TemplatesConfig{
			Vendors:   map[string]string{"VENDOR": root},
			Extension: DefaultExtension,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
			MaxSize:   DefaultCacheSize,
			TTL:       DefaultCacheTTL,
		},
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Watch:  WatchConfig{Enabled: true, Debounce: DefaultDebounce},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func fields(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Field)
	}
	return out
}

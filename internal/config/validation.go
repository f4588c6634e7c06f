package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/tagdoc/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateTemplatesConfigDetails(&config.Templates, result)
	validateCacheConfigDetails(&config.Cache, result)
	validateServerConfigDetails(&config.Server, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

var vendorRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

func validateTemplatesConfigDetails(config *TemplatesConfig, result *ValidationResult) {
	for vendor, root := range config.Vendors {
		field := "templates.vendors." + vendor
		if !vendorRegex.MatchString(vendor) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   vendor,
				Message: "vendor names must start with a letter and contain no separators",
				Suggestions: []string{
					`Use the first segment of your template namespaces, e.g. ACME for ACME\site`,
				},
			})
			continue
		}
		if strings.TrimSpace(root) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   root,
				Message: "template root is empty",
			})
			continue
		}
		if strings.Contains(filepath.Clean(root), "..") {
			result.Errors = append(result.Errors, ValidationError{
				Field:       field,
				Value:       root,
				Message:     "template root contains path traversal",
				Suggestions: []string{"Use an absolute path or a path below the working directory"},
			})
			continue
		}
		if !pathExists(root) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   field,
				Value:   root,
				Message: fmt.Sprintf("template root %s does not exist", root),
			})
		}
	}

	if strings.ContainsAny(config.Extension, `/\`) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "templates.extension",
			Value:   config.Extension,
			Message: "extension must not contain path separators",
		})
	}
}

func validateCacheConfigDetails(config *CacheConfig, result *ValidationResult) {
	if config.MaxSize < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "cache.max_size",
			Value:   config.MaxSize,
			Message: "cache size must not be negative",
		})
	}
	if config.TTL < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "cache.ttl",
			Value:       config.TTL,
			Message:     "cache ttl must not be negative",
			Suggestions: []string{"Use 0 to keep entries until they are evicted"},
		})
	}
	if strings.Contains(config.Namespace, "#") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "cache.namespace",
			Value:   config.Namespace,
			Message: "cache namespace must not contain #",
		})
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Validate port
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
				"Port 0 allows system to assign an available port",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	// Validate host
	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.host",
				Value:   config.Host,
				Message: err.Error(),
				Suggestions: []string{
					"Use 'localhost' for local development",
					"Use '0.0.0.0' to bind to all interfaces",
				},
			})
		}
	}

	for _, origin := range config.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "server.allowed_origins",
				Value:   origin,
				Message: fmt.Sprintf("origin %q has no http or https scheme", origin),
			})
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: "debounce must not be negative",
		})
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}
	if config.Format != "text" && config.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format %q", config.Format),
			Suggestions: []string{"Use text or json"},
		})
	}
}

// Helper validation functions

func validateHostname(host string) error {
	// Check for dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

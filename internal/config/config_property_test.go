//go:build property
// +build property

package config

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigurationProperties tests validation and loading invariants
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	root := t.TempDir()

	// Property: every port in range validates, every port outside does not
	properties.Property("port range", prop.ForAll(
		func(port int) bool {
			cfg := validConfig(root)
			cfg.Server.Port = port
			result := ValidateConfigWithDetails(cfg)
			inRange := port >= 0 && port <= 65535
			return result.HasErrors() != inRange
		},
		gen.IntRange(-100000, 100000),
	))

	// Property: well-formed vendor names never produce errors
	properties.Property("vendor names", prop.ForAll(
		func(vendor string) bool {
			cfg := validConfig(root)
			cfg.Templates.Vendors = map[string]string{vendor: root}
			return !ValidateConfigWithDetails(cfg).HasErrors()
		},
		gen.RegexMatch(`^[A-Za-z][A-Za-z0-9_.-]{0,15}$`),
	))

	// Property: traversal in a vendor root is always rejected
	properties.Property("root traversal", prop.ForAll(
		func(depth int) bool {
			cfg := validConfig(root)
			cfg.Templates.Vendors = map[string]string{"VENDOR": strings.Repeat("../", depth) + "etc"}
			return ValidateConfigWithDetails(cfg).HasErrors()
		},
		gen.IntRange(1, 8),
	))

	// Property: the loaded extension always carries exactly one leading dot
	properties.Property("extension normalized", prop.ForAll(
		func(ext string, dotted bool) bool {
			if dotted {
				ext = "." + ext
			}
			v := viper.New()
			v.Set("templates.extension", ext)
			cfg, err := LoadFrom(v)
			if err != nil {
				return false
			}
			return strings.HasPrefix(cfg.Templates.Extension, ".") &&
				!strings.HasPrefix(cfg.Templates.Extension, "..")
		},
		gen.RegexMatch(`^[a-z]{1,6}$`),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

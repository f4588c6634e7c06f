//go:build property
// +build property

package pragma

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestExtractProperties checks that any whitespace layout yields the same binding
// and that only the directive's indentation is stripped with it
func TestExtractProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	whitespace := gen.RegexMatch(`^[ \t\r\n]{0,6}$`)
	separator := gen.RegexMatch(`^[ \t\r\n]{1,6}$`)

	properties.Property("whitespace invariance", prop.ForAll(
		func(lead, sep, beforeEnd, class string) bool {
			content := lead + "<@controller" + sep + `class="` + class + `"` + beforeEnd + "@>"
			dir, remaining, err := Extract(content)
			return err == nil && dir.Found && dir.Class == class &&
				remaining == strings.TrimRight(lead, " \t")
		},
		whitespace,
		separator,
		whitespace,
		gen.RegexMatch(`^[A-Za-z][A-Za-z0-9\\]{0,30}[A-Za-z0-9]$`),
	))

	properties.Property("content after directive is preserved", prop.ForAll(
		func(body string) bool {
			dir, remaining, err := Extract(`<@controller class="X" @>` + "\n" + body)
			return err == nil && dir.Class == "X" && remaining == body
		},
		gen.RegexMatch(`^[a-z<>:/ ]{0,40}$`),
	))

	properties.TestingRun(t)
}

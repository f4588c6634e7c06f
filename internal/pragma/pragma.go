// Package pragma extracts the controller directive from template text.
//
// A template binds at most one controller with
//
//	<@controller class="Some\Controller" @>
//
// Whitespace and line breaks are tolerated between every part of the
// directive. The directive is removed from the text handed back to the
// parser, together with the spaces and tabs indenting it and one trailing
// line break. Line breaks before it belong to the surrounding text.
package pragma

import (
	"regexp"
	"strings"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/scanner"
)

// Marker opens every controller directive.
const Marker = "<@controller"

// directiveRegex matches a complete controller directive
var directiveRegex = regexp.MustCompile(
	`[ \t]*<@controller\s+class\s*=\s*(?:"([^"]*)"|'([^']*)')\s*@>(?:[ \t]*(?:\r\n|\n\r|\n|\r))?`,
)

// Directive is the controller binding found in a template.
type Directive struct {
	Class  string
	Found  bool
	Line   int
	Column int
}

// Extract finds the controller directive in content and returns it together
// with the content stripped of every directive occurrence.
func Extract(content string) (Directive, string, error) {
	if !strings.Contains(content, Marker) {
		return Directive{}, content, nil
	}

	matches := directiveRegex.FindAllStringSubmatchIndex(content, -1)

	var dir Directive
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		class := submatch(content, m, 1)
		if class == "" {
			class = submatch(content, m, 2)
		}
		class = strings.TrimSpace(class)

		markerAt := m[0] + strings.Index(content[m[0]:m[1]], Marker)
		if class == "" {
			return Directive{}, content, malformed("EMPTY_CONTROLLER_CLASS",
				"controller directive has an empty class attribute", content, markerAt)
		}

		if dir.Found && dir.Class != class {
			return Directive{}, content, malformed("DUPLICATE_CONTROLLER",
				"template declares more than one controller ("+dir.Class+", "+class+")", content, markerAt)
		}
		if !dir.Found {
			line, col := scanner.Position(content, markerAt)
			dir = Directive{Class: class, Found: true, Line: line, Column: col}
		}

		sb.WriteString(content[last:m[0]])
		last = m[1]
	}
	sb.WriteString(content[last:])
	remaining := sb.String()

	if idx := strings.Index(remaining, Marker); idx >= 0 {
		return Directive{}, content, malformed("MALFORMED_CONTROLLER",
			`controller directive must read <@controller class="..." @>`, remaining, idx)
	}

	return dir, remaining, nil
}

func submatch(s string, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return s[m[2*group]:m[2*group+1]]
}

func malformed(code, message, content string, at int) error {
	line, col := scanner.Position(content, at)
	return docerrors.NewParseError(code, message).
		WithLocation(line, col).
		WithFragment(content[at:])
}

package errors

import (
	"errors"
	"fmt"
	"html"
	"strings"
)

// typeColors picks the accent color of an overlay by error type.
var typeColors = map[ErrorType]string{
	ErrorTypeParse:           "#ff6b6b",
	ErrorTypeInvalidArgument: "#feca57",
	ErrorTypeEvaluation:      "#ff9f43",
	ErrorTypeIO:              "#48dbfb",
}

// Overlay renders err as a standalone HTML page for the preview server.
// All error text is escaped.
func Overlay(err error) string {
	if err == nil {
		return ""
	}

	title := "Render Error"
	color := "#ff6b6b"
	location := ""
	fragment := ""

	var de *DocError
	if errors.As(err, &de) {
		if c, ok := typeColors[de.Type]; ok {
			color = c
		}
		if de.Type != "" {
			title = strings.ToUpper(string(de.Type[:1])) + strings.ReplaceAll(string(de.Type[1:]), "_", " ") + " Error"
		}
		if de.Line > 0 {
			location = fmt.Sprintf("line %d:%d", de.Line, de.Column)
		}
		if de.Tag != "" {
			location = strings.TrimSpace(de.Tag + " " + location)
		}
		fragment = de.Fragment
	}

	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>tagdoc: `)
	sb.WriteString(html.EscapeString(title))
	sb.WriteString(`</title></head>
<body style="margin: 0; background: #1a202c; color: white; font-family: 'Monaco', 'Menlo', monospace; font-size: 14px;">
	<div id="tagdoc-error-overlay" style="max-width: 1000px; margin: 0 auto; padding: 20px;">
		<h2 style="color: `)
	sb.WriteString(color)
	sb.WriteString(`;">`)
	sb.WriteString(html.EscapeString(title))
	sb.WriteString(`</h2>
		<div style="background: #2d3748; padding: 15px; border-radius: 4px; border-left: 4px solid `)
	sb.WriteString(color)
	sb.WriteString(`;">
			<div style="color: #e2e8f0; margin-bottom: 5px;"><strong>`)
	sb.WriteString(html.EscapeString(err.Error()))
	sb.WriteString(`</strong></div>`)
	if location != "" {
		sb.WriteString(`
			<div style="color: #a0aec0; font-size: 12px;">`)
		sb.WriteString(html.EscapeString(location))
		sb.WriteString(`</div>`)
	}
	if fragment != "" {
		sb.WriteString(`
			<pre style="color: #a0aec0; white-space: pre-wrap;">`)
		sb.WriteString(html.EscapeString(fragment))
		sb.WriteString(`</pre>`)
	}
	sb.WriteString(`
		</div>
	</div>
</body>
</html>
`)
	return sb.String()
}

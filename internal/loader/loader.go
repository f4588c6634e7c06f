// Package loader resolves template references to files.
//
// A reference is a namespace plus a template name. The first namespace
// segment names a vendor whose templates live under a root directory; the
// remaining segments are sub directories:
//
//	VENDOR\site\layout + main  ->  <root of VENDOR>/site/layout/main.html
package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
)

// DefaultExtension is appended to template names.
const DefaultExtension = ".html"

// FileLoader loads templates from vendor root directories.
type FileLoader struct {
	mutex     sync.RWMutex
	vendors   map[string]string
	extension string
}

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithExtension overrides DefaultExtension.
func WithExtension(ext string) Option {
	return func(l *FileLoader) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		l.extension = ext
	}
}

// New creates a loader for the given vendor to root mapping.
func New(vendors map[string]string, opts ...Option) *FileLoader {
	l := &FileLoader{
		vendors:   make(map[string]string, len(vendors)),
		extension: DefaultExtension,
	}
	for vendor, root := range vendors {
		l.vendors[vendor] = root
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Vendors returns the registered vendor names in sorted order.
func (l *FileLoader) Vendors() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	names := make([]string, 0, len(l.vendors))
	for v := range l.vendors {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// Root returns the root directory of a vendor.
func (l *FileLoader) Root(vendor string) (string, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if root, ok := l.vendors[vendor]; ok {
		return root, true
	}
	// Configuration keys arrive lower-cased.
	for name, root := range l.vendors {
		if strings.EqualFold(name, vendor) {
			return root, true
		}
	}
	return "", false
}

// Segments splits a namespace on backslashes and slashes.
func Segments(namespace string) []string {
	return strings.FieldsFunc(namespace, func(r rune) bool {
		return r == '\\' || r == '/'
	})
}

// TemplatePath returns the file a template reference resolves to.
func (l *FileLoader) TemplatePath(namespace, name string) (string, error) {
	segments := Segments(namespace)
	if len(segments) == 0 {
		return "", docerrors.NewInvalidArgumentError("EMPTY_NAMESPACE", "template namespace is empty")
	}
	if name == "" {
		return "", docerrors.NewInvalidArgumentError("EMPTY_TEMPLATE_NAME", "template name is empty").
			WithContext("namespace", namespace)
	}

	for _, part := range append(segments[1:], name) {
		if part == ".." || part == "." || strings.ContainsAny(part, `/\`) {
			return "", docerrors.NewInvalidArgumentError("INVALID_TEMPLATE_PATH",
				"template reference must not leave the vendor root").
				WithContext("namespace", namespace).
				WithContext("template", name)
		}
	}

	root, ok := l.Root(segments[0])
	if !ok {
		return "", docerrors.NewInvalidArgumentError("UNKNOWN_VENDOR",
			"no template root registered for vendor "+segments[0]).
			WithContext("namespace", namespace)
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, root)
	parts = append(parts, segments[1:]...)
	parts = append(parts, name+l.extension)
	return filepath.Join(parts...), nil
}

// Load reads a template.
func (l *FileLoader) Load(namespace, name string) (string, error) {
	path, err := l.TemplatePath(namespace, name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", docerrors.NewIOError("TEMPLATE_READ_FAILED", "cannot read template "+path, err).
			WithContext("namespace", namespace).
			WithContext("template", name)
	}
	return string(content), nil
}

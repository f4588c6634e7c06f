package pagecontroller

import (
	"errors"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/pragma"
)

// Controller prepares a document before it is rendered.
type Controller interface {
	Transform(doc *Document) error
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(doc *Document) error

// Transform calls f.
func (f ControllerFunc) Transform(doc *Document) error {
	return f(doc)
}

// Loader supplies the text of templates referenced by namespace and name.
type Loader interface {
	Load(namespace, name string) (string, error)
}

// Document is the root of a parsed template.
type Document struct {
	*DomNode
	source          string
	controllerClass string
	controller      Controller
	loader          Loader
}

// DocumentOption configures a Document.
type DocumentOption func(*Document)

// WithLoader sets the loader used by template imports.
func WithLoader(l Loader) DocumentOption {
	return func(d *Document) {
		d.loader = l
	}
}

// NewDocument creates an empty document.
func NewDocument(opts ...DocumentOption) *Document {
	d := &Document{}
	d.DomNode = newDomNode(KindDocument, d)
	d.document = d
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetContent sets the template source. Call Parse to build the tree.
func (d *Document) SetContent(content string) {
	d.source = content
	d.DomNode.SetContent(content)
}

// Source returns the template text as set, including the controller
// directive.
func (d *Document) Source() string {
	return d.source
}

// Loader returns the document's loader, if any.
func (d *Document) Loader() Loader {
	return d.loader
}

// Parse extracts the controller directive and builds the node tree. On
// error the document keeps its previous state.
func (d *Document) Parse() error {
	directive, content, err := pragma.Extract(d.source)
	if err != nil {
		return err
	}

	previous := d.DomNode.Content()
	d.DomNode.SetContent(content)
	if err := d.ParseContent(); err != nil {
		d.DomNode.SetContent(previous)
		return err
	}

	d.controllerClass = directive.Class
	d.controller = nil
	return nil
}

// OnParseTime parses the document.
func (d *Document) OnParseTime() error {
	return d.Parse()
}

// ControllerClass returns the class named by the controller directive, or
// "" if the template has none.
func (d *Document) ControllerClass() string {
	return d.controllerClass
}

// AttachController sets the controller run before rendering.
func (d *Document) AttachController(c Controller) {
	d.controller = c
}

// Controller returns the attached controller.
func (d *Document) Controller() Controller {
	return d.controller
}

// Transform runs the controller, if one is attached, and renders the tree.
func (d *Document) Transform() (string, error) {
	if d.controller != nil {
		if err := d.controller.Transform(d); err != nil {
			var de *docerrors.DocError
			if errors.As(err, &de) {
				return "", err
			}
			return "", docerrors.NewEvaluationError("CONTROLLER_FAILED",
				"document controller "+d.controllerClass+" failed", err)
		}
	}
	return d.TransformChildren()
}

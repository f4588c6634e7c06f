// Package pagecontroller builds and renders the node tree of a template.
//
// A template is ordinary text interleaved with namespaced tags such as
// <html:placeholder name="title"/>. Parsing turns the tags known to the
// document's taglib scope into nodes while keeping every other byte as
// literal text; transforming walks the tree in document order and
// concatenates the literal text with each node's rendered output.
package pagecontroller

import (
	"fmt"
	"sort"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/registry"
	"github.com/conneroisu/tagdoc/internal/scanner"
)

// Kind identifies a node type. It is the class identifier a type was
// registered under with RegisterTagType and the value used to filter child
// lookups. The zero Kind matches every node.
type Kind string

const (
	KindAny            Kind = ""
	KindDocument       Kind = "Document"
	KindPlaceHolder    Kind = "PlaceHolderTag"
	KindTemplate       Kind = "TemplateTag"
	KindExpression     Kind = "ExpressionEvaluationTag"
	KindAddTaglib      Kind = "AddTaglibTag"
	KindImportTemplate Kind = "ImportTemplateTag"
	KindTag            Kind = "Tag"
)

// Node is implemented by every element of a document tree. Custom tags
// embed *DomNode and override the hooks they need.
type Node interface {
	Kind() Kind
	Prefix() string
	Name() string
	TagName() string

	Attribute(name string) string
	Attributes() *Attributes
	SetAttribute(name, value string)

	Content() string
	SetContent(content string)

	Parent() Node
	Children() []Node
	Document() *Document

	SetData(key string, value any)
	Data(key string) (any, bool)

	ChildNode(attr, value string, kind Kind) (Node, error)
	ChildNodes(attr, value string, kind Kind) []Node

	// OnParseTime runs once the node and everything nested in it is part of
	// the tree.
	OnParseTime() error
	// OnAfterAppend runs after the whole tree of the parse is built.
	OnAfterAppend() error
	Transform() (string, error)

	dom() *DomNode
}

// KindOf returns the kind a node was registered as.
func KindOf(n Node) Kind {
	if n == nil {
		return KindAny
	}
	return n.Kind()
}

// Delegate is implemented by nodes that decorate another node. Operations a
// decorator does not handle itself go to Fallback.
type Delegate interface {
	Fallback() Node
}

// maxUnwrap bounds decorator chains so a cycle cannot hang Unwrap.
const maxUnwrap = 64

// Unwrap follows Fallback until it reaches a node that is not a decorator.
func Unwrap(n Node) Node {
	for i := 0; i < maxUnwrap; i++ {
		d, ok := n.(Delegate)
		if !ok {
			return n
		}
		next := d.Fallback()
		if next == nil {
			return n
		}
		n = next
	}
	return n
}

// Attributes is a name to value mapping that remembers insertion order.
type Attributes struct {
	names  []string
	values map[string]string
}

func newAttributes(attrs []scanner.Attribute) *Attributes {
	a := &Attributes{values: make(map[string]string, len(attrs))}
	for _, attr := range attrs {
		a.Set(attr.Name, attr.Value)
	}
	return a
}

// Get returns the value of name and whether it is set.
func (a *Attributes) Get(name string) (string, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Set adds or replaces an attribute. A new name goes to the end.
func (a *Attributes) Set(name, value string) {
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = value
}

// Delete removes an attribute.
func (a *Attributes) Delete(name string) {
	if _, ok := a.values[name]; !ok {
		return
	}
	delete(a.values, name)
	for i, n := range a.names {
		if n == name {
			a.names = append(a.names[:i], a.names[i+1:]...)
			break
		}
	}
}

// Names returns the attribute names in order.
func (a *Attributes) Names() []string {
	return append([]string(nil), a.names...)
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.names)
}

// segment is one piece of a node's body: literal text or a child node.
type segment struct {
	text string
	node Node
}

// DomNode carries the state shared by all node types.
type DomNode struct {
	self       Node
	kind       Kind
	prefix     string
	name       string
	attributes *Attributes
	content    string
	segments   []segment
	children   []Node
	parent     Node
	document   *Document
	data       map[string]any
	taglibs    *registry.Registry[TagType]
	appended   bool
	journal    *journal
}

// NewDomNode creates the embedded state for a custom node type.
func NewDomNode() *DomNode {
	return &DomNode{attributes: newAttributes(nil)}
}

func newDomNode(kind Kind, self Node) *DomNode {
	d := NewDomNode()
	d.kind = kind
	d.self = self
	return d
}

func (n *DomNode) dom() *DomNode { return n }

// Kind returns the registered kind of the node.
func (n *DomNode) Kind() Kind { return n.kind }

// Prefix returns the tag namespace.
func (n *DomNode) Prefix() string { return n.prefix }

// Name returns the local tag name.
func (n *DomNode) Name() string { return n.name }

// TagName returns prefix:name, or "" for roots.
func (n *DomNode) TagName() string {
	if n.prefix == "" {
		return ""
	}
	return n.prefix + ":" + n.name
}

// Attribute returns the attribute value or "" if it is not set.
func (n *DomNode) Attribute(name string) string {
	v, _ := n.attributes.Get(name)
	return v
}

// Attributes returns the node's attribute set.
func (n *DomNode) Attributes() *Attributes { return n.attributes }

// SetAttribute adds or replaces an attribute.
func (n *DomNode) SetAttribute(name, value string) {
	n.attributes.Set(name, value)
}

// Content returns the raw text between the node's tags.
func (n *DomNode) Content() string { return n.content }

// SetContent replaces the raw content. It does not re-parse.
func (n *DomNode) SetContent(content string) { n.content = content }

// Parent returns the enclosing node, or nil for roots.
func (n *DomNode) Parent() Node { return n.parent }

// Children returns the direct child nodes in document order.
func (n *DomNode) Children() []Node {
	return append([]Node(nil), n.children...)
}

// Document returns the document the node belongs to, if any.
func (n *DomNode) Document() *Document { return n.document }

// SetData stores a value for expressions evaluated in this subtree.
func (n *DomNode) SetData(key string, value any) {
	if n.data == nil {
		n.data = make(map[string]any)
	}
	n.data[key] = value
}

// Data looks key up on the node and then on its ancestors.
func (n *DomNode) Data(key string) (any, bool) {
	if v, ok := n.data[key]; ok {
		return v, true
	}
	if n.parent != nil {
		return n.parent.Data(key)
	}
	return nil, false
}

func matches(n Node, attr, value string, kind Kind) bool {
	if kind != KindAny && n.Kind() != kind {
		return false
	}
	v, ok := n.Attributes().Get(attr)
	return ok && v == value
}

// ChildNode returns the single direct child of the given kind whose attr
// equals value. No match and more than one match are both errors.
func (n *DomNode) ChildNode(attr, value string, kind Kind) (Node, error) {
	found := n.ChildNodes(attr, value, kind)
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, lookupError("NODE_NOT_FOUND",
			fmt.Sprintf("no child node with %s=%q", attr, value), attr, value, kind)
	default:
		return nil, lookupError("AMBIGUOUS_NODE",
			fmt.Sprintf("%d child nodes with %s=%q", len(found), attr, value), attr, value, kind).
			WithContext("matches", len(found))
	}
}

// ChildNodes returns every direct child of the given kind whose attr equals
// value, in document order.
func (n *DomNode) ChildNodes(attr, value string, kind Kind) []Node {
	var found []Node
	for _, c := range n.children {
		if matches(c, attr, value, kind) {
			found = append(found, c)
		}
	}
	return found
}

func lookupError(code, message, attr, value string, kind Kind) *docerrors.DocError {
	return docerrors.NewInvalidArgumentError(code, message).
		WithContext("attribute", attr).
		WithContext("value", value).
		WithContext("kind", string(kind))
}

// FindChild is ChildNode filtered by Go type instead of Kind.
func FindChild[T Node](n Node, attr, value string) (T, error) {
	var zero T
	found := FindChildren[T](n, attr, value)
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return zero, lookupError("NODE_NOT_FOUND",
			fmt.Sprintf("no child node of type %T with %s=%q", zero, attr, value), attr, value, KindAny)
	default:
		return zero, lookupError("AMBIGUOUS_NODE",
			fmt.Sprintf("%d child nodes of type %T with %s=%q", len(found), zero, attr, value), attr, value, KindAny)
	}
}

// FindChildren is ChildNodes filtered by Go type instead of Kind.
func FindChildren[T Node](n Node, attr, value string) []T {
	var found []T
	for _, c := range n.Children() {
		t, ok := c.(T)
		if ok && matches(c, attr, value, KindAny) {
			found = append(found, t)
		}
	}
	return found
}

// SetPlaceHolder sets every direct child placeholder called name. With
// appendValue the value is added to what the placeholder already holds.
func (n *DomNode) SetPlaceHolder(name, value string, appendValue bool) error {
	placeholders := n.ChildNodes("name", name, KindPlaceHolder)
	if len(placeholders) == 0 {
		return docerrors.NewInvalidArgumentError("PLACEHOLDER_NOT_FOUND",
			fmt.Sprintf("no placeholder named %q", name)).
			WithTag(n.TagName()).
			WithContext("placeholder", name)
	}
	for _, p := range placeholders {
		if appendValue {
			p.SetContent(p.Content() + value)
		} else {
			p.SetContent(value)
		}
	}
	return nil
}

// SetPlaceHolders replaces several placeholders. Names are applied in
// sorted order and the first failure is returned.
func (n *DomNode) SetPlaceHolders(values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := n.SetPlaceHolder(name, values[name], false); err != nil {
			return err
		}
	}
	return nil
}

// OnParseTime does nothing by default.
func (n *DomNode) OnParseTime() error { return nil }

// OnAfterAppend does nothing by default.
func (n *DomNode) OnAfterAppend() error { return nil }

// Transform renders the node's body.
func (n *DomNode) Transform() (string, error) {
	return n.TransformChildren()
}

// TransformChildren concatenates the literal text of the body with the
// output of each child in document order.
func (n *DomNode) TransformChildren() (string, error) {
	size := 0
	for _, s := range n.segments {
		size += len(s.text)
	}

	out := make([]byte, 0, size)
	for _, s := range n.segments {
		if s.node == nil {
			out = append(out, s.text...)
			continue
		}
		text, err := s.node.Transform()
		if err != nil {
			return "", err
		}
		out = append(out, text...)
	}
	return string(out), nil
}

// Walk calls fn for n and every node below it, parents before children.
func Walk(n Node, fn func(node Node, depth int) error) error {
	return walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) error) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, c := range n.dom().children {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

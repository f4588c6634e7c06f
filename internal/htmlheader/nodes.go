// Package htmlheader collects <head> elements declared anywhere in a
// document and renders them where the document asks for them.
package htmlheader

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HeaderNode is one element of the header.
type HeaderNode interface {
	// Checksum identifies the node for de-duplication.
	Checksum() string
	Render(sb *strings.Builder) error
}

func checksum(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// MetaNode is a <meta> element.
type MetaNode struct {
	Name      string
	HTTPEquiv string
	Content   string
}

// Checksum implements HeaderNode.
func (m *MetaNode) Checksum() string {
	return checksum("meta", m.Name, m.HTTPEquiv, m.Content)
}

// Render implements HeaderNode.
func (m *MetaNode) Render(sb *strings.Builder) error {
	return html.Render(sb, element(atom.Meta,
		"name", m.Name,
		"http-equiv", m.HTTPEquiv,
		"content", m.Content,
	))
}

// RefreshNode is a meta refresh redirecting to Target after Time seconds.
type RefreshNode struct {
	Target string
	Time   string
	Params url.Values
}

// NewRefreshNode creates a refresh node.
func NewRefreshNode(target, time string, params url.Values) *RefreshNode {
	return &RefreshNode{Target: target, Time: time, Params: params}
}

// Content returns the value of the content attribute.
func (r *RefreshNode) Content() (string, error) {
	link, err := Link(r.Target, r.Params)
	if err != nil {
		return "", err
	}
	return r.Time + ";URL=" + link, nil
}

// Checksum implements HeaderNode. A document carries one refresh per
// content value.
func (r *RefreshNode) Checksum() string {
	content, err := r.Content()
	if err != nil {
		content = r.Target
	}
	return checksum(content)
}

// Render implements HeaderNode.
func (r *RefreshNode) Render(sb *strings.Builder) error {
	content, err := r.Content()
	if err != nil {
		return err
	}
	return html.Render(sb, element(atom.Meta,
		"http-equiv", "refresh",
		"content", content,
	))
}

// Link adds params to the query of target. Existing values for the same
// keys are replaced.
func Link(target string, params url.Values) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StylesheetNode is a <link rel="stylesheet"> element.
type StylesheetNode struct {
	Href  string
	Media string
}

// Checksum implements HeaderNode.
func (s *StylesheetNode) Checksum() string {
	return checksum("css", s.Href, s.Media)
}

// Render implements HeaderNode.
func (s *StylesheetNode) Render(sb *strings.Builder) error {
	return html.Render(sb, element(atom.Link,
		"rel", "stylesheet",
		"href", s.Href,
		"media", s.Media,
	))
}

// ScriptNode is an external <script> element.
type ScriptNode struct {
	Src   string
	Async bool
	Defer bool
}

// Checksum implements HeaderNode.
func (s *ScriptNode) Checksum() string {
	return checksum("js", s.Src)
}

// Render implements HeaderNode.
func (s *ScriptNode) Render(sb *strings.Builder) error {
	n := element(atom.Script, "src", s.Src)
	if s.Async {
		n.Attr = append(n.Attr, html.Attribute{Key: "async"})
	}
	if s.Defer {
		n.Attr = append(n.Attr, html.Attribute{Key: "defer"})
	}
	return html.Render(sb, n)
}

// ConditionalNode wraps another node in a conditional comment.
type ConditionalNode struct {
	Condition string
	Node      HeaderNode
}

// Checksum implements HeaderNode.
func (c *ConditionalNode) Checksum() string {
	return checksum("if", c.Condition, c.Node.Checksum())
}

// Render implements HeaderNode.
func (c *ConditionalNode) Render(sb *strings.Builder) error {
	sb.WriteString("<!--[if ")
	sb.WriteString(c.Condition)
	sb.WriteString("]>")
	if err := c.Node.Render(sb); err != nil {
		return err
	}
	sb.WriteString("<![endif]-->")
	return nil
}

// Header is the ordered, de-duplicated set of header nodes of a document.
type Header struct {
	nodes []HeaderNode
	seen  map[string]struct{}
}

// NewHeader creates an empty header.
func NewHeader() *Header {
	return &Header{seen: make(map[string]struct{})}
}

// Add appends n unless a node with the same checksum is present.
func (h *Header) Add(n HeaderNode) bool {
	sum := n.Checksum()
	if _, ok := h.seen[sum]; ok {
		return false
	}
	h.seen[sum] = struct{}{}
	h.nodes = append(h.nodes, n)
	return true
}

// Remove drops the node with the checksum of n and reports whether one was
// present.
func (h *Header) Remove(n HeaderNode) bool {
	sum := n.Checksum()
	if _, ok := h.seen[sum]; !ok {
		return false
	}
	delete(h.seen, sum)
	for i, node := range h.nodes {
		if node.Checksum() == sum {
			h.nodes = append(h.nodes[:i], h.nodes[i+1:]...)
			break
		}
	}
	return true
}

// Nodes returns the nodes in insertion order.
func (h *Header) Nodes() []HeaderNode {
	return append([]HeaderNode(nil), h.nodes...)
}

// Len returns the number of nodes.
func (h *Header) Len() int {
	return len(h.nodes)
}

// Render writes every node, one per line.
func (h *Header) Render() (string, error) {
	var sb strings.Builder
	for i, n := range h.nodes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if err := n.Render(&sb); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

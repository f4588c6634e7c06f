package htmlheader

import (
	"net/url"
	"sync"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/pagecontroller"
)

// Prefix is the namespace the tags are bound to by RegisterDefaults.
const Prefix = "htmlheader"

const (
	KindAddMeta       pagecontroller.Kind = "AddMetaTag"
	KindAddRefresh    pagecontroller.Kind = "AddRefreshTag"
	KindAddStylesheet pagecontroller.Kind = "AddStylesheetTag"
	KindAddScript     pagecontroller.Kind = "AddScriptTag"
	KindConditional   pagecontroller.Kind = "ConditionalTag"
	KindGetHead       pagecontroller.Kind = "GetHeadTag"
)

// dataKey stores the Header on the root of a tree.
const dataKey = "htmlheader.header"

var registerOnce sync.Once

// Register makes the header tags available to core:addtaglib.
func Register() {
	registerOnce.Do(func() {
		pagecontroller.RegisterTagType(KindAddMeta, func() pagecontroller.Node {
			return newSource(func(t *sourceTag) (HeaderNode, error) {
				if err := requireAttributes(t, "content"); err != nil {
					return nil, err
				}
				return &MetaNode{
					Name:      t.Attribute("name"),
					HTTPEquiv: t.Attribute("http-equiv"),
					Content:   t.Attribute("content"),
				}, nil
			})
		})
		pagecontroller.RegisterTagType(KindAddRefresh, func() pagecontroller.Node {
			return newSource(func(t *sourceTag) (HeaderNode, error) {
				if err := requireAttributes(t, "target", "time"); err != nil {
					return nil, err
				}
				params, err := url.ParseQuery(t.Attribute("params"))
				if err != nil {
					return nil, docerrors.NewParseError("INVALID_PARAMS", "params must be a query string").
						WithCause(err)
				}
				node := NewRefreshNode(t.Attribute("target"), t.Attribute("time"), params)
				if _, err := node.Content(); err != nil {
					return nil, docerrors.NewParseError("INVALID_TARGET", "refresh target is not a valid URL").
						WithCause(err)
				}
				return node, nil
			})
		})
		pagecontroller.RegisterTagType(KindAddStylesheet, func() pagecontroller.Node {
			return newSource(func(t *sourceTag) (HeaderNode, error) {
				if err := requireAttributes(t, "href"); err != nil {
					return nil, err
				}
				return &StylesheetNode{Href: t.Attribute("href"), Media: t.Attribute("media")}, nil
			})
		})
		pagecontroller.RegisterTagType(KindAddScript, func() pagecontroller.Node {
			return newSource(func(t *sourceTag) (HeaderNode, error) {
				if err := requireAttributes(t, "src"); err != nil {
					return nil, err
				}
				_, async := t.Attributes().Get("async")
				_, deferred := t.Attributes().Get("defer")
				return &ScriptNode{Src: t.Attribute("src"), Async: async, Defer: deferred}, nil
			})
		})
		pagecontroller.RegisterTagType(KindConditional, func() pagecontroller.Node {
			return &ConditionalTag{DomNode: pagecontroller.NewDomNode()}
		})
		pagecontroller.RegisterTagType(KindGetHead, func() pagecontroller.Node {
			return &GetHeadTag{DomNode: pagecontroller.NewDomNode()}
		})
	})
}

// RegisterDefaults registers the tags and binds them under the htmlheader
// prefix in every document.
func RegisterDefaults() error {
	Register()
	bindings := map[string]pagecontroller.Kind{
		"addmeta":     KindAddMeta,
		"addrefresh":  KindAddRefresh,
		"addcss":      KindAddStylesheet,
		"addjs":       KindAddScript,
		"conditional": KindConditional,
		"gethead":     KindGetHead,
	}
	for name, kind := range bindings {
		if err := pagecontroller.RegisterDefaultTaglib(Prefix, name, kind); err != nil {
			return err
		}
	}
	return nil
}

// For returns the header of the tree n belongs to, creating it on first
// use.
func For(n pagecontroller.Node) *Header {
	root := n
	for root.Parent() != nil {
		root = root.Parent()
	}
	if v, ok := root.Data(dataKey); ok {
		if h, ok := v.(*Header); ok {
			return h
		}
	}
	h := NewHeader()
	root.SetData(dataKey, h)
	return h
}

// source is implemented by tags that contribute a header node.
type source interface {
	HeaderNode() (HeaderNode, error)
}

// sourceTag is the shared implementation of the add* tags.
type sourceTag struct {
	*pagecontroller.DomNode
	build func(*sourceTag) (HeaderNode, error)
}

func newSource(build func(*sourceTag) (HeaderNode, error)) *sourceTag {
	return &sourceTag{DomNode: pagecontroller.NewDomNode(), build: build}
}

// HeaderNode builds the node the tag declares.
func (t *sourceTag) HeaderNode() (HeaderNode, error) {
	return t.build(t)
}

// OnParseTime validates the tag attributes.
func (t *sourceTag) OnParseTime() error {
	_, err := t.build(t)
	return err
}

// OnAfterAppend adds the node to the header. Tags wrapped by a conditional
// are added by the conditional.
func (t *sourceTag) OnAfterAppend() error {
	if _, wrapped := t.Parent().(*ConditionalTag); wrapped {
		return nil
	}
	node, err := t.build(t)
	if err != nil {
		return err
	}
	add(t, node)
	return nil
}

// Transform renders nothing; the node appears in the header.
func (t *sourceTag) Transform() (string, error) {
	return "", nil
}

// ConditionalTag decorates the header tag it encloses with a conditional
// comment.
//
//	<htmlheader:conditional condition="lt IE 9">
//	  <htmlheader:addjs src="/js/html5shiv.js"/>
//	</htmlheader:conditional>
type ConditionalTag struct {
	*pagecontroller.DomNode
}

// Fallback returns the decorated tag.
func (t *ConditionalTag) Fallback() pagecontroller.Node {
	for _, c := range t.Children() {
		if _, ok := c.(source); ok {
			return c
		}
	}
	return nil
}

// OnParseTime checks that the tag wraps exactly one header tag.
func (t *ConditionalTag) OnParseTime() error {
	if err := requireAttributes(t, "condition"); err != nil {
		return err
	}
	count := 0
	for _, c := range t.Children() {
		if _, ok := c.(source); ok {
			count++
		}
	}
	if count != 1 {
		return docerrors.NewParseError("INVALID_CONDITIONAL",
			"a conditional must enclose exactly one header tag")
	}
	return nil
}

// OnAfterAppend adds the wrapped node to the header.
func (t *ConditionalTag) OnAfterAppend() error {
	src, ok := pagecontroller.Unwrap(t).(source)
	if !ok {
		return nil
	}
	node, err := src.HeaderNode()
	if err != nil {
		return err
	}
	add(t, &ConditionalNode{Condition: t.Attribute("condition"), Node: node})
	return nil
}

// add puts node into the header of t's tree and takes it out again if the
// parse that added it fails.
func add(t pagecontroller.Node, node HeaderNode) {
	h := For(t)
	if h.Add(node) {
		pagecontroller.OnRollback(t, func() { h.Remove(node) })
	}
}

// Transform renders nothing.
func (t *ConditionalTag) Transform() (string, error) {
	return "", nil
}

// GetHeadTag renders the collected header.
type GetHeadTag struct {
	*pagecontroller.DomNode
}

// Transform implements pagecontroller.Node.
func (t *GetHeadTag) Transform() (string, error) {
	return For(t).Render()
}

func requireAttributes(n pagecontroller.Node, names ...string) error {
	for _, name := range names {
		if v, ok := n.Attributes().Get(name); !ok || v == "" {
			return docerrors.NewParseError("MISSING_ATTRIBUTE", "attribute "+name+" is required").
				WithTag(n.TagName())
		}
	}
	return nil
}

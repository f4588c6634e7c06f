package pagecontroller

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/tagdoc/internal/registry"
)

// Factory creates an empty node of one type.
type Factory func() Node

// TagType binds a kind to the factory creating its nodes.
type TagType struct {
	Kind Kind
	New  Factory
}

var tagTypes = struct {
	sync.RWMutex
	m map[Kind]Factory
}{m: make(map[Kind]Factory)}

// defaultTaglibs are visible in every document without core:addtaglib.
var defaultTaglibs = registry.New[TagType]()

func init() {
	RegisterTagType(KindPlaceHolder, func() Node { return NewPlaceHolderTag() })
	RegisterTagType(KindTemplate, func() Node { return NewTemplateTag() })
	RegisterTagType(KindExpression, func() Node { return NewExpressionEvaluationTag() })
	RegisterTagType(KindAddTaglib, func() Node { return NewAddTaglibTag() })
	RegisterTagType(KindImportTemplate, func() Node { return NewImportTemplateTag() })
	RegisterTagType(KindTag, func() Node { return NewTag() })

	mustDefault("html", "placeholder", KindPlaceHolder)
	mustDefault("html", "template", KindTemplate)
	mustDefault("core", "addtaglib", KindAddTaglib)
	mustDefault("core", "importdesign", KindImportTemplate)
}

func mustDefault(prefix, name string, kind Kind) {
	if err := RegisterDefaultTaglib(prefix, name, kind); err != nil {
		panic(err)
	}
}

// RegisterTagType makes a node type available to core:addtaglib under the
// class identifier kind. Registering a kind again replaces its factory.
func RegisterTagType(kind Kind, factory Factory) {
	if kind == KindAny || factory == nil {
		panic("pagecontroller: RegisterTagType requires a kind and a factory")
	}
	tagTypes.Lock()
	defer tagTypes.Unlock()
	tagTypes.m[kind] = factory
}

// LookupTagType resolves a class identifier. Namespaced identifiers such as
// Vendor\pkg\PlaceHolderTag fall back to their last segment.
func LookupTagType(class string) (TagType, bool) {
	tagTypes.RLock()
	defer tagTypes.RUnlock()

	if f, ok := tagTypes.m[Kind(class)]; ok {
		return TagType{Kind: Kind(class), New: f}, true
	}
	if i := strings.LastIndexAny(class, `\/`); i >= 0 && i < len(class)-1 {
		short := Kind(class[i+1:])
		if f, ok := tagTypes.m[short]; ok {
			return TagType{Kind: short, New: f}, true
		}
	}
	return TagType{}, false
}

// TagTypes returns the registered kinds in sorted order.
func TagTypes() []Kind {
	tagTypes.RLock()
	defer tagTypes.RUnlock()

	kinds := make([]Kind, 0, len(tagTypes.m))
	for k := range tagTypes.m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// RegisterDefaultTaglib binds prefix:name to a registered kind for every
// document.
func RegisterDefaultTaglib(prefix, name string, kind Kind) error {
	tt, ok := LookupTagType(string(kind))
	if !ok {
		return fmt.Errorf("tag type %q is not registered", kind)
	}
	defaultTaglibs.Register(registry.NewKey(prefix, name), tt)
	return nil
}

// TaglibBinding is a prefix:name pair bound to a tag kind.
type TaglibBinding struct {
	Prefix string
	Name   string
	Kind   Kind
}

// DefaultTaglibs lists the bindings every document starts with, sorted by
// key.
func DefaultTaglibs() []TaglibBinding {
	keys := defaultTaglibs.Keys()
	bindings := make([]TaglibBinding, 0, len(keys))
	for _, key := range keys {
		if tt, ok := defaultTaglibs.Get(key); ok {
			bindings = append(bindings, TaglibBinding{Prefix: key.Prefix, Name: key.Name, Kind: tt.Kind})
		}
	}
	return bindings
}

// scope returns the taglib registry tags inside n resolve through: the
// nearest one owned by n or an ancestor, or the defaults.
func (n *DomNode) scope() *registry.Registry[TagType] {
	for cur := Node(n.self); cur != nil; cur = cur.Parent() {
		if d := cur.dom(); d.taglibs != nil {
			return d.taglibs
		}
	}
	if n.taglibs != nil {
		return n.taglibs
	}
	return defaultTaglibs
}

// RegisterTaglib binds prefix:name to kind for the rest of n's body and for
// the containers nested in it.
func (n *DomNode) RegisterTaglib(prefix, name string, kind Kind) error {
	tt, ok := LookupTagType(string(kind))
	if !ok {
		return fmt.Errorf("tag type %q is not registered", kind)
	}
	if n.taglibs == nil {
		n.taglibs = registry.NewScoped(n.scope())
	}
	n.taglibs.Register(registry.NewKey(prefix, name), tt)
	return nil
}

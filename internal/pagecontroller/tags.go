package pagecontroller

import (
	"fmt"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
)

// PlaceHolderTag renders the value set through SetPlaceHolder.
//
//	<html:placeholder name="title"/>
type PlaceHolderTag struct {
	*DomNode
}

// NewPlaceHolderTag creates an empty placeholder.
func NewPlaceHolderTag() *PlaceHolderTag {
	t := &PlaceHolderTag{}
	t.DomNode = newDomNode(KindPlaceHolder, t)
	return t
}

// Transform returns the placeholder value.
func (t *PlaceHolderTag) Transform() (string, error) {
	return t.Content(), nil
}

// TemplateTag is a reusable block that renders nothing unless asked to.
//
//	<html:template name="row">...</html:template>
type TemplateTag struct {
	*DomNode
	onPlace bool
}

// NewTemplateTag creates a template. Set its content and call OnParseTime
// to use it as a standalone root.
func NewTemplateTag() *TemplateTag {
	t := &TemplateTag{}
	t.DomNode = newDomNode(KindTemplate, t)
	return t
}

// OnParseTime parses the content of a template that has no parent. Nested
// templates are built by the enclosing parse.
func (t *TemplateTag) OnParseTime() error {
	if t.Parent() != nil {
		return nil
	}
	return t.ParseContent()
}

// TransformOnPlace makes Transform render the template where it stands.
func (t *TemplateTag) TransformOnPlace() {
	t.onPlace = true
}

// IsTransformedOnPlace reports whether TransformOnPlace was called.
func (t *TemplateTag) IsTransformedOnPlace() bool {
	return t.onPlace
}

// Transform renders the template if TransformOnPlace was called and returns
// "" otherwise.
func (t *TemplateTag) Transform() (string, error) {
	if !t.onPlace {
		return "", nil
	}
	return t.TransformChildren()
}

// TransformTemplate renders the template regardless of TransformOnPlace.
func (t *TemplateTag) TransformTemplate() (string, error) {
	return t.TransformChildren()
}

// Tag is a registered tag without behaviour of its own. It renders its
// body.
type Tag struct {
	*DomNode
}

// NewTag creates a generic tag.
func NewTag() *Tag {
	t := &Tag{}
	t.DomNode = newDomNode(KindTag, t)
	return t
}

// AddTaglibTag binds a tag name to a registered type for the rest of the
// enclosing body.
//
//	<core:addtaglib class="ExpressionEvaluationTag" prefix="dyn" name="expr"/>
type AddTaglibTag struct {
	*DomNode
}

// NewAddTaglibTag creates an empty taglib declaration.
func NewAddTaglibTag() *AddTaglibTag {
	t := &AddTaglibTag{}
	t.DomNode = newDomNode(KindAddTaglib, t)
	return t
}

// OnParseTime registers the declared binding with the parent.
func (t *AddTaglibTag) OnParseTime() error {
	class, prefix, name := t.Attribute("class"), t.Attribute("prefix"), t.Attribute("name")
	if err := requireAttributes(t, "class", "prefix", "name"); err != nil {
		return err
	}
	if t.Parent() == nil {
		return docerrors.NewParseError("ORPHAN_TAGLIB", "taglib declaration must be inside a document")
	}

	if err := t.Parent().dom().RegisterTaglib(prefix, name, Kind(class)); err != nil {
		return docerrors.NewParseError("UNKNOWN_TAG_CLASS",
			fmt.Sprintf("cannot bind %s:%s: %v", prefix, name, err)).
			WithContext("class", class)
	}
	return nil
}

// Transform renders nothing.
func (t *AddTaglibTag) Transform() (string, error) {
	return "", nil
}

// maxImportDepth stops templates that import themselves.
const maxImportDepth = 16

// ImportTemplateTag parses another template in its place.
//
//	<core:importdesign namespace="VENDOR\site" template="footer"/>
type ImportTemplateTag struct {
	*DomNode
}

// NewImportTemplateTag creates an empty import.
func NewImportTemplateTag() *ImportTemplateTag {
	t := &ImportTemplateTag{}
	t.DomNode = newDomNode(KindImportTemplate, t)
	return t
}

// OnParseTime loads the referenced template and parses it as the node's
// content.
func (t *ImportTemplateTag) OnParseTime() error {
	if err := requireAttributes(t, "namespace", "template"); err != nil {
		return err
	}

	doc := t.Document()
	if doc == nil || doc.Loader() == nil {
		return docerrors.NewParseError("NO_LOADER",
			"template import requires a document with a loader")
	}

	depth := 0
	for p := t.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == KindImportTemplate {
			depth++
		}
	}
	if depth >= maxImportDepth {
		return docerrors.NewParseError("IMPORT_DEPTH_EXCEEDED",
			fmt.Sprintf("template imports are nested more than %d levels deep", maxImportDepth))
	}

	namespace, name := t.Attribute("namespace"), t.Attribute("template")
	content, err := doc.Loader().Load(namespace, name)
	if err != nil {
		return docerrors.NewParseError("IMPORT_FAILED",
			fmt.Sprintf("cannot load template %s of %s", name, namespace)).
			WithCause(err)
	}

	t.SetContent(content)
	return t.ParseContent()
}

func requireAttributes(n Node, names ...string) error {
	for _, name := range names {
		if v, ok := n.Attributes().Get(name); !ok || v == "" {
			return docerrors.NewParseError("MISSING_ATTRIBUTE",
				fmt.Sprintf("attribute %q is required", name)).
				WithTag(n.TagName())
		}
	}
	return nil
}

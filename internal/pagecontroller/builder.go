package pagecontroller

import (
	"errors"
	"fmt"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/registry"
	"github.com/conneroisu/tagdoc/internal/scanner"
)

// ParseContent builds the node's tree from its content, replacing any
// previous tree. On error the node keeps its previous tree and the undo
// actions registered with OnRollback during the parse are run.
func (n *DomNode) ParseContent() error {
	if n.self == nil {
		return docerrors.NewInternalError("UNBOUND_NODE",
			"node is not part of a tree and cannot be parsed", nil)
	}

	// Nested parses, such as imports, share the journal of the outermost one.
	root := n.root()
	if root.journal == nil {
		root.journal = &journal{}
		defer func() { root.journal = nil }()
		if err := n.parseContent(); err != nil {
			root.journal.rollback()
			return err
		}
		return nil
	}
	return n.parseContent()
}

func (n *DomNode) parseContent() error {
	parent := defaultTaglibs
	if n.parent != nil {
		parent = n.parent.dom().scope()
	}

	saved := n.taglibs
	n.taglibs = registry.NewScoped(parent)

	b := &builder{src: n.content, document: n.document}
	segments, children, err := b.build(n.self)
	if err != nil {
		n.taglibs = saved
		return err
	}

	prevSegments, prevChildren := n.segments, n.children
	n.segments, n.children = segments, children
	for _, c := range children {
		if err := afterAppend(c); err != nil {
			n.segments, n.children, n.taglibs = prevSegments, prevChildren, saved
			return err
		}
	}
	return nil
}

// journal collects the undo actions of one parse.
type journal struct {
	undo []func()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// OnRollback registers undo to run if the parse currently building n
// fails. Hooks use it to revert effects outside their own node, such as
// values added to data stored on the root. Outside a parse it does nothing.
func OnRollback(n Node, undo func()) {
	if root := n.dom().root(); root.journal != nil {
		root.journal.undo = append(root.journal.undo, undo)
	}
}

func (n *DomNode) root() *DomNode {
	r := n
	for r.parent != nil {
		r = r.parent.dom()
	}
	return r
}

// afterAppend runs OnAfterAppend children first. Nodes finished by a nested
// parse, such as the body of an import, are not run again.
func afterAppend(n Node) error {
	d := n.dom()
	if d.appended {
		return nil
	}
	d.appended = true
	for _, c := range d.children {
		if err := afterAppend(c); err != nil {
			return err
		}
	}
	return n.OnAfterAppend()
}

// frame is an open container on the builder stack.
type frame struct {
	node     Node
	open     scanner.Token
	segments []segment
	children []Node
}

type builder struct {
	src      string
	document *Document
	stack    []*frame
}

func (b *builder) top() *frame {
	return b.stack[len(b.stack)-1]
}

func (b *builder) match(prefix, name string) bool {
	return b.top().node.dom().scope().Has(registry.NewKey(prefix, name))
}

func (b *builder) build(root Node) ([]segment, []Node, error) {
	rootFrame := &frame{node: root}
	b.stack = []*frame{rootFrame}

	s := scanner.New(b.src, scanner.WithMatcher(b.match))
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, nil, err
		}

		switch tok.Kind {
		case scanner.KindEOF:
			if len(b.stack) > 1 {
				open := b.top().open
				return nil, nil, tagError("UNCLOSED_TAG",
					fmt.Sprintf("tag %s is never closed", open.TagName()), open, b.src[open.Start:])
			}
			return rootFrame.segments, rootFrame.children, nil

		case scanner.KindLiteral, scanner.KindComment:
			top := b.top()
			top.segments = append(top.segments, segment{text: tok.Raw})

		case scanner.KindSelfClosing:
			node := b.attach(tok)
			if err := hook(node, tok, node.OnParseTime); err != nil {
				return nil, nil, err
			}

		case scanner.KindOpen:
			node := b.attach(tok)
			node.dom().taglibs = registry.NewScoped(node.Parent().dom().scope())
			b.stack = append(b.stack, &frame{node: node, open: tok})

		case scanner.KindClose:
			if err := b.close(tok); err != nil {
				return nil, nil, err
			}
		}
	}
}

func (b *builder) attach(tok scanner.Token) Node {
	top := b.top()
	tt, _ := top.node.dom().scope().Get(registry.NewKey(tok.Prefix, tok.Name))

	node := tt.New()
	d := node.dom()
	d.self = node
	d.kind = tt.Kind
	d.prefix = tok.Prefix
	d.name = tok.Name
	d.attributes = newAttributes(tok.Attributes)
	d.parent = top.node
	d.document = b.document

	top.segments = append(top.segments, segment{node: node})
	top.children = append(top.children, node)
	return node
}

func (b *builder) close(tok scanner.Token) error {
	if len(b.stack) == 1 {
		return tagError("UNEXPECTED_CLOSING_TAG",
			fmt.Sprintf("closing tag %s has no opening tag", tok.TagName()), tok, tok.Raw)
	}

	top := b.top()
	if top.node.TagName() != tok.TagName() {
		return tagError("MISMATCHED_CLOSING_TAG",
			fmt.Sprintf("expected closing tag for %s, found %s", top.node.TagName(), tok.TagName()),
			tok, b.src[top.open.Start:tok.End])
	}
	b.stack = b.stack[:len(b.stack)-1]

	d := top.node.dom()
	d.segments = top.segments
	d.children = top.children
	d.content = b.src[top.open.End:tok.Start]
	return hook(top.node, top.open, top.node.OnParseTime)
}

// hook runs a lifecycle hook and attaches the tag location to its error.
func hook(node Node, tok scanner.Token, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	var de *docerrors.DocError
	if !errors.As(err, &de) {
		return docerrors.NewParseError("TAG_INITIALIZATION_FAILED", err.Error()).
			WithCause(err).
			WithTag(node.TagName()).
			WithLocation(tok.Line, tok.Column)
	}
	if de.Tag == "" {
		de.WithTag(node.TagName())
	}
	if de.Line == 0 {
		de.WithLocation(tok.Line, tok.Column)
	}
	return err
}

func tagError(code, message string, tok scanner.Token, fragment string) error {
	return docerrors.NewParseError(code, message).
		WithTag(tok.TagName()).
		WithLocation(tok.Line, tok.Column).
		WithFragment(fragment)
}

package scanner

import (
	"fmt"
	"strings"
	"testing"
	"time"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knownPrefixes(prefixes ...string) Matcher {
	return func(prefix, _ string) bool {
		for _, p := range prefixes {
			if p == prefix {
				return true
			}
		}
		return false
	}
}

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func joinRaw(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Raw)
	}
	return sb.String()
}

func TestScanAllKinds(t *testing.T) {
	src := `Hello <html:template name="foo">bar</html:template><!-- c --><html:placeholder name="x"/> end`

	tokens, err := ScanAll(src)
	require.NoError(t, err)

	assert.Equal(t, []Kind{
		KindLiteral, KindOpen, KindLiteral, KindClose, KindComment, KindSelfClosing, KindLiteral,
	}, kinds(tokens))
	assert.Equal(t, src, joinRaw(tokens))

	open := tokens[1]
	assert.Equal(t, "html", open.Prefix)
	assert.Equal(t, "template", open.Name)
	assert.Equal(t, "html:template", open.TagName())
	assert.Equal(t, []Attribute{{Name: "name", Value: "foo"}}, open.Attributes)

	self := tokens[5]
	assert.Equal(t, "html:placeholder", self.TagName())
	assert.Equal(t, []Attribute{{Name: "name", Value: "x"}}, self.Attributes)
}

func TestCommentWithTagNotation(t *testing.T) {
	src := "Text before\n\n<!-- app:footer -->\n\nText after"

	tokens, err := ScanAll(src)
	require.NoError(t, err)

	for _, tok := range tokens {
		assert.False(t, tok.IsTag(), "unexpected tag %q", tok.Raw)
	}
	assert.Equal(t, src, joinRaw(tokens))
	assert.Equal(t, KindComment, tokens[1].Kind)
	assert.Equal(t, "<!-- app:footer -->", tokens[1].Raw)
}

func TestUnterminatedCommentIsLiteralToEnd(t *testing.T) {
	tokens, err := ScanAll("a <!-- <html:placeholder name=\"x\"/>")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, KindComment, tokens[1].Kind)
}

func TestColonInAttributeValue(t *testing.T) {
	src := `<p>To quit your session, please <a href="/?:action=logout">Logout</a></p>`

	tokens, err := ScanAll(src)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, KindLiteral, tokens[0].Kind)
	assert.Equal(t, src, tokens[0].Raw)
}

func TestListMarkupWithColons(t *testing.T) {
	src := `<ul>
   <li>Foo: Foo is the first part of the &quot;foo bar&quot; phrase.</li>
   <li>Bar: Bar is the second part.</li>
</ul>
<html:placeholder name="foo" />`

	tokens, err := ScanAll(src)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, KindLiteral, tokens[0].Kind)
	assert.Equal(t, KindSelfClosing, tokens[1].Kind)
	assert.Equal(t, "foo", tokens[1].Attributes[0].Value)
}

func TestTagClosingSignInsideQuotes(t *testing.T) {
	src := `<dyn:expr
   name="one"
   expression="model[0]->getFoo()"
/>`

	tokens, err := ScanAll(src)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, KindSelfClosing, tokens[0].Kind)
	assert.Equal(t, []Attribute{
		{Name: "name", Value: "one"},
		{Name: "expression", Value: "model[0]->getFoo()"},
	}, tokens[0].Attributes)
}

func TestSlashAndColonInsideQuotes(t *testing.T) {
	tokens, err := ScanAll(`<app:link href="http://example.com/a/b" title='a > b'>x</app:link>`)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, KindOpen, tokens[0].Kind)
	assert.Equal(t, "http://example.com/a/b", tokens[0].Attributes[0].Value)
	assert.Equal(t, "a > b", tokens[0].Attributes[1].Value)
}

func TestMalformedTags(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		code string
	}{
		{"closing sign in attribute without final bracket", `<html:placeholder name="tes>t"/`, "UNTERMINATED_TAG"},
		{"self closing without bracket", `<html:placeholder name="test" /`, "UNTERMINATED_TAG"},
		{"unterminated quote", `<html:placeholder name="test />`, "UNTERMINATED_QUOTE"},
		{"tag cut at end of input", `text <html:placeholder`, "UNTERMINATED_TAG"},
		{"closing tag with attributes", `</html:template name="x">`, "MALFORMED_CLOSING_TAG"},
		{"value missing", `<html:placeholder name= />`, "MALFORMED_ATTRIBUTE"},
		{"space between slash and bracket", `<html:placeholder name="x" / >`, "MALFORMED_SELF_CLOSING"},
		{"slash after value then space", `<html:placeholder name="x"/ >`, "MALFORMED_SELF_CLOSING"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ScanAll(tc.src)
			require.Error(t, err)
			assert.True(t, docerrors.IsParseError(err))

			var de *docerrors.DocError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.code, de.Code)
			assert.NotEmpty(t, de.Fragment)
		})
	}
}

func TestMatcherRejectsUnknownPrefixes(t *testing.T) {
	src := `<app:footer name="x"/><html:placeholder name="y"/>`

	tokens, err := ScanAll(src, WithMatcher(knownPrefixes("html")))
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, KindLiteral, tokens[0].Kind)
	assert.Equal(t, `<app:footer name="x"/>`, tokens[0].Raw)
	assert.Equal(t, KindSelfClosing, tokens[1].Kind)
}

func TestMatcherSkipsValidationOfUnknownTags(t *testing.T) {
	src := `<app:broken name="oops`

	tokens, err := ScanAll(src, WithMatcher(knownPrefixes("html")))
	require.NoError(t, err)
	assert.Equal(t, src, joinRaw(tokens))
}

func TestMatcherIsConsultedLazily(t *testing.T) {
	registered := map[string]bool{"core": true}
	s := New(`<core:addtaglib prefix="dyn"/><dyn:expr name="a"/>`, WithMatcher(func(prefix, _ string) bool {
		return registered[prefix]
	}))

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "core:addtaglib", first.TagName())

	registered["dyn"] = true

	second, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, KindSelfClosing, second.Kind)
	assert.Equal(t, "dyn:expr", second.TagName())

	eof, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, KindEOF, eof.Kind)
}

func TestAttributeForms(t *testing.T) {
	tokens, err := ScanAll(`<x:y a="1" b='2' c=3 d a="4"/>`)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, []Attribute{
		{Name: "a", Value: "4"},
		{Name: "b", Value: "2"},
		{Name: "c", Value: "3"},
		{Name: "d", Value: ""},
	}, tokens[0].Attributes)
}

func TestTokenPositions(t *testing.T) {
	tokens, err := ScanAll("line one\n  <x:y/>")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Column)
	assert.Equal(t, 9+2, tokens[1].Start)
}

func TestEmptyInput(t *testing.T) {
	tokens, err := ScanAll("")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "self-closing", KindSelfClosing.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestTokenPositionsMatchOffsets(t *testing.T) {
	src := strings.Repeat("text\n  <html:placeholder name=\"p\"/><!-- c\n -->\r\n<x:y a='1'>z</x:y>", 50)

	tokens, err := ScanAll(src)
	require.NoError(t, err)
	require.NotEmpty(t, tokens)
	for _, tok := range tokens {
		line, col := Position(src, tok.Start)
		assert.Equal(t, line, tok.Line, "line of %q at %d", tok.Raw, tok.Start)
		assert.Equal(t, col, tok.Column, "column of %q at %d", tok.Raw, tok.Start)
	}
}

func TestMalformedTagPositionAfterManyLines(t *testing.T) {
	src := strings.Repeat("<x:y/>\n", 1000) + `  <x:y a="1`

	_, err := ScanAll(src)
	var de *docerrors.DocError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1001, de.Line)
	assert.Equal(t, 3, de.Column)
}

func TestScanScalesLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping scaling test in short mode")
	}
	unit := "text\n<html:placeholder name=\"p\"/>\n"
	src := strings.Repeat(unit, 80000)

	start := time.Now()
	tokens, err := ScanAll(src)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, tokens, 160001)
	assert.Less(t, elapsed, 3*time.Second, "scanning %d bytes took %s", len(src), elapsed)
}

func BenchmarkScanAll(b *testing.B) {
	for _, n := range []int{1000, 10000, 100000} {
		src := strings.Repeat("text\n<html:placeholder name=\"p\"/>\n", n)
		b.Run(fmt.Sprintf("tags=%d", n), func(b *testing.B) {
			b.SetBytes(int64(len(src)))
			for i := 0; i < b.N; i++ {
				if _, err := ScanAll(src); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

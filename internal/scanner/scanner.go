// Package scanner tokenizes template text into literal, comment and tag spans.
//
// Only namespaced tags of the form <prefix:name ...> and </prefix:name> are
// recognised, and only when the configured Matcher accepts the pair. Every
// other byte of input, including ordinary HTML and HTML comments, is handed
// back verbatim so that a caller concatenating the Raw text of all tokens
// reproduces the source exactly. Quoted attribute values are opaque: a '>',
// '/' or ':' inside quotes never ends a tag or starts a namespace.
package scanner

import (
	"strings"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
)

// Kind classifies a token.
type Kind int

const (
	KindLiteral Kind = iota
	KindComment
	KindOpen
	KindClose
	KindSelfClosing
	KindEOF
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindComment:
		return "comment"
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindSelfClosing:
		return "self-closing"
	case KindEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Attribute is a single name/value pair in source order.
type Attribute struct {
	Name  string
	Value string
}

// Token is one lexical span of the source.
type Token struct {
	Kind       Kind
	Start      int
	End        int
	Raw        string
	Prefix     string
	Name       string
	Attributes []Attribute
	Line       int
	Column     int
}

// TagName returns prefix:name for tag tokens and "" otherwise.
func (t Token) TagName() string {
	if t.Prefix == "" {
		return ""
	}
	return t.Prefix + ":" + t.Name
}

// IsTag reports whether the token is an open, close or self-closing tag.
func (t Token) IsTag() bool {
	return t.Kind == KindOpen || t.Kind == KindClose || t.Kind == KindSelfClosing
}

// Matcher decides whether a prefix:name candidate is a tag. Candidates it
// rejects are emitted as literal text without any validation.
type Matcher func(prefix, name string) bool

// Option configures a Scanner.
type Option func(*Scanner)

// WithMatcher restricts tag recognition to the pairs accepted by m.
func WithMatcher(m Matcher) Option {
	return func(s *Scanner) {
		s.matcher = m
	}
}

// Scanner is a pull tokenizer. It is not safe for concurrent use.
type Scanner struct {
	src     string
	pos     int
	matcher Matcher
	pending *Token
	cursor  cursor
}

// cursor caches the line of the last offset looked up. Lookups only move
// forward, so scanning the whole input counts every newline once.
type cursor struct {
	offset    int
	line      int
	lineStart int
}

// New creates a scanner over src.
func New(src string, opts ...Option) *Scanner {
	s := &Scanner{src: src, cursor: cursor{line: 1}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanAll drains a scanner and returns every token except the final EOF.
func ScanAll(src string, opts ...Option) ([]Token, error) {
	s := New(src, opts...)
	var tokens []Token
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token. After the input is consumed it keeps
// returning a KindEOF token.
func (s *Scanner) Next() (Token, error) {
	if s.pending != nil {
		tok := *s.pending
		s.pending = nil
		return tok, nil
	}

	n := len(s.src)
	if s.pos >= n {
		return Token{Kind: KindEOF, Start: n, End: n}, nil
	}

	start := s.pos
	line, col := s.position(start)
	i := start
	for i < n {
		rel := strings.IndexByte(s.src[i:], '<')
		if rel < 0 {
			break
		}
		i += rel

		if strings.HasPrefix(s.src[i:], "<!--") {
			comment := s.comment(i)
			return s.emit(start, i, line, col, comment), nil
		}

		tok, ok, err := s.tag(i)
		if err != nil {
			return Token{}, err
		}
		if ok {
			return s.emit(start, i, line, col, tok), nil
		}
		i++
	}

	s.pos = n
	return s.literal(start, n, line, col), nil
}

// emit returns the literal text in [start, at) if there is any and queues
// tok behind it; otherwise it returns tok directly.
func (s *Scanner) emit(start, at, line, col int, tok Token) Token {
	s.pos = tok.End
	if at > start {
		s.pending = &tok
		return s.literal(start, at, line, col)
	}
	return tok
}

func (s *Scanner) literal(start, end, line, col int) Token {
	return Token{
		Kind:   KindLiteral,
		Start:  start,
		End:    end,
		Raw:    s.src[start:end],
		Line:   line,
		Column: col,
	}
}

func (s *Scanner) comment(start int) Token {
	end := len(s.src)
	if idx := strings.Index(s.src[start+4:], "-->"); idx >= 0 {
		end = start + 4 + idx + 3
	}
	line, col := s.position(start)
	return Token{
		Kind:   KindComment,
		Start:  start,
		End:    end,
		Raw:    s.src[start:end],
		Line:   line,
		Column: col,
	}
}

// tag attempts to read a namespaced tag at s.src[start] == '<'.
func (s *Scanner) tag(start int) (Token, bool, error) {
	src := s.src
	n := len(src)
	j := start + 1

	closing := false
	if j < n && src[j] == '/' {
		closing = true
		j++
	}

	prefix, j := ident(src, j)
	if prefix == "" || j >= n || src[j] != ':' {
		return Token{}, false, nil
	}
	name, j := ident(src, j+1)
	if name == "" {
		return Token{}, false, nil
	}
	if j < n && !isSpace(src[j]) && src[j] != '/' && src[j] != '>' {
		return Token{}, false, nil
	}
	if s.matcher != nil && !s.matcher(prefix, name) {
		return Token{}, false, nil
	}

	line, col := s.position(start)
	tok := Token{
		Start:  start,
		Prefix: prefix,
		Name:   name,
		Line:   line,
		Column: col,
	}

	if closing {
		k := skipSpace(src, j)
		if k >= n || src[k] != '>' {
			return Token{}, false, parseError("MALFORMED_CLOSING_TAG",
				"closing tag must end with '>'", tok, src[start:min(n, k+1)])
		}
		tok.Kind = KindClose
		tok.End = k + 1
		tok.Raw = src[start:tok.End]
		return tok, true, nil
	}

	end, err := findTagEnd(src, j, tok)
	if err != nil {
		return Token{}, false, err
	}

	region := src[j:end]
	tok.Kind = KindOpen
	if strings.HasSuffix(region, "/") {
		tok.Kind = KindSelfClosing
		region = region[:len(region)-1]
	} else if strings.HasSuffix(strings.TrimRight(region, " \t\r\n"), "/") {
		return Token{}, false, parseError("MALFORMED_SELF_CLOSING",
			"'/' must be followed directly by '>'", tok, src[start:end+1])
	}

	attrs, err := parseAttributes(region, tok)
	if err != nil {
		return Token{}, false, err
	}
	tok.Attributes = attrs
	tok.End = end + 1
	tok.Raw = src[start:tok.End]
	return tok, true, nil
}

// findTagEnd returns the index of the '>' terminating the tag whose
// attribute region starts at from. Quoted values are skipped as a whole.
func findTagEnd(src string, from int, tok Token) (int, error) {
	n := len(src)
	k := from
	for k < n {
		switch c := src[k]; c {
		case '"', '\'':
			idx := strings.IndexByte(src[k+1:], c)
			if idx < 0 {
				return 0, parseError("UNTERMINATED_QUOTE",
					"attribute value is missing its closing quote", tok, src[tok.Start:])
			}
			k += idx + 2
		case '>':
			return k, nil
		default:
			k++
		}
	}
	return 0, parseError("UNTERMINATED_TAG",
		"tag is not terminated by '>' or '/>'", tok, src[tok.Start:])
}

// parseAttributes reads name="value" pairs. Duplicate names keep their
// first position and take the last value.
func parseAttributes(region string, tok Token) ([]Attribute, error) {
	var attrs []Attribute
	index := make(map[string]int)
	n := len(region)
	k := 0

	for {
		k = skipSpace(region, k)
		if k >= n {
			return attrs, nil
		}

		nameStart := k
		for k < n && !isSpace(region[k]) && region[k] != '=' && region[k] != '"' && region[k] != '\'' {
			k++
		}
		name := region[nameStart:k]
		if name == "" || strings.ContainsRune(name, '/') {
			return nil, parseError("MALFORMED_ATTRIBUTE",
				"expected attribute name", tok, region[nameStart:])
		}

		value := ""
		v := skipSpace(region, k)
		if v < n && region[v] == '=' {
			v = skipSpace(region, v+1)
			if v >= n {
				return nil, parseError("MALFORMED_ATTRIBUTE",
					"attribute "+name+" has no value", tok, region[nameStart:])
			}
			if q := region[v]; q == '"' || q == '\'' {
				// findTagEnd guarantees the closing quote exists.
				end := strings.IndexByte(region[v+1:], q)
				value = region[v+1 : v+1+end]
				k = v + end + 2
			} else {
				valStart := v
				for v < n && !isSpace(region[v]) {
					v++
				}
				value = region[valStart:v]
				k = v
			}
		}

		if pos, seen := index[name]; seen {
			attrs[pos].Value = value
			continue
		}
		index[name] = len(attrs)
		attrs = append(attrs, Attribute{Name: name, Value: value})
	}
}

func parseError(code, message string, tok Token, fragment string) error {
	return docerrors.NewParseError(code, message).
		WithTag(tok.TagName()).
		WithLocation(tok.Line, tok.Column).
		WithFragment(fragment)
}

// position is Position for offsets at or after the previous lookup.
func (s *Scanner) position(offset int) (int, int) {
	c := &s.cursor
	if offset < c.offset {
		return Position(s.src, offset)
	}
	if offset > len(s.src) {
		offset = len(s.src)
	}
	for {
		nl := strings.IndexByte(s.src[c.offset:offset], '\n')
		if nl < 0 {
			break
		}
		c.line++
		c.lineStart = c.offset + nl + 1
		c.offset = c.lineStart
	}
	c.offset = offset
	return c.line, offset - c.lineStart + 1
}

// Position converts a byte offset into a 1-based line and column.
func Position(src string, offset int) (int, int) {
	if offset > len(src) {
		offset = len(src)
	}
	line := 1 + strings.Count(src[:offset], "\n")
	col := offset + 1
	if nl := strings.LastIndexByte(src[:offset], '\n'); nl >= 0 {
		col = offset - nl
	}
	return line, col
}

func ident(src string, i int) (string, int) {
	start := i
	if i >= len(src) || !isLetter(src[i]) {
		return "", start
	}
	i++
	for i < len(src) && (isLetter(src[i]) || isDigit(src[i]) || src[i] == '-' || src[i] == '_' || src[i] == '.') {
		i++
	}
	return src[start:i], i
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

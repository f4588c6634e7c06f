// Package expression compiles and evaluates the access paths used by
// expression tags, such as
//
//	model[0]->getBaz()->getFoo()
//	page['title']
//	user.Name
//
// A path starts with the name of a value in a DataSource and continues with
// index, key, accessor-call and property steps. Accessor names follow the
// template convention (getFoo) and resolve to the exported Go method
// (GetFoo); the exact name is tried first.
package expression

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DataSource supplies the root values of an expression.
type DataSource interface {
	Data(key string) (any, bool)
}

// MapSource is a DataSource backed by a map.
type MapSource map[string]any

// Data implements DataSource.
func (m MapSource) Data(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

type stepKind int

const (
	stepIndex stepKind = iota
	stepKey
	stepCall
	stepField
)

type step struct {
	kind  stepKind
	index int
	name  string
}

func (s step) String() string {
	switch s.kind {
	case stepIndex:
		return "[" + strconv.Itoa(s.index) + "]"
	case stepKey:
		return "['" + s.name + "']"
	case stepCall:
		return "->" + s.name + "()"
	default:
		return "." + s.name
	}
}

// Expression is a compiled access path. It is immutable and safe to share.
type Expression struct {
	source string
	root   string
	steps  []step
}

// Source returns the expression text as compiled.
func (e *Expression) Source() string {
	return e.source
}

// Root returns the name of the data value the path starts from.
func (e *Expression) Root() string {
	return e.root
}

// Compile parses src into an Expression.
func Compile(src string) (*Expression, error) {
	p := &parser{src: strings.TrimSpace(src)}
	if p.src == "" {
		return nil, p.fail("EMPTY_EXPRESSION", "expression is empty")
	}

	root := p.ident()
	if root == "" {
		return nil, p.fail("INVALID_EXPRESSION", "expression must start with a data name")
	}

	expr := &Expression{source: p.src, root: root}
	for {
		p.skipSpace()
		if p.eof() {
			return expr, nil
		}
		s, err := p.step()
		if err != nil {
			return nil, err
		}
		expr.steps = append(expr.steps, s)
	}
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Expression {
	expr, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return expr
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) step() (step, error) {
	switch {
	case p.src[p.pos] == '[':
		return p.bracket()
	case strings.HasPrefix(p.src[p.pos:], "->"):
		p.pos += 2
		p.skipSpace()
		name := p.ident()
		if name == "" {
			return step{}, p.fail("INVALID_EXPRESSION", "expected accessor name after '->'")
		}
		p.skipSpace()
		if p.eof() || p.src[p.pos] != '(' {
			return step{kind: stepField, name: name}, nil
		}
		p.pos++
		p.skipSpace()
		if p.eof() || p.src[p.pos] != ')' {
			return step{}, p.fail("UNSUPPORTED_ARGUMENTS", "accessor "+name+" must be called without arguments")
		}
		p.pos++
		return step{kind: stepCall, name: name}, nil
	case p.src[p.pos] == '.':
		p.pos++
		name := p.ident()
		if name == "" {
			return step{}, p.fail("INVALID_EXPRESSION", "expected property name after '.'")
		}
		return step{kind: stepField, name: name}, nil
	default:
		return step{}, p.fail("INVALID_EXPRESSION", fmt.Sprintf("unexpected %q", p.src[p.pos]))
	}
}

func (p *parser) bracket() (step, error) {
	p.pos++
	p.skipSpace()
	if p.eof() {
		return step{}, p.fail("INVALID_EXPRESSION", "unterminated '['")
	}

	var s step
	if q := p.src[p.pos]; q == '\'' || q == '"' {
		end := strings.IndexByte(p.src[p.pos+1:], q)
		if end < 0 {
			return step{}, p.fail("INVALID_EXPRESSION", "unterminated key string")
		}
		s = step{kind: stepKey, name: p.src[p.pos+1 : p.pos+1+end]}
		p.pos += end + 2
	} else {
		start := p.pos
		if p.src[p.pos] == '-' {
			p.pos++
		}
		for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return step{}, p.fail("INVALID_EXPRESSION", "index must be an integer or a quoted key")
		}
		s = step{kind: stepIndex, index: n}
	}

	p.skipSpace()
	if p.eof() || p.src[p.pos] != ']' {
		return step{}, p.fail("INVALID_EXPRESSION", "expected ']'")
	}
	p.pos++
	return s, nil
}

func (p *parser) fail(code, message string) error {
	return docerrors.NewParseError(code, message).
		WithContext("expression", p.src).
		WithContext("offset", p.pos).
		WithFragment(p.src)
}

// Evaluate resolves the expression against ds.
func (e *Expression) Evaluate(ds DataSource) (any, error) {
	if ds == nil {
		return nil, e.fail("NO_DATA", "no data bound", e.root)
	}
	cur, ok := ds.Data(e.root)
	if !ok {
		return nil, e.fail("UNKNOWN_DATA", fmt.Sprintf("no data bound under %q", e.root), e.root)
	}

	path := e.root
	for _, s := range e.steps {
		path += s.String()
		next, err := apply(s, cur)
		if err != nil {
			return nil, e.fail("RESOLUTION_FAILED", err.Error(), path)
		}
		cur = next
	}
	return cur, nil
}

// EvaluateString resolves the expression and converts the result to text.
func (e *Expression) EvaluateString(ds DataSource) (string, error) {
	v, err := e.Evaluate(ds)
	if err != nil {
		return "", err
	}
	s, err := Stringify(v)
	if err != nil {
		return "", e.fail("NOT_PRINTABLE", err.Error(), e.source)
	}
	return s, nil
}

func (e *Expression) fail(code, message, path string) error {
	return docerrors.NewEvaluationError(code, message, nil).
		WithContext("expression", e.source).
		WithContext("path", path)
}

func apply(s step, in any) (any, error) {
	switch s.kind {
	case stepIndex:
		return index(in, s.index)
	case stepKey:
		return key(in, s.name)
	case stepCall:
		return call(in, s.name)
	default:
		return field(in, s.name)
	}
}

func index(in any, i int) (any, error) {
	rv := indirect(reflect.ValueOf(in))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if i < 0 || i >= rv.Len() {
			return nil, fmt.Errorf("index %d out of range (length %d)", i, rv.Len())
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.Int {
			mv := rv.MapIndex(reflect.ValueOf(i).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				return nil, fmt.Errorf("no entry for key %d", i)
			}
			return mv.Interface(), nil
		}
	case reflect.Invalid:
		return nil, fmt.Errorf("cannot index nil value")
	}
	return nil, fmt.Errorf("cannot index value of type %s", rv.Type())
}

func key(in any, k string) (any, error) {
	rv := indirect(reflect.ValueOf(in))
	if rv.Kind() == reflect.Invalid {
		return nil, fmt.Errorf("cannot read key %q of nil value", k)
	}
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("cannot read key %q of value of type %s", k, rv.Type())
	}
	mv := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
	if !mv.IsValid() {
		return nil, fmt.Errorf("no entry for key %q", k)
	}
	return mv.Interface(), nil
}

func call(in any, name string) (any, error) {
	rv := reflect.ValueOf(in)
	if !rv.IsValid() || ((rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil()) {
		return nil, fmt.Errorf("cannot call %s() on nil value", name)
	}

	m := method(rv, name)
	if !m.IsValid() {
		return nil, fmt.Errorf("type %s has no accessor %s()", rv.Type(), name)
	}

	mt := m.Type()
	if mt.NumIn() != 0 {
		return nil, fmt.Errorf("accessor %s() on %s requires arguments", name, rv.Type())
	}
	switch mt.NumOut() {
	case 1:
		return m.Call(nil)[0].Interface(), nil
	case 2:
		if !mt.Out(1).Implements(errorType) {
			break
		}
		out := m.Call(nil)
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, fmt.Errorf("accessor %s() failed: %w", name, err)
		}
		return out[0].Interface(), nil
	}
	return nil, fmt.Errorf("accessor %s() on %s must return a value", name, rv.Type())
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// method looks name up as written and then with its first letter upper
// cased, on the value and on a pointer to it.
func method(rv reflect.Value, name string) reflect.Value {
	candidates := []string{name}
	if exported := ExportedName(name); exported != name {
		candidates = append(candidates, exported)
	}

	for _, n := range candidates {
		if m := rv.MethodByName(n); m.IsValid() {
			return m
		}
	}
	if rv.Kind() != reflect.Pointer {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		for _, n := range candidates {
			if m := ptr.MethodByName(n); m.IsValid() {
				return m
			}
		}
	}
	return reflect.Value{}
}

func field(in any, name string) (any, error) {
	rv := indirect(reflect.ValueOf(in))
	switch rv.Kind() {
	case reflect.Struct:
		for _, n := range []string{name, ExportedName(name)} {
			sf, ok := rv.Type().FieldByName(n)
			if ok && sf.IsExported() {
				return rv.FieldByIndex(sf.Index).Interface(), nil
			}
		}
		return nil, fmt.Errorf("type %s has no property %s", rv.Type(), name)
	case reflect.Map:
		return key(in, name)
	case reflect.Invalid:
		return nil, fmt.Errorf("cannot read property %s of nil value", name)
	}
	return nil, fmt.Errorf("cannot read property %s of value of type %s", name, rv.Type())
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// ExportedName upper-cases the first letter of an accessor name and keeps
// the rest as written, so getFoo becomes GetFoo.
func ExportedName(name string) string {
	// A Caser keeps state between calls and must not be shared.
	return cases.Title(language.Und, cases.NoLower).String(name)
}

// Stringify converts an evaluation result into template text.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	case error:
		return t.Error(), nil
	}

	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Invalid:
		return "", nil
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprint(rv.Interface()), nil
	}
	return "", fmt.Errorf("value of type %T cannot be rendered as text", v)
}

// Package errors defines the error taxonomy shared by the tagdoc packages.
//
// Every failure surfaced by the parser, the tree lookups and the expression
// evaluator is a *DocError carrying an ErrorType. Callers branch on the type
// with the Is* helpers or with errors.Is against the sentinel values.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeParse           ErrorType = "parse"
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeEvaluation      ErrorType = "evaluation"
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeIO              ErrorType = "io"
	ErrorTypeInternal        ErrorType = "internal"
)

// maxFragment bounds the template excerpt kept on parse errors.
const maxFragment = 64

// Sentinels for errors.Is. They match any DocError of the same type.
var (
	ErrParse           = &DocError{Type: ErrorTypeParse}
	ErrInvalidArgument = &DocError{Type: ErrorTypeInvalidArgument}
	ErrEvaluation      = &DocError{Type: ErrorTypeEvaluation}
)

// DocError is a structured error type with context.
type DocError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	Tag      string
	Fragment string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *DocError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Tag != "" {
		parts = append(parts, "tag:"+e.Tag)
	}

	if e.Line > 0 {
		location := fmt.Sprintf("line %d", e.Line)
		if e.Column > 0 {
			location += fmt.Sprintf(":%d", e.Column)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	if e.Fragment != "" {
		parts = append(parts, fmt.Sprintf("near %q", e.Fragment))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches on type, and on code when the target carries one.
func (e *DocError) Is(target error) bool {
	var t *DocError
	if !errors.As(target, &t) {
		return false
	}
	if e.Type != t.Type {
		return false
	}

	return t.Code == "" || e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *DocError) WithContext(key string, value interface{}) *DocError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds line and column information.
func (e *DocError) WithLocation(line, column int) *DocError {
	e.Line = line
	e.Column = column

	return e
}

// WithTag names the tag the error relates to.
func (e *DocError) WithTag(tag string) *DocError {
	e.Tag = tag

	return e
}

// WithFragment attaches the offending template excerpt.
func (e *DocError) WithFragment(fragment string) *DocError {
	if len(fragment) > maxFragment {
		fragment = fragment[:maxFragment] + "..."
	}
	e.Fragment = fragment

	return e
}

// WithCause sets the wrapped error.
func (e *DocError) WithCause(cause error) *DocError {
	e.Cause = cause

	return e
}

// Error creation functions

// NewParseError creates a parse error.
func NewParseError(code, message string) *DocError {
	return &DocError{
		Type:    ErrorTypeParse,
		Code:    code,
		Message: message,
	}
}

// NewInvalidArgumentError creates a lookup or argument error.
func NewInvalidArgumentError(code, message string) *DocError {
	return &DocError{
		Type:    ErrorTypeInvalidArgument,
		Code:    code,
		Message: message,
	}
}

// NewEvaluationError creates an expression evaluation error.
func NewEvaluationError(code, message string, cause error) *DocError {
	return &DocError{
		Type:    ErrorTypeEvaluation,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *DocError {
	return &DocError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *DocError {
	return &DocError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *DocError {
	return &DocError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsParseError checks if an error is a template parse failure.
func IsParseError(err error) bool {
	return typeOf(err) == ErrorTypeParse
}

// IsInvalidArgument checks if an error is a lookup or argument failure.
func IsInvalidArgument(err error) bool {
	return typeOf(err) == ErrorTypeInvalidArgument
}

// IsEvaluationError checks if an error is an expression evaluation failure.
func IsEvaluationError(err error) bool {
	return typeOf(err) == ErrorTypeEvaluation
}

// TypeOf returns the ErrorType of err, or the empty type for foreign errors.
func TypeOf(err error) ErrorType {
	return typeOf(err)
}

func typeOf(err error) ErrorType {
	var de *DocError
	if errors.As(err, &de) {
		return de.Type
	}

	return ""
}

// WrapIO wraps an error with I/O context, passing DocErrors through.
func WrapIO(err error, code, message string) error {
	if err == nil {
		return nil
	}
	var de *DocError
	if errors.As(err, &de) {
		return err
	}

	return NewIOError(code, message, err)
}

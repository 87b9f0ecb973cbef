// internal/errors/errors.go
//
// Package errors enumerates the error kinds spec §7 names and wraps them in
// a source-positioned *Error, grounded on the teacher's
// internal/errors/errors.go (SentraError/SourceLocation/Error() shape) but
// repointed at the reducer's error taxonomy instead of a bytecode VM's.
package errors

import (
	"fmt"
	"strings"
)

// Kind is one of the error kinds spec §7 enumerates.
type Kind string

const (
	// TypeMismatch: requested type incompatible with a reduced value.
	TypeMismatch Kind = "TypeMismatch"
	// AltConflict: argument alt-sets disagree on the same branch.
	AltConflict Kind = "AltConflict"
	// DivisionByZero and other operator domain errors.
	DivisionByZero Kind = "DivisionByZero"
	// AssertionFalse: `assert` forced a concrete non-True predicate.
	AssertionFalse Kind = "AssertionFalse"
	// ParseError is surfaced by the parser collaborator; never raised by
	// the reducer core itself.
	ParseError Kind = "ParseError"
	// Incomplete: an expression with unfilled arguments reached eval.
	Incomplete Kind = "Incomplete"
	// Leak: detected only at teardown by cellmem.Arena.CheckFree.
	Leak Kind = "Leak"
)

// Local reports whether kind produces a local FAIL response that the
// reducer's alt-chain fallback can absorb (spec §7's "Policy"), as opposed
// to a fatal condition reported at the shell boundary.
func (k Kind) Local() bool {
	switch k {
	case Incomplete, Leak:
		return false
	default:
		return true
	}
}

// SourceLocation names a position in the original source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Error is the concrete error type every fatal condition (Incomplete, Leak,
// ParseError) carries back to the shell boundary (spec §7).
type Error struct {
	Kind     Kind
	Message  string
	Location SourceLocation
	Source   string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if loc := e.Location.String(); loc != "" {
		sb.WriteString(fmt.Sprintf(" at %s", loc))
	}
	if e.Source != "" {
		sb.WriteString(fmt.Sprintf("\n  %d | %s", e.Location.Line, e.Source))
		if e.Location.Column > 0 {
			sb.WriteString("\n  " + strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line))+e.Location.Column-1) + "^")
		}
	}
	return sb.String()
}

// New builds an *Error of the given kind at an unknown location.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At builds an *Error of the given kind at a specific source location.
func At(kind Kind, loc SourceLocation, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// WithSource attaches the offending source line for display.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

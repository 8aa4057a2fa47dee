// Package mexerr implements the error taxonomy used throughout mex.
//
// Every error detected by the tokeniser, expander, control registry, or
// layout core is one of five kinds (see the constructors below). Each
// carries the source location at which it was detected, and wraps
// juju/errors so callers can still unwrap to the original cause while
// printing an annotated stack when that's useful for diagnostics.
package mexerr

import (
	"fmt"

	"github.com/juju/errors"
)

// Location pinpoints where an error was detected, for display purposes.
// mex's source and token packages both produce values satisfying this
// shape; mexerr only needs the three fields, so it declares its own
// small struct rather than importing those packages (which would create
// an import cycle, since they report errors via mexerr).
type Location struct {
	Filename string
	Line     int
	Column   int
}

func (l Location) String() string {
	if l.Filename == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}

// Kind classifies a mex error per spec.md §7.
type Kind int

const (
	// KindParse covers tokenisation or syntax-level issues: bad numbers,
	// missing units, malformed parameter templates, unmatched groups,
	// unknown catcodes.
	KindParse Kind = iota
	// KindMacro covers semantic problems in control invocation: undefined
	// controls, outer macros in forbidden contexts, \par under no_par.
	KindMacro
	// KindValue covers arithmetic mismatches: differing infinity orders,
	// differing unit classes, division by zero.
	KindValue
	// KindControl covers structural misuse: \endcsname without \csname,
	// \the of a non-thing.
	KindControl
	// KindIO covers file-format or filesystem issues: TFM length
	// mismatches, missing fonts.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindMacro:
		return "MacroError"
	case KindValue:
		return "ValueError"
	case KindControl:
		return "ControlError"
	case KindIO:
		return "IOError"
	default:
		return "Error"
	}
}

// Error is the concrete error type returned by every mex subsystem.
type Error struct {
	Kind Kind
	Loc  Location
	msg  string
	// cause is set when Error wraps an underlying error (e.g. an os.Open
	// failure inside the TFM reader); juju/errors.Annotate populates it.
	cause error
}

func (e *Error) Error() string {
	loc := e.Loc.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.msg)
}

// Cause implements juju/errors.causer so errors.Cause(err) unwraps to the
// original error that triggered this one, when there is one.
func (e *Error) Cause() error {
	if e.cause != nil {
		return e.cause
	}
	return e
}

func newf(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Loc: loc, msg: fmt.Sprintf(format, args...)}
}

// Parse builds a ParseError at loc.
func Parse(loc Location, format string, args ...any) error {
	return newf(KindParse, loc, format, args...)
}

// Macro builds a MacroError at loc.
func Macro(loc Location, format string, args ...any) error {
	return newf(KindMacro, loc, format, args...)
}

// Value builds a ValueError at loc.
func Value(loc Location, format string, args ...any) error {
	return newf(KindValue, loc, format, args...)
}

// Control builds a ControlError at loc.
func Control(loc Location, format string, args ...any) error {
	return newf(KindControl, loc, format, args...)
}

// IO wraps err as an IOError at loc, annotating it with juju/errors so the
// original cause survives under errors.Cause.
func IO(loc Location, err error, format string, args ...any) error {
	wrapped := errors.Annotatef(err, format, args...)
	return &Error{Kind: KindIO, Loc: loc, msg: wrapped.Error(), cause: err}
}

// Is reports whether err is a mex *Error of the given kind.
func Is(err error, kind Kind) bool {
	cause := errors.Cause(err)
	me, ok := cause.(*Error)
	if !ok {
		return false
	}
	return me.Kind == kind
}

// Package asmerr is the single fatal-error type shared by the lexer,
// program builder, and resolver (spec §7: "All fatal errors propagate as a
// single error type carrying a human-readable message").
package asmerr

import "fmt"

// Error is a fatal assembly diagnostic. Line is 0 when the error isn't tied
// to a particular source line (e.g. a resolver-level invariant failure).
type Error struct {
	Msg  string
	Line int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// New builds a line-less Error.
func New(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// At builds an Error tied to a source line.
func At(line int, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Line: line}
}

// List accumulates recoverable diagnostics (e.g. one per failed encoder)
// until the caller decides they're fatal.
type List struct {
	Errs []error
}

func (l *List) Add(err error) {
	l.Errs = append(l.Errs, err)
}

func (l *List) Empty() bool {
	return len(l.Errs) == 0
}

func (l *List) Error() string {
	s := ""
	for i, e := range l.Errs {
		if i > 0 {
			s += "; "
		}
		s += e.Error()
	}
	return s
}

// Package bisonerr defines the typed error kinds returned across the
// database's public surface (spec §7): NoSuchCollection, InvalidQuery,
// InvalidUpdate, InvalidPath, IoError and ParseError.
package bisonerr

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind identifies one of the error categories from spec §7.
type Kind string

// Recognized error kinds.
const (
	NoSuchCollection Kind = "no_such_collection"
	InvalidQuery     Kind = "invalid_query"
	InvalidUpdate    Kind = "invalid_update"
	InvalidPath      Kind = "invalid_path"
	IoError          Kind = "io_error"
	ParseError       Kind = "parse_error"
)

// Error is a typed, call-site-annotated error.
//
// Its Error() string is built the way lazyerrors builds theirs: each New or
// Wrap call prepends "file:line func" to the message, and wrapping chains
// through %w so errors.Is/errors.As keep working across the chain.
type Error struct {
	kind  Kind
	msg   string
	cause error
	frame string
}

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		frame: caller(),
	}
}

// Wrap wraps cause as an *Error of the given kind, annotating it with msg.
// If cause is nil, Wrap returns nil.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}

	return &Error{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
		frame: caller(),
	}
}

// caller returns "file.go:line func" for the caller of New/Wrap.
func caller() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return ""
	}

	fn := runtime.FuncForPC(pc)
	name := "?"
	if fn != nil {
		name = shortFuncName(fn.Name())
	}

	return fmt.Sprintf("[%s:%d %s]", shortPath(file), line, name)
}

func shortPath(file string) string {
	slash := -1
	count := 0

	for i := len(file) - 1; i >= 0; i-- {
		if file[i] == '/' {
			count++
			if count == 1 {
				slash = i
			}
		}
	}

	if slash == -1 {
		return file
	}

	return file[slash+1:]
}

func shortFuncName(full string) string {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '/' {
			return full[i+1:]
		}
	}

	return full
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s %s", e.frame, e.msg)
	}

	return fmt.Sprintf("%s %s: %s", e.frame, e.msg, e.cause.Error())
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error's category.
func (e *Error) Kind() Kind {
	return e.kind
}

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, bisonerr.New(bisonerr.NoSuchCollection, "")) style
// checks, or more idiomatically compare the Kind returned by Of(err).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.kind == e.kind
	}

	return false
}

// Of returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}

	return "", false
}

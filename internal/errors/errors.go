// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for query reporting.
// Every error that reaches a client carries a Kind, a message and, for
// errors that point into the statement text, a character position. Kinds
// map onto HTTP statuses.
//
// Wrapping goes through github.com/cockroachdb/errors so that errors.Is/As
// and stack traces keep working across package boundaries.
package errors

import (
	"fmt"
	"net/http"

	crdberrors "github.com/cockroachdb/errors"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Validation covers malformed or missing request parameters.
	Validation Kind = "validation"
	// Syntax is reported by the compiler; never retried.
	Syntax Kind = "syntax"
	// Execution covers cursor acquisition and iteration failures.
	Execution Kind = "execution"
	// Fatal covers resource exhaustion class failures.
	Fatal Kind = "fatal"
	// IO is a file access failure raised while copying a file.
	IO Kind = "io"
	// BufferTooSmall means one unit of output does not fit an empty buffer.
	BufferTooSmall Kind = "buffer_too_small"
	// PeerDisconnected means the client went away while data was queued.
	PeerDisconnected Kind = "peer_disconnected"
)

// E wraps an error with kind, statement position and a client-facing message.
type E struct {
	Kind     Kind
	Message  string
	Position int
	Err      error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is/As.
func (e *E) Unwrap() error { return e.Err }

// Wrap attaches kind and message to err, recording the caller's stack.
func Wrap(kind Kind, msg string, err error) *E {
	if err != nil {
		err = crdberrors.WithStackDepth(err, 1)
	}
	return &E{Kind: kind, Message: msg, Err: err}
}

// New returns an error of the given kind without a position.
func New(kind Kind, msg string) *E { return &E{Kind: kind, Message: msg} }

// At returns an error of the given kind pointing at position in the query.
func At(kind Kind, position int, format string, args ...interface{}) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...), Position: position}
}

// SyntaxAt is the compiler's error constructor.
func SyntaxAt(position int, format string, args ...interface{}) *E {
	return At(Syntax, position, format, args...)
}

// Executionf builds an execution error.
func Executionf(format string, args ...interface{}) *E {
	return &E{Kind: Execution, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err has kind k anywhere in its chain.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// KindOf returns the kind of the outermost *E in err's chain, or Execution
// for foreign errors.
func KindOf(err error) Kind {
	var e *E
	if crdberrors.As(err, &e) {
		return e.Kind
	}
	return Execution
}

// Details returns the client-facing message and position of err.
func Details(err error) (string, int) {
	var e *E
	if crdberrors.As(err, &e) {
		if e.Message != "" {
			return e.Message, e.Position
		}
		if e.Err != nil {
			return e.Err.Error(), e.Position
		}
	}
	return err.Error(), 0
}

// Status maps err onto the HTTP status of the error document.
func Status(err error) int {
	switch KindOf(err) {
	case Validation, Syntax, IO:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

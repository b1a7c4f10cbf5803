// Package errs defines the typed error kinds used across the gateway so
// that the HTTP surface can map an error to a status code in one place
// instead of every handler re-deriving it from an error string.
package errs

import "errors"

// Kind identifies the disposition of an error as it crosses the HTTP
// boundary. See spec.md §7 for the full disposition table.
type Kind int

const (
	// KindInternal is the zero value: an unclassified error, mapped to 500.
	KindInternal Kind = iota
	KindUnauthorized
	KindInvalidInput
	KindPathDenied
	KindBusy
	KindNotFound
	KindConflict
	KindInjectionBlocked
	KindStoreConflict
)

// Error wraps an underlying error with a Kind and a list of field-level
// messages (used by Policy to report "all-or-nothing-sanitized" validation).
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.err != nil {
		return e.err.Error()
	}
	return "error"
}

func (e *Error) Unwrap() error {
	return e.err
}

// New constructs a typed error with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a typed error wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// WithFields attaches per-field validation messages.
func (e *Error) WithFields(fields []string) *Error {
	e.Fields = fields
	return e
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

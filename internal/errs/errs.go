// Package errs defines the error taxonomy shared across the service.
// Every error that crosses the API boundary carries a machine-readable
// kind and a human-readable message; internal causes stay wrapped.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	// KindValidation marks caller-correctable input errors (bad name,
	// bad file, wrong embedding shape). No retry.
	KindValidation Kind = "validation_error"
	// KindNotFound marks references to absent persons or photos.
	KindNotFound Kind = "not_found"
	// KindDetection marks face detection failures (no face, bad image).
	// Caller-correctable by supplying a better image.
	KindDetection Kind = "detection_error"
	// KindStorage marks database or file-system failures.
	KindStorage Kind = "storage_error"
)

// Error is the concrete error type used throughout the service.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinel errors compare by kind and message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// ErrInvalidEmbedding is returned when an embedding does not have exactly
// the expected number of dimensions. Checked before any persistence.
var ErrInvalidEmbedding = &Error{Kind: KindValidation, Message: "embedding must have exactly 512 dimensions"}

// Validation creates a validation-kind error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found-kind error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Detection creates a detection-kind error.
func Detection(format string, args ...any) *Error {
	return &Error{Kind: KindDetection, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a cause as a storage-kind error.
func Storage(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or empty string for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

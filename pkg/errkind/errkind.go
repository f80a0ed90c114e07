// Package errkind classifies errors raised anywhere in the extraction
// pipeline into the fixed set of kinds the orchestrator's retry and
// escalation policy switches on.
//
// The wrapping shape (Op/Err/Details, with Unwrap and Is) follows the
// OCRError pattern used for Google Cloud OCR error classification in the
// retrieval pack; it is reused here because the same problem recurs at
// every OCR and rasterization boundary in this pipeline.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds from the error handling design table.
type Kind string

const (
	InvalidInput      Kind = "invalid_input"
	RasterizeFailed   Kind = "rasterize_failed"
	OCRTransient      Kind = "ocr_transient"
	OCRPermanent      Kind = "ocr_permanent"
	OCRFailed         Kind = "ocr_failed"
	RemoteUnavailable Kind = "remote_unavailable"
	ValidationPartial Kind = "validation_partial"
	DeadlineExceeded  Kind = "deadline_exceeded"
	InternalAssert    Kind = "internal_assert"
)

// Error wraps an underlying error with a Kind, the failing operation name,
// and optional human-readable detail.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s failed (%s): %v", e.Kind, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is against both *Error (by Kind) and the wrapped
// underlying error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// New creates an *Error with the given kind, operation, and cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates an *Error with formatted details.
func Newf(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Details: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind unless it is already a classified *Error, in
// which case it passes through unchanged so an inner classification is
// never overwritten by an outer, less specific one.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return New(kind, op, err)
}

// KindOf extracts the Kind of err, or "" if err is not a classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether an error's kind should be retried by the
// orchestrator's backoff policy (transient OCR failures only).
func IsRetryable(err error) bool {
	return KindOf(err) == OCRTransient
}

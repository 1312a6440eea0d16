// Package errs defines the closed set of error kinds used across the RAG
// engine so callers can branch on failure class instead of string-matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed tagged variant of the error classes the engine surfaces.
type Kind string

const (
	BadInput            Kind = "BadInput"
	NotFound            Kind = "NotFound"
	Unauthorized        Kind = "Unauthorized"
	RateLimited         Kind = "RateLimited"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	SchemaMismatch      Kind = "SchemaMismatch"
	Cancelled           Kind = "Cancelled"
	Internal            Kind = "Internal"
)

// Error wraps an underlying error with a Kind and optional retry hint.
type Error struct {
	Kind       Kind
	Msg        string
	RetryAfter int // seconds; only meaningful for RateLimited
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// RateLimit builds a RateLimited error carrying a retry-after hint.
func RateLimit(msg string, retryAfter int) *Error {
	return &Error{Kind: RateLimited, Msg: msg, RetryAfter: retryAfter}
}

// KindOf extracts the Kind of err, defaulting to Internal if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Retryable reports whether the kind should be retried locally before being
// surfaced to the caller, per the propagation rules: BadInput and NotFound
// are never retried.
func Retryable(kind Kind) bool {
	switch kind {
	case BadInput, NotFound, Unauthorized, SchemaMismatch, Cancelled:
		return false
	default:
		return true
	}
}

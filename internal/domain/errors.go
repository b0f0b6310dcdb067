package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store functions when the requested record does
// not exist. Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a business rule (e.g. missing
// destination, duplicate day index). Handlers should map this to HTTP 422.
var ErrValidation = errors.New("validation error")

// ErrSyncInProgress is returned by the engine when a sync pass for the same
// user is already running. The second trigger is rejected, not queued.
// Handlers should map this to HTTP 409.
var ErrSyncInProgress = errors.New("sync already running")

// ErrorKind classifies a failed remote operation. The kind decides whether
// the retry scheduler tries again (network, timeout, server) or gives up
// immediately (auth, validation).
type ErrorKind string

const (
	// KindNetwork is a connectivity failure before any response arrived.
	KindNetwork ErrorKind = "network"
	// KindTimeout means a single attempt exceeded its time bound.
	KindTimeout ErrorKind = "timeout"
	// KindServer is a 5xx response from the remote service.
	KindServer ErrorKind = "server"
	// KindAuth is a 401/403 response. Fatal for the current phase; the
	// engine reports it and leaves re-authentication to an external flow.
	KindAuth ErrorKind = "auth"
	// KindValidation is any other 4xx response. Fatal per record: the
	// record is skipped and reported, and the pass continues.
	KindValidation ErrorKind = "validation"
)

// SyncError is a classified failure of a remote operation. It wraps the
// underlying transport or decode error so callers can still use errors.Is.
type SyncError struct {
	Kind   ErrorKind
	Status int // HTTP status when one was received, 0 otherwise
	Err    error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *SyncError) Unwrap() error { return e.Err }

// NewSyncError wraps err as a classified SyncError.
func NewSyncError(kind ErrorKind, status int, err error) *SyncError {
	return &SyncError{Kind: kind, Status: status, Err: err}
}

// KindOf returns the classification of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Retryable reports whether err is worth another attempt. Only transient
// failures (network, timeout, 5xx) qualify; auth and validation failures
// fail on first occurrence. Unclassified errors are not retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

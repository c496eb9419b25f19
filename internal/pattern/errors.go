package pattern

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FetchErrorKind classifies fetch failures for retry decisions.
type FetchErrorKind string

// Fetch failure classes.
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchNetwork    FetchErrorKind = "network"
	FetchNavigation FetchErrorKind = "navigation"
)

// FetchError wraps a failure from the fetch capability. Timeout and
// transient network errors are retryable; navigation errors are not.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator may retry this fetch.
func (e *FetchError) Retryable() bool {
	return e.Kind == FetchTimeout || e.Kind == FetchNetwork
}

// PersistenceErrorKind classifies store failures.
type PersistenceErrorKind string

// Persistence failure classes.
const (
	PersistenceConnection PersistenceErrorKind = "connection"
	PersistenceConflict   PersistenceErrorKind = "conflict"
)

// PersistenceError wraps a failure from the pattern store. Connection
// loss is retryable; integrity conflicts are terminal.
type PersistenceError struct {
	Kind PersistenceErrorKind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether the operation may be retried.
func (e *PersistenceError) Retryable() bool {
	return e.Kind == PersistenceConnection
}

// ErrInvalidDomain marks input rejected before entering the pipeline.
var ErrInvalidDomain = errors.New("invalid domain")

// ErrPatternNotFound is returned by stores when no current pattern exists.
var ErrPatternNotFound = errors.New("pattern not found")

// IsRetryable reports whether err may be retried by the orchestrator.
// Context cancellation and validation errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidDomain) {
		return false
	}
	// Classified errors carry their own verdict: a fetch timeout stays
	// retryable even when it wraps context.DeadlineExceeded from a
	// per-attempt deadline.
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// ClassifyFetchErr maps a raw fetcher error onto a FetchError, preserving
// an existing classification when one is already present.
func ClassifyFetchErr(url string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	kind := FetchNavigation
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FetchTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			if netErr.Timeout() {
				kind = FetchTimeout
			} else {
				kind = FetchNetwork
			}
		}
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

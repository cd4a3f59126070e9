package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrValidation is a generic sentinel for invalid input; never retried.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited signals a per-user model-call window was exceeded.
	// Callers may retry after the window resets.
	ErrRateLimited = errors.New("rate limited")
	// ErrServiceUnavailable signals an upstream model failure that survived
	// the bounded retry loop. Results behind this error are never cached.
	ErrServiceUnavailable = errors.New("service unavailable")
)

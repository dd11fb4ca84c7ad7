package domain

import "errors"

var (
	// ErrEntityNotFound signals that the entity id does not resolve or has no parent scope.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrForbidden signals that the actor may not flag the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrNotAuthenticated signals a missing or anonymous actor.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidRequest signals malformed input (bad cursor, order, body).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStoreUnavailable signals a transient storage failure; callers may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrIndexInconsistent marks index drift found by reconciliation. Never returned to end users.
	ErrIndexInconsistent = errors.New("index inconsistent")
)

package flagdex

import "github.com/kailas-cloud/flagdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEntityNotFound    = domain.ErrEntityNotFound
	ErrForbidden         = domain.ErrForbidden
	ErrNotAuthenticated  = domain.ErrNotAuthenticated
	ErrInvalidRequest    = domain.ErrInvalidRequest
	ErrStoreUnavailable  = domain.ErrStoreUnavailable
	ErrIndexInconsistent = domain.ErrIndexInconsistent
)

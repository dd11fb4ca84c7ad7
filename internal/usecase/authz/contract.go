package authz

import "context"

// ScopeOwners resolves the owner of a parent scope.
type ScopeOwners interface {
	ScopeOwner(ctx context.Context, parentID string) (string, error)
}

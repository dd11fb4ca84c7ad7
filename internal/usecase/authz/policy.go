package authz

import (
	"context"
	"fmt"
	"strings"

	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
)

// Policy is the canFlag predicate. It grants to moderators, the entity
// owner and the owner of the entity's parent scope.
type Policy struct {
	owners     ScopeOwners
	moderators map[string]struct{}
}

// New creates a Policy. moderators lists administrator and global moderator ids.
func New(owners ScopeOwners, moderators []string) *Policy {
	mods := make(map[string]struct{}, len(moderators))
	for _, m := range moderators {
		if m = strings.TrimSpace(m); m != "" {
			mods[m] = struct{}{}
		}
	}
	return &Policy{owners: owners, moderators: mods}
}

// CanFlag reports whether the actor may change the entity flag.
func (p *Policy) CanFlag(ctx context.Context, actorID string, e *domentity.Entity) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if _, ok := p.moderators[actorID]; ok {
		return true, nil
	}
	if e.OwnerID() != "" && e.OwnerID() == actorID {
		return true, nil
	}

	owner, err := p.owners.ScopeOwner(ctx, e.ParentID())
	if err != nil {
		return false, fmt.Errorf("scope owner: %w", err)
	}
	return owner != "" && owner == actorID, nil
}

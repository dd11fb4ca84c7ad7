package indexer

import (
	"context"

	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
)

// EntityReader loads the authoritative entity fields.
type EntityReader interface {
	Get(ctx context.Context, id string) (domentity.Entity, error)
}

// StateRepository applies each transition to the flag field and both indices atomically.
// A transition whose hash is gone or moved to another parent reports Found=false and writes nothing.
type StateRepository interface {
	SetFlag(ctx context.Context, id, parentID string, flagged bool, score int64) (domentity.Transition, error)
	SetDeleted(ctx context.Context, id, parentID string, deleted bool, now int64) (domentity.Transition, error)
	Purge(ctx context.Context, id, parentID string) (domentity.Transition, error)
	Reconcile(ctx context.Context, id, parentID string, now int64) (domentity.Membership, error)
	DropVanished(ctx context.Context, id string) (vanished, removed bool, err error)
}

package flag

import (
	"context"

	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/event"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
)

// EntityReader loads entities for authorization and status reads.
type EntityReader interface {
	Get(ctx context.Context, id string) (domentity.Entity, error)
}

// Indexer mutates flag state and keeps the indices consistent.
type Indexer interface {
	Apply(ctx context.Context, id string, desired bool) (domentity.Outcome, error)
	Delete(ctx context.Context, id string) (domentity.Outcome, error)
	Restore(ctx context.Context, id string) (domentity.Outcome, error)
	Purge(ctx context.Context, id string) (domentity.Outcome, error)
}

// IndexReader pages through an index.
type IndexReader interface {
	Page(ctx context.Context, q listing.Query) (listing.Page, error)
}

// Authorizer is the canFlag predicate.
type Authorizer interface {
	CanFlag(ctx context.Context, actorID string, e *domentity.Entity) (bool, error)
}

// Notifier publishes committed changes asynchronously.
type Notifier interface {
	Publish(ctx context.Context, ev event.Change)
}

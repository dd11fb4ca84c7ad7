package repair

import (
	"context"

	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
)

// EntityLister enumerates entities.
type EntityLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Reconciler repairs the index membership of one entity.
type Reconciler interface {
	Reconcile(ctx context.Context, id string) (domentity.Repair, error)
}

// IndexScanner exposes index contents for the stale-member sweep.
type IndexScanner interface {
	GlobalKey() string
	ScopedKeys(ctx context.Context) (map[string]string, error)
	Members(ctx context.Context, key string) ([]string, error)
}

// StaleRemover drops index members whose entity says they do not belong.
// Each member is checked and removed atomically, so a flag committed after
// the members were listed is kept.
type StaleRemover interface {
	RemoveStale(ctx context.Context, key, parentID string, ids []string) ([]string, error)
}

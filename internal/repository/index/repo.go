package index

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/flagdex/internal/db"
	"github.com/kailas-cloud/flagdex/internal/domain"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
)

// store is the consumer interface for the derived indices (ISP).
type store interface {
	ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZMember, error)
	ZCard(ctx context.Context, key string) (int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo reads the global and per-parent sorted indices. Writes go through the
// state repository so field and membership change together.
type Repo struct {
	store store
	ks    domain.Keyspace
}

// New creates an index repository over the given keyspace.
func New(s store, ks domain.Keyspace) *Repo {
	return &Repo{store: s, ks: ks}
}

// GlobalKey returns the key of the global index.
func (r *Repo) GlobalKey() string { return r.ks.GlobalIndex }

// Page lists one slice of an index by rank.
func (r *Repo) Page(ctx context.Context, q listing.Query) (listing.Page, error) {
	offset, err := q.Offset()
	if err != nil {
		return listing.Page{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	key := r.ks.GlobalIndex
	if q.Scope != "" {
		key = r.ks.ScopedIndexKey(q.Scope)
	}

	total, err := r.store.ZCard(ctx, key)
	if err != nil {
		return listing.Page{}, fmt.Errorf("zcard %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	if total == 0 || int64(offset) >= total {
		return listing.Page{Total: total}, nil
	}

	// one extra member tells whether another page exists
	start := int64(offset)
	members, err := r.store.ZRange(ctx, key, start, start+int64(limit), q.Order != listing.OrderOldest)
	if err != nil {
		return listing.Page{}, fmt.Errorf("zrange %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}

	items := make([]listing.Item, 0, min(limit, len(members)))
	for i, m := range members {
		if i >= limit {
			break
		}
		items = append(items, listing.Item{EntityID: m.Member, FlaggedAt: time.UnixMilli(int64(m.Score))})
	}

	var next string
	if len(members) > limit {
		next = strconv.Itoa(offset + limit)
	}
	return listing.Page{Items: items, NextCursor: next, Total: total}, nil
}

// Members returns the ids stored in one index key.
func (r *Repo) Members(ctx context.Context, key string) ([]string, error) {
	members, err := r.store.ZRange(ctx, key, 0, -1, false)
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member
	}
	return ids, nil
}

// ScopedKeys maps parent id to index key for every per-parent index present in the store.
func (r *Repo) ScopedKeys(ctx context.Context) (map[string]string, error) {
	keys, err := r.store.Scan(ctx, r.ks.ScopedIndexPattern())
	if err != nil {
		return nil, fmt.Errorf("scan scoped indices: %w: %w", domain.ErrStoreUnavailable, err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if parent, ok := r.ks.ParentFromIndexKey(k); ok {
			out[parent] = k
		}
	}
	return out, nil
}

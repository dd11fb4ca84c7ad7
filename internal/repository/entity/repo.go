package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/flagdex/internal/db"
	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
)

// store is the consumer interface for entity hashes (ISP).
type store interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo reads entity hashes for the indexer, the authorizer and the repair sweep.
type Repo struct {
	store store
	ks    domain.Keyspace
}

// New creates an entity repository over the given keyspace.
func New(s store, ks domain.Keyspace) *Repo {
	return &Repo{store: s, ks: ks}
}

// Get loads an entity. A missing hash or a hash without parent is ErrEntityNotFound.
func (r *Repo) Get(ctx context.Context, id string) (domentity.Entity, error) {
	key := r.ks.EntityKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domentity.Entity{}, fmt.Errorf("hgetall %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	if len(m) == 0 || m[r.ks.ParentField] == "" {
		return domentity.Entity{}, fmt.Errorf("entity %s: %w", id, domain.ErrEntityNotFound)
	}
	return parseHashFields(r.ks, id, m), nil
}

// ScopeOwner returns the owner of a parent scope, empty when the scope is unknown.
func (r *Repo) ScopeOwner(ctx context.Context, parentID string) (string, error) {
	key := r.ks.ScopeKey(parentID)
	uid, err := r.store.HGet(ctx, key, r.ks.OwnerField)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("hget %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return uid, nil
}

// ListIDs returns the ids of every entity hash in the keyspace.
func (r *Repo) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.ks.EntityPattern())
	if err != nil {
		return nil, fmt.Errorf("scan entities: %w: %w", domain.ErrStoreUnavailable, err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := r.ks.EntityIDFromKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

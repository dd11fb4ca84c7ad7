// Package state applies flag and lifecycle transitions atomically across the
// entity hash and both indices.
package state

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/flagdex/internal/db"
	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
)

// staleBatch bounds the members checked by one removeStale script run.
const staleBatch = 256

// store is the consumer interface for server-side scripts (ISP).
type store interface {
	Eval(ctx context.Context, script *db.Script, keys, args []string) ([]string, error)
}

// Repo runs the state transition scripts.
type Repo struct {
	store store
	ks    domain.Keyspace
}

// New creates a state repository over the given keyspace.
func New(s store, ks domain.Keyspace) *Repo {
	return &Repo{store: s, ks: ks}
}

// SetFlag writes the flag and moves the entity in or out of both indices.
// The score field is written only when setting, so a later restore can reuse it.
// A deleted entity keeps its flag but stays out of the indices.
func (r *Repo) SetFlag(ctx context.Context, id, parentID string, flagged bool, score int64) (domentity.Transition, error) {
	reply, err := r.eval(ctx, "set flag", setFlagScript,
		r.entityKeys(id, parentID),
		r.entityArgs(id, parentID, boolArg(flagged), strconv.FormatInt(score, 10)))
	if err != nil {
		return domentity.Transition{}, err
	}
	return parseTransition(reply)
}

// SetDeleted writes the soft-delete marker. Deleting drops the entity from both
// indices; restoring re-adds a flagged entity with its preserved score, or now.
func (r *Repo) SetDeleted(ctx context.Context, id, parentID string, deleted bool, now int64) (domentity.Transition, error) {
	reply, err := r.eval(ctx, "set deleted", setDeletedScript,
		r.entityKeys(id, parentID),
		r.entityArgs(id, parentID, boolArg(deleted), strconv.FormatInt(now, 10)))
	if err != nil {
		return domentity.Transition{}, err
	}
	return parseTransition(reply)
}

// Purge drops the entity from both indices and removes its hash.
func (r *Repo) Purge(ctx context.Context, id, parentID string) (domentity.Transition, error) {
	reply, err := r.eval(ctx, "purge", purgeScript,
		r.entityKeys(id, parentID),
		r.entityArgs(id, parentID))
	if err != nil {
		return domentity.Transition{}, err
	}
	return parseTransition(reply)
}

// Reconcile re-derives index membership from the stored fields and fixes it
// in place. The returned membership is what the script found before fixing.
func (r *Repo) Reconcile(ctx context.Context, id, parentID string, now int64) (domentity.Membership, error) {
	reply, err := r.eval(ctx, "reconcile", reconcileScript,
		r.entityKeys(id, parentID),
		r.entityArgs(id, parentID, strconv.FormatInt(now, 10)))
	if err != nil {
		return domentity.Membership{}, err
	}
	if len(reply) == 0 {
		return domentity.Membership{}, malformed(reply)
	}
	if reply[0] != "1" {
		return domentity.Membership{}, nil
	}
	if len(reply) != 4 {
		return domentity.Membership{}, malformed(reply)
	}
	return domentity.Membership{
		Found:    true,
		Indexed:  reply[1] == "1",
		InGlobal: reply[2] == "1",
		InScoped: reply[3] == "1",
	}, nil
}

// DropVanished removes an entity whose hash is gone from the global index.
// vanished is false when the hash exists again, in which case nothing is touched.
func (r *Repo) DropVanished(ctx context.Context, id string) (vanished, removed bool, err error) {
	reply, err := r.eval(ctx, "drop vanished", dropVanishedScript,
		[]string{r.ks.EntityKey(id), r.ks.GlobalIndex},
		[]string{r.ks.ParentField, id})
	if err != nil {
		return false, false, err
	}
	if len(reply) != 2 {
		return false, false, malformed(reply)
	}
	return reply[0] == "1", reply[1] == "1", nil
}

// RemoveStale removes from one index key every member whose hash is gone, is not
// indexable, or belongs to another parent. Each check and its removal run in
// the same script. An empty parentID marks the global index.
func (r *Repo) RemoveStale(ctx context.Context, key, parentID string, ids []string) ([]string, error) {
	var removed []string
	for start := 0; start < len(ids); start += staleBatch {
		batch := ids[start:min(start+staleBatch, len(ids))]

		keys := make([]string, 0, len(batch)+1)
		keys = append(keys, key)
		args := make([]string, 0, len(batch)+4)
		args = append(args, r.ks.ParentField, r.ks.FlagField, r.ks.DeletedField, parentID)
		for _, id := range batch {
			keys = append(keys, r.ks.EntityKey(id))
			args = append(args, id)
		}

		reply, err := r.eval(ctx, "remove stale", removeStaleScript, keys, args)
		if err != nil {
			return removed, err
		}
		removed = append(removed, reply...)
	}
	return removed, nil
}

func (r *Repo) entityKeys(id, parentID string) []string {
	return []string{r.ks.EntityKey(id), r.ks.GlobalIndex, r.ks.ScopedIndexKey(parentID)}
}

func (r *Repo) entityArgs(id, parentID string, extra ...string) []string {
	args := []string{r.ks.ParentField, r.ks.FlagField, r.ks.ScoreField, r.ks.DeletedField, id, parentID}
	return append(args, extra...)
}

func (r *Repo) eval(ctx context.Context, op string, script *db.Script, keys, args []string) ([]string, error) {
	reply, err := r.store.Eval(ctx, script, keys, args)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", op, keys[0], domain.ErrStoreUnavailable, err)
	}
	return reply, nil
}

func parseTransition(reply []string) (domentity.Transition, error) {
	if len(reply) == 0 {
		return domentity.Transition{}, malformed(reply)
	}
	if reply[0] != "1" {
		return domentity.Transition{}, nil
	}
	if len(reply) != 3 {
		return domentity.Transition{}, malformed(reply)
	}
	return domentity.Transition{
		Found:   true,
		Changed: reply[1] == "1",
		Flagged: reply[2] == "1",
	}, nil
}

func malformed(reply []string) error {
	return fmt.Errorf("unexpected script reply %q: %w", reply, domain.ErrStoreUnavailable)
}

func boolArg(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

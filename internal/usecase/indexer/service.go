package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/metrics"
)

// Index names used in repair reports and metrics.
const (
	IndexGlobal = "global"
	IndexScoped = "scoped"
)

// maxAttempts bounds retries when the parent changes between the read and the write.
const maxAttempts = 3

var errParentMoved = errors.New("entity moved to another parent during update")

// Service keeps the flag field and the derived indices consistent.
// The field is the source of truth. Every transition commits the field and both
// indices in one atomic step; Reconcile heals drift left by outside writers.
type Service struct {
	entities EntityReader
	state    StateRepository
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an indexer.
func New(entities EntityReader, state StateRepository, logger *zap.Logger) *Service {
	return &Service{
		entities: entities,
		state:    state,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the score clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Apply brings the entity flag to the desired value and updates both indices.
// Already-matching state is a no-op with Changed=false.
func (s *Service) Apply(ctx context.Context, id string, desired bool) (domentity.Outcome, error) {
	score := s.now().UnixMilli()
	e, t, err := s.transition(ctx, "set flag", id, func(parentID string) (domentity.Transition, error) {
		return s.state.SetFlag(ctx, id, parentID, desired, score)
	})
	if err != nil {
		return domentity.Outcome{}, err
	}
	out := outcome(&e, t.Flagged)
	out.Changed = t.Changed
	return out, nil
}

// Delete marks the entity deleted and drops it from both indices. The flag is kept.
func (s *Service) Delete(ctx context.Context, id string) (domentity.Outcome, error) {
	now := s.now().UnixMilli()
	e, t, err := s.transition(ctx, "set deleted", id, func(parentID string) (domentity.Transition, error) {
		return s.state.SetDeleted(ctx, id, parentID, true, now)
	})
	if err != nil {
		return domentity.Outcome{}, err
	}
	out := outcome(&e, t.Flagged)
	out.Changed = t.Changed
	return out, nil
}

// Restore clears the deleted marker and re-adds a flagged entity with its preserved score.
func (s *Service) Restore(ctx context.Context, id string) (domentity.Outcome, error) {
	now := s.now().UnixMilli()
	e, t, err := s.transition(ctx, "clear deleted", id, func(parentID string) (domentity.Transition, error) {
		return s.state.SetDeleted(ctx, id, parentID, false, now)
	})
	if err != nil {
		return domentity.Outcome{}, err
	}
	out := outcome(&e, t.Flagged)
	out.Changed = t.Changed
	return out, nil
}

// Purge drops the entity from both indices and removes its hash.
func (s *Service) Purge(ctx context.Context, id string) (domentity.Outcome, error) {
	e, _, err := s.transition(ctx, "purge", id, func(parentID string) (domentity.Transition, error) {
		return s.state.Purge(ctx, id, parentID)
	})
	if err != nil {
		return domentity.Outcome{}, err
	}
	out := outcome(&e, false)
	out.Changed = true
	return out, nil
}

// transition loads the entity and runs apply against its parent. When the parent
// changed before apply ran, nothing was written and the entity is reloaded.
func (s *Service) transition(
	ctx context.Context,
	op, id string,
	apply func(parentID string) (domentity.Transition, error),
) (domentity.Entity, domentity.Transition, error) {
	for range maxAttempts {
		e, err := s.entities.Get(ctx, id)
		if err != nil {
			return domentity.Entity{}, domentity.Transition{}, fmt.Errorf("get entity: %w", err)
		}
		t, err := apply(e.ParentID())
		if err != nil {
			return domentity.Entity{}, domentity.Transition{}, fmt.Errorf("%s: %w", op, err)
		}
		if t.Found {
			return e, t, nil
		}
	}
	return domentity.Entity{}, domentity.Transition{},
		fmt.Errorf("%s %s: %w: %w", op, id, errParentMoved, domain.ErrStoreUnavailable)
}

// Reconcile re-derives index membership from the stored fields and fixes drift.
func (s *Service) Reconcile(ctx context.Context, id string) (domentity.Repair, error) {
	rep := domentity.Repair{EntityID: id}

	for range maxAttempts {
		e, err := s.entities.Get(ctx, id)
		if errors.Is(err, domain.ErrEntityNotFound) {
			vanished, err := s.dropVanished(ctx, &rep)
			if err != nil || vanished {
				return rep, err
			}
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("get entity: %w", err)
		}

		m, err := s.state.Reconcile(ctx, id, e.ParentID(), s.now().UnixMilli())
		if err != nil {
			return rep, fmt.Errorf("reconcile: %w", err)
		}
		if !m.Found {
			continue
		}
		rep.Fixed = fixes(m)
		s.recordFixes(&rep)
		return rep, nil
	}
	return rep, fmt.Errorf("reconcile %s: %w: %w", id, errParentMoved, domain.ErrStoreUnavailable)
}

// dropVanished removes an entity whose hash is gone from the global index.
// The parent is unknown, so scoped indices are left to the repair sweep.
// It reports false when the hash exists again.
func (s *Service) dropVanished(ctx context.Context, rep *domentity.Repair) (bool, error) {
	vanished, removed, err := s.state.DropVanished(ctx, rep.EntityID)
	if err != nil {
		return false, fmt.Errorf("drop vanished: %w", err)
	}
	if !vanished {
		return false, nil
	}
	rep.Vanished = true
	if removed {
		rep.Fixed = append(rep.Fixed, IndexGlobal+":remove")
		s.recordFixes(rep)
	}
	return true, nil
}

func fixes(m domentity.Membership) []string {
	var out []string
	if m.Indexed {
		if !m.InGlobal {
			out = append(out, IndexGlobal+":add")
		}
		if !m.InScoped {
			out = append(out, IndexScoped+":add")
		}
		return out
	}
	if m.InGlobal {
		out = append(out, IndexGlobal+":remove")
	}
	if m.InScoped {
		out = append(out, IndexScoped+":remove")
	}
	return out
}

func (s *Service) recordFixes(rep *domentity.Repair) {
	for _, fix := range rep.Fixed {
		index, action, _ := strings.Cut(fix, ":")
		metrics.IndexRepairsTotal.WithLabelValues(index, action).Inc()
		s.logger.Warn("Index drift repaired",
			zap.String("entity_id", rep.EntityID),
			zap.String("fix", fix),
			zap.Bool("vanished", rep.Vanished),
			zap.Error(domain.ErrIndexInconsistent),
		)
	}
}

func outcome(e *domentity.Entity, flagged bool) domentity.Outcome {
	return domentity.Outcome{
		EntityID: e.ID(),
		ParentID: e.ParentID(),
		ScopeID:  e.ScopeID(),
		Flagged:  flagged,
	}
}

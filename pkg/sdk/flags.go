package flagdex

import (
	"context"
	"fmt"
	"time"

	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
)

// FlagService sets, clears and lists entity flags.
type FlagService struct {
	svc flagUseCase
	obs *observer
}

// Mark flags the entity on behalf of actorID.
func (s *FlagService) Mark(ctx context.Context, entityID, actorID string) (Outcome, error) {
	return s.Set(ctx, entityID, true, actorID)
}

// Unmark clears the flag on behalf of actorID.
func (s *FlagService) Unmark(ctx context.Context, entityID, actorID string) (Outcome, error) {
	return s.Set(ctx, entityID, false, actorID)
}

// Set brings the flag to the desired value. Setting the current value is a no-op.
func (s *FlagService) Set(ctx context.Context, entityID string, flagged bool, actorID string) (Outcome, error) {
	start := time.Now()
	out, err := s.svc.Set(ctx, entityID, flagged, actorID)
	res := fromInternalOutcome(out)
	s.obs.observeOutcome("flag.set", start, res, err)
	if err != nil {
		return Outcome{}, fmt.Errorf("set flag: %w", err)
	}
	return res, nil
}

// Toggle inverts the flag.
func (s *FlagService) Toggle(ctx context.Context, entityID, actorID string) (Outcome, error) {
	start := time.Now()
	out, err := s.svc.Toggle(ctx, entityID, actorID)
	res := fromInternalOutcome(out)
	s.obs.observeOutcome("flag.toggle", start, res, err)
	if err != nil {
		return Outcome{}, fmt.Errorf("toggle flag: %w", err)
	}
	return res, nil
}

// Status reads the flag without changing it.
func (s *FlagService) Status(ctx context.Context, entityID string) (_ Outcome, err error) {
	start := time.Now()
	defer func() { s.obs.observe("flag.status", start, err, "entity_id", entityID) }()

	out, err := s.svc.Status(ctx, entityID)
	if err != nil {
		return Outcome{}, fmt.Errorf("flag status: %w", err)
	}
	return fromInternalOutcome(out), nil
}

// List returns a page of flagged entities, newest first unless Order is Oldest.
func (s *FlagService) List(ctx context.Context, opts ListOptions) (_ Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("flag.list", start, err, "parent_id", opts.Parent) }()

	order, err := listing.ParseOrder(string(opts.Order))
	if err != nil {
		return Page{}, fmt.Errorf("list flagged: %w", err)
	}
	page, err := s.svc.List(ctx, listing.Query{
		Scope:  opts.Parent,
		Cursor: opts.Cursor,
		Limit:  opts.Limit,
		Order:  order,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list flagged: %w", err)
	}

	items := make([]Item, len(page.Items))
	for i, it := range page.Items {
		items[i] = Item{EntityID: it.EntityID, FlaggedAt: it.FlaggedAt}
	}
	return Page{Items: items, NextCursor: page.NextCursor, Total: page.Total}, nil
}

// Deleted removes a soft-deleted entity from the indices, keeping its flag.
func (s *FlagService) Deleted(ctx context.Context, entityID string) (Outcome, error) {
	return s.lifecycle(ctx, "entity.delete", entityID, s.svc.Delete)
}

// Restored re-indexes a restored entity if it is still flagged.
func (s *FlagService) Restored(ctx context.Context, entityID string) (Outcome, error) {
	return s.lifecycle(ctx, "entity.restore", entityID, s.svc.Restore)
}

// Purged drops a permanently removed entity and its index entries.
func (s *FlagService) Purged(ctx context.Context, entityID string) (Outcome, error) {
	return s.lifecycle(ctx, "entity.purge", entityID, s.svc.Purge)
}

func (s *FlagService) lifecycle(
	ctx context.Context,
	op, entityID string,
	fn func(context.Context, string) (domentity.Outcome, error),
) (Outcome, error) {
	start := time.Now()
	out, err := fn(ctx, entityID)
	res := fromInternalOutcome(out)
	s.obs.observeOutcome(op, start, res, err)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func fromInternalOutcome(o domentity.Outcome) Outcome {
	return Outcome{
		EntityID: o.EntityID,
		ParentID: o.ParentID,
		Flagged:  o.Flagged,
		Changed:  o.Changed,
	}
}

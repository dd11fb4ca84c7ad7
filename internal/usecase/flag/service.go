package flag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/event"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
	"github.com/kailas-cloud/flagdex/internal/metrics"
)

// guestActor is the platform's uid for unauthenticated visitors.
const guestActor = "0"

// Operation names used in metrics.
const (
	opSet     = "set"
	opToggle  = "toggle"
	opStatus  = "status"
	opList    = "list"
	opDelete  = "delete"
	opRestore = "restore"
	opPurge   = "purge"
)

// Service handles flag changes requested by actors.
type Service struct {
	entities        EntityReader
	indexer         Indexer
	index           IndexReader
	authz           Authorizer
	notifier        Notifier
	opTimeout       time.Duration
	defaultPageSize int
	maxPageSize     int
}

// New creates a flag service.
func New(entities EntityReader, indexer Indexer, index IndexReader, authz Authorizer, notifier Notifier) *Service {
	return &Service{
		entities:        entities,
		indexer:         indexer,
		index:           index,
		authz:           authz,
		notifier:        notifier,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithOpTimeout bounds every operation on top of the caller's deadline. Zero disables it.
func (s *Service) WithOpTimeout(d time.Duration) *Service {
	s.opTimeout = d
	return s
}

// Set brings the entity flag to the desired value on behalf of actorID.
func (s *Service) Set(ctx context.Context, entityID string, desired bool, actorID string) (domentity.Outcome, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.change(ctx, entityID, actorID, func(*domentity.Entity) bool { return desired })
	observe(opSet, start, out, err)
	return out, normalize(err)
}

// Toggle negates the stored flag. Concurrent toggles resolve last-writer-wins.
func (s *Service) Toggle(ctx context.Context, entityID, actorID string) (domentity.Outcome, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.change(ctx, entityID, actorID, func(e *domentity.Entity) bool { return !e.Flagged() })
	observe(opToggle, start, out, err)
	return out, normalize(err)
}

// Status returns the stored flag without changing it.
func (s *Service) Status(ctx context.Context, entityID string) (domentity.Outcome, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := s.entities.Get(ctx, entityID)
	if err != nil {
		err = fmt.Errorf("get entity: %w", err)
		observe(opStatus, start, domentity.Outcome{}, err)
		return domentity.Outcome{}, normalize(err)
	}
	out := domentity.Outcome{
		EntityID: e.ID(),
		ParentID: e.ParentID(),
		ScopeID:  e.ScopeID(),
		Flagged:  e.Flagged(),
	}
	observe(opStatus, start, out, nil)
	return out, nil
}

// List returns one page of the global index, or of a parent's index when q.Scope is set.
func (s *Service) List(ctx context.Context, q listing.Query) (listing.Page, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if q.Limit <= 0 {
		q.Limit = s.defaultPageSize
	}
	if q.Limit > s.maxPageSize {
		q.Limit = s.maxPageSize
	}
	if q.Order == "" {
		q.Order = listing.OrderNewest
	}

	page, err := s.index.Page(ctx, q)
	if err != nil {
		err = fmt.Errorf("page index: %w", err)
	}
	observe(opList, start, domentity.Outcome{}, err)
	return page, normalize(err)
}

// Delete is the entity-deleted lifecycle hook.
func (s *Service) Delete(ctx context.Context, entityID string) (domentity.Outcome, error) {
	return s.lifecycle(ctx, opDelete, entityID, s.indexer.Delete)
}

// Restore is the entity-restored lifecycle hook.
func (s *Service) Restore(ctx context.Context, entityID string) (domentity.Outcome, error) {
	return s.lifecycle(ctx, opRestore, entityID, s.indexer.Restore)
}

// Purge is the entity-purged lifecycle hook.
func (s *Service) Purge(ctx context.Context, entityID string) (domentity.Outcome, error) {
	return s.lifecycle(ctx, opPurge, entityID, s.indexer.Purge)
}

func (s *Service) change(
	ctx context.Context, entityID, actorID string, desired func(*domentity.Entity) bool,
) (domentity.Outcome, error) {
	if actorID == "" || actorID == guestActor {
		return domentity.Outcome{}, domain.ErrNotAuthenticated
	}

	e, err := s.entities.Get(ctx, entityID)
	if err != nil {
		return domentity.Outcome{}, fmt.Errorf("get entity: %w", err)
	}

	ok, err := s.authz.CanFlag(ctx, actorID, &e)
	if err != nil {
		return domentity.Outcome{}, fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		return domentity.Outcome{}, domain.ErrForbidden
	}

	out, err := s.indexer.Apply(ctx, entityID, desired(&e))
	if err != nil {
		return out, fmt.Errorf("apply flag: %w", err)
	}

	if out.Changed {
		s.notifier.Publish(ctx, event.Change{
			EntityID: out.EntityID,
			ParentID: out.ParentID,
			ScopeID:  out.ScopeID,
			Flagged:  out.Flagged,
			ActorID:  actorID,
		})
	}
	return out, nil
}

func (s *Service) lifecycle(
	ctx context.Context, op, entityID string,
	fn func(context.Context, string) (domentity.Outcome, error),
) (domentity.Outcome, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := fn(ctx, entityID)
	if err != nil {
		err = fmt.Errorf("%s entity: %w", op, err)
	}
	observe(op, start, out, err)
	return out, normalize(err)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// normalize maps deadline and cancellation to ErrStoreUnavailable.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}

func observe(op string, start time.Time, out domentity.Outcome, err error) {
	result := "noop"
	switch {
	case err != nil:
		result = "error"
	case out.Changed:
		result = "changed"
	}
	metrics.FlagOperationsTotal.WithLabelValues(op, result).Inc()
	metrics.FlagOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

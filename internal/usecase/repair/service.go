package repair

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/metrics"
)

// DefaultConcurrency bounds parallel reconciliations.
const DefaultConcurrency = 8

// Report summarizes one sweep.
type Report struct {
	Scanned int
	Fixed   int
	Failed  int
	Stale   int
}

// Service sweeps the whole keyspace and restores index consistency.
type Service struct {
	entities    EntityLister
	reconciler  Reconciler
	index       IndexScanner
	stale       StaleRemover
	logger      *zap.Logger
	concurrency int

	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

// New creates a repairer.
func New(
	entities EntityLister,
	reconciler Reconciler,
	index IndexScanner,
	stale StaleRemover,
	logger *zap.Logger,
) *Service {
	return &Service{
		entities:    entities,
		reconciler:  reconciler,
		index:       index,
		stale:       stale,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// WithConcurrency sets the number of parallel reconciliations.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Reconcile repairs a single entity.
func (s *Service) Reconcile(ctx context.Context, id string) (domentity.Repair, error) {
	rep, err := s.reconciler.Reconcile(ctx, id)
	if err != nil {
		return rep, fmt.Errorf("reconcile %s: %w", id, err)
	}
	return rep, nil
}

// Run reconciles every entity, then drops index members that no longer
// belong in their index. Per-entity failures are counted, not returned.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report, err := s.run(ctx)

	canceled := canceledByCaller(ctx, err)
	result := "ok"
	switch {
	case canceled:
		result = "canceled"
	case err != nil:
		result = "error"
	}
	metrics.RepairRunsTotal.WithLabelValues(result).Inc()
	metrics.RepairLastRunEntities.WithLabelValues("scanned").Set(float64(report.Scanned))
	metrics.RepairLastRunEntities.WithLabelValues("fixed").Set(float64(report.Fixed))
	metrics.RepairLastRunEntities.WithLabelValues("failed").Set(float64(report.Failed))
	metrics.RepairLastRunEntities.WithLabelValues("stale").Set(float64(report.Stale))

	// a caller that went away says nothing about store health
	if !canceled {
		s.mu.Lock()
		s.lastErr = err
		s.lastRun = start
		s.mu.Unlock()
	}

	s.logger.Info("Repair sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("fixed", report.Fixed),
		zap.Int("failed", report.Failed),
		zap.Int("stale", report.Stale),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return report, err
}

// LastError returns the error of the latest sweep, nil before the first one.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start runs a sweep every interval until ctx is canceled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn("Periodic repair failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *Service) run(ctx context.Context) (Report, error) {
	var report Report

	ids, err := s.entities.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list entities: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			rep, err := s.reconciler.Reconcile(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			report.Scanned++
			switch {
			case err != nil:
				report.Failed++
				s.logger.Warn("Reconcile failed", zap.String("entity_id", id), zap.Error(err))
			case len(rep.Fixed) > 0:
				report.Fixed++
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("reconcile entities: %w", err)
	}

	stale, err := s.sweepStale(ctx)
	report.Stale = stale
	if err != nil {
		return report, fmt.Errorf("sweep stale members: %w", err)
	}
	return report, nil
}

// sweepStale removes members whose entity is gone, not indexable, or owned by another parent.
func (s *Service) sweepStale(ctx context.Context) (int, error) {
	scoped, err := s.index.ScopedKeys(ctx)
	if err != nil {
		return 0, err
	}

	parents := make([]string, 0, len(scoped))
	for p := range scoped {
		parents = append(parents, p)
	}
	sort.Strings(parents)

	total, err := s.sweepKey(ctx, s.index.GlobalKey(), "")
	if err != nil {
		return total, err
	}
	for _, p := range parents {
		n, err := s.sweepKey(ctx, scoped[p], p)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Service) sweepKey(ctx context.Context, key, parentID string) (int, error) {
	members, err := s.index.Members(ctx, key)
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	removed, err := s.stale.RemoveStale(ctx, key, parentID, members)
	index := "scoped"
	if parentID == "" {
		index = "global"
	}
	for _, id := range removed {
		metrics.IndexRepairsTotal.WithLabelValues(index, "remove").Inc()
		s.logger.Warn("Stale index member removed",
			zap.String("index", key),
			zap.String("entity_id", id),
			zap.Error(domain.ErrIndexInconsistent),
		)
	}
	if err != nil {
		return len(removed), fmt.Errorf("remove stale members of %s: %w", key, err)
	}
	return len(removed), nil
}

func canceledByCaller(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/domain/event"
	"github.com/kailas-cloud/flagdex/internal/metrics"
)

// DefaultPublishTimeout bounds one asynchronous delivery.
const DefaultPublishTimeout = 2 * time.Second

// Service publishes change events best-effort in the background.
// Publish never blocks the caller and never reports failure.
type Service struct {
	bc        Broadcaster
	logger    *zap.Logger
	timeout   time.Duration
	eventName string

	mu    sync.RWMutex
	hooks []Hook

	wg sync.WaitGroup
}

// New creates a notifier.
func New(bc Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		bc:        bc,
		logger:    logger,
		timeout:   DefaultPublishTimeout,
		eventName: event.DefaultName,
	}
}

// WithTimeout sets the per-delivery deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithEventName overrides the event name sent to clients.
func (s *Service) WithEventName(name string) *Service {
	if name != "" {
		s.eventName = name
	}
	return s
}

// OnChange registers a hook invoked after every published change.
func (s *Service) OnChange(h Hook) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// Publish stamps the event and schedules its delivery. The request context
// only contributes values; its cancellation does not abort delivery.
func (s *Service) Publish(ctx context.Context, ev event.Change) {
	ev.ID = uuid.NewString()
	ev.Name = s.eventName
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	s.mu.RLock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.RUnlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.deliver(deliverCtx, ev, hooks)
	}()
}

// Wait blocks until every scheduled delivery has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) deliver(ctx context.Context, ev event.Change, hooks []Hook) {
	for _, room := range s.bc.Rooms(ev) {
		n, err := s.bc.Publish(ctx, room, ev)
		if err != nil {
			metrics.NotifyPublishTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Change event publish failed",
				zap.String("event_id", ev.ID),
				zap.String("room", room),
				zap.String("entity_id", ev.EntityID),
				zap.Error(err),
			)
			continue
		}
		metrics.NotifyPublishTotal.WithLabelValues("ok").Inc()
		s.logger.Debug("Change event published",
			zap.String("event_id", ev.ID),
			zap.String("room", room),
			zap.Int64("receivers", n),
		)
	}

	for i, h := range hooks {
		if err := runHook(ctx, h, ev); err != nil {
			metrics.NotifyHookFailuresTotal.Inc()
			s.logger.Error("Change hook failed",
				zap.String("event_id", ev.ID),
				zap.Int("hook", i),
				zap.Error(err),
			)
		}
	}
}

func runHook(ctx context.Context, h Hook, ev event.Change) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook panic: %v", rec)
		}
	}()
	h(ctx, ev)
	return nil
}

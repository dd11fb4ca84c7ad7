package flagdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/db"
	dbRedis "github.com/kailas-cloud/flagdex/internal/db/redis"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/event"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
	"github.com/kailas-cloud/flagdex/internal/repository/broadcast"
	entityrepo "github.com/kailas-cloud/flagdex/internal/repository/entity"
	indexrepo "github.com/kailas-cloud/flagdex/internal/repository/index"
	staterepo "github.com/kailas-cloud/flagdex/internal/repository/state"
	"github.com/kailas-cloud/flagdex/internal/usecase/authz"
	flaguc "github.com/kailas-cloud/flagdex/internal/usecase/flag"
	healthuc "github.com/kailas-cloud/flagdex/internal/usecase/health"
	"github.com/kailas-cloud/flagdex/internal/usecase/indexer"
	"github.com/kailas-cloud/flagdex/internal/usecase/notify"
	repairuc "github.com/kailas-cloud/flagdex/internal/usecase/repair"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for mocks in tests.
type flagUseCase interface {
	Set(ctx context.Context, entityID string, desired bool, actorID string) (domentity.Outcome, error)
	Toggle(ctx context.Context, entityID, actorID string) (domentity.Outcome, error)
	Status(ctx context.Context, entityID string) (domentity.Outcome, error)
	List(ctx context.Context, q listing.Query) (listing.Page, error)
	Delete(ctx context.Context, entityID string) (domentity.Outcome, error)
	Restore(ctx context.Context, entityID string) (domentity.Outcome, error)
	Purge(ctx context.Context, entityID string) (domentity.Outcome, error)
}

type repairUseCase interface {
	Run(ctx context.Context) (repairuc.Report, error)
	Reconcile(ctx context.Context, id string) (domentity.Repair, error)
}

type notifier interface {
	OnChange(h notify.Hook)
	Wait()
}

// Client is the flagdex SDK entry point.
type Client struct {
	store     db.Store
	flagSvc   flagUseCase
	repairSvc repairUseCase
	healthSvc healthUseCase
	notifier  notifier
	obs       *observer
}

// New creates a flagdex Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	ks := cfg.keyspace.resolve()
	if err := ks.Validate(); err != nil {
		return nil, fmt.Errorf("flagdex: %w", err)
	}

	store := cfg.store
	if store == nil {
		if len(cfg.addrs) == 0 {
			return nil, errors.New("flagdex: database address required (use WithValkey or WithRedis)")
		}
		var err error
		if store, err = createStore(cfg); err != nil {
			return nil, err
		}
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("flagdex: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			DB:       cfg.db,
		})
		if err != nil {
			return nil, fmt.Errorf("flagdex: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("flagdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	ks := cfg.keyspace.resolve()
	logger := zap.NewNop()

	entities := entityrepo.New(store, ks)
	index := indexrepo.New(store, ks)
	state := staterepo.New(store, ks)

	ixr := indexer.New(entities, state, logger)
	ntf := notify.New(broadcast.New(store, cfg.parentRoom, cfg.scopeRoom), logger).
		WithTimeout(cfg.publishTimeout).
		WithEventName(cfg.eventName)

	flagSvc := flaguc.New(entities, ixr, index, authz.New(entities, cfg.moderators), ntf).
		WithOpTimeout(cfg.opTimeout)
	if cfg.defaultPageSize > 0 || cfg.maxPageSize > 0 {
		flagSvc = flagSvc.WithPagination(cfg.defaultPageSize, cfg.maxPageSize)
	}

	repairSvc := repairuc.New(entities, ixr, index, state, logger)

	return &Client{
		store:     store,
		flagSvc:   flagSvc,
		repairSvc: repairSvc,
		healthSvc: healthuc.New(store, repairSvc),
		notifier:  ntf,
		obs:       obs,
	}
}

// Close waits for pending broadcasts and releases all resources.
func (c *Client) Close() {
	if c.notifier != nil {
		c.notifier.Wait()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Flags returns the flag service.
func (c *Client) Flags() *FlagService {
	return &FlagService{svc: c.flagSvc, obs: c.obs}
}

// Repair returns the index repair service.
func (c *Client) Repair() *RepairService {
	return &RepairService{svc: c.repairSvc, obs: c.obs}
}

// OnChange registers a hook called after every committed change.
// Hooks run asynchronously; a panicking hook does not affect others.
func (c *Client) OnChange(fn func(ctx context.Context, ev ChangeEvent)) {
	c.notifier.OnChange(func(ctx context.Context, ev event.Change) {
		fn(ctx, ChangeEvent{
			ID:       ev.ID,
			Name:     ev.Name,
			EntityID: ev.EntityID,
			ParentID: ev.ParentID,
			ScopeID:  ev.ScopeID,
			Flagged:  ev.Flagged,
			ActorID:  ev.ActorID,
			At:       ev.At,
		})
	})
}

// Wait blocks until every broadcast started so far has finished.
func (c *Client) Wait() {
	c.notifier.Wait()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/config"
	"github.com/kailas-cloud/flagdex/internal/db"
	"github.com/kailas-cloud/flagdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/flagdex/internal/db/redis"
	"github.com/kailas-cloud/flagdex/internal/domain/event"
	logpkg "github.com/kailas-cloud/flagdex/internal/logger"
	"github.com/kailas-cloud/flagdex/internal/metrics"
	"github.com/kailas-cloud/flagdex/internal/repository/broadcast"
	entityrepo "github.com/kailas-cloud/flagdex/internal/repository/entity"
	indexrepo "github.com/kailas-cloud/flagdex/internal/repository/index"
	staterepo "github.com/kailas-cloud/flagdex/internal/repository/state"
	chiTransport "github.com/kailas-cloud/flagdex/internal/transport/chi"
	"github.com/kailas-cloud/flagdex/internal/usecase/authz"
	flaguc "github.com/kailas-cloud/flagdex/internal/usecase/flag"
	healthuc "github.com/kailas-cloud/flagdex/internal/usecase/health"
	"github.com/kailas-cloud/flagdex/internal/usecase/indexer"
	"github.com/kailas-cloud/flagdex/internal/usecase/notify"
	repairuc "github.com/kailas-cloud/flagdex/internal/usecase/repair"
	"github.com/kailas-cloud/flagdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger("api", env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting flagdex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register flag metrics explicitly (no init())
	metrics.RegisterFlagMetrics()

	ks := cfg.KeyspaceSettings()

	// Repositories
	entities := entityrepo.New(store, ks)
	index := indexrepo.New(store, ks)
	state := staterepo.New(store, ks)
	rooms := broadcast.New(store, cfg.Notify.ParentRoom, cfg.Notify.ScopeRoom)

	// Use case services
	ixr := indexer.New(entities, state, logger)
	notifier := notify.New(rooms, logger).
		WithTimeout(cfg.PublishTimeout()).
		WithEventName(cfg.Notify.EventName)
	notifier.OnChange(logChange)

	policy := authz.New(entities, cfg.Authz.Moderators)
	flagSvc := flaguc.New(entities, ixr, index, policy, notifier).
		WithPagination(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize).
		WithOpTimeout(cfg.OpTimeout())

	repairSvc := repairuc.New(entities, ixr, index, state, logger).
		WithConcurrency(cfg.Repair.Concurrency)
	repairSvc.Start(ctx, cfg.RepairInterval())

	healthSvc := healthuc.New(store, repairSvc)

	// Create chi server
	server := chiTransport.NewServer(flagSvc, repairSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// stop the repair loop, then let in-flight broadcasts finish
	stop()
	notifier.Wait()

	logger.Info("Server stopped gracefully")
}

// openStore creates the database store for the configured driver.
func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
		}
		return store, nil
	case config.DriverMemory:
		store, err := memory.New()
		if err != nil {
			return nil, fmt.Errorf("memory store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// logChange is the default change hook: one debug line per committed change
// on the logger of the request that made it.
func logChange(ctx context.Context, ev event.Change) {
	logpkg.FromContext(ctx).Debug("flag changed",
		zap.String("event_id", ev.ID),
		zap.String("entity_id", ev.EntityID),
		zap.String("parent_id", ev.ParentID),
		zap.Bool("flagged", ev.Flagged),
		zap.String("actor_id", ev.ActorID),
	)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorResponseCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("operation", metrics.Operation(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("actor_id", r.Header.Get(chiTransport.ActorHeader)),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

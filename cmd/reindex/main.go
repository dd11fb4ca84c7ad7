// Command reindex runs one repair sweep over the flag indices and exits.
// It exits non-zero when the sweep fails or any entity could not be reconciled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/config"
	dbRedis "github.com/kailas-cloud/flagdex/internal/db/redis"
	logpkg "github.com/kailas-cloud/flagdex/internal/logger"
	"github.com/kailas-cloud/flagdex/internal/metrics"
	entityrepo "github.com/kailas-cloud/flagdex/internal/repository/entity"
	indexrepo "github.com/kailas-cloud/flagdex/internal/repository/index"
	staterepo "github.com/kailas-cloud/flagdex/internal/repository/state"
	"github.com/kailas-cloud/flagdex/internal/usecase/indexer"
	repairuc "github.com/kailas-cloud/flagdex/internal/usecase/repair"
	"github.com/kailas-cloud/flagdex/internal/version"
)

func main() {
	entityID := flag.String("entity", "", "reconcile a single entity instead of sweeping")
	concurrency := flag.Int("concurrency", 0, "parallel reconciliations (default from config)")
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if cfg.Database.Driver == config.DriverMemory {
		fmt.Fprintln(os.Stderr, "reindex needs a persistent store, database.driver is memory")
		os.Exit(1)
	}

	logger, err := logpkg.NewLogger("reindex", env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	os.Exit(run(cfg, logger, *entityID, *concurrency))
}

func run(cfg config.Config, logger *zap.Logger, entityID string, concurrency int) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Error("Failed to create database store", zap.Error(err))
		return 1
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Error("Database not ready", zap.Error(err))
		return 1
	}

	metrics.RegisterFlagMetrics()

	ks := cfg.KeyspaceSettings()
	entities := entityrepo.New(store, ks)
	index := indexrepo.New(store, ks)
	state := staterepo.New(store, ks)
	if concurrency <= 0 {
		concurrency = cfg.Repair.Concurrency
	}
	svc := repairuc.New(entities, indexer.New(entities, state, logger), index, state, logger).
		WithConcurrency(concurrency)

	if entityID != "" {
		rep, err := svc.Reconcile(ctx, entityID)
		if err != nil {
			logger.Error("Reconcile failed", zap.String("entity_id", entityID), zap.Error(err))
			return 1
		}
		fmt.Printf("entity=%s vanished=%t fixed=%v\n", rep.EntityID, rep.Vanished, rep.Fixed)
		return 0
	}

	start := time.Now()
	report, err := svc.Run(ctx)
	fmt.Printf("scanned=%d fixed=%d failed=%d stale=%d elapsed=%s\n",
		report.Scanned, report.Fixed, report.Failed, report.Stale, time.Since(start).Round(time.Millisecond))
	if err != nil {
		logger.Error("Repair sweep failed", zap.Error(err))
		return 1
	}
	if report.Failed > 0 {
		return 1
	}
	return 0
}

package commands

import (
	"context"
	"fmt"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/internal/matrix"
	"github.com/wonny/incc/backend/internal/registry"
	"github.com/wonny/incc/backend/pkg/config"
	"github.com/wonny/incc/backend/pkg/database"
	"github.com/wonny/incc/backend/pkg/httputil"
	"github.com/wonny/incc/backend/pkg/logger"
	"github.com/wonny/incc/backend/pkg/redis"
)

// app holds the wired dependencies shared by the commands.
// db, mirror and registry are nil when DATABASE_URL is not set.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *incc.Store
	redis    *redis.Client
	db       *database.DB
	mirror   *incc.PGMirror
	registry *registry.Repository
	adjuster *costing.Adjuster
	builder  *matrix.Builder
}

// newApp loads config and wires the INCC store. requireDB makes a missing
// DATABASE_URL an error instead of running file-only.
func newApp(ctx context.Context, requireDB bool) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if requireDB {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Connect to Redis (no-op client when disabled)
	a.redis, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 4. Connect to database (optional)
	if cfg.Database.URL != "" {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.mirror = incc.NewPGMirror(a.db.Pool)
		if err := a.mirror.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure incc schema: %w", err)
		}
		a.registry = registry.NewRepository(a.db.Pool)
		if err := a.registry.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure registry schema: %w", err)
		}
		log.Info("Connected to database")
	}

	// 5. Create publisher source
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.INCC.FetchTimeout).
		WithRateLimit(cfg.INCC.RequestsPerSecond)
	source := incc.NewSecoviSource(httpClient, cfg.INCC.SourceURL, log)

	// 6. Create store
	opts := incc.StoreOptions{
		FetchTimeout: cfg.INCC.FetchTimeout,
		LockWait:     cfg.INCC.LockWait,
	}
	if a.mirror != nil {
		opts.Mirror = a.mirror
	}
	a.store = incc.NewStore(cfg.INCC.SeriesPath, source, a.locker(), log, opts)

	// 7. Create adjuster and matrix builder
	a.adjuster = costing.NewAdjuster()
	a.builder = matrix.NewBuilder(a.adjuster, log)

	return a, nil
}

// locker picks the regeneration lock backend
func (a *app) locker() incc.Locker {
	path := a.cfg.INCC.SeriesPath
	if a.cfg.INCC.LockBackend == config.LockBackendRedis && a.redis.Enabled() {
		return redis.NewLock(a.redis, redis.INCCRegenerationKey(path), a.cfg.INCC.LockStaleAfter)
	}
	return incc.NewFileLock(incc.LockPathFor(path), a.cfg.INCC.LockStaleAfter)
}

// Close releases database and redis connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

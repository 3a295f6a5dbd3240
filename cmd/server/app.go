package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/backup"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/fallback"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/matching"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/search"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/config"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/eraktkosh"
	firestoreclient "github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/firestore"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/postgres"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/redis"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/sqlite"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
)

const (
	serviceName      = "bloodaid-api"
	leaseTTL         = 30 * time.Minute
	maxCycleDuration = 25 * time.Minute
	primaryMaxConns  = 10
	primaryTimeout   = 5 * time.Second
	portalMaxRetries = 2
)

// app holds every wired dependency. close releases them in reverse order.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	backup  *backup.Service
	search  *search.Service
	closers []func() error
}

func loadConfig() (config.Config, *zap.Logger, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config load: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger init: %w", err)
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	source := eraktkosh.New(eraktkosh.Config{
		BaseURL:    cfg.ERaktKoshBaseURL,
		Mock:       cfg.ERaktKoshMock,
		Timeout:    cfg.FetchTimeout,
		MaxRetries: portalMaxRetries,
	}, logger.Named("eraktkosh"))

	a.backup = backup.NewService(
		source,
		store,
		backup.NewRefreshGuard(a.openLease(ctx), logger),
		backup.NewOrchestrator(cfg.ScrapeWorkers, logger),
		backup.Config{
			States:            cfg.ScrapeStates,
			CacheDuration:     cfg.CacheDuration,
			FetchTimeout:      cfg.FetchTimeout,
			DefaultDonorGroup: cfg.DefaultDonorBloodGroup,
			MaxCycleDuration:  maxCycleDuration,
		},
		logger.Named("backup"),
	)

	a.search = search.NewService(
		a.openPrimary(ctx),
		a.backup,
		fallback.NewCoordinator(primaryTimeout, logger.Named("fallback")),
		matching.NewMatcher(nil),
		logger.Named("search"),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (backup.Store, error) {
	switch a.cfg.CacheBackend {
	case config.BackendSQLite:
		db, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.logger.Info("backup cache on sqlite", zap.String("path", a.cfg.SQLitePath))
		return repository.NewSQLiteStore(db), nil
	default:
		client, credsSource, err := firestoreclient.New(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("firestore init: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		if err := firestoreclient.Ping(ctx, client, repository.MetricsCollection); err != nil {
			return nil, fmt.Errorf("firestore ping: %w", err)
		}
		a.logger.Info("backup cache on firestore",
			zap.String("project", a.cfg.FirebaseProjectID),
			zap.String("credentials", credsSource))
		return repository.NewFirestoreStore(client), nil
	}
}

// openLease returns nil when Redis is not configured; the guard then only serializes
// refreshes within this process.
func (a *app) openLease(ctx context.Context) backup.Lease {
	if a.cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	a.closers = append(a.closers, client.Close)
	if err := redis.Ping(ctx, client); err != nil {
		a.logger.Warn("redis unreachable, refresh lease will be retried per cycle",
			zap.String("addr", a.cfg.RedisAddr), zap.Error(err))
	}
	return redis.NewLease(client, redis.DefaultLeaseKey, leaseTTL)
}

// openPrimary returns nil when the primary database is missing or unreachable, so donor
// lookups are served from the backup cache.
func (a *app) openPrimary(ctx context.Context) search.PrimaryDonors {
	if a.cfg.PrimaryDatabaseURL == "" {
		a.logger.Warn("PRIMARY_DATABASE_URL not set, donor lookups use the backup cache only")
		return nil
	}
	db, err := postgres.Open(ctx, a.cfg.PrimaryDatabaseURL, primaryMaxConns)
	if err != nil {
		a.logger.Error("primary database unavailable, donor lookups use the backup cache only", zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, db.Close)
	return repository.NewPrimaryDonorRepository(db)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close dependency", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// Package main is the entry point for the currency rate tracker service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copperexchange/controllers/internal/config"
	"github.com/copperexchange/controllers/internal/metrics"
	"github.com/copperexchange/controllers/internal/provider"
	"github.com/copperexchange/controllers/internal/repository"
	"github.com/copperexchange/controllers/internal/tracker"
	"github.com/copperexchange/controllers/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg         *config.Config
	logger      *zap.SugaredLogger
	db          *sql.DB
	rdbCache    *redis.Client
	rdbAsynq    *redis.Client
	asynqClient *asynq.Client
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	rateTracker *tracker.RateTracker
	httpServer  *http.Server
}

// NewApp initializes all dependencies and returns a ready-to-run App.
// The rate tracker starts polling as soon as it is constructed.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases database and Redis connections
func (app *App) close() error {
	var errs []error
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdbAsynq != nil {
		if err := app.rdbAsynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis asynq close: %w", err))
		}
	}
	if app.rdbCache != nil {
		if err := app.rdbCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis cache close: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	db, err := repository.NewPostgresDB(&app.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to Postgres: %w", err)
	}
	app.db = db

	if err := repository.RunMigrations(app.db, app.logger); err != nil {
		return fmt.Errorf("run DB migrations: %w", err)
	}

	app.rdbCache = redis.NewClient(&redis.Options{
		Addr: app.cfg.Redis.CacheAddr,
	})
	if err := app.rdbCache.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("connect to Redis (cache, %s): %w", app.cfg.Redis.CacheAddr, err)
	}
	app.logger.Infow("Connected to Redis cache", "addr", app.cfg.Redis.CacheAddr)

	return nil
}

func (app *App) initServices() error {
	redisOpt := asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr}

	app.rdbAsynq = redis.NewClient(&redis.Options{Addr: app.cfg.Redis.AsynqAddr})
	app.asynqClient = asynq.NewClient(redisOpt)
	app.asynqServer = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:              app.cfg.Worker.Concurrency,
			DelayedTaskCheckInterval: time.Duration(app.cfg.Worker.CheckIntervalSec) * time.Second,
			TaskCheckInterval:        time.Duration(app.cfg.Worker.CheckIntervalSec) * time.Second,
		},
	)
	app.logger.Infow("Asynq configured", "addr", app.cfg.Redis.AsynqAddr)

	snapshotRepo := repository.NewPostgresSnapshotRepository(app.db)
	enqueuer := worker.NewSnapshotEnqueuer(
		app.asynqClient,
		app.cfg.Worker.MaxRetry,
		time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
	)

	initialState, err := app.initialTrackerState(snapshotRepo)
	if err != nil {
		return err
	}

	rateTracker, err := tracker.New(tracker.Options{
		Fetcher:        newRateFetcher(app.cfg, app.rdbCache),
		IncludeUSDRate: app.cfg.Tracker.IncludeUSDRate,
		Interval:       time.Duration(app.cfg.Tracker.IntervalMS) * time.Millisecond,
		InitialState:   initialState,
		Logger:         app.logger,
		Metrics:        metrics.New(),
	})
	if err != nil {
		return fmt.Errorf("create rate tracker: %w", err)
	}
	app.rateTracker = rateTracker

	// Every state commit is persisted as a snapshot through the task queue,
	// keeping DB writes off the tracker's commit path.
	rateTracker.Subscribe(func(change tracker.StateChange) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := enqueuer.EnqueueSnapshot(ctx, change.Current); err != nil {
			app.logger.Warnw("Failed to enqueue snapshot task", "error", err)
		}
	})

	app.asynqMux = asynq.NewServeMux()
	app.asynqMux.HandleFunc(worker.TaskTypePersistSnapshot, worker.NewSnapshotPersistHandler(snapshotRepo, app.logger))

	app.initHTTP(rateTracker)
	return nil
}

// initialTrackerState seeds the tracker from the latest persisted snapshot,
// falling back to the configured pair on a fresh database.
func (app *App) initialTrackerState(repo repository.SnapshotRepository) (*tracker.ConversionState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := repo.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if snap == nil {
		return &tracker.ConversionState{
			CurrentCurrency: app.cfg.Tracker.Currency,
			NativeCurrency:  app.cfg.Tracker.NativeCurrency,
		}, nil
	}

	app.logger.Infow("Restored conversion state from snapshot",
		"pair", snap.NativeCurrency+"/"+snap.CurrentCurrency,
		"rate", snap.ConversionRate,
		"saved_at", snap.CreatedAt,
	)
	return &tracker.ConversionState{
		ConversionDate:         snap.ConversionDate,
		ConversionRate:         snap.ConversionRate,
		CurrentCurrency:        snap.CurrentCurrency,
		NativeCurrency:         snap.NativeCurrency,
		PendingCurrentCurrency: snap.PendingCurrentCurrency,
		PendingNativeCurrency:  snap.PendingNativeCurrency,
		USDConversionRate:      snap.USDConversionRate,
	}, nil
}

// newRateFetcher builds the provider chain: each HTTP source behind a short
// Redis cache, the sources behind a sequential fallback facade.
func newRateFetcher(cfg *config.Config, cache *redis.Client) provider.RateFetcher {
	ttl := time.Duration(cfg.Cache.ProviderPriceTTLSec) * time.Second

	var fetchers []provider.RateFetcher

	if cfg.CryptoCompare.BaseURL != "" {
		p := provider.NewCryptoCompareProvider(cfg.CryptoCompare.BaseURL, cfg.CryptoCompare.APIKey, cfg.CryptoCompare.Timeout)
		fetchers = append(fetchers, provider.NewCachedRateFetcher(p, cache, ttl, "cryptocompare"))
	}

	if cfg.Coinbase.BaseURL != "" {
		p := provider.NewCoinbaseProvider(cfg.Coinbase.BaseURL, cfg.Coinbase.Timeout)
		fetchers = append(fetchers, provider.NewCachedRateFetcher(p, cache, ttl, "coinbase"))
	}

	if len(fetchers) == 1 {
		return fetchers[0]
	}
	return provider.NewFetcherFacade(fetchers...)
}

// Run starts the HTTP server and Asynq worker, blocking until the context is canceled.
func (app *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Infow("Starting Asynq worker server")
		if err := app.asynqServer.Start(app.asynqMux); err != nil {
			return fmt.Errorf("asynq worker failed to start: %w", err)
		}

		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown: triggered by context cancellation (signal or component failure).
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: HTTP server -> tracker -> Asynq worker -> connections.
// This ensures in-flight refreshes and snapshot tasks finish before the DB and Redis connections close.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down server...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests, drain in-flight
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// 2. Stop the polling loop; a refresh already holding the lock completes
	app.rateTracker.Dispose()

	// 3. Drain in-flight Asynq tasks
	app.asynqServer.Shutdown()

	// 4. Close connections (asynq client, Redis, database)
	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}

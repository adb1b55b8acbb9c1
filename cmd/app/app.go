// Package main is the entry point for the ValutaTrade rate parser service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"valutatradehub/internal/cache"
	"valutatradehub/internal/config"
	"valutatradehub/internal/fusion"
	"valutatradehub/internal/provider"
	"valutatradehub/internal/rates"
	"valutatradehub/internal/repository"
	"valutatradehub/internal/scheduler"
	"valutatradehub/internal/service"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg        *config.Config
	logger     *zap.SugaredLogger
	db         *sql.DB       // nil when the history journal is disabled
	rdbCache   *redis.Client // nil when the provider cache is disabled
	rateCache  *cache.RateCache
	parserSvc  *service.ParserService
	httpServer *http.Server
}

// NewApp initializes all dependencies and returns a ready-to-run App.
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
	if app.cfg.Database.Enabled {
		db, err := repository.NewPostgresDB(&app.cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to Postgres: %w", err)
		}
		app.db = db

		if err := repository.RunMigrations(app.db, app.logger); err != nil {
			return fmt.Errorf("run DB migrations: %w", err)
		}
	}

	if app.cfg.Redis.CacheAddr != "" {
		app.rdbCache = redis.NewClient(&redis.Options{
			Addr: app.cfg.Redis.CacheAddr,
		})
		if err := app.rdbCache.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("connect to Redis (cache, %s): %w", app.cfg.Redis.CacheAddr, err)
		}
		app.logger.Infow("Connected to Redis provider cache", "addr", app.cfg.Redis.CacheAddr)
	}

	return nil
}

func (app *App) initServices() error {
	cfg := app.cfg

	fiat, crypto := app.newProviders()
	fus := fusion.New(fiat, crypto,
		cfg.Rates.FiatCurrencies, cfg.Rates.CryptoCurrencies, app.logger)

	store := cache.NewFileStore(cfg.Store.SnapshotPath)
	app.rateCache = cache.New(
		cfg.Rates.BaseCurrency,
		time.Duration(cfg.Rates.TTLSec)*time.Second,
		fus,
		store,
		app.logger,
	)
	if err := app.rateCache.Restore(); err != nil {
		// A corrupt snapshot must not prevent startup; start empty instead.
		app.logger.Warnw("Failed to restore rate snapshot", "error", err)
	}

	var history repository.HistoryRepository
	if app.db != nil {
		history = repository.NewPostgresHistoryRepository(app.db)
	}

	app.parserSvc = service.NewParserService(
		app.rateCache, rates.DefaultRegistry(), history, app.logger)

	app.initHTTP(app.parserSvc)
	return nil
}

// newProviders builds the two rate sources, each wrapped with the Redis
// provider cache when one is configured.
func (app *App) newProviders() (fiat, crypto provider.RatesProvider) {
	cfg := app.cfg
	base := cfg.Rates.BaseCurrency

	fiat = provider.NewExchangeRateAPIProvider(
		cfg.ExchangeRate.BaseURL, cfg.ExchangeRate.APIKey, base, cfg.ExchangeRate.TimeoutSec)
	crypto = provider.NewCoinGeckoProvider(
		cfg.CoinGecko.BaseURL, base, cfg.CoinGecko.IDMap, cfg.CoinGecko.TimeoutSec)

	if app.rdbCache != nil {
		ttl := time.Duration(cfg.Store.ProviderTTLSec) * time.Second
		fiat = provider.NewCachedRatesProvider(fiat, app.rdbCache, ttl)
		crypto = provider.NewCachedRatesProvider(crypto, app.rdbCache, ttl)
	}
	return fiat, crypto
}

// Run starts the HTTP server and optional auto-update, blocking until the
// context is canceled.
func (app *App) Run(ctx context.Context) error {
	if app.cfg.Scheduler.AutoStart {
		interval := time.Duration(app.cfg.Scheduler.IntervalSec) * time.Second
		if err := app.parserSvc.StartAutoUpdate(interval); err != nil {
			return fmt.Errorf("start auto-update: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

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

// shutdown performs ordered teardown: HTTP server -> scheduler -> connections.
// The scheduler stop waits for an in-flight refresh, so the DB and Redis
// connections close only after the last refresh has finished.
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

	// 2. Stop the background schedule, letting any running refresh complete
	if err := app.parserSvc.StopAutoUpdate(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		app.logger.Warnw("Scheduler stop", "error", err)
	}

	// 3. Close connections (Redis, database)
	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godilite/workforce-server/internal/config"
	"github.com/godilite/workforce-server/internal/httpapi"
	"github.com/godilite/workforce-server/internal/repository"
	"github.com/godilite/workforce-server/internal/service"
	"github.com/godilite/workforce-server/pkg/cache"
	dbbuilder "github.com/godilite/workforce-server/pkg/database"
	"github.com/godilite/workforce-server/pkg/events"

	"go.uber.org/zap"
)

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      *cache.Cache
	httpServer *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DSN()),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	repo := repository.NewProfileRepository(dbPool)
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	// The cache only serves the maintenance report, so a missing Redis is
	// a degraded mode, not a startup failure.
	var cacheClient *cache.Cache
	var cacher httpapi.Cacher
	if cfg.RedisAddr != "" {
		cacheClient, err = cache.New(ctx, cache.WithAddress(cfg.RedisAddr))
		if err != nil {
			logger.Warn("cache unavailable, continuing without it",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
			cacheClient = nil
		} else {
			logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
			cacher = cacheClient
		}
	}

	broker := events.NewBroker(logger)
	profileService := service.NewProfileService(repo, broker, logger)

	apiServer := httpapi.NewServer(profileService, broker, cacher, logger, cfg.CacheTTL, cfg.SSEKeepAlive)
	mux := http.NewServeMux()
	apiServer.Register(mux)

	handler := httpapi.RecoveryMiddleware(logger, httpapi.LoggingMiddleware(logger, mux))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacheClient,
		httpServer: httpServer,
	}, nil
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting", zap.String("addr", a.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-quit:
	}

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown error", zap.Error(err))
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	a.logger.Info("graceful shutdown completed")
	_ = a.logger.Sync()
	return nil
}

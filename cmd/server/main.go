package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"techsolutions/backend/internal/cache"
	"techsolutions/backend/internal/config"
	"techsolutions/backend/internal/httpapi"
	"techsolutions/backend/internal/metrics"
	"techsolutions/backend/internal/service"
	"techsolutions/backend/internal/store"
	"techsolutions/backend/internal/store/memory"
	pgstore "techsolutions/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := config.ConfigureLogger(logrus.StandardLogger(), cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	auth := func(employees httpapi.EmployeeStore) *httpapi.AuthManager {
		return httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, employees)
	}

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				logger.WithError(err).Fatal("database migration failed")
			}
			logger.Info("migrations applied")
		}

		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.WithField("repository", "postgres").Info("repository ready")

		created, err := auth(pg).EnsureAdmin(ctx, cfg.SeedAdminIDNumber, cfg.SeedAdminPassword)
		switch {
		case err != nil:
			logger.WithError(err).Warn("admin bootstrap skipped")
		case created:
			logger.WithField("id_number", cfg.SeedAdminIDNumber).Info("admin employee created")
		}
	} else {
		repo = memory.NewSeeded()
		logger.WithField("repository", "memory").Info("repository ready")
	}

	catalog := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop catalog cache")
		} else {
			catalog = redisCache
			closers = append(closers, redisCache.Close)
			logger.WithField("cache", "redis").Info("catalog cache ready")
		}
	} else {
		logger.WithField("cache", "noop").Info("catalog cache ready")
	}

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	svc := service.New(repo, catalog, time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second, recorder, logger)
	api := httpapi.New(svc, auth(repo), cfg.AllowedOrigin, recorder, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Address()).Info("sales backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Error("close error")
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DatabaseURL != "" && len(cfg.SeedAdminIDNumber) != 9 {
		return fmt.Errorf("SEED_ADMIN_ID_NUMBER must be a 9 digit identity number")
	}
	return nil
}

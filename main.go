// Package main provides the main entry point for the Hy Lac Viet media service
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/hylacviet-media/app/handlers"
	"github.com/amirphl/hylacviet-media/app/middleware"
	"github.com/amirphl/hylacviet-media/app/router"
	"github.com/amirphl/hylacviet-media/app/services"
	businessflow "github.com/amirphl/hylacviet-media/business_flow"
	"github.com/amirphl/hylacviet-media/config"
	"github.com/amirphl/hylacviet-media/repository"
	"github.com/amirphl/hylacviet-media/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.Config
	server    *fiber.App
	logger    *slog.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logCloser, err := utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		AddSource:  cfg.Logging.AddSource,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("Starting Hy Lac Viet media service")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Server starting", "address", address)
		serverErr <- app.server.Listen(address)
	}()

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped unexpectedly", "error", err)
		}
	}

	// Stop accepting requests before draining background workers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	logger.Info("Server stopped")
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *slog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// stopWithTimeout bounds how long shutdown waits on fn
func stopWithTimeout(fn func(), timeout time.Duration, logger *slog.Logger, name string) func() {
	return func() {
		done := make(chan struct{})
		go func() {
			fn()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			logger.Warn("Timed out waiting for component to stop", "component", name, "timeout", timeout)
		}
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	var stopFuncs []func()

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	var limiterStorage fiber.Storage
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, logger))
		limiterStorage = services.NewRedisStorage(rc, cfg.Cache.RedisPrefix+"ratelimit:")
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	if err := os.MkdirAll(cfg.Media.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	pool := services.NewTranscodePool(cfg.Media.TranscodeWorkers, cfg.Media.TranscodeQueue, logger)
	stopPool := pool.Start()
	// The pool must drain before the Redis client closes; stop funcs run in order
	stopFuncs = append([]func(){stopWithTimeout(stopPool, utils.TranscodePoolStopTimeout, logger, "transcode_pool")}, stopFuncs...)

	artifactRepo := repository.NewDiskArtifactRepository(cfg.Media.StorageDir, cfg.Media.PublicPrefix)
	mediaFlow := businessflow.NewMediaUploadFlow(artifactRepo, pool, cfg.Media, logger)

	mediaHandler := handlers.NewMediaHandler(mediaFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, mediaHandler, authMiddleware, limiterStorage, logger)

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}

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

	"go.uber.org/zap"

	"github.com/shadematch/backend/config"
	httpDelivery "github.com/shadematch/backend/internal/delivery/http"
	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/infrastructure/cache"
	"github.com/shadematch/backend/internal/infrastructure/catalog"
	"github.com/shadematch/backend/internal/infrastructure/vision"
	logpkg "github.com/shadematch/backend/internal/logger"
	"github.com/shadematch/backend/internal/usecase"
	"github.com/shadematch/backend/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logpkg.NewLogger(cfg.Server.Environment, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ShadeMatch backend",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("classifier", cfg.Classifier.Mode),
		zap.String("cache", cfg.Cache.Type),
	)

	// Product catalog
	products, err := openCatalog(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	logger.Info("Catalog loaded",
		zap.String("path", catalogSource(cfg.Catalog.Path)),
		zap.Int("skin_tones", len(products.SkinTones())),
	)

	// Classification cache
	classificationCache, closeCache, err := openCache(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to create cache", zap.Error(err))
	}
	defer closeCache()

	if pinger, ok := classificationCache.(interface{ Ping(context.Context) error }); ok {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pinger.Ping(pingCtx); err != nil {
			logger.Warn("Cache not reachable, classifications will not be cached until it recovers", zap.Error(err))
		}
		cancel()
	}

	// Classifier with fallback
	backend, err := vision.NewClassifier(cfg.Classifier.Mode, vision.CloudConfig{
		APIKey:            cfg.Classifier.APIKey,
		BaseURL:           cfg.Classifier.BaseURL,
		Model:             cfg.Classifier.Model,
		Timeout:           cfg.Classifier.Timeout,
		RequestsPerSecond: cfg.Classifier.RequestsPerSecond,
	})
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	classifier, err := vision.NewFallbackClassifier(backend, vision.FallbackConfig{
		Policy: cfg.Classifier.FallbackPolicy,
		Tone:   domain.SkinTone(cfg.Classifier.FallbackTone),
	})
	if err != nil {
		logger.Fatal("Failed to create fallback classifier", zap.Error(err))
	}

	logger.Info("Classifier configured",
		zap.String("mode", cfg.Classifier.Mode),
		zap.String("fallback_policy", cfg.Classifier.FallbackPolicy),
		zap.String("fallback_tone", cfg.Classifier.FallbackTone),
		zap.Int("max_dimension", cfg.Classifier.MaxDimension),
	)

	// Usecase layer
	service := usecase.NewRecommendationService(
		vision.NewPreparer(cfg.Classifier.MaxDimension, int(cfg.Server.MaxUploadBytes)),
		classifier,
		products,
		classificationCache,
		usecase.RecommendationServiceConfig{CacheTTL: cfg.Cache.TTL},
	)

	handler := httpDelivery.NewHandler(service, httpDelivery.HandlerConfig{
		ClassifierMode:     cfg.Classifier.Mode,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		DefaultPerCategory: cfg.Recommend.DefaultPerCategory,
		MaxPerCategory:     cfg.Recommend.MaxPerCategory,
	})

	limiter := httpDelivery.NewRateLimiter(cfg.RateLimit.PerIP, cfg.RateLimit.Burst)
	defer limiter.Stop()

	router := httpDelivery.SetupRouter(cfg, handler, logger, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      4 * cfg.Classifier.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// openCatalog loads the catalog file at path, or the embedded catalog when path is empty
func openCatalog(path string) (*catalog.StaticCatalog, error) {
	if path == "" {
		return catalog.NewStaticCatalog()
	}
	return catalog.LoadFile(path)
}

func catalogSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// openCache builds the configured cache and a func that releases it
func openCache(cfg config.CacheConfig) (domain.CacheRepository, func(), error) {
	switch cfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { _ = redisCache.Close() }, nil
	default:
		memoryCache := cache.NewMemoryCache(0)
		return memoryCache, func() { _ = memoryCache.Close() }, nil
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gardenpress/engagement/internal/config"
	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gardenpress/engagement/internal/handler"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/logging"
	"github.com/gardenpress/engagement/internal/metrics"
	"github.com/gardenpress/engagement/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}

	if cfg.SuperRootUserName != "" && cfg.SuperRootPassword != "" {
		if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
			logger.WithError(err).Fatal("failed to seed admin user")
		}
	}

	cache, closeCache := buildDedupCache(cfg, logger)
	defer closeCache()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	api := handler.NewAPI(db.DB, handler.Options{
		Cache:    cache,
		Resolver: identity.NewResolver(cfg.IdentitySalt, cfg.TrustForwardedHeaders),
		Location: cfg.Location,
		Logger:   logger,
		Metrics:  metrics.New(registry),
	})

	r := router.SetupRouter(api, router.Options{
		SessionSecret:  cfg.SessionSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
		Gatherer:       registry,
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("engagement server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("failed to run server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("收到关闭信号，开始优雅停机")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}

	if sqlDB, err := db.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("优雅停机完成")
}

// buildDedupCache 按配置选择去重后端。Redis 不可用时退回进程内缓存，多实例部署下会多计。
func buildDedupCache(cfg config.AppConfig, logger *logrus.Logger) (dedup.Cache, func()) {
	noop := func() {}

	switch cfg.DedupBackend {
	case config.DedupBackendNone:
		logger.Warn("dedup cache disabled, every event will be recorded")
		return dedup.NoopCache{}, noop
	case config.DedupBackendRedis:
		client, err := dedup.NewRedisClient(cfg.RedisURL)
		if err == nil {
			cache := dedup.NewRedisCache(client, "")
			return cache, func() {
				if err := cache.Close(); err != nil {
					logger.WithError(err).Warn("close redis failed")
				}
			}
		}
		logger.WithError(err).Warn("redis unavailable, falling back to in-process dedup cache")
	}

	cache, err := dedup.NewMemoryCache(cfg.DedupMemorySize)
	if err != nil {
		logger.WithError(err).Warn("memory dedup cache unavailable, dedup disabled")
		return dedup.NoopCache{}, noop
	}
	return cache, noop
}

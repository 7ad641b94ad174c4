package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

var errDatabaseUnavailable = errors.New("database not configured")

// Health 探测数据库与去重缓存。缓存只是建议性的，不可用时报告 degraded 但仍返回 200。
func (a *API) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := a.pingDatabase(ctx); err != nil {
		a.requestLogger(c).WithError(err).Error("database health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": "error",
		})
		return
	}

	status, cache := "ok", "local"
	switch backend := a.cache.(type) {
	case dedup.NoopCache:
		cache = "disabled"
	case dedup.Pinger:
		cache = "ok"
		if err := backend.Ping(ctx); err != nil {
			a.requestLogger(c).WithError(err).Warn("dedup cache health check failed")
			status, cache = "degraded", "error"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"database": "ok",
		"cache":    cache,
	})
}

func (a *API) pingDatabase(ctx context.Context) error {
	if a.db == nil {
		return errDatabaseUnavailable
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

package service

import (
	"context"

	"github.com/gardenpress/engagement/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CounterSync 将台账聚合结果回写到内容表的反范式列。
// 它是 likes/rating 列的唯一写入方；失败只记录日志，不影响主流程。
type CounterSync struct {
	db       *gorm.DB
	registry *ContentRegistry
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewCounterSync 创建 CounterSync。
func NewCounterSync(gdb *gorm.DB, registry *ContentRegistry, logger *logrus.Logger, m *metrics.Metrics) *CounterSync {
	return &CounterSync{db: gdb, registry: registry, logger: logger, metrics: m}
}

// SyncLikes 写入最新点赞数。
func (s *CounterSync) SyncLikes(ctx context.Context, target Target, likes int64) {
	store, err := s.registry.Store(target.Type)
	if err == nil {
		err = store.SetLikes(ctx, s.db, target.ID, likes)
	}
	if err != nil {
		s.fail("likes", target, err)
	}
}

// SyncRating 写入最新平均评分，保留两位小数。
func (s *CounterSync) SyncRating(ctx context.Context, target Target, average float64) {
	store, err := s.registry.Store(target.Type)
	if err == nil {
		err = store.SetRating(ctx, s.db, target.ID, roundTo(average, 2))
	}
	if err != nil {
		s.fail("rating", target, err)
	}
}

func (s *CounterSync) fail(column string, target Target, err error) {
	s.metrics.SyncFailure(column)
	s.logger.WithFields(logrus.Fields{
		"column":       column,
		"content_type": target.Type,
		"content_id":   target.ID,
		"error":        err,
	}).Warn("counter sync failed")
}

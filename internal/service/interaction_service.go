package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	minRating = 1
	maxRating = 5
)

// InteractionService 处理点赞、评分与浏览台账。
// 聚合值每次都从台账重新查询，内容表上的计数列只是缓存。
type InteractionService struct {
	db       *gorm.DB
	registry *ContentRegistry
	sync     *CounterSync
	cache    dedup.Cache
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// LikeResult 是点赞切换后的状态。
type LikeResult struct {
	IsLiked   bool
	LikeCount int64
}

// RatingResult 是评分提交后的聚合结果。
type RatingResult struct {
	Rating        int
	AverageRating float64
	RatingCount   int64
}

// ContentStats 汇总单条内容的互动数据。
type ContentStats struct {
	LikeCount       int64
	ViewCount       int64
	UniqueViewCount int64
	AverageRating   float64
	RatingCount     int64
}

// MyInteraction 描述当前身份对内容的操作状态。
type MyInteraction struct {
	IsLiked    bool
	UserRating *int
}

// NewInteractionService 创建 InteractionService。cache 为 nil 时退化为不去重。
func NewInteractionService(gdb *gorm.DB, registry *ContentRegistry, cache dedup.Cache, logger *logrus.Logger, m *metrics.Metrics) *InteractionService {
	if cache == nil {
		cache = dedup.NoopCache{}
	}
	return &InteractionService{
		db:       gdb,
		registry: registry,
		sync:     NewCounterSync(gdb, registry, logger, m),
		cache:    cache,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock 替换时间来源，主要面向测试。
func (s *InteractionService) WithClock(now func() time.Time) *InteractionService {
	if now != nil {
		s.now = now
	}
	return s
}

// ToggleLike 已点赞则取消，否则新增，随后重新统计点赞数并回写内容表。
func (s *InteractionService) ToggleLike(ctx context.Context, target Target, who identity.Identity) (LikeResult, error) {
	if err := s.requireContent(ctx, target, who); err != nil {
		return LikeResult{}, err
	}

	var existing db.Interaction
	err := s.ledger(ctx, target, db.InteractionLike).
		Scopes(matchIdentity(who)).
		First(&existing).Error

	var result LikeResult
	switch {
	case err == nil:
		if err := s.ledger(ctx, target, db.InteractionLike).
			Scopes(matchIdentity(who)).
			Delete(&db.Interaction{}).Error; err != nil {
			return LikeResult{}, fmt.Errorf("delete like: %w", err)
		}
		result.IsLiked = false
	case errors.Is(err, gorm.ErrRecordNotFound):
		like := s.newInteraction(target, who, db.InteractionLike, 1)
		if err := s.db.WithContext(ctx).Create(&like).Error; err != nil {
			return LikeResult{}, fmt.Errorf("create like: %w", err)
		}
		s.metrics.Interaction(db.InteractionLike, string(target.Type))
		result.IsLiked = true
	default:
		return LikeResult{}, fmt.Errorf("load like: %w", err)
	}

	count, err := s.count(ctx, target, db.InteractionLike)
	if err != nil {
		return LikeResult{}, err
	}
	result.LikeCount = count

	s.sync.SyncLikes(ctx, target, count)
	return result, nil
}

// SubmitRating 新增或覆盖当前身份的评分，并重新计算平均分。
func (s *InteractionService) SubmitRating(ctx context.Context, target Target, who identity.Identity, rating int) (RatingResult, error) {
	if rating < minRating || rating > maxRating {
		return RatingResult{}, newValidationError("rating", "must be between 1 and 5")
	}
	if err := s.requireContent(ctx, target, who); err != nil {
		return RatingResult{}, err
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []db.Interaction
		if err := ledgerOn(tx, target, db.InteractionRating).
			Scopes(matchIdentity(who)).
			Order("id").
			Find(&existing).Error; err != nil {
			return fmt.Errorf("load rating: %w", err)
		}

		if len(existing) == 0 {
			record := s.newInteraction(target, who, db.InteractionRating, rating)
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("create rating: %w", err)
			}
			created = true
			return nil
		}

		// IP 与用户各命中一条时合并为一条，保证同一身份只计一次评分
		keep := existing[0]
		updates := map[string]interface{}{"value": rating, "updated_at": s.now().UTC()}
		if keep.UserID == nil && who.HasUser() {
			updates["user_id"] = *who.UserID
		}
		if err := tx.Model(&keep).UpdateColumns(updates).Error; err != nil {
			return fmt.Errorf("update rating: %w", err)
		}

		if len(existing) > 1 {
			extra := make([]uint, 0, len(existing)-1)
			for _, record := range existing[1:] {
				extra = append(extra, record.ID)
			}
			if err := tx.Where("id IN ?", extra).Delete(&db.Interaction{}).Error; err != nil {
				return fmt.Errorf("collapse duplicate ratings: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return RatingResult{}, err
	}
	if created {
		s.metrics.Interaction(db.InteractionRating, string(target.Type))
	}

	average, total, err := s.ratingAggregate(ctx, target)
	if err != nil {
		return RatingResult{}, err
	}

	s.sync.SyncRating(ctx, target, average)

	return RatingResult{
		Rating:        rating,
		AverageRating: roundTo(average, 1),
		RatingCount:   total,
	}, nil
}

// RecordView 原子自增内容表的 views 列；同一身份每小时首次浏览时额外写入一条台账记录。
// 台账记录只用于次级分析，权威浏览数以内容表为准。
func (s *InteractionService) RecordView(ctx context.Context, target Target, who identity.Identity) (int64, error) {
	store, err := s.registry.Store(target.Type)
	if err != nil {
		return 0, err
	}

	found, err := store.IncrementViews(ctx, s.db, target.ID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrContentNotFound
	}

	if s.shouldRecordView(ctx, target, who) {
		view := s.newInteraction(target, who, db.InteractionView, 1)
		if err := s.db.WithContext(ctx).Create(&view).Error; err != nil {
			s.logger.WithFields(logrus.Fields{
				"content_type": target.Type,
				"content_id":   target.ID,
				"error":        err,
			}).Warn("view ledger insert failed")
		} else {
			s.metrics.Interaction(db.InteractionView, string(target.Type))
		}
	}

	return store.Views(ctx, s.db, target.ID)
}

// GetStats 从台账实时统计点赞与评分，浏览数读取内容表。
func (s *InteractionService) GetStats(ctx context.Context, target Target) (ContentStats, error) {
	store, err := s.registry.Store(target.Type)
	if err != nil {
		return ContentStats{}, err
	}

	views, err := store.Views(ctx, s.db, target.ID)
	if err != nil {
		return ContentStats{}, err
	}

	likes, err := s.count(ctx, target, db.InteractionLike)
	if err != nil {
		return ContentStats{}, err
	}

	var uniqueViews int64
	if err := s.ledger(ctx, target, db.InteractionView).
		Distinct("ip_hash").
		Count(&uniqueViews).Error; err != nil {
		return ContentStats{}, fmt.Errorf("count unique views: %w", err)
	}

	average, total, err := s.ratingAggregate(ctx, target)
	if err != nil {
		return ContentStats{}, err
	}

	return ContentStats{
		LikeCount:       likes,
		ViewCount:       views,
		UniqueViewCount: uniqueViews,
		AverageRating:   roundTo(average, 1),
		RatingCount:     total,
	}, nil
}

// Mine 返回当前身份是否已点赞以及其评分。
func (s *InteractionService) Mine(ctx context.Context, target Target, who identity.Identity) (MyInteraction, error) {
	var result MyInteraction

	var likes int64
	if err := s.ledger(ctx, target, db.InteractionLike).
		Scopes(matchIdentity(who)).
		Count(&likes).Error; err != nil {
		return result, fmt.Errorf("load like state: %w", err)
	}
	result.IsLiked = likes > 0

	var rating db.Interaction
	err := s.ledger(ctx, target, db.InteractionRating).
		Scopes(matchIdentity(who)).
		First(&rating).Error
	switch {
	case err == nil:
		value := rating.Value
		result.UserRating = &value
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return result, fmt.Errorf("load rating state: %w", err)
	}

	return result, nil
}

func (s *InteractionService) shouldRecordView(ctx context.Context, target Target, who identity.Identity) bool {
	ok, err := s.cache.ShouldRecord(ctx, dedup.ViewKey(string(target.Type), target.ID, who.IPHash), dedup.ViewWindow)
	switch {
	case err != nil:
		// 缓存不可用时宁可多记
		s.metrics.Dedup("view", "error")
		s.logger.WithFields(logrus.Fields{
			"content_type": target.Type,
			"content_id":   target.ID,
			"error":        err,
		}).Warn("view dedup cache unavailable")
		return true
	case ok:
		s.metrics.Dedup("view", "record")
		return true
	default:
		s.metrics.Dedup("view", "skip")
		return false
	}
}

func (s *InteractionService) requireContent(ctx context.Context, target Target, who identity.Identity) error {
	if !who.Valid() {
		return newValidationError("identity", "could not resolve client identity")
	}
	store, err := s.registry.Store(target.Type)
	if err != nil {
		return err
	}
	exists, err := store.Exists(ctx, s.db, target.ID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrContentNotFound
	}
	return nil
}

func (s *InteractionService) ledger(ctx context.Context, target Target, kind string) *gorm.DB {
	return ledgerOn(s.db.WithContext(ctx), target, kind)
}

func ledgerOn(tx *gorm.DB, target Target, kind string) *gorm.DB {
	return tx.Model(&db.Interaction{}).
		Where("content_type = ? AND content_id = ? AND kind = ?", string(target.Type), target.ID, kind)
}

func (s *InteractionService) count(ctx context.Context, target Target, kind string) (int64, error) {
	var total int64
	if err := s.ledger(ctx, target, kind).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return total, nil
}

func (s *InteractionService) ratingAggregate(ctx context.Context, target Target) (float64, int64, error) {
	var aggregate struct {
		Average float64
		Total   int64
	}
	if err := s.ledger(ctx, target, db.InteractionRating).
		Select("COALESCE(AVG(value), 0) AS average, COUNT(*) AS total").
		Scan(&aggregate).Error; err != nil {
		return 0, 0, fmt.Errorf("aggregate rating: %w", err)
	}
	return aggregate.Average, aggregate.Total, nil
}

func (s *InteractionService) newInteraction(target Target, who identity.Identity, kind string, value int) db.Interaction {
	record := db.Interaction{
		ContentType: string(target.Type),
		ContentID:   target.ID,
		Kind:        kind,
		IPHash:      who.IPHash,
		Value:       value,
		CreatedAt:   s.now().UTC(),
		UpdatedAt:   s.now().UTC(),
	}
	if who.HasUser() {
		userID := *who.UserID
		record.UserID = &userID
	}
	return record
}

// matchIdentity 按 IP 或用户匹配，任一命中即视为已操作。
func matchIdentity(who identity.Identity) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if who.HasUser() {
			return tx.Where("(ip_hash = ? OR user_id = ?)", who.IPHash, *who.UserID)
		}
		return tx.Where("ip_hash = ?", who.IPHash)
	}
}

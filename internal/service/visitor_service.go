package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// OnlineWindow 内有访问记录的身份视为在线。
	OnlineWindow = 5 * time.Minute

	defaultVisitorsPerPage = 20
	maxVisitorsPerPage     = 100
)

// VisitorService 管理访客台账：按天去重写入，并提供统计与列表。
type VisitorService struct {
	db       *gorm.DB
	cache    dedup.Cache
	location *time.Location
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// VisitorCounts 是记录访问后返回给前台的计数。
type VisitorCounts struct {
	Recorded      bool
	TotalVisitors int64
	TodayVisitors int64
}

// VisitorStats 是后台的访客概览。
type VisitorStats struct {
	TotalVisitors       int64
	TodayVisitors       int64
	OnlineUsers         int64
	AvgVisitsPerVisitor float64
}

// VisitorRow 是每个身份最近一次访问，IdentityHash 已脱敏。
type VisitorRow struct {
	ID           uint
	IdentityHash string
	Page         string
	OccurredAt   time.Time
	Metadata     datatypes.JSONMap
	VisitCount   int64
	IsOnline     bool
	IsToday      bool
}

// VisitorPage 是访客列表的一页。
type VisitorPage struct {
	Items      []VisitorRow
	Total      int64
	Page       int
	PerPage    int
	TotalPages int
}

// NewVisitorService 创建 VisitorService。location 决定"今天"的边界，为 nil 时使用本地时区。
func NewVisitorService(gdb *gorm.DB, cache dedup.Cache, location *time.Location, logger *logrus.Logger, m *metrics.Metrics) *VisitorService {
	if cache == nil {
		cache = dedup.NoopCache{}
	}
	if location == nil {
		location = time.Local
	}
	return &VisitorService{
		db:       gdb,
		cache:    cache,
		location: location,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock 替换时间来源，主要面向测试。
func (s *VisitorService) WithClock(now func() time.Time) *VisitorService {
	if now != nil {
		s.now = now
	}
	return s
}

// RecordVisit 当天首次访问时写入一条 VisitEvent，随后返回最新访客数。
func (s *VisitorService) RecordVisit(ctx context.Context, who identity.Identity, page string, metadata map[string]interface{}) (VisitorCounts, error) {
	if !who.Valid() {
		return VisitorCounts{}, newValidationError("identity", "could not resolve client identity")
	}

	now := s.now().In(s.location)
	var counts VisitorCounts

	if s.shouldRecordVisit(ctx, who, now) {
		event := db.VisitEvent{
			IdentityHash: who.IPHash,
			Page:         truncate(page, 500),
			OccurredAt:   now.UTC(),
			Metadata:     datatypes.JSONMap(metadata),
			CreatedAt:    now.UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
			return VisitorCounts{}, fmt.Errorf("record visit: %w", err)
		}
		s.metrics.VisitRecorded()
		counts.Recorded = true
	}

	total, err := s.distinctSince(ctx, time.Time{})
	if err != nil {
		return VisitorCounts{}, err
	}
	today, err := s.distinctSince(ctx, s.startOfDay(now))
	if err != nil {
		return VisitorCounts{}, err
	}
	counts.TotalVisitors = total
	counts.TodayVisitors = today
	return counts, nil
}

// GetStats 统计累计、今日、在线访客数以及人均访问次数。
func (s *VisitorService) GetStats(ctx context.Context) (VisitorStats, error) {
	now := s.now().In(s.location)

	total, err := s.distinctSince(ctx, time.Time{})
	if err != nil {
		return VisitorStats{}, err
	}
	today, err := s.distinctSince(ctx, s.startOfDay(now))
	if err != nil {
		return VisitorStats{}, err
	}
	online, err := s.distinctSince(ctx, now.Add(-OnlineWindow))
	if err != nil {
		return VisitorStats{}, err
	}

	var events int64
	if err := s.db.WithContext(ctx).Model(&db.VisitEvent{}).Count(&events).Error; err != nil {
		return VisitorStats{}, fmt.Errorf("count visits: %w", err)
	}

	stats := VisitorStats{
		TotalVisitors: total,
		TodayVisitors: today,
		OnlineUsers:   online,
	}
	if total > 0 {
		stats.AvgVisitsPerVisitor = roundTo(float64(events)/float64(total), 1)
	}
	return stats, nil
}

// ListVisitors 每个身份只返回最近一次访问，按最近访问倒序分页。
func (s *VisitorService) ListVisitors(ctx context.Context, page, perPage int) (VisitorPage, error) {
	page, perPage = normalizePage(page, perPage)
	now := s.now().In(s.location)
	todayStart := s.startOfDay(now)
	onlineSince := now.Add(-OnlineWindow)

	tx := s.db.WithContext(ctx)

	var total int64
	if err := tx.Model(&db.VisitEvent{}).
		Distinct("identity_hash").
		Count(&total).Error; err != nil {
		return VisitorPage{}, fmt.Errorf("count visitors: %w", err)
	}

	latest := tx.Model(&db.VisitEvent{}).
		Select("identity_hash, MAX(id) AS latest_id, COUNT(*) AS visit_count").
		Group("identity_hash")

	var rows []struct {
		ID           uint
		IdentityHash string
		Page         string
		OccurredAt   time.Time
		Metadata     datatypes.JSONMap
		VisitCount   int64
	}
	if err := tx.Table("visit_events AS v").
		Select("v.id, v.identity_hash, v.page, v.occurred_at, v.metadata, latest.visit_count").
		Joins("JOIN (?) AS latest ON latest.latest_id = v.id", latest).
		Order("v.id DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Scan(&rows).Error; err != nil {
		return VisitorPage{}, fmt.Errorf("list visitors: %w", err)
	}

	items := make([]VisitorRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, VisitorRow{
			ID:           row.ID,
			IdentityHash: identity.Redact(row.IdentityHash),
			Page:         row.Page,
			OccurredAt:   row.OccurredAt,
			Metadata:     row.Metadata,
			VisitCount:   row.VisitCount,
			IsOnline:     !row.OccurredAt.Before(onlineSince),
			IsToday:      !row.OccurredAt.Before(todayStart),
		})
	}

	return VisitorPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}, nil
}

func (s *VisitorService) shouldRecordVisit(ctx context.Context, who identity.Identity, now time.Time) bool {
	ok, err := s.cache.ShouldRecord(ctx, dedup.VisitKey(who.IPHash, now), dedup.UntilEndOfDay(now))
	switch {
	case err != nil:
		s.metrics.Dedup("visit", "error")
		s.logger.WithField("error", err).Warn("visit dedup cache unavailable")
		return true
	case ok:
		s.metrics.Dedup("visit", "record")
		return true
	default:
		s.metrics.Dedup("visit", "skip")
		return false
	}
}

// distinctSince 统计 since 之后出现过的身份数，since 为零值时统计全部。
func (s *VisitorService) distinctSince(ctx context.Context, since time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Model(&db.VisitEvent{})
	if !since.IsZero() {
		query = query.Where("occurred_at >= ?", since.UTC())
	}
	var count int64
	if err := query.Distinct("identity_hash").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count distinct visitors: %w", err)
	}
	return count, nil
}

func (s *VisitorService) startOfDay(now time.Time) time.Time {
	local := now.In(s.location)
	year, month, day := local.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, s.location)
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultVisitorsPerPage
	}
	if perPage > maxVisitorsPerPage {
		perPage = maxVisitorsPerPage
	}
	return page, perPage
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

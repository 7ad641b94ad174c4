package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// baselineResetRatio 目标变化超过该比例时重新采集基线。
	baselineResetRatio = 0.30
	goalEpsilon        = 1e-9
)

// CampaignService 维护运营目标与增长基线，并实时计算各指标的当前值。
type CampaignService struct {
	db       *gorm.DB
	registry *ContentRegistry
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// MetricOverview 是单个指标的进度与增长。
type MetricOverview struct {
	MetricName         string
	CurrentValue       float64
	GoalValue          float64
	BaselineValue      float64
	BaselineCapturedAt *time.Time
	Progress           float64
	Growth             float64
}

// NewCampaignService 创建 CampaignService。
func NewCampaignService(gdb *gorm.DB, registry *ContentRegistry, logger *logrus.Logger, m *metrics.Metrics) *CampaignService {
	return &CampaignService{
		db:       gdb,
		registry: registry,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock 替换时间来源，主要面向测试。
func (s *CampaignService) WithClock(now func() time.Time) *CampaignService {
	if now != nil {
		s.now = now
	}
	return s
}

// CurrentValue 实时计算指标值。
func (s *CampaignService) CurrentValue(ctx context.Context, metric string) (float64, error) {
	switch metric {
	case db.MetricVisitors:
		var count int64
		if err := s.db.WithContext(ctx).Model(&db.VisitEvent{}).
			Distinct("identity_hash").
			Count(&count).Error; err != nil {
			return 0, fmt.Errorf("count visitors: %w", err)
		}
		return float64(count), nil
	case db.MetricViews:
		return s.totalViews(ctx)
	case db.MetricContent:
		return s.publishedContent(ctx)
	case db.MetricRating:
		return s.averageRating(ctx)
	default:
		return 0, ErrUnknownMetric
	}
}

// UpdateGoal 更新目标值。新旧目标相差超过 30% 时，先把当前值采集为新基线。
func (s *CampaignService) UpdateGoal(ctx context.Context, metric string, goal float64) (db.MetricSetting, error) {
	if !db.IsKnownMetric(metric) {
		return db.MetricSetting{}, ErrUnknownMetric
	}
	if math.IsNaN(goal) || math.IsInf(goal, 0) || goal < 0 {
		return db.MetricSetting{}, newValidationError("goal_value", "must be a non-negative number")
	}

	setting, err := s.load(ctx, metric)
	if err != nil {
		return db.MetricSetting{}, err
	}

	updates := map[string]interface{}{"goal_value": goal}
	reset := goalChangeRatio(setting.GoalValue, goal) > baselineResetRatio
	if reset {
		current, err := s.CurrentValue(ctx, metric)
		if err != nil {
			return db.MetricSetting{}, err
		}
		capturedAt := s.now().UTC()
		updates["baseline_value"] = current
		updates["baseline_captured_at"] = capturedAt
	}

	if err := s.db.WithContext(ctx).Model(&setting).Updates(updates).Error; err != nil {
		return db.MetricSetting{}, fmt.Errorf("update goal: %w", err)
	}
	s.metrics.GoalUpdated(metric, reset)
	s.logger.WithFields(logrus.Fields{
		"metric":         metric,
		"goal_value":     goal,
		"baseline_reset": reset,
	}).Info("metric goal updated")

	return s.load(ctx, metric)
}

// ResetBaseline 立即把当前值采集为基线，目标值不变。
func (s *CampaignService) ResetBaseline(ctx context.Context, metric string) (db.MetricSetting, error) {
	if !db.IsKnownMetric(metric) {
		return db.MetricSetting{}, ErrUnknownMetric
	}
	setting, err := s.load(ctx, metric)
	if err != nil {
		return db.MetricSetting{}, err
	}
	current, err := s.CurrentValue(ctx, metric)
	if err != nil {
		return db.MetricSetting{}, err
	}
	if err := s.db.WithContext(ctx).Model(&setting).Updates(map[string]interface{}{
		"baseline_value":       current,
		"baseline_captured_at": s.now().UTC(),
	}).Error; err != nil {
		return db.MetricSetting{}, fmt.Errorf("reset baseline: %w", err)
	}
	s.metrics.GoalUpdated(metric, true)
	return s.load(ctx, metric)
}

// List 返回全部指标配置，缺失的以零值创建。
func (s *CampaignService) List(ctx context.Context) ([]db.MetricSetting, error) {
	if err := s.ensureSettings(ctx); err != nil {
		return nil, err
	}
	var settings []db.MetricSetting
	if err := s.db.WithContext(ctx).
		Where("metric_name IN ?", db.KnownMetrics).
		Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("list metric settings: %w", err)
	}

	byName := make(map[string]db.MetricSetting, len(settings))
	for _, setting := range settings {
		byName[setting.MetricName] = setting
	}
	ordered := make([]db.MetricSetting, 0, len(db.KnownMetrics))
	for _, name := range db.KnownMetrics {
		if setting, ok := byName[name]; ok {
			ordered = append(ordered, setting)
		}
	}
	return ordered, nil
}

// Overview 计算全部指标的当前值、进度与增长。
func (s *CampaignService) Overview(ctx context.Context) ([]MetricOverview, error) {
	settings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	overview := make([]MetricOverview, 0, len(settings))
	for _, setting := range settings {
		current, err := s.CurrentValue(ctx, setting.MetricName)
		if err != nil {
			return nil, err
		}
		overview = append(overview, MetricOverview{
			MetricName:         setting.MetricName,
			CurrentValue:       current,
			GoalValue:          setting.GoalValue,
			BaselineValue:      setting.BaselineValue,
			BaselineCapturedAt: setting.BaselineCapturedAt,
			Progress:           Progress(current, setting.GoalValue),
			Growth:             Growth(current, setting.BaselineValue),
		})
	}
	return overview, nil
}

// Progress 返回目标完成百分比，上限 100，保留两位小数。
func Progress(current, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return roundTo(math.Min(current/goal*100, 100), 2)
}

// Growth 返回相对基线的增长百分比，保留两位小数。
func Growth(current, baseline float64) float64 {
	switch {
	case baseline > 0:
		return roundTo((current-baseline)/baseline*100, 2)
	case current > 0:
		return 100
	default:
		return 0
	}
}

func goalChangeRatio(current, next float64) float64 {
	return math.Abs(next-current) / math.Max(current, goalEpsilon)
}

func (s *CampaignService) load(ctx context.Context, metric string) (db.MetricSetting, error) {
	if err := s.create(ctx, metric); err != nil {
		return db.MetricSetting{}, err
	}
	var setting db.MetricSetting
	if err := s.db.WithContext(ctx).Where("metric_name = ?", metric).First(&setting).Error; err != nil {
		return db.MetricSetting{}, fmt.Errorf("load metric setting: %w", err)
	}
	return setting, nil
}

func (s *CampaignService) ensureSettings(ctx context.Context) error {
	for _, metric := range db.KnownMetrics {
		if err := s.create(ctx, metric); err != nil {
			return err
		}
	}
	return nil
}

func (s *CampaignService) create(ctx context.Context, metric string) error {
	setting := db.MetricSetting{MetricName: metric}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "metric_name"}}, DoNothing: true}).
		Create(&setting).Error; err != nil {
		return fmt.Errorf("create metric setting %s: %w", metric, err)
	}
	return nil
}

func (s *CampaignService) totalViews(ctx context.Context) (float64, error) {
	var total int64
	for _, store := range s.registry.Tables() {
		var sum int64
		row := s.db.WithContext(ctx).Table(store.Table()).
			Where("deleted_at IS NULL").
			Select("COALESCE(SUM(views), 0)").
			Row()
		if err := row.Scan(&sum); err != nil {
			return 0, fmt.Errorf("sum %s views: %w", store.Table(), err)
		}
		total += sum
	}
	return float64(total), nil
}

func (s *CampaignService) publishedContent(ctx context.Context) (float64, error) {
	var total int64
	for _, store := range s.registry.Tables() {
		var count int64
		if err := store.Published(s.db.WithContext(ctx)).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("count published %s: %w", store.Table(), err)
		}
		total += count
	}
	return float64(total), nil
}

// averageRating 对已发布内容中评分不低于 1 的条目求平均。
func (s *CampaignService) averageRating(ctx context.Context) (float64, error) {
	var (
		sum   float64
		count int64
	)
	for _, store := range s.registry.Tables() {
		var aggregate struct {
			Total float64
			Rated int64
		}
		if err := store.Published(s.db.WithContext(ctx)).
			Where("rating >= ?", 1).
			Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS rated").
			Scan(&aggregate).Error; err != nil {
			return 0, fmt.Errorf("aggregate %s rating: %w", store.Table(), err)
		}
		sum += aggregate.Total
		count += aggregate.Rated
	}
	if count == 0 {
		return 0, nil
	}
	return roundTo(sum/float64(count), 2), nil
}

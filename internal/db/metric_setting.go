package db

import "time"

const (
	MetricVisitors = "visitors"
	MetricViews    = "views"
	MetricContent  = "content"
	MetricRating   = "rating"
)

// KnownMetrics 按后台展示顺序列出全部指标。
var KnownMetrics = []string{MetricVisitors, MetricViews, MetricContent, MetricRating}

// MetricSetting 保存运营目标与增长基线。首次读取时以零值惰性创建。
type MetricSetting struct {
	ID                 uint   `gorm:"primaryKey"`
	MetricName         string `gorm:"size:32;uniqueIndex;not null"`
	GoalValue          float64
	BaselineValue      float64
	BaselineCapturedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName 指定自定义表名。
func (MetricSetting) TableName() string {
	return "metric_settings"
}

// IsKnownMetric 判断指标名是否受支持。
func IsKnownMetric(name string) bool {
	for _, metric := range KnownMetrics {
		if metric == name {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/logging"
	"gorm.io/gorm"
)

var campaignTestNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestCampaignService(gdb *gorm.DB) *CampaignService {
	return NewCampaignService(gdb, NewContentRegistry(), logging.Discard(), nil).
		WithClock(func() time.Time { return campaignTestNow })
}

func seedContent(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	records := []interface{}{
		&db.Article{Title: "春季播种", Status: "published", Views: 100, Rating: 4.5},
		&db.Article{Title: "草稿", Status: "draft", Views: 50, Rating: 5},
		&db.Video{Title: "修剪示范", Status: "published", Views: 70, Rating: 0},
		&db.Product{Name: "园艺剪", Category: "tool", Status: "active", Views: 30, Rating: 3.5},
	}
	for _, record := range records {
		if err := gdb.Create(record).Error; err != nil {
			t.Fatalf("failed to seed content: %v", err)
		}
	}
}

func TestCurrentValue(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	seedContent(t, gdb)
	insertVisit(t, gdb, "visitor-a", campaignTestNow)
	insertVisit(t, gdb, "visitor-a", campaignTestNow.Add(time.Hour))
	insertVisit(t, gdb, "visitor-b", campaignTestNow)
	svc := newTestCampaignService(gdb)
	ctx := context.Background()

	tests := []struct {
		metric string
		want   float64
	}{
		{metric: db.MetricVisitors, want: 2},
		{metric: db.MetricViews, want: 250},
		{metric: db.MetricContent, want: 3},
		// 草稿与未评分内容不参与平均
		{metric: db.MetricRating, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			got, err := svc.CurrentValue(ctx, tt.metric)
			if err != nil {
				t.Fatalf("current value failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := svc.CurrentValue(ctx, "revenue"); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestUpdateGoalBaselineRule(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	seedContent(t, gdb)
	svc := newTestCampaignService(gdb)
	ctx := context.Background()

	setting, err := svc.UpdateGoal(ctx, db.MetricViews, 1000)
	if err != nil {
		t.Fatalf("initial goal failed: %v", err)
	}
	if setting.BaselineValue != 250 || setting.BaselineCapturedAt == nil {
		t.Fatalf("expected first goal to capture baseline 250, got %+v", setting)
	}
	capturedAt := *setting.BaselineCapturedAt

	if err := gdb.Model(&db.Article{}).Where("title = ?", "春季播种").UpdateColumn("views", 400).Error; err != nil {
		t.Fatalf("failed to bump views: %v", err)
	}

	setting, err = svc.UpdateGoal(ctx, db.MetricViews, 1300)
	if err != nil {
		t.Fatalf("30%% update failed: %v", err)
	}
	if setting.GoalValue != 1300 || setting.BaselineValue != 250 || !setting.BaselineCapturedAt.Equal(capturedAt) {
		t.Fatalf("expected baseline unchanged within 30%%, got %+v", setting)
	}

	svc.WithClock(func() time.Time { return campaignTestNow.Add(time.Hour) })
	setting, err = svc.UpdateGoal(ctx, db.MetricViews, 1703)
	if err != nil {
		t.Fatalf("31%% update failed: %v", err)
	}
	if setting.GoalValue != 1703 || setting.BaselineValue != 550 {
		t.Fatalf("expected baseline reset to 550, got %+v", setting)
	}
	if !setting.BaselineCapturedAt.Equal(campaignTestNow.Add(time.Hour)) {
		t.Fatalf("expected baseline timestamp to move, got %v", setting.BaselineCapturedAt)
	}
}

func TestUpdateGoalValidation(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestCampaignService(gdb)

	if _, err := svc.UpdateGoal(context.Background(), "revenue", 10); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
	if _, err := svc.UpdateGoal(context.Background(), db.MetricViews, -1); err == nil {
		t.Fatalf("expected validation error for negative goal")
	} else if verr, ok := AsValidationError(err); !ok || verr.Field != "goal_value" {
		t.Fatalf("expected goal_value validation error, got %v", err)
	}
}

func TestOverviewProgressAndGrowth(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	seedContent(t, gdb)
	if err := gdb.Create(&db.MetricSetting{MetricName: db.MetricViews, GoalValue: 1000}).Error; err != nil {
		t.Fatalf("failed to seed setting: %v", err)
	}
	svc := newTestCampaignService(gdb)

	overview, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if len(overview) != len(db.KnownMetrics) {
		t.Fatalf("expected %d metrics, got %d", len(db.KnownMetrics), len(overview))
	}

	byName := map[string]MetricOverview{}
	for _, item := range overview {
		byName[item.MetricName] = item
	}

	views := byName[db.MetricViews]
	if views.CurrentValue != 250 || views.Progress != 25 || views.Growth != 100 {
		t.Fatalf("expected current=250 progress=25 growth=100, got %+v", views)
	}

	visitors := byName[db.MetricVisitors]
	if visitors.GoalValue != 0 || visitors.Progress != 0 {
		t.Fatalf("expected unconfigured metric to report zero goal and progress, got %+v", visitors)
	}

	var settings int64
	if err := gdb.Model(&db.MetricSetting{}).Count(&settings).Error; err != nil {
		t.Fatalf("count settings failed: %v", err)
	}
	if settings != int64(len(db.KnownMetrics)) {
		t.Fatalf("expected lazily created settings for every metric, got %d", settings)
	}
}

func TestResetBaseline(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	seedContent(t, gdb)
	svc := newTestCampaignService(gdb)

	setting, err := svc.ResetBaseline(context.Background(), db.MetricContent)
	if err != nil {
		t.Fatalf("reset baseline failed: %v", err)
	}
	if setting.BaselineValue != 3 || setting.GoalValue != 0 || setting.BaselineCapturedAt == nil {
		t.Fatalf("unexpected setting after reset: %+v", setting)
	}
}

func TestProgressAndGrowth(t *testing.T) {
	tests := []struct {
		name                     string
		current, goal, baseline  float64
		wantProgress, wantGrowth float64
	}{
		{name: "quarter of goal", current: 250, goal: 1000, baseline: 0, wantProgress: 25, wantGrowth: 100},
		{name: "capped at goal", current: 1500, goal: 1000, baseline: 1000, wantProgress: 100, wantGrowth: 50},
		{name: "no goal", current: 10, goal: 0, baseline: 20, wantProgress: 0, wantGrowth: -50},
		{name: "nothing yet", current: 0, goal: 0, baseline: 0, wantProgress: 0, wantGrowth: 0},
		{name: "rounded", current: 1, goal: 3, baseline: 3, wantProgress: 33.33, wantGrowth: -66.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.current, tt.goal); got != tt.wantProgress {
				t.Fatalf("expected progress %v, got %v", tt.wantProgress, got)
			}
			if got := Growth(tt.current, tt.baseline); got != tt.wantGrowth {
				t.Fatalf("expected growth %v, got %v", tt.wantGrowth, got)
			}
		})
	}
}

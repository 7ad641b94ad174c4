package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/logging"
	"gorm.io/gorm"
)

var visitorTestNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestVisitorService(gdb *gorm.DB, cache dedup.Cache) *VisitorService {
	return NewVisitorService(gdb, cache, time.UTC, logging.Discard(), nil).
		WithClock(func() time.Time { return visitorTestNow })
}

func insertVisit(t *testing.T, gdb *gorm.DB, hash string, at time.Time) {
	t.Helper()
	event := db.VisitEvent{IdentityHash: hash, Page: "/", OccurredAt: at.UTC(), CreatedAt: at.UTC()}
	if err := gdb.Create(&event).Error; err != nil {
		t.Fatalf("failed to insert visit: %v", err)
	}
}

func TestRecordVisitOncePerDay(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	cache, err := dedup.NewMemoryCache(64)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	cache.WithClock(func() time.Time { return visitorTestNow })
	svc := newTestVisitorService(gdb, cache)
	ctx := context.Background()

	first, err := svc.RecordVisit(ctx, visitor("visitor-a"), "/plants", map[string]interface{}{"user_agent": "test"})
	if err != nil {
		t.Fatalf("first visit failed: %v", err)
	}
	if !first.Recorded || first.TotalVisitors != 1 || first.TodayVisitors != 1 {
		t.Fatalf("unexpected first visit counts: %+v", first)
	}

	second, err := svc.RecordVisit(ctx, visitor("visitor-a"), "/shop", nil)
	if err != nil {
		t.Fatalf("second visit failed: %v", err)
	}
	if second.Recorded || second.TotalVisitors != 1 {
		t.Fatalf("expected repeat visit to be gated, got %+v", second)
	}

	var events int64
	if err := gdb.Model(&db.VisitEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events failed: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected 1 visit event, got %d", events)
	}
}

func TestRecordVisitNoopCacheOverCounts(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestVisitorService(gdb, dedup.NoopCache{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordVisit(ctx, visitor("visitor-a"), "/", nil); err != nil {
			t.Fatalf("visit %d failed: %v", i, err)
		}
	}

	var events int64
	if err := gdb.Model(&db.VisitEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events failed: %v", err)
	}
	if events != 2 {
		t.Fatalf("expected 2 visit events without dedup, got %d", events)
	}

	stats, err := svc.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalVisitors != 1 || stats.AvgVisitsPerVisitor != 2 {
		t.Fatalf("expected 1 visitor with 2 visits, got %+v", stats)
	}
}

func TestVisitorStats(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestVisitorService(gdb, nil)

	insertVisit(t, gdb, "old", visitorTestNow.AddDate(0, 0, -3))
	insertVisit(t, gdb, "old", visitorTestNow.AddDate(0, 0, -2))
	insertVisit(t, gdb, "morning", visitorTestNow.Add(-4*time.Hour))
	insertVisit(t, gdb, "online", visitorTestNow.Add(-2*time.Minute))

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	if stats.TotalVisitors != 3 {
		t.Fatalf("expected total=3, got %d", stats.TotalVisitors)
	}
	if stats.TodayVisitors != 2 {
		t.Fatalf("expected today=2, got %d", stats.TodayVisitors)
	}
	if stats.OnlineUsers != 1 {
		t.Fatalf("expected online=1, got %d", stats.OnlineUsers)
	}
	// 4 visits / 3 visitors
	if stats.AvgVisitsPerVisitor != 1.3 {
		t.Fatalf("expected avg=1.3, got %v", stats.AvgVisitsPerVisitor)
	}
}

func TestVisitorStatsEmpty(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestVisitorService(gdb, nil)

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats != (VisitorStats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestListVisitorsLatestPerIdentity(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestVisitorService(gdb, nil)

	hashA := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	insertVisit(t, gdb, hashA, visitorTestNow.AddDate(0, 0, -2))
	insertVisit(t, gdb, hashB, visitorTestNow.AddDate(0, 0, -1))
	insertVisit(t, gdb, hashA, visitorTestNow.AddDate(0, 0, -1))
	insertVisit(t, gdb, hashA, visitorTestNow.Add(-time.Minute))

	page, err := svc.ListVisitors(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("list visitors failed: %v", err)
	}

	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 visitors, got total=%d items=%d", page.Total, len(page.Items))
	}

	seen := map[string]bool{}
	for _, item := range page.Items {
		if seen[item.IdentityHash] {
			t.Fatalf("duplicate identity %s in listing", item.IdentityHash)
		}
		seen[item.IdentityHash] = true
	}

	latest := page.Items[0]
	if latest.IdentityHash != identity.Redact(hashA) {
		t.Fatalf("expected most recent visitor first, got %s", latest.IdentityHash)
	}
	if latest.VisitCount != 3 {
		t.Fatalf("expected visit_count=3, got %d", latest.VisitCount)
	}
	if !latest.IsOnline || !latest.IsToday {
		t.Fatalf("expected latest visitor online and today, got online=%v today=%v", latest.IsOnline, latest.IsToday)
	}

	other := page.Items[1]
	if other.VisitCount != 1 || other.IsOnline || other.IsToday {
		t.Fatalf("unexpected second visitor row: %+v", other)
	}
}

func TestListVisitorsPagination(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestVisitorService(gdb, nil)

	for i := 0; i < 5; i++ {
		hash := fmt.Sprintf("visitor-%02d", i)
		insertVisit(t, gdb, hash, visitorTestNow.Add(-time.Duration(5-i)*time.Hour))
		insertVisit(t, gdb, hash, visitorTestNow.Add(-time.Duration(5-i)*time.Minute))
	}

	first, err := svc.ListVisitors(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	last, err := svc.ListVisitors(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("last page failed: %v", err)
	}

	if first.Total != 5 || first.TotalPages != 3 || len(first.Items) != 2 {
		t.Fatalf("unexpected first page: total=%d pages=%d items=%d", first.Total, first.TotalPages, len(first.Items))
	}
	if len(last.Items) != 1 {
		t.Fatalf("expected 1 item on last page, got %d", len(last.Items))
	}
	for _, item := range append(first.Items, last.Items...) {
		if item.VisitCount != 2 {
			t.Fatalf("expected visit_count=2 for every visitor, got %d", item.VisitCount)
		}
	}
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{page: 0, perPage: 0, wantPage: 1, wantPerPage: defaultVisitorsPerPage},
		{page: 3, perPage: 500, wantPage: 3, wantPerPage: maxVisitorsPerPage},
		{page: 2, perPage: 15, wantPage: 2, wantPerPage: 15},
	}

	for _, tt := range tests {
		page, perPage := normalizePage(tt.page, tt.perPage)
		if page != tt.wantPage || perPage != tt.wantPerPage {
			t.Fatalf("normalizePage(%d, %d) = %d, %d", tt.page, tt.perPage, page, perPage)
		}
	}
}

func TestVisitorTodayFollowsConfiguredLocation(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	shanghai := time.FixedZone("UTC+8", 8*60*60)
	// 本地 10 月 19 日 01:00，UTC 仍是 10 月 18 日 17:00
	now := time.Date(2026, 10, 19, 1, 0, 0, 0, shanghai)
	svc := NewVisitorService(gdb, nil, shanghai, logging.Discard(), nil).
		WithClock(func() time.Time { return now })

	beforeMidnight := "cccccccccccccccccccccccccccccccc"
	afterMidnight := "dddddddddddddddddddddddddddddddd"
	insertVisit(t, gdb, beforeMidnight, time.Date(2026, 10, 18, 23, 30, 0, 0, shanghai))
	insertVisit(t, gdb, afterMidnight, time.Date(2026, 10, 19, 0, 30, 0, 0, shanghai))

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalVisitors != 2 || stats.TodayVisitors != 1 {
		t.Fatalf("expected total=2 today=1 in local day, got %+v", stats)
	}

	page, err := svc.ListVisitors(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("list visitors failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page.Items))
	}
	if page.Items[0].IdentityHash != identity.Redact(afterMidnight) || !page.Items[0].IsToday {
		t.Fatalf("expected post-midnight visit to count as today, got %+v", page.Items[0])
	}
	if page.Items[1].IdentityHash != identity.Redact(beforeMidnight) || page.Items[1].IsToday {
		t.Fatalf("expected pre-midnight visit to be yesterday, got %+v", page.Items[1])
	}
}

func TestListVisitorsHonoursCancelledContext(t *testing.T) {
	gdb := setupEngagementTestDB(t)
	svc := newTestVisitorService(gdb, nil)
	insertVisit(t, gdb, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", visitorTestNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.ListVisitors(ctx, 1, 10); err == nil {
		t.Fatalf("expected cancelled context to abort listing")
	}
}

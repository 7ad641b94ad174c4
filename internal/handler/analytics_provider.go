package handler

import (
	"context"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/service"
)

type interactionProvider interface {
	ToggleLike(ctx context.Context, target service.Target, who identity.Identity) (service.LikeResult, error)
	SubmitRating(ctx context.Context, target service.Target, who identity.Identity, rating int) (service.RatingResult, error)
	RecordView(ctx context.Context, target service.Target, who identity.Identity) (int64, error)
	GetStats(ctx context.Context, target service.Target) (service.ContentStats, error)
	Mine(ctx context.Context, target service.Target, who identity.Identity) (service.MyInteraction, error)
}

type visitorProvider interface {
	RecordVisit(ctx context.Context, who identity.Identity, page string, metadata map[string]interface{}) (service.VisitorCounts, error)
	GetStats(ctx context.Context) (service.VisitorStats, error)
	ListVisitors(ctx context.Context, page, perPage int) (service.VisitorPage, error)
}

type campaignProvider interface {
	Overview(ctx context.Context) ([]service.MetricOverview, error)
	List(ctx context.Context) ([]db.MetricSetting, error)
	UpdateGoal(ctx context.Context, metric string, goal float64) (db.MetricSetting, error)
	ResetBaseline(ctx context.Context, metric string) (db.MetricSetting, error)
}

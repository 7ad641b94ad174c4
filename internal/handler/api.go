package handler

import (
	"time"

	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/metrics"
	"github.com/gardenpress/engagement/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options 汇总构建 API 所需的可选依赖。
type Options struct {
	Cache    dedup.Cache
	Resolver *identity.Resolver
	Location *time.Location
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db           *gorm.DB
	interactions interactionProvider
	visitors     visitorProvider
	campaigns    campaignProvider
	resolver     *identity.Resolver
	cache        dedup.Cache
	logger       *logrus.Logger
	metrics      *metrics.Metrics
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, opts Options) *API {
	if opts.Cache == nil {
		opts.Cache = dedup.NoopCache{}
	}
	if opts.Resolver == nil {
		opts.Resolver = identity.NewResolver("", true)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	registry := service.NewContentRegistry()

	return &API{
		db:           db,
		interactions: service.NewInteractionService(db, registry, opts.Cache, opts.Logger, opts.Metrics),
		visitors:     service.NewVisitorService(db, opts.Cache, opts.Location, opts.Logger, opts.Metrics),
		campaigns:    service.NewCampaignService(db, registry, opts.Logger, opts.Metrics),
		resolver:     opts.Resolver,
		cache:        opts.Cache,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

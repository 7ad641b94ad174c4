package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gardenpress/engagement/internal/config"
	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/dedup"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gardenpress/engagement/internal/logging"
	"github.com/gardenpress/engagement/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const demoVisitors = 40

// 测试数据生成器
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		logger.WithError(err).Fatal("数据库初始化失败")
	}

	if err := db.EnsureUser(db.DB, "admin", "admin123"); err != nil {
		logger.WithError(err).Fatal("创建管理员失败")
	}

	fmt.Println("开始生成测试数据...")

	if err := createTestContent(db.DB); err != nil {
		logger.WithError(err).Fatal("创建内容失败")
	}
	fmt.Println("✅ 测试内容创建完成")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := simulateEngagement(context.Background(), db.DB, cfg, logger, rng); err != nil {
		logger.WithError(err).Fatal("生成互动数据失败")
	}
	fmt.Println("✅ 互动与访客数据生成完成")

	fmt.Println("测试数据生成完成！")
	fmt.Println("用户: admin (密码: admin123)")
}

// 创建测试内容，已有内容时跳过
func createTestContent(gdb *gorm.DB) error {
	var count int64
	if err := gdb.Model(&db.Article{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("内容已存在，跳过创建")
		return nil
	}

	articles := []db.Article{
		{Title: "阳台番茄从播种到收获", Slug: "balcony-tomato", Status: "published"},
		{Title: "多肉植物的浇水节奏", Slug: "succulent-watering", Status: "published"},
		{Title: "堆肥入门：厨余变黑金", Slug: "compost-101", Status: "published"},
		{Title: "秋季修剪清单", Slug: "autumn-pruning", Status: "draft"},
	}
	videos := []db.Video{
		{Title: "三分钟学会换盆", URL: "https://example.com/videos/repot.mp4", Status: "published"},
		{Title: "滴灌系统安装", URL: "https://example.com/videos/drip.mp4", Status: "published"},
	}
	products := []db.Product{
		{Name: "《庭院四季》", Category: string(service.ContentBook), Price: 68},
		{Name: "碳钢修枝剪", Category: string(service.ContentTool), Price: 89},
		{Name: "自吸水陶土盆", Category: string(service.ContentPot), Price: 45},
		{Name: "植物标签套装", Category: string(service.ContentAccessory), Price: 12},
		{Name: "编辑推荐：新手三件套", Category: string(service.ContentSuggestion), Price: 129},
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&articles).Error; err != nil {
			return err
		}
		if err := tx.Create(&videos).Error; err != nil {
			return err
		}
		return tx.Create(&products).Error
	})
}

// simulateEngagement 通过服务层写入互动，保证台账与计数列一致。
func simulateEngagement(ctx context.Context, gdb *gorm.DB, cfg config.AppConfig, logger *logrus.Logger, rng *rand.Rand) error {
	registry := service.NewContentRegistry()
	resolver := identity.NewResolver(cfg.IdentitySalt, false)
	interactions := service.NewInteractionService(gdb, registry, dedup.NoopCache{}, logger, nil)
	visitors := service.NewVisitorService(gdb, dedup.NoopCache{}, cfg.Location, logger, nil)
	campaigns := service.NewCampaignService(gdb, registry, logger, nil)

	targets, err := demoTargets(gdb)
	if err != nil {
		return err
	}

	for i := 0; i < demoVisitors; i++ {
		who := identity.Identity{IPHash: resolver.Hash(fmt.Sprintf("203.0.113.%d", i+1))}

		if _, err := visitors.RecordVisit(ctx, who, "/", map[string]interface{}{"user_agent": "seed"}); err != nil {
			return err
		}

		for _, target := range targets {
			if rng.Intn(3) == 0 {
				continue
			}
			if _, err := interactions.RecordView(ctx, target, who); err != nil {
				return err
			}
			if rng.Intn(2) == 0 {
				if _, err := interactions.ToggleLike(ctx, target, who); err != nil {
					return err
				}
			}
			if rng.Intn(4) == 0 {
				if _, err := interactions.SubmitRating(ctx, target, who, 1+rng.Intn(5)); err != nil {
					return err
				}
			}
		}
	}

	goals := map[string]float64{
		db.MetricVisitors: 500,
		db.MetricViews:    5000,
		db.MetricContent:  30,
		db.MetricRating:   4.5,
	}
	for metric, goal := range goals {
		if _, err := campaigns.UpdateGoal(ctx, metric, goal); err != nil {
			return err
		}
	}
	return nil
}

func demoTargets(gdb *gorm.DB) ([]service.Target, error) {
	var targets []service.Target

	var articles []db.Article
	if err := gdb.Where("status = ?", "published").Find(&articles).Error; err != nil {
		return nil, err
	}
	for _, article := range articles {
		targets = append(targets, service.Target{Type: service.ContentArticle, ID: article.ID})
	}

	var videos []db.Video
	if err := gdb.Find(&videos).Error; err != nil {
		return nil, err
	}
	for _, video := range videos {
		targets = append(targets, service.Target{Type: service.ContentVideo, ID: video.ID})
	}

	var products []db.Product
	if err := gdb.Find(&products).Error; err != nil {
		return nil, err
	}
	for _, product := range products {
		contentType, err := service.ParseContentType(product.Category)
		if err != nil {
			contentType = service.ContentProduct
		}
		targets = append(targets, service.Target{Type: contentType, ID: product.ID})
	}

	return targets, nil
}

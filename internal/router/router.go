package router

import (
	"net/http"
	"time"

	"github.com/gardenpress/engagement/internal/handler"
	"github.com/gardenpress/engagement/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const sessionName = "engagement_session"

// Options 控制路由层中间件。
type Options struct {
	SessionSecret  string
	AllowedOrigins []string
	Logger         *logrus.Logger
	Gatherer       prometheus.Gatherer
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(logging.Middleware(opts.Logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		opts.Logger.WithFields(logrus.Fields{
			"request_id": logging.RequestID(c),
			"panic":      recovered,
		}).Error("request panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "服务器内部错误",
		})
	}))

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader},
			ExposeHeaders:    []string{logging.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/healthz", api.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)
	}

	public := r.Group("")
	public.Use(api.ResolveIdentity())
	{
		interactions := public.Group("/interactions")
		{
			interactions.POST("/like", api.ToggleLike)
			interactions.POST("/rating", api.SubmitRating)
			interactions.GET("/mine", api.MyInteraction)
			interactions.POST("/view", api.RecordView)
			interactions.GET("/stats", api.ContentStats)
		}

		public.POST("/visitors/increment", api.IncrementVisitor)
	}

	// 需要认证的后台路由
	auth := r.Group("")
	auth.Use(handler.AuthRequired())
	{
		auth.GET("/visitors", api.ListVisitors)
		auth.GET("/visitors/stats", api.VisitorStats)

		campaigns := auth.Group("/campaign-settings")
		{
			campaigns.GET("", api.ListCampaignSettings)
			campaigns.GET("/stats-overview", api.CampaignOverview)
			campaigns.PUT("/:metric", api.UpdateCampaignGoal)
			campaigns.POST("/:metric/reset-baseline", api.ResetCampaignBaseline)
		}
	}

	return r
}

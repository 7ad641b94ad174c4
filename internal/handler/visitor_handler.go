package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gardenpress/engagement/internal/service"
	"github.com/gin-gonic/gin"
)

type visitorRow struct {
	ID           uint                   `json:"id"`
	IdentityHash string                 `json:"identity_hash"`
	Page         string                 `json:"page"`
	OccurredAt   time.Time              `json:"occurred_at"`
	Metadata     map[string]interface{} `json:"metadata"`
	VisitCount   int64                  `json:"visit_count"`
	IsOnline     bool                   `json:"is_online"`
	IsToday      bool                   `json:"is_today"`
}

// IncrementVisitor 记录一次站点访问并返回最新访客数。
func (a *API) IncrementVisitor(c *gin.Context) {
	page := strings.TrimSpace(c.Query("page"))
	if page == "" {
		page = "/"
	}

	counts, err := a.visitors.RecordVisit(c.Request.Context(), a.currentIdentity(c), page, visitMetadata(c))
	if err != nil {
		a.respondServiceError(c, err, "record visit")
		return
	}

	message := "访问已记录"
	if !counts.Recorded {
		message = "今日已记录"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"total_visitors": counts.TotalVisitors,
		"today_visitors": counts.TodayVisitors,
		"message":        message,
	})
}

// VisitorStats 返回访客概览。
func (a *API) VisitorStats(c *gin.Context) {
	stats, err := a.visitors.GetStats(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "load visitor stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                true,
		"total_visitors":         stats.TotalVisitors,
		"today_visitors":         stats.TodayVisitors,
		"online_users":           stats.OnlineUsers,
		"avg_visits_per_visitor": stats.AvgVisitsPerVisitor,
	})
}

// ListVisitors 分页返回去重后的访客列表。
func (a *API) ListVisitors(c *gin.Context) {
	result, err := a.visitors.ListVisitors(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "per_page", 0))
	if err != nil {
		a.respondServiceError(c, err, "list visitors")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    visitorRows(result.Items),
		"pagination": gin.H{
			"page":        result.Page,
			"per_page":    result.PerPage,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func visitorRows(items []service.VisitorRow) []visitorRow {
	rows := make([]visitorRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, visitorRow{
			ID:           item.ID,
			IdentityHash: item.IdentityHash,
			Page:         item.Page,
			OccurredAt:   item.OccurredAt,
			Metadata:     item.Metadata,
			VisitCount:   item.VisitCount,
			IsOnline:     item.IsOnline,
			IsToday:      item.IsToday,
		})
	}
	return rows
}

// visitMetadata 只保留排查用的非身份请求头，不记录任何 IP。
func visitMetadata(c *gin.Context) map[string]interface{} {
	metadata := map[string]interface{}{}
	for key, header := range map[string]string{
		"user_agent":      "User-Agent",
		"referer":         "Referer",
		"accept_language": "Accept-Language",
	} {
		if value := strings.TrimSpace(c.GetHeader(header)); value != "" {
			metadata[key] = value
		}
	}
	return metadata
}

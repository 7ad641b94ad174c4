package handler

import (
	"net/http"

	"github.com/gardenpress/engagement/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ratingRequest struct {
	targetRequest
	Rating int `json:"rating"`
}

// ToggleLike 切换当前访客对内容的点赞状态。
func (a *API) ToggleLike(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	target, err := req.target()
	if err != nil {
		a.respondServiceError(c, err, "toggle like")
		return
	}

	result, err := a.interactions.ToggleLike(c.Request.Context(), target, a.currentIdentity(c))
	if err != nil {
		a.respondServiceError(c, err, "toggle like")
		return
	}

	message := "点赞成功"
	if !result.IsLiked {
		message = "已取消点赞"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"is_liked":   result.IsLiked,
		"like_count": result.LikeCount,
		"message":    message,
	})
}

// SubmitRating 提交或更新 1-5 分评分。
func (a *API) SubmitRating(c *gin.Context) {
	var req ratingRequest
	if !bindJSON(c, &req) {
		return
	}
	target, err := req.target()
	if err != nil {
		a.respondServiceError(c, err, "submit rating")
		return
	}

	result, err := a.interactions.SubmitRating(c.Request.Context(), target, a.currentIdentity(c), req.Rating)
	if err != nil {
		a.respondServiceError(c, err, "submit rating")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"rating":         result.Rating,
		"average_rating": result.AverageRating,
		"rating_count":   result.RatingCount,
		"message":        "评分成功",
	})
}

// MyInteraction 返回当前访客是否已点赞以及其评分。
func (a *API) MyInteraction(c *gin.Context) {
	target, err := queryTarget(c)
	if err != nil {
		a.respondServiceError(c, err, "load my interaction")
		return
	}

	result, err := a.interactions.Mine(c.Request.Context(), target, a.currentIdentity(c))
	if err != nil {
		a.respondServiceError(c, err, "load my interaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"is_liked":    result.IsLiked,
		"user_rating": result.UserRating,
	})
}

// RecordView 记录浏览。除参数校验外的任何失败都返回成功，浏览统计不能影响内容渲染。
func (a *API) RecordView(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	target, err := req.target()
	if err != nil {
		a.respondServiceError(c, err, "record view")
		return
	}

	views, err := a.interactions.RecordView(c.Request.Context(), target, a.currentIdentity(c))
	if err != nil {
		a.metrics.ViewFallback()
		a.requestLogger(c).WithFields(logrus.Fields{
			"content_type": target.Type,
			"content_id":   target.ID,
			"error":        err,
		}).Warn("view tracking failed, answering fallback count")
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"view_count": 1,
			"message":    "浏览已记录",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"view_count": views,
		"message":    "浏览已记录",
	})
}

// ContentStats 返回内容的点赞、浏览与评分汇总。
func (a *API) ContentStats(c *gin.Context) {
	target, err := queryTarget(c)
	if err != nil {
		a.respondServiceError(c, err, "load content stats")
		return
	}

	stats, err := a.interactions.GetStats(c.Request.Context(), target)
	if err != nil {
		a.respondServiceError(c, err, "load content stats")
		return
	}

	c.JSON(http.StatusOK, statsResponse(stats))
}

func statsResponse(stats service.ContentStats) gin.H {
	return gin.H{
		"success":           true,
		"like_count":        stats.LikeCount,
		"view_count":        stats.ViewCount,
		"unique_view_count": stats.UniqueViewCount,
		"average_rating":    stats.AverageRating,
		"rating_count":      stats.RatingCount,
	}
}

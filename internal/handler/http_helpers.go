package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gardenpress/engagement/internal/logging"
	"github.com/gardenpress/engagement/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	msgInvalidRequest = "请求参数不合法"
	msgContentMissing = "内容不存在"
	msgMetricMissing  = "指标不存在"
	msgInternal       = "操作失败，请稍后重试"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func respondValidation(c *gin.Context, verr *service.ValidationError) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"success": false,
		"message": msgInvalidRequest,
		"errors":  gin.H{verr.Field: verr.Message},
	})
}

// respondServiceError 将服务层错误映射为 HTTP 响应，未知错误只返回通用提示并记录详情。
func (a *API) respondServiceError(c *gin.Context, err error, action string) {
	if verr, ok := service.AsValidationError(err); ok {
		respondValidation(c, verr)
		return
	}

	switch {
	case errors.Is(err, service.ErrContentNotFound):
		respondError(c, http.StatusNotFound, msgContentMissing)
	case errors.Is(err, service.ErrUnknownMetric):
		respondError(c, http.StatusNotFound, msgMetricMissing)
	default:
		a.requestLogger(c).WithError(err).Error(action + " failed")
		respondError(c, http.StatusInternalServerError, msgInternal)
	}
}

func (a *API) requestLogger(c *gin.Context) *logrus.Entry {
	return a.logger.WithField("request_id", logging.RequestID(c))
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondValidation(c, &service.ValidationError{Field: "body", Message: "invalid JSON payload"})
		return false
	}
	return true
}

type targetRequest struct {
	ContentType string `json:"content_type" form:"content_type"`
	ContentID   int64  `json:"content_id" form:"content_id"`
}

func (r targetRequest) target() (service.Target, error) {
	return service.NewTarget(r.ContentType, r.ContentID)
}

// queryTarget 从查询参数解析内容目标。
func queryTarget(c *gin.Context) (service.Target, error) {
	rawID := strings.TrimSpace(c.Query("content_id"))
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return service.Target{}, &service.ValidationError{Field: "content_id", Message: "must be a positive integer"}
	}
	return service.NewTarget(c.Query("content_type"), id)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

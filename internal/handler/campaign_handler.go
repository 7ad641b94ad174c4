package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/service"
	"github.com/gin-gonic/gin"
)

type metricSettingResponse struct {
	MetricName         string     `json:"metric_name"`
	GoalValue          float64    `json:"goal_value"`
	BaselineValue      float64    `json:"baseline_value"`
	BaselineCapturedAt *time.Time `json:"baseline_captured_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type metricOverviewResponse struct {
	MetricName         string     `json:"metric_name"`
	CurrentValue       float64    `json:"current_value"`
	GoalValue          float64    `json:"goal_value"`
	BaselineValue      float64    `json:"baseline_value"`
	BaselineCapturedAt *time.Time `json:"baseline_captured_at"`
	Progress           float64    `json:"progress"`
	Growth             float64    `json:"growth"`
}

type updateGoalRequest struct {
	GoalValue *float64 `json:"goal_value"`
}

// CampaignOverview 返回全部指标的当前值、目标、基线、进度与增长，按指标名索引。
func (a *API) CampaignOverview(c *gin.Context) {
	overview, err := a.campaigns.Overview(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "load campaign overview")
		return
	}

	payload := make(map[string]metricOverviewResponse, len(overview))
	for _, item := range overview {
		payload[item.MetricName] = metricOverviewResponse{
			MetricName:         item.MetricName,
			CurrentValue:       item.CurrentValue,
			GoalValue:          item.GoalValue,
			BaselineValue:      item.BaselineValue,
			BaselineCapturedAt: item.BaselineCapturedAt,
			Progress:           item.Progress,
			Growth:             item.Growth,
		}
	}
	c.JSON(http.StatusOK, payload)
}

// ListCampaignSettings 返回全部指标配置。
func (a *API) ListCampaignSettings(c *gin.Context) {
	settings, err := a.campaigns.List(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "list campaign settings")
		return
	}

	data := make([]metricSettingResponse, 0, len(settings))
	for _, setting := range settings {
		data = append(data, settingResponse(setting))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// UpdateCampaignGoal 更新指标目标值，变化超过 30% 时自动重置基线。
func (a *API) UpdateCampaignGoal(c *gin.Context) {
	metric := strings.TrimSpace(c.Param("metric"))
	if !db.IsKnownMetric(metric) {
		respondError(c, http.StatusNotFound, msgMetricMissing)
		return
	}

	var req updateGoalRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.GoalValue == nil {
		respondValidation(c, &service.ValidationError{Field: "goal_value", Message: "is required"})
		return
	}

	setting, err := a.campaigns.UpdateGoal(c.Request.Context(), metric, *req.GoalValue)
	if err != nil {
		a.respondServiceError(c, err, "update campaign goal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settingResponse(setting)})
}

// ResetCampaignBaseline 立即以当前值作为新基线。
func (a *API) ResetCampaignBaseline(c *gin.Context) {
	setting, err := a.campaigns.ResetBaseline(c.Request.Context(), strings.TrimSpace(c.Param("metric")))
	if err != nil {
		a.respondServiceError(c, err, "reset campaign baseline")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settingResponse(setting)})
}

func settingResponse(setting db.MetricSetting) metricSettingResponse {
	return metricSettingResponse{
		MetricName:         setting.MetricName,
		GoalValue:          setting.GoalValue,
		BaselineValue:      setting.BaselineValue,
		BaselineCapturedAt: setting.BaselineCapturedAt,
		UpdatedAt:          setting.UpdatedAt,
	}
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 汇总互动统计模块的 Prometheus 指标。所有方法对 nil 接收者安全。
type Metrics struct {
	InteractionsTotal   *prometheus.CounterVec
	DedupDecisionsTotal *prometheus.CounterVec
	CounterSyncFailures *prometheus.CounterVec
	ViewFallbacksTotal  prometheus.Counter
	VisitsRecordedTotal prometheus.Counter
	GoalUpdatesTotal    *prometheus.CounterVec
}

// New 创建并注册全部指标。
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		InteractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_interactions_total",
				Help: "Interactions written to the ledger",
			},
			[]string{"kind", "content_type"},
		),
		DedupDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_dedup_decisions_total",
				Help: "Dedup cache decisions by scope and result",
			},
			[]string{"scope", "result"},
		),
		CounterSyncFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_counter_sync_failures_total",
				Help: "Failed writes of denormalized content counters",
			},
			[]string{"column"},
		),
		ViewFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engagement_view_fallbacks_total",
				Help: "View requests answered with the fallback count",
			},
		),
		VisitsRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engagement_visits_recorded_total",
				Help: "Visit events inserted into the visitor ledger",
			},
		),
		GoalUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_goal_updates_total",
				Help: "Goal updates by metric and whether the baseline was reset",
			},
			[]string{"metric", "baseline_reset"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.InteractionsTotal,
			m.DedupDecisionsTotal,
			m.CounterSyncFailures,
			m.ViewFallbacksTotal,
			m.VisitsRecordedTotal,
			m.GoalUpdatesTotal,
		)
	}

	return m
}

// Interaction 记录一次台账写入。
func (m *Metrics) Interaction(kind, contentType string) {
	if m == nil {
		return
	}
	m.InteractionsTotal.WithLabelValues(kind, contentType).Inc()
}

// Dedup 记录一次去重判定，result 为 record/skip/error。
func (m *Metrics) Dedup(scope, result string) {
	if m == nil {
		return
	}
	m.DedupDecisionsTotal.WithLabelValues(scope, result).Inc()
}

// SyncFailure 记录一次计数列回写失败。
func (m *Metrics) SyncFailure(column string) {
	if m == nil {
		return
	}
	m.CounterSyncFailures.WithLabelValues(column).Inc()
}

// ViewFallback 记录一次浏览接口降级。
func (m *Metrics) ViewFallback() {
	if m == nil {
		return
	}
	m.ViewFallbacksTotal.Inc()
}

// VisitRecorded 记录一次访问入库。
func (m *Metrics) VisitRecorded() {
	if m == nil {
		return
	}
	m.VisitsRecordedTotal.Inc()
}

// GoalUpdated 记录一次目标更新。
func (m *Metrics) GoalUpdated(metric string, baselineReset bool) {
	if m == nil {
		return
	}
	m.GoalUpdatesTotal.WithLabelValues(metric, strconv.FormatBool(baselineReset)).Inc()
}

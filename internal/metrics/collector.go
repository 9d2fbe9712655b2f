// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/compliance"
)

// Collector 指标收集器
//
// 会话级指标（sessions / risk / duration）在每个终态迁移上恰好
// 记一次；跨会话共享状态仅限这些单调递增的计数器。
type Collector struct {
	// 会话指标
	sessionsTotal   *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	sessionRisk     prometheus.Histogram
	sessionDuration prometheus.Histogram

	// 评估指标
	evaluationsTotal  prometheus.Counter
	evaluationRisk    prometheus.Histogram
	patternDetections *prometheus.CounterVec
	entityDetections  *prometheus.CounterVec

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

var _ compliance.MetricsSink = (*Collector)(nil)

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of streaming sessions by outcome",
		},
		[]string{"outcome"},
	)

	c.activeSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of streaming sessions currently in flight",
		},
	)

	c.sessionRisk = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_max_risk_score",
			Help:      "Maximum risk score observed per session",
			Buckets:   []float64{0, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5},
		},
	)

	c.sessionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Streaming session duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	c.evaluationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of risk evaluations performed",
		},
	)

	c.evaluationRisk = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_risk_score",
			Help:      "Risk score per evaluation window",
			Buckets:   []float64{0, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5},
		},
	)

	c.patternDetections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pattern_detections_total",
			Help:      "Total pattern rule hits by rule name",
		},
		[]string{"rule"},
	)

	c.entityDetections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_detections_total",
			Help:      "Total recognized entities by type",
		},
		[]string{"entity_type"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// SessionStarted 会话开始，in-flight 计数 +1。
func (c *Collector) SessionStarted() {
	c.activeSessions.Inc()
}

// RecordSession 记录一次会话终态。
func (c *Collector) RecordSession(outcome compliance.SessionOutcome, maxRisk float64, duration time.Duration) {
	c.sessionsTotal.WithLabelValues(string(outcome)).Inc()
	c.sessionRisk.Observe(maxRisk)
	c.sessionDuration.Observe(duration.Seconds())
	c.activeSessions.Dec()
}

// RecordEvaluation 记录一次风险评估。
func (c *Collector) RecordEvaluation(score float64) {
	c.evaluationsTotal.Inc()
	c.evaluationRisk.Observe(score)
}

// RecordPatternDetection 记录一次模式规则命中。
func (c *Collector) RecordPatternDetection(rule string) {
	c.patternDetections.WithLabelValues(rule).Inc()
}

// RecordEntityDetection 记录一次实体命中。
func (c *Collector) RecordEntityDetection(entityType string) {
	c.entityDetections.WithLabelValues(entityType).Inc()
}

// RecordHTTPRequest 记录一次 HTTP 请求。
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

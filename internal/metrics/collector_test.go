package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/moxer-mmh/blocking-responses-poc/compliance"
)

func newTestCollector() (*Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewCollector("blockingd", reg, nil), reg
}

func TestCollector_SessionLifecycle(t *testing.T) {
	c, _ := newTestCollector()

	c.SessionStarted()
	c.SessionStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeSessions))

	c.RecordSession(compliance.OutcomeCompleted, 0.3, 500*time.Millisecond)
	c.RecordSession(compliance.OutcomeBlocked, 1.7, 200*time.Millisecond)

	// in-flight 计数在终态上回落。
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsTotal.WithLabelValues("blocked")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sessionsTotal.WithLabelValues("errored")))
}

func TestCollector_EvaluationCounters(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordEvaluation(0.4)
	c.RecordEvaluation(1.2)
	c.RecordPatternDetection("ssn")
	c.RecordPatternDetection("ssn")
	c.RecordPatternDetection("email")
	c.RecordEntityDetection("US_SSN")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.evaluationsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.patternDetections.WithLabelValues("ssn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.patternDetections.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.entityDetections.WithLabelValues("US_SSN")))
}

func TestCollector_HTTPRequests(t *testing.T) {
	c, reg := newTestCollector()

	c.RecordHTTPRequest("POST", "/v1/chat/stream", 200, 30*time.Millisecond)
	c.RecordHTTPRequest("POST", "/v1/chat/stream", 200, 45*time.Millisecond)
	c.RecordHTTPRequest("GET", "/v1/health", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/chat/stream", "200")))

	// 所有指标族都注册在传入的 registry 上。
	families, err := reg.Gather()
	assert.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["blockingd_http_requests_total"])
	assert.True(t, names["blockingd_sessions_total"])
	assert.True(t, names["blockingd_evaluations_total"])
}

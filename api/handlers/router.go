package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moxer-mmh/blocking-responses-poc/internal/ctxkeys"
	"github.com/moxer-mmh/blocking-responses-poc/internal/metrics"
)

// Router 装配所有 HTTP 路由。
type Router struct {
	Stream  *StreamHandler
	Assess  *AssessHandler
	Health  *HealthHandler
	Audit   *AuditHandler
	Policy  *PolicyHandler
	Metrics *metrics.Collector // 可为 nil（禁用 /metrics）
}

// Build 构建 http.Handler。
func (rt *Router) Build() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat/stream", rt.Stream.HandleStream)
	mux.HandleFunc("POST /v1/assess", rt.Assess.HandleAssess)
	mux.HandleFunc("GET /v1/health", rt.Health.HandleHealth)
	mux.HandleFunc("GET /v1/audit/logs", rt.Audit.HandleLogs)
	mux.HandleFunc("GET /v1/compliance/patterns", rt.Policy.HandlePatterns)
	mux.HandleFunc("GET /v1/compliance/config", rt.Policy.HandleConfig)

	if rt.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		return requestIDMiddleware(rt.metricsMiddleware(mux))
	}
	return requestIDMiddleware(mux)
}

// requestIDMiddleware 为每个请求分配追踪 ID（客户端可自带）。
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequestID(r.Context(), id)))
	})
}

// metricsMiddleware 记录每个请求的计数与时延。
func (rt *Router) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		rt.Metrics.RecordHTTPRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

// statusWriter 捕获响应状态码，透传 Flusher 以免破坏 SSE。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

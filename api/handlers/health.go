package handlers

import (
	"net/http"
	"time"

	"github.com/moxer-mmh/blocking-responses-poc/api"
)

// HealthHandler 健康检查端点。
type HealthHandler struct {
	version   string
	startedAt time.Time
}

// NewHealthHandler 创建健康检查处理器。
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startedAt: time.Now(),
	}
}

// HandleHealth 处理 GET /v1/health。
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, api.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
		Time:    time.Now().UTC(),
	})
}

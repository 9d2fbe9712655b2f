package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/api"
	"github.com/moxer-mmh/blocking-responses-poc/audit"
	"github.com/moxer-mmh/blocking-responses-poc/types"
)

// AuditQuerier 可查询的审计存储（SQLSink 与 MemorySink 均满足）。
type AuditQuerier interface {
	Recent(ctx context.Context, limit int, eventType string) ([]*audit.Event, error)
}

// AuditHandler 审计日志查询端点。
type AuditHandler struct {
	store  AuditQuerier
	logger *zap.Logger
}

// NewAuditHandler 创建审计查询处理器。store 可为 nil（驱动 none）。
func NewAuditHandler(store AuditQuerier, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		store:  store,
		logger: logger.With(zap.String("handler", "audit")),
	}
}

// HandleLogs 处理 GET /v1/audit/logs?limit=&event_type=。
func (h *AuditHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "audit storage disabled", h.logger)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be in [1, 500]", h.logger)
			return
		}
		limit = n
	}
	eventType := r.URL.Query().Get("event_type")

	events, err := h.store.Recent(r.Context(), limit, eventType)
	if err != nil {
		WriteError(w, types.NewError(types.ErrAuditError, "audit query failed").WithCause(err), h.logger)
		return
	}

	entries := make([]api.AuditEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, api.AuditEntry{
			EventType:          string(e.Type),
			SessionID:          e.SessionID,
			InputHash:          e.InputHash,
			BlockedContentHash: e.BlockedContentHash,
			RiskScore:          e.RiskScore,
			TriggeredRules:     e.TriggeredRules,
			Entities:           e.Entities,
			Region:             e.Region,
			Timestamp:          e.Timestamp,
			ProcessingTimeMs:   e.ProcessingTime.Milliseconds(),
		})
	}
	WriteSuccess(w, entries)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/api"
	"github.com/moxer-mmh/blocking-responses-poc/compliance"
	"github.com/moxer-mmh/blocking-responses-poc/types"
)

// AssessHandler 一次性风险评估端点。
type AssessHandler struct {
	gate   *compliance.Gate
	logger *zap.Logger
}

// NewAssessHandler 创建评估处理器。
func NewAssessHandler(gate *compliance.Gate, logger *zap.Logger) *AssessHandler {
	return &AssessHandler{
		gate:   gate,
		logger: logger.With(zap.String("handler", "assess")),
	}
}

// HandleAssess 处理 POST /v1/assess。
// 相同输入与地区在固定权重下得分恒定（幂等）。
func (h *AssessHandler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	var req api.AssessRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Text == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "text is required", h.logger)
		return
	}

	verdict, err := h.gate.Assess(r.Context(), req.Text, req.Region, 0)
	if err != nil {
		WriteError(w, types.NewError(types.ErrAssessorError, "assessment failed").WithCause(err), h.logger)
		return
	}

	resp := api.AssessResponse{
		Score:    verdict.Score,
		Decision: string(verdict.Decision),
	}
	for _, f := range verdict.Findings {
		resp.Findings = append(resp.Findings, api.FindingInfo{
			Rule:       f.Rule,
			Detail:     f.Detail,
			Weight:     f.Weight,
			EntityType: f.EntityType,
			Confidence: f.Confidence,
		})
	}
	WriteSuccess(w, resp)
}

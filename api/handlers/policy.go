package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/api"
	"github.com/moxer-mmh/blocking-responses-poc/compliance"
)

// PolicyHandler 暴露当前生效的策略与模式规则（只读）。
type PolicyHandler struct {
	policy   *compliance.Policy
	detector *compliance.PatternDetector
	logger   *zap.Logger
}

// NewPolicyHandler 创建策略查询处理器。
func NewPolicyHandler(policy *compliance.Policy, detector *compliance.PatternDetector, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		policy:   policy,
		detector: detector,
		logger:   logger.With(zap.String("handler", "policy")),
	}
}

// HandlePatterns 处理 GET /v1/compliance/patterns。
func (h *PolicyHandler) HandlePatterns(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, api.PatternsResponse{Rules: h.detector.Rules()})
}

// HandleConfig 处理 GET /v1/compliance/config。
func (h *PolicyHandler) HandleConfig(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, api.PolicyResponse{
		RiskThreshold:   h.policy.Threshold,
		ConfidenceFloor: h.policy.ConfidenceFloor,
		EntityWeight:    h.policy.EntityWeight,
		Weights:         h.policy.Weights,
		RegionalWeights: h.policy.RegionalWeights,
	})
}

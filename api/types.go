package api

import "time"

// StreamRequest 流式中继请求。
// @Description 流式聊天请求结构
type StreamRequest struct {
	// 用户输入
	Message string `json:"message" binding:"required"`
	// 模型名称（透传给上游）
	Model string `json:"model,omitempty" example:"gpt-4o-mini"`
	// 合规地区（HIPAA / PCI / GDPR / CCPA），留空用服务默认
	Region string `json:"region,omitempty" example:"HIPAA"`
	// 覆盖本次会话的风险阈值（0 表示用服务默认）
	RiskThreshold float64 `json:"risk_threshold,omitempty" example:"1.0"`
	// 覆盖尾部滞留的 token 数（0 表示用服务默认）
	LookaheadTokens int `json:"lookahead_tokens,omitempty" example:"24"`
	// 覆盖释放间隔（毫秒，0 表示用服务默认）
	FlushIntervalMs int `json:"flush_interval_ms,omitempty" example:"250"`
}

// AssessRequest 一次性风险评估请求。
type AssessRequest struct {
	Text   string `json:"text" binding:"required"`
	Region string `json:"region,omitempty" example:"PCI"`
}

// AssessResponse 一次性风险评估结果。
type AssessResponse struct {
	Score    float64       `json:"score"`
	Decision string        `json:"decision"`
	Findings []FindingInfo `json:"findings,omitempty"`
}

// FindingInfo 单条触发记录。
type FindingInfo struct {
	Rule       string  `json:"rule"`
	Detail     string  `json:"detail,omitempty"`
	Weight     float64 `json:"weight,omitempty"`
	EntityType string  `json:"entity_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// HealthResponse 健康检查响应。
type HealthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Uptime  string    `json:"uptime"`
	Time    time.Time `json:"time"`
}

// AuditEntry 审计日志条目（查询接口返回）。
type AuditEntry struct {
	EventType          string    `json:"event_type"`
	SessionID          string    `json:"session_id"`
	InputHash          string    `json:"input_hash"`
	BlockedContentHash string    `json:"blocked_content_hash,omitempty"`
	RiskScore          float64   `json:"risk_score"`
	TriggeredRules     []string  `json:"triggered_rules,omitempty"`
	Entities           []string  `json:"entities,omitempty"`
	Region             string    `json:"region,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	ProcessingTimeMs   int64     `json:"processing_time_ms"`
}

// PatternsResponse 已注册的模式规则列表。
type PatternsResponse struct {
	Rules []string `json:"rules"`
}

// PolicyResponse 当前生效的策略配置。
type PolicyResponse struct {
	RiskThreshold   float64                       `json:"risk_threshold"`
	ConfidenceFloor float64                       `json:"confidence_floor"`
	EntityWeight    float64                       `json:"entity_weight"`
	Weights         map[string]float64            `json:"weights"`
	RegionalWeights map[string]map[string]float64 `json:"regional_weights,omitempty"`
}

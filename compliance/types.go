package compliance

import (
	"context"
	"time"
)

// Decision 是一次风险评估的结论。
type Decision string

const (
	// DecisionAllow 允许内容继续下发
	DecisionAllow Decision = "ALLOW"
	// DecisionBlock 否决会话，停止一切后续下发
	DecisionBlock Decision = "BLOCK"
)

// Finding 记录一条触发的规则或实体。
type Finding struct {
	Rule       string  `json:"rule"`
	Detail     string  `json:"detail,omitempty"`
	Weight     float64 `json:"weight"`
	EntityType string  `json:"entity_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Assessment 是模式检测器对一段文本的打分结果。
type Assessment struct {
	Score       float64   `json:"score"`
	Findings    []Finding `json:"findings,omitempty"`
	SnippetHash string    `json:"snippet_hash,omitempty"`
	Region      string    `json:"region,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Verdict 合并模式与实体得分后的最终裁决。
type Verdict struct {
	Score    float64   `json:"score"`
	Decision Decision  `json:"decision"`
	Findings []Finding `json:"findings,omitempty"`
}

// Blocked reports whether the verdict vetoes the session.
func (v *Verdict) Blocked() bool {
	return v.Decision == DecisionBlock
}

// AnalysisWindow 描述一次滑动窗口评估。
type AnalysisWindow struct {
	StartToken   int       `json:"start_token"`
	EndToken     int       `json:"end_token"`
	Text         string    `json:"-"`
	PatternScore float64   `json:"pattern_score"`
	EntityScore  float64   `json:"entity_score"`
	TotalScore   float64   `json:"total_score"`
	Findings     []Finding `json:"findings,omitempty"`
	Decision     Decision  `json:"decision"`
	Position     int       `json:"position"`
	Timestamp    time.Time `json:"timestamp"`
}

// Entity 是实体识别器返回的一条命中。
type Entity struct {
	Type       string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text,omitempty"`
}

// EntityResult 是实体识别器对一段文本的输出。
// 计分（置信度下限过滤、权重乘积）由 Gate 统一完成，
// 识别器只负责报告命中。
type EntityResult struct {
	Entities []Entity `json:"entities,omitempty"`
}

// RiskAssessor 对一段文本做模式打分。
// 实现必须无状态：相同的 text+region 必须产生相同结果。
type RiskAssessor interface {
	Assess(ctx context.Context, text, region string) (*Assessment, error)
}

// EntityRecognizer 识别文本中的命名实体并给出置信度。
// 置信度低于策略下限的实体在计分前被丢弃。
type EntityRecognizer interface {
	Analyze(ctx context.Context, text string) (*EntityResult, error)
}

// Arbiter 是可选的二次仲裁步骤。
// 返回 error 时按 BLOCK 处理（fail-closed）：降级的安全检查
// 绝不能静默变成零风险。
type Arbiter interface {
	Review(ctx context.Context, text string, verdict *Verdict) (Decision, error)
}

// SessionOutcome 会话终态的指标标签。
type SessionOutcome string

const (
	OutcomeCompleted    SessionOutcome = "completed"
	OutcomeBlocked      SessionOutcome = "blocked"
	OutcomeErrored      SessionOutcome = "errored"
	OutcomeDisconnected SessionOutcome = "disconnected"
)

// MetricsSink 接收会话级计数。实现必须并发安全；
// 注入而非单例，保证会话可并行测试互不污染。
type MetricsSink interface {
	RecordSession(outcome SessionOutcome, riskScore float64, processingTime time.Duration)
	RecordEvaluation(score float64)
	RecordPatternDetection(rule string)
	RecordEntityDetection(entityType string)
}

// NopMetrics 丢弃所有计数。
type NopMetrics struct{}

func (NopMetrics) RecordSession(SessionOutcome, float64, time.Duration) {}
func (NopMetrics) RecordEvaluation(float64)                             {}
func (NopMetrics) RecordPatternDetection(string)                        {}
func (NopMetrics) RecordEntityDetection(string)                         {}

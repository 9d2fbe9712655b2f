package compliance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/audit"
)

// GateConfig 阻断决策引擎的装配配置。
type GateConfig struct {
	// Policy 风险策略，nil 时使用 DefaultPolicy。
	Policy *Policy
	// Assessor 模式打分器，nil 时使用内置 PatternDetector。
	Assessor RiskAssessor
	// Recognizer 可选的实体识别器。
	Recognizer EntityRecognizer
	// Arbiter 可选的二次仲裁。
	Arbiter Arbiter
	// Audit 审计接收方，nil 时丢弃。
	Audit audit.Sink
	// Metrics 指标接收方，nil 时丢弃。
	Metrics MetricsSink
	// Logger 结构化日志。
	Logger *zap.Logger
}

// Gate 把模式得分与实体得分合成一个裁决，并驱动会话状态机。
//
// 评估路径的任何失败都按 BLOCK 处理（fail-closed）。
// 审计与指标副作用在每个终态迁移上恰好发生一次。
type Gate struct {
	policy     *Policy
	assessor   RiskAssessor
	recognizer EntityRecognizer
	arbiter    Arbiter
	audit      audit.Sink
	metrics    MetricsSink
	logger     *zap.Logger
}

// NewGate 创建阻断决策引擎。
func NewGate(cfg GateConfig) *Gate {
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Assessor == nil {
		cfg.Assessor = NewPatternDetector(cfg.Policy)
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopSink{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Gate{
		policy:     cfg.Policy,
		assessor:   cfg.Assessor,
		recognizer: cfg.Recognizer,
		arbiter:    cfg.Arbiter,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Policy 返回装配的策略。
func (g *Gate) Policy() *Policy { return g.policy }

// Assess 对一段文本做一次完整裁决：模式得分 + 实体得分，
// 再与阈值做含等于比较。threshold <= 0 时使用策略默认值。
//
// 评估器失败不返回 ALLOW：模式打分或实体识别出错时
// 直接给出 BLOCK 裁决（fail-closed），error 仅用于 ctx 取消。
func (g *Gate) Assess(ctx context.Context, text, region string, threshold float64) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = g.policy.Threshold
	}

	verdict := &Verdict{Decision: DecisionAllow}

	assessment, err := g.assessor.Assess(ctx, text, region)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Error("risk assessor failed, failing closed", zap.Error(err))
		verdict.Decision = DecisionBlock
		verdict.Findings = append(verdict.Findings, Finding{
			Rule: "assessor_error", Detail: err.Error(),
		})
		return verdict, nil
	}
	verdict.Score = assessment.Score
	verdict.Findings = append(verdict.Findings, assessment.Findings...)

	if g.recognizer != nil {
		entityScore, findings, err := g.scoreEntities(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Error("entity recognizer failed, failing closed", zap.Error(err))
			verdict.Decision = DecisionBlock
			verdict.Findings = append(verdict.Findings, Finding{
				Rule: "recognizer_error", Detail: err.Error(),
			})
			return verdict, nil
		}
		verdict.Score += entityScore
		verdict.Findings = append(verdict.Findings, findings...)
	}

	if verdict.Score >= threshold {
		verdict.Decision = DecisionBlock
	}
	return verdict, nil
}

// scoreEntities 应用置信度下限并按 entityWeight × confidence 计分。
func (g *Gate) scoreEntities(ctx context.Context, text string) (float64, []Finding, error) {
	result, err := g.recognizer.Analyze(ctx, text)
	if err != nil {
		return 0, nil, err
	}

	var score float64
	var findings []Finding
	for _, e := range result.Entities {
		if e.Confidence < g.policy.ConfidenceFloor {
			continue
		}
		w := g.policy.EntityWeight * e.Confidence
		score += w
		findings = append(findings, Finding{
			Rule:       "entity",
			Detail:     fmt.Sprintf("%s detected (confidence: %.2f)", e.Type, e.Confidence),
			Weight:     w,
			EntityType: e.Type,
			Confidence: e.Confidence,
		})
	}
	return score, findings, nil
}

// EvaluateWindow 评估一个滑动窗口并更新会话累计状态。
// 仲裁器仅在基础裁决为 ALLOW 时介入；仲裁出错按 BLOCK 处理。
func (g *Gate) EvaluateWindow(ctx context.Context, sess *Session, text string, startToken, endToken, position int) (*AnalysisWindow, error) {
	verdict, err := g.Assess(ctx, text, sess.Params.Region, sess.Params.RiskThreshold)
	if err != nil {
		return nil, err
	}

	if g.arbiter != nil && verdict.Decision == DecisionAllow {
		decision, err := g.arbiter.Review(ctx, text, verdict)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Error("arbiter failed, failing closed", zap.Error(err))
			decision = DecisionBlock
			verdict.Findings = append(verdict.Findings, Finding{
				Rule: "arbiter_error", Detail: err.Error(),
			})
		}
		verdict.Decision = decision
	}

	window := &AnalysisWindow{
		StartToken: startToken,
		EndToken:   endToken,
		Text:       text,
		TotalScore: verdict.Score,
		Findings:   verdict.Findings,
		Decision:   verdict.Decision,
		Position:   position,
		Timestamp:  time.Now().UTC(),
	}
	for _, f := range verdict.Findings {
		if f.EntityType != "" {
			window.EntityScore += f.Weight
			g.metrics.RecordEntityDetection(f.EntityType)
		} else {
			window.PatternScore += f.Weight
			g.metrics.RecordPatternDetection(f.Rule)
		}
	}

	sess.observe(verdict.Score, verdict.Findings)
	g.metrics.RecordEvaluation(verdict.Score)
	return window, nil
}

// BeginFlush 把会话从 STREAMING 迁入 FLUSHING（上游耗尽且未否决）。
func (g *Gate) BeginFlush(sess *Session) bool {
	return sess.transition(StateFlushing)
}

// Veto 否决会话：终态迁移 + 恰好一次的审计与指标副作用。
// 已处于终态时返回 false 且不产生副作用。
func (g *Gate) Veto(ctx context.Context, sess *Session, verdict *Verdict, blockedContent string) bool {
	if !sess.transition(StateVetoed) {
		return false
	}

	g.logger.Warn("session vetoed",
		zap.String("session_id", sess.ID),
		zap.Float64("risk_score", verdict.Score),
		zap.Int("findings", len(verdict.Findings)),
	)

	g.appendAudit(ctx, &audit.Event{
		Type:               audit.EventContentBlocked,
		SessionID:          sess.ID,
		InputHash:          sess.InputHash,
		BlockedContentHash: HashContent(blockedContent),
		RiskScore:          sess.MaxRisk(),
		TriggeredRules:     formatRules(sess.Findings()),
		Entities:           formatEntities(sess.Findings()),
		Region:             sess.Params.Region,
		Timestamp:          time.Now().UTC(),
		ProcessingTime:     sess.Elapsed(),
	})
	g.metrics.RecordSession(OutcomeBlocked, sess.MaxRisk(), sess.Elapsed())
	return true
}

// Complete 完成会话：FLUSHING → COMPLETED，审计记录存观测到的
// 最大风险分而非零分。
func (g *Gate) Complete(ctx context.Context, sess *Session) bool {
	if !sess.transition(StateCompleted) {
		return false
	}

	g.appendAudit(ctx, &audit.Event{
		Type:           audit.EventStreamCompleted,
		SessionID:      sess.ID,
		InputHash:      sess.InputHash,
		RiskScore:      sess.MaxRisk(),
		TriggeredRules: formatRules(sess.Findings()),
		Region:         sess.Params.Region,
		Timestamp:      time.Now().UTC(),
		ProcessingTime: sess.Elapsed(),
	})
	g.metrics.RecordSession(OutcomeCompleted, sess.MaxRisk(), sess.Elapsed())
	return true
}

// Fail 把会话迁入 ERRORED。错误会话不写审计事件，只计指标。
func (g *Gate) Fail(sess *Session, cause error) bool {
	if !sess.transition(StateErrored) {
		return false
	}
	g.logger.Error("session errored",
		zap.String("session_id", sess.ID),
		zap.Error(cause),
	)
	g.metrics.RecordSession(OutcomeErrored, sess.MaxRisk(), sess.Elapsed())
	return true
}

// Disconnect 客户端断连：静默终止，不写审计事件，不发可见事件，
// 只平衡会话指标。已处于终态时返回 false。
func (g *Gate) Disconnect(sess *Session) bool {
	if !sess.transition(StateErrored) {
		return false
	}
	g.logger.Debug("session abandoned by client",
		zap.String("session_id", sess.ID),
	)
	g.metrics.RecordSession(OutcomeDisconnected, sess.MaxRisk(), sess.Elapsed())
	return true
}

// RecordInputBlocked 为开流前被拒绝的输入写一条审计记录。
func (g *Gate) RecordInputBlocked(ctx context.Context, sess *Session, verdict *Verdict) {
	sess.observe(verdict.Score, verdict.Findings)
	if !sess.transition(StateVetoed) {
		return
	}
	g.appendAudit(ctx, &audit.Event{
		Type:               audit.EventInputBlocked,
		SessionID:          sess.ID,
		InputHash:          sess.InputHash,
		BlockedContentHash: sess.InputHash,
		RiskScore:          verdict.Score,
		TriggeredRules:     formatRules(verdict.Findings),
		Entities:           formatEntities(verdict.Findings),
		Region:             sess.Params.Region,
		Timestamp:          time.Now().UTC(),
		ProcessingTime:     sess.Elapsed(),
	})
	g.metrics.RecordSession(OutcomeBlocked, verdict.Score, sess.Elapsed())
}

// appendAudit 尽力写审计；失败只记日志，不影响会话。
func (g *Gate) appendAudit(ctx context.Context, event *audit.Event) {
	if err := g.audit.Append(ctx, event); err != nil {
		g.logger.Error("audit append failed",
			zap.String("session_id", event.SessionID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func formatRules(findings []Finding) []string {
	var rules []string
	for _, f := range findings {
		if f.EntityType != "" {
			continue
		}
		rules = append(rules, fmt.Sprintf("%s: %s", f.Rule, f.Detail))
	}
	return rules
}

func formatEntities(findings []Finding) []string {
	var entities []string
	for _, f := range findings {
		if f.EntityType == "" {
			continue
		}
		entities = append(entities, f.EntityType)
	}
	return entities
}

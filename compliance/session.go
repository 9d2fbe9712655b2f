package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SessionState 会话状态。
type SessionState string

const (
	// StateStreaming 正常流式下发中
	StateStreaming SessionState = "STREAMING"
	// StateFlushing 上游结束，余量清空中
	StateFlushing SessionState = "FLUSHING"
	// StateVetoed 已否决（终态）
	StateVetoed SessionState = "VETOED"
	// StateCompleted 正常完成（终态）
	StateCompleted SessionState = "COMPLETED"
	// StateErrored 上游或管线错误（终态）
	StateErrored SessionState = "ERRORED"
)

// Terminal reports whether the state admits no further transition.
func (s SessionState) Terminal() bool {
	return s == StateVetoed || s == StateCompleted || s == StateErrored
}

// SessionParams 单个会话的请求参数。
type SessionParams struct {
	// LookaheadTokens 始终滞留在缓冲尾部的 token 数。
	LookaheadTokens int
	// FlushInterval 两次释放之间的最短间隔。
	FlushInterval time.Duration
	// RiskThreshold 触发 BLOCK 的最低总分（含等于）。
	RiskThreshold float64
	// Region 合规地区（HIPAA / PCI / GDPR / CCPA），可为空。
	Region string
}

// Session 是一次流式会话的状态。
//
// 除只读的 ID/Params 外，所有字段由生产者 goroutine 独占写入，
// 不做内部加锁（single-writer）。
type Session struct {
	ID        string
	Params    SessionParams
	InputHash string

	state     SessionState
	maxRisk   float64
	findings  []Finding
	startedAt time.Time
}

// NewSession 创建处于 STREAMING 状态的会话。
// 会话 ID 由时间与输入哈希派生，12 位十六进制。
func NewSession(input string, params SessionParams) *Session {
	now := time.Now().UTC()
	seed := sha256.Sum256([]byte(fmt.Sprintf("%s%s", now.Format(time.RFC3339Nano), input)))
	return &Session{
		ID:        hex.EncodeToString(seed[:])[:12],
		Params:    params,
		InputHash: HashContent(input),
		state:     StateStreaming,
		startedAt: now,
	}
}

// State 返回当前状态。
func (s *Session) State() SessionState { return s.state }

// MaxRisk 返回会话内观测到的最大总分（单调不减）。
func (s *Session) MaxRisk() float64 { return s.maxRisk }

// Findings 返回累计的触发记录。
func (s *Session) Findings() []Finding { return s.findings }

// Elapsed 返回会话已运行时长。
func (s *Session) Elapsed() time.Duration { return time.Since(s.startedAt) }

// observe 记录一次评估结果：风险取最大值，发现项累加。
func (s *Session) observe(score float64, findings []Finding) {
	if score > s.maxRisk {
		s.maxRisk = score
	}
	s.findings = append(s.findings, findings...)
}

// transition 执行状态迁移；非法迁移返回 false。
// 终态不可离开：Vetoed/Completed/Errored 之后不再有任何迁移。
func (s *Session) transition(to SessionState) bool {
	if s.state.Terminal() {
		return false
	}
	switch to {
	case StateFlushing:
		if s.state != StateStreaming {
			return false
		}
	case StateCompleted:
		if s.state != StateFlushing {
			return false
		}
	case StateVetoed, StateErrored:
		// 任意非终态均可进入
	default:
		return false
	}
	s.state = to
	return true
}

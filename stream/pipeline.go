package stream

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/moxer-mmh/blocking-responses-poc/compliance"
	"github.com/moxer-mmh/blocking-responses-poc/tokenizer"
)

// 管线默认节奏。
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultFlushInterval     = 250 * time.Millisecond
)

// PipelineConfig 装配一条下发管线。
type PipelineConfig struct {
	// Gate 阻断决策引擎，必填。
	Gate *compliance.Gate
	// Source 上游生成器，必填。
	Source TokenSource
	// Tokenizer 计数与窗口切片用，nil 时退化为字符估算。
	Tokenizer tokenizer.Tokenizer
	// QueueCapacity 事件队列容量，非正值用 DefaultQueueCapacity。
	QueueCapacity int
	// Heartbeat 心跳间隔，非正值用 DefaultHeartbeatInterval。
	Heartbeat time.Duration
	// WindowTokens / OverlapTokens / EvalFrequency 滑动窗口参数。
	WindowTokens  int
	OverlapTokens int
	EvalFrequency int
	// SafeRewrite 否决后是否下发安全替代子流。
	SafeRewrite bool
	Logger      *zap.Logger
}

// Pipeline 把 TokenSource、ComplianceGate 与客户端事件队列绑定为
// 一条会话管线：生产者拉取上游、驱动缓冲与评估并入队可释放内容，
// 心跳任务按固定间隔发送 keepalive，消费者用短超时轮询出队。
//
// 缓冲与会话状态由生产者 goroutine 独占（single-writer）；
// 消费者只读取出队后的事件。
type Pipeline struct {
	gate    *compliance.Gate
	source  TokenSource
	buffer  *LookAheadBuffer
	tracker *WindowTracker
	queue   *EventQueue
	logger  *zap.Logger

	heartbeatEvery time.Duration
	rewrite        bool
}

// NewPipeline 为单个会话创建管线。
func NewPipeline(cfg PipelineConfig, params compliance.SessionParams) *Pipeline {
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = tokenizer.NewEstimator()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		gate:           cfg.Gate,
		source:         cfg.Source,
		buffer:         NewLookAheadBuffer(cfg.Tokenizer, params.LookaheadTokens),
		tracker:        NewWindowTracker(cfg.Tokenizer, cfg.WindowTokens, cfg.OverlapTokens, cfg.EvalFrequency),
		queue:          NewEventQueue(cfg.QueueCapacity),
		logger:         cfg.Logger,
		heartbeatEvery: cfg.Heartbeat,
		rewrite:        cfg.SafeRewrite,
	}
}

// Events 返回消费者侧的事件队列。
func (p *Pipeline) Events() *EventQueue { return p.queue }

// Tracker 返回窗口调度器（观测用）。
func (p *Pipeline) Tracker() *WindowTracker { return p.tracker }

// Run 启动生产者与心跳任务，立即返回。两个任务都结束后队列关闭，
// 消费者以 ErrQueueClosed 感知会话终止。
//
// ctx 取消（客户端断连）时：上游拉取中止，未释放内容丢弃，
// 不再有任何入队写入。
func (p *Pipeline) Run(ctx context.Context, sess *compliance.Session, prompt string) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// 生产者退出即停心跳，无论正常完成还是否决。
		defer cancel()
		return p.produce(gctx, sess, prompt)
	})
	g.Go(func() error {
		return p.keepalive(gctx)
	})

	go func() {
		if err := g.Wait(); err != nil && ctx.Err() == nil {
			p.logger.Error("pipeline terminated abnormally",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
		cancel()
		p.queue.Close()
	}()
}

// produce 是生产者任务：拉取上游片段，驱动缓冲、窗口调度与闸门，
// 并把可释放的 chunk 与控制事件入队。所有错误都在这里收敛为
// 终态会话 + 至多一个客户端可见的 error 事件，绝不向上抛出。
func (p *Pipeline) produce(ctx context.Context, sess *compliance.Session, prompt string) error {
	// 任何静默退出路径（断连、入队失败）都把会话收到终态，
	// 保证指标恰好记一次。
	defer func() {
		if !sess.State().Terminal() {
			p.gate.Disconnect(sess)
		}
	}()

	frags, err := p.source.Stream(ctx, prompt)
	if err != nil {
		p.failUpstream(ctx, sess, err)
		return nil
	}

	// 两次释放之间的最短间隔（pacing）。
	flushEvery := sess.Params.FlushInterval
	if flushEvery <= 0 {
		flushEvery = DefaultFlushInterval
	}
	limiter := rate.NewLimiter(rate.Every(flushEvery), 1)

	for {
		select {
		case <-ctx.Done():
			// 断连：静默终止，丢弃未释放内容，不再写队列。
			p.buffer.Discard()
			return nil
		case frag, ok := <-frags:
			if !ok {
				return p.finish(ctx, sess)
			}
			if frag.Err != nil {
				p.failUpstream(ctx, sess, frag.Err)
				return nil
			}

			n := p.buffer.Push(frag.Text)
			p.tracker.Observe(n)

			if p.tracker.ShouldEvaluate() {
				done, err := p.evaluateWindow(ctx, sess)
				if err != nil || done {
					return nil
				}
			}

			if limiter.Allow() {
				vetoed, err := p.flush(ctx, sess, false)
				if err != nil || vetoed {
					return nil
				}
			}
		}
	}
}

// evaluateWindow 执行一次调度窗口评估并入队 window_report。
// done 为 true 表示会话已在此处否决。
func (p *Pipeline) evaluateWindow(ctx context.Context, sess *compliance.Session) (done bool, err error) {
	text, start, end := p.tracker.ExtractWindow(p.buffer.FullText())
	if text == "" {
		return false, nil
	}

	win, err := p.gate.EvaluateWindow(ctx, sess, text, start, end, p.tracker.Position())
	if err != nil {
		return false, err
	}
	p.tracker.Record(win)

	if err := p.emit(ctx, EventWindowReport, win.TotalScore, map[string]any{
		"start_token": win.StartToken,
		"end_token":   win.EndToken,
		"decision":    string(win.Decision),
		"findings":    len(win.Findings),
	}); err != nil {
		return false, err
	}

	if win.Decision == compliance.DecisionBlock {
		p.veto(ctx, sess)
		return true, nil
	}
	return false, nil
}

// flush 在释放任何内容前对当前全部缓冲做一次整体复查，
// 复查通过后按 lookahead 预算释放 chunk。force 表示上游已耗尽。
func (p *Pipeline) flush(ctx context.Context, sess *compliance.Session, force bool) (vetoed bool, err error) {
	if p.buffer.PendingTokens() == 0 {
		return false, nil
	}

	win, err := p.gate.EvaluateWindow(ctx, sess, p.buffer.FullText(), 0, p.buffer.TokenCount(), p.tracker.Position())
	if err != nil {
		return false, err
	}
	if win.Decision == compliance.DecisionBlock {
		p.veto(ctx, sess)
		return true, nil
	}

	p.buffer.MarkEvaluated()
	for _, piece := range p.buffer.Releasable(force) {
		if err := p.emit(ctx, EventChunk, win.TotalScore, map[string]any{
			"content": piece,
		}); err != nil {
			return false, err
		}
	}
	return false, nil
}

// finish 处理上游正常耗尽：进入 FLUSHING，强制清空余量
//（仍先整体复查），完成会话并入队 completed 事件。
func (p *Pipeline) finish(ctx context.Context, sess *compliance.Session) error {
	if !p.gate.BeginFlush(sess) {
		return nil
	}

	vetoed, err := p.flush(ctx, sess, true)
	if err != nil || vetoed {
		return nil
	}

	if !p.gate.Complete(ctx, sess) {
		return nil
	}
	return p.emit(ctx, EventCompleted, sess.MaxRisk(), map[string]any{
		"total_tokens": p.buffer.TokenCount(),
		"max_risk":     sess.MaxRisk(),
	})
}

// veto 否决会话：恰好一个 blocked 事件，可选的安全替代子流，
// 未释放内容全部丢弃。
func (p *Pipeline) veto(ctx context.Context, sess *compliance.Session) {
	blocked := p.buffer.PendingText()
	verdict := &compliance.Verdict{
		Score:    sess.MaxRisk(),
		Decision: compliance.DecisionBlock,
		Findings: sess.Findings(),
	}
	if !p.gate.Veto(ctx, sess, verdict, blocked) {
		return
	}
	p.buffer.Discard()

	if err := p.emit(ctx, EventBlocked, sess.MaxRisk(), map[string]any{
		"message":  "response withheld: content triggered the active compliance policy",
		"findings": len(sess.Findings()),
	}); err != nil {
		return
	}

	if !p.rewrite {
		return
	}
	if err := p.emit(ctx, EventNotice, 0, map[string]any{
		"message": "a policy-compliant alternative follows",
	}); err != nil {
		return
	}
	template := compliance.RewriteTemplate(sess.Findings())
	for _, word := range strings.Fields(template) {
		if err := p.emit(ctx, EventChunk, 0, map[string]any{
			"content": word + " ",
			"rewrite": true,
		}); err != nil {
			return
		}
	}
}

// failUpstream 把上游失败转成终态 + 单个 error 事件。
func (p *Pipeline) failUpstream(ctx context.Context, sess *compliance.Session, cause error) {
	if !p.gate.Fail(sess, cause) {
		return
	}
	_ = p.emit(ctx, EventError, 0, map[string]any{
		"message": "upstream stream failed",
	})
}

// keepalive 独立于生成进度按固定间隔发送心跳。
func (p *Pipeline) keepalive(ctx context.Context) error {
	ticker := time.NewTicker(p.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.emit(ctx, EventHeartbeat, 0, nil); err != nil {
				return nil
			}
		}
	}
}

// emit 入队一个事件；事件 ID 由队列在入队时刻分配。
func (p *Pipeline) emit(ctx context.Context, t EventType, risk float64, payload map[string]any) error {
	return p.queue.Put(ctx, &Event{
		Type:      t,
		Payload:   payload,
		Risk:      risk,
		Timestamp: time.Now().UTC(),
	})
}

package stream

import (
	"context"
	"time"
)

// Fragment 是上游产出的一段文本；Err 非空表示传输失败，
// 该失败作为单个 error 事件浮出并终止会话。
type Fragment struct {
	Text string
	Err  error
}

// TokenSource 是可插拔的上游文本生成器。
type TokenSource interface {
	// Stream 针对 prompt 返回异步片段序列。
	// 返回的通道必须在上游结束或 ctx 取消后关闭。
	Stream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// ScriptedSource 按脚本回放片段，用于演示与测试。
type ScriptedSource struct {
	Pieces []string
	// Delay 为片段间的间隔，零值表示立即发送。
	Delay time.Duration
	// FailAfter ≥ 0 时在发送该数量片段后注入一次上游错误。
	FailAfter int
	FailWith  error
}

// Stream 实现 TokenSource。
func (s *ScriptedSource) Stream(ctx context.Context, _ string) (<-chan Fragment, error) {
	out := make(chan Fragment)
	go func() {
		defer close(out)
		for i, piece := range s.Pieces {
			if s.FailWith != nil && s.FailAfter >= 0 && i == s.FailAfter {
				select {
				case out <- Fragment{Err: s.FailWith}:
				case <-ctx.Done():
				}
				return
			}
			if s.Delay > 0 {
				select {
				case <-time.After(s.Delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- Fragment{Text: piece}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

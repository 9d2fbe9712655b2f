package stream

import (
	"strings"

	"github.com/moxer-mmh/blocking-responses-poc/tokenizer"
)

// 分词器不可用时的估算比例。
const fallbackCharsPerToken = 4

type bufferedPiece struct {
	text   string
	tokens int
}

// LookAheadBuffer 持有尚未下发的生成片段。
//
// 释放规则：尾部 lookahead 个 token 始终滞留；并且在任何释放之前，
// 当前缓冲的全部内容必须至少被完整评估过一次（MarkEvaluated 记录
// 覆盖水位）——只看尾部窗口会漏掉跨越早期边界的内容。
// 非并发安全，由生产者 goroutine 独占。
type LookAheadBuffer struct {
	tok       tokenizer.Tokenizer
	lookahead int

	pending []bufferedPiece
	full    strings.Builder

	totalTokens      int // 本会话累计 push 的 token 数
	releasedTokens   int
	evaluatedThrough int // MarkEvaluated 时的 totalTokens 水位
}

// NewLookAheadBuffer 创建缓冲。tok 为 nil 时退化为字符估算。
func NewLookAheadBuffer(tok tokenizer.Tokenizer, lookahead int) *LookAheadBuffer {
	if tok == nil {
		tok = tokenizer.NewEstimator()
	}
	if lookahead < 0 {
		lookahead = 0
	}
	return &LookAheadBuffer{tok: tok, lookahead: lookahead}
}

// Push 追加一个生成片段，返回其 token 数。
func (b *LookAheadBuffer) Push(piece string) int {
	n := b.countTokens(piece)
	b.pending = append(b.pending, bufferedPiece{text: piece, tokens: n})
	b.full.WriteString(piece)
	b.totalTokens += n
	return n
}

// MarkEvaluated 记录当前全部已缓冲内容均已通过一次完整评估。
func (b *LookAheadBuffer) MarkEvaluated() {
	b.evaluatedThrough = b.totalTokens
}

// Releasable 返回可以下发的片段（按生成顺序）并把它们移出缓冲。
//
// force 为 true（上游耗尽且未否决）时释放全部余量；否则保留尾部
// lookahead 个 token，且评估覆盖未达到当前水位时不释放任何内容。
func (b *LookAheadBuffer) Releasable(force bool) []string {
	if len(b.pending) == 0 {
		return nil
	}
	if force {
		out := make([]string, 0, len(b.pending))
		for _, p := range b.pending {
			out = append(out, p.text)
			b.releasedTokens += p.tokens
		}
		b.pending = nil
		return out
	}

	if b.evaluatedThrough < b.totalTokens {
		return nil
	}

	budget := b.PendingTokens() - b.lookahead
	var out []string
	for len(b.pending) > 0 && b.pending[0].tokens <= budget {
		p := b.pending[0]
		out = append(out, p.text)
		budget -= p.tokens
		b.releasedTokens += p.tokens
		b.pending = b.pending[1:]
	}
	return out
}

// FullText 返回本会话累计生成的全部文本（含已释放部分），
// 用于释放前的整体复查。
func (b *LookAheadBuffer) FullText() string {
	return b.full.String()
}

// PendingText 返回尚未释放的文本。
func (b *LookAheadBuffer) PendingText() string {
	var sb strings.Builder
	for _, p := range b.pending {
		sb.WriteString(p.text)
	}
	return sb.String()
}

// TokenCount 返回累计 push 的 token 总数。
func (b *LookAheadBuffer) TokenCount() int {
	return b.totalTokens
}

// PendingTokens 返回缓冲中未释放的 token 数。
func (b *LookAheadBuffer) PendingTokens() int {
	return b.totalTokens - b.releasedTokens
}

// Discard 丢弃全部未释放内容（否决或断连之后）。
func (b *LookAheadBuffer) Discard() {
	b.pending = nil
	b.releasedTokens = b.totalTokens
}

func (b *LookAheadBuffer) countTokens(text string) int {
	n, err := b.tok.CountTokens(text)
	if err != nil || n <= 0 {
		n = len(text) / fallbackCharsPerToken
		if n < 1 && len(text) > 0 {
			n = 1
		}
	}
	return n
}

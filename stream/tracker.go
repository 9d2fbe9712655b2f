package stream

import (
	"unicode/utf8"

	"github.com/moxer-mmh/blocking-responses-poc/compliance"
	"github.com/moxer-mmh/blocking-responses-poc/tokenizer"
)

// 默认滑动窗口参数。
const (
	DefaultWindowTokens  = 150
	DefaultOverlapTokens = 50
	DefaultEvalFrequency = 25
	verdictHistorySize   = 10
)

// WindowTracker 决定何时、对哪段文本触发一次风险评估。
//
// 每累计 frequency 个新 token 触发一次；窗口取
// [max(0, pos−W+O), min(len, pos+O)) 的 token 区间再解码回文本。
// 已评估窗口的并集覆盖 [0, totalProcessed)，间隙不超过 frequency
//（与 LookAheadBuffer 的释放前整体复查共同保证无遗漏）。
// 最近 verdictHistorySize 条裁决仅用于观测，决不参与决策。
type WindowTracker struct {
	tok       tokenizer.Tokenizer
	window    int
	overlap   int
	frequency int

	totalProcessed int
	lastEvaluated  int

	history []*compliance.AnalysisWindow
}

// NewWindowTracker 创建滑动窗口调度器。非正参数回落为默认值。
func NewWindowTracker(tok tokenizer.Tokenizer, window, overlap, frequency int) *WindowTracker {
	if tok == nil {
		tok = tokenizer.NewEstimator()
	}
	if window <= 0 {
		window = DefaultWindowTokens
	}
	if overlap <= 0 {
		overlap = DefaultOverlapTokens
	}
	if frequency <= 0 {
		frequency = DefaultEvalFrequency
	}
	return &WindowTracker{tok: tok, window: window, overlap: overlap, frequency: frequency}
}

// Observe 累积新处理的 token 数。
func (t *WindowTracker) Observe(tokens int) {
	t.totalProcessed += tokens
}

// Position 返回累计处理的 token 数。
func (t *WindowTracker) Position() int {
	return t.totalProcessed
}

// ShouldEvaluate 判断距上次评估是否已累计 frequency 个新 token。
func (t *WindowTracker) ShouldEvaluate() bool {
	return t.totalProcessed-t.lastEvaluated >= t.frequency
}

// ExtractWindow 从全文中切出当前评估窗口并推进评估位置。
// 返回窗口文本与 token 起止偏移；窗口长度不超过 window。
func (t *WindowTracker) ExtractWindow(fullText string) (text string, start, end int) {
	pos := t.totalProcessed
	t.lastEvaluated = t.totalProcessed

	tokens, err := t.tok.Encode(fullText)
	if err != nil {
		return t.charWindow(fullText, pos)
	}

	start = pos - t.window + t.overlap
	if start < 0 {
		start = 0
	}
	end = pos + t.overlap
	if end > len(tokens) {
		end = len(tokens)
	}
	if start >= end {
		return "", start, start
	}

	decoded, err := t.tok.Decode(tokens[start:end])
	if err != nil {
		// 估算型分词器能计数但不能解码，回退到字符近似。
		return t.charWindow(fullText, pos)
	}
	return decoded, start, end
}

// charWindow 以 ~4 字符/token 的比例近似 token 边界。
// 字节偏移对齐到 rune 边界，保证喂给评估器的永远是合法 UTF-8。
func (t *WindowTracker) charWindow(fullText string, pos int) (string, int, int) {
	total := len(fullText) / fallbackCharsPerToken
	start := pos - t.window + t.overlap
	if start < 0 {
		start = 0
	}
	end := pos + t.overlap
	if end > total {
		end = total
	}
	if start >= end {
		return "", start, start
	}

	lo := start * fallbackCharsPerToken
	hi := end * fallbackCharsPerToken
	if lo > len(fullText) {
		lo = len(fullText)
	}
	if hi > len(fullText) {
		hi = len(fullText)
	}
	for lo > 0 && !utf8.RuneStart(fullText[lo]) {
		lo--
	}
	for hi < len(fullText) && !utf8.RuneStart(fullText[hi]) {
		hi++
	}
	return fullText[lo:hi], start, end
}

// Record 把一次窗口裁决放入观测历史（有界环）。
func (t *WindowTracker) Record(w *compliance.AnalysisWindow) {
	t.history = append(t.history, w)
	if len(t.history) > verdictHistorySize {
		t.history = t.history[len(t.history)-verdictHistorySize:]
	}
}

// History 返回最近的窗口裁决（最多 verdictHistorySize 条）。
func (t *WindowTracker) History() []*compliance.AnalysisWindow {
	out := make([]*compliance.AnalysisWindow, len(t.history))
	copy(out, t.history)
	return out
}

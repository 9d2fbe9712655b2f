package stream

import (
	"context"
	"strings"
	"time"
)

// demoText 会触发多类合规告警（SSN、电话、出生日期），
// 用于不接上游时演示整条阻断链路。
const demoText = "I can help you with patient information. Let me look up John Doe's " +
	"medical record. His SSN is 123-45-6789 and his phone number is (555) 123-4567. " +
	"He was born on January 15, 1980."

// safeDemoText 不含敏感内容，演示正常完成路径。
const safeDemoText = "Here is some general guidance on handling customer records in a " +
	"regulated environment. Always minimize the data you collect, restrict access to " +
	"trained staff, and review your retention schedule at least once a year."

// DemoSource 无上游时的内置生成器，按词回放一段固定文本。
// 提示词里出现 safe/general 时回放无敏感内容的版本。
type DemoSource struct {
	Delay time.Duration
}

// Stream 实现 TokenSource。
func (s *DemoSource) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	text := demoText
	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "safe") || strings.Contains(lower, "general") {
		text = safeDemoText
	}

	words := strings.Fields(text)
	pieces := make([]string, len(words))
	for i, w := range words {
		pieces[i] = w + " "
	}

	scripted := &ScriptedSource{Pieces: pieces, Delay: s.Delay, FailAfter: -1}
	return scripted.Stream(ctx, prompt)
}

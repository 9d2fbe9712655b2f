package compliance

import (
	"context"
	"regexp"
)

// entityPattern 是内置识别器的一条实体模式，置信度固定。
type entityPattern struct {
	entityType string
	confidence float64
	pattern    *regexp.Regexp
}

// RegexRecognizer 是基于正则的内置实体识别器。
// 生产部署可以换成远程 NER 服务；接口不变。
type RegexRecognizer struct {
	patterns []entityPattern
}

// NewRegexRecognizer 创建内置识别器。
func NewRegexRecognizer() *RegexRecognizer {
	return &RegexRecognizer{
		patterns: []entityPattern{
			{"MEDICAL_RECORD_NUMBER", 0.9, regexp.MustCompile(`(?i)\b(?:mrn|medical\s*record\s*number)\s*:?\s*\d{6,10}\b`)},
			{"CREDIT_CARD", 0.95, regexp.MustCompile(`\b(?:4\d{3}|5[1-5]\d{2}|3[47]\d{2}|6011)[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
			{"US_SSN", 0.85, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{"EMAIL_ADDRESS", 0.95, regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[A-Za-z]{2,}\b`)},
			{"PHONE_NUMBER", 0.7, regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}`)},
			{"IBAN_CODE", 0.8, regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)},
		},
	}
}

// Analyze 返回文本中的全部实体命中，不做置信度过滤。
func (r *RegexRecognizer) Analyze(ctx context.Context, text string) (*EntityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &EntityResult{}
	for _, p := range r.patterns {
		for _, loc := range p.pattern.FindAllStringIndex(text, -1) {
			result.Entities = append(result.Entities, Entity{
				Type:       p.entityType,
				Start:      loc[0],
				End:        loc[1],
				Confidence: p.confidence,
				Text:       text[loc[0]:loc[1]],
			})
		}
	}
	return result, nil
}

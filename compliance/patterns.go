package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// PHI/PCI 语境词：单独不足以触发阻断，但会抬高窗口得分。
var (
	phiTerms = []string{
		`\bdiagnosed\b`, `\bmedical record\b`, `\bmrn\b`, `\bpatient\b`,
		`\bicd-10\b`, `\bcpt\b`, `\bprescription\b`, `\bmedication\b`,
		`\btreatment\b`, `\btherapy\b`, `\bsymptoms\b`, `\bdisease\b`,
		`\bpediatric\b`, `\boncology\b`, `\bpsychiatr(y|ic)\b`,
		`\bhospital\b`, `\bclinic\b`, `\bdoctor\b`, `\bnurse\b`, `\bphysician\b`,
	}
	pciTerms = []string{
		`\bcredit card\b`, `\bdebit card\b`, `\bcard number\b`,
		`\bexpir(y|ation)\b`, `\bcvv\b`, `\bsecurity code\b`, `\bpin\b`,
		`\bbank account\b`, `\brouting number\b`, `\biban\b`, `\bswift\b`,
		`\bpayment\b`,
	}
)

// PatternRule 是一条已注册的 {matcher, weight} 规则。
type PatternRule struct {
	// Name 规则名，用于 finding 与指标。
	Name string
	// WeightKey 在策略权重表中查找权重的键，缺省用 Name。
	WeightKey string
	// Pattern 匹配正则。
	Pattern *regexp.Regexp
	// Validate 可选的命中校验（如信用卡 Luhn 校验）。
	// 为 nil 时任意命中即计分；否则需至少一个命中通过校验。
	Validate func(match string) bool
	// Detail 计分时写入 finding 的说明。
	Detail string
}

func (r *PatternRule) weightKey() string {
	if r.WeightKey != "" {
		return r.WeightKey
	}
	return r.Name
}

// DefaultRules 返回受监管行业的内置规则集。
func DefaultRules() []PatternRule {
	return []PatternRule{
		// PII
		{Name: "email", Pattern: regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[A-Za-z]{2,}\b`), Detail: "Pattern detected"},
		// RE2 不支持环视，用非捕获边界替代原先的 (?<!\d)/(?!\d)。
		{Name: "phone", Pattern: regexp.MustCompile(`(?:^|[^\d])(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}(?:[^\d]|$)`), Detail: "Pattern detected"},
		{Name: "ssn", Pattern: regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`), Detail: "Pattern detected"},
		{Name: "dob", Pattern: regexp.MustCompile(`(?i)\b(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s*\d{4})\b`), Detail: "Pattern detected"},
		{Name: "address", Pattern: regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9.\-\s]+\s+(?:Street|St\.?|Avenue|Ave\.?|Road|Rd\.?|Lane|Ln\.?|Boulevard|Blvd\.?|Drive|Dr\.?|Court|Ct\.?)\b`), Detail: "Pattern detected"},
		// PCI
		{Name: "credit_card_candidate", WeightKey: "credit_card", Pattern: regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), Validate: LuhnCheck, Detail: "Valid credit card number detected"},
		{Name: "iban", Pattern: regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`), Detail: "Pattern detected"},
		{Name: "routing_number", Pattern: regexp.MustCompile(`\b\d{9}\b`), Detail: "Pattern detected"},
		{Name: "bank_account", Pattern: regexp.MustCompile(`(?i)\b(?:account\s*number|acct\s*#?)\s*:?\s*\d{6,17}\b`), Detail: "Pattern detected"},
		// PHI
		{Name: "medical_record", Pattern: regexp.MustCompile(`(?i)\b(?:mrn|medical\s*record\s*number)\s*:?\s*\d+\b`), Detail: "Pattern detected"},
		{Name: "diagnosis", Pattern: regexp.MustCompile(`(?i)\b(?:diagnosed\s+with|diagnosis\s*:)\s*[a-z\s]+\b`), Detail: "Pattern detected"},
		{Name: "medication", Pattern: regexp.MustCompile(`(?i)\b(?:prescribed|taking|medication)\s+[a-z]+(?:cillin|prazole|statin|mycin)\b`), Detail: "Pattern detected"},
		// 安全凭据
		{Name: "password", Pattern: regexp.MustCompile(`(?i)\b(?:password|passwd|passphrase)\s*[:=]?\s*\S+\b`), Detail: "Pattern detected"},
		{Name: "api_key", Pattern: regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret[_-]?key|bearer\s+[A-Za-z0-9\._\-]+)\b`), Detail: "Pattern detected"},
		{Name: "secret", Pattern: regexp.MustCompile(`(?i)\b(?:secret|token)\s*[:=]\s*\S+\b`), Detail: "Pattern detected"},
		// 语境规则
		{Name: "phi_context", WeightKey: "phi_hint", Pattern: regexp.MustCompile(`(?i)` + strings.Join(phiTerms, "|")), Detail: "Context detected"},
		{Name: "pci_context", WeightKey: "pci_hint", Pattern: regexp.MustCompile(`(?i)` + strings.Join(pciTerms, "|")), Detail: "Context detected"},
	}
}

// LuhnCheck 对候选卡号做 Luhn 校验。
func LuhnCheck(candidate string) bool {
	var digits []int
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	checksum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		checksum += d
		double = !double
	}
	return checksum%10 == 0
}

// PatternDetector 按注册的规则集对文本打分，实现 RiskAssessor。
// 规则集在构造后只读，因此 Assess 可以并发调用且结果确定。
type PatternDetector struct {
	policy *Policy
	rules  []PatternRule
}

// NewPatternDetector 创建使用内置规则集的检测器。
func NewPatternDetector(policy *Policy) *PatternDetector {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &PatternDetector{policy: policy, rules: DefaultRules()}
}

// Register 追加一条自定义规则。仅应在开始服务前调用。
func (d *PatternDetector) Register(rule PatternRule) {
	d.rules = append(d.rules, rule)
}

// Rules 返回已注册规则名列表。
func (d *PatternDetector) Rules() []string {
	names := make([]string, 0, len(d.rules))
	for _, r := range d.rules {
		names = append(names, r.Name)
	}
	return names
}

// Assess 对文本做一次合规风险评估。
// 每条规则至多计分一次；得分为各触发规则有效权重之和。
func (d *PatternDetector) Assess(ctx context.Context, text, region string) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	weights := d.policy.EffectiveWeights(region)
	result := &Assessment{Region: region, Timestamp: time.Now().UTC()}

	for i := range d.rules {
		rule := &d.rules[i]
		if rule.Validate != nil {
			matched := false
			for _, m := range rule.Pattern.FindAllString(text, -1) {
				if rule.Validate(m) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		} else if !rule.Pattern.MatchString(text) {
			continue
		}

		weight := weights[rule.weightKey()]
		if weight == 0 {
			weight = 0.5
		}
		result.Score += weight
		result.Findings = append(result.Findings, Finding{
			Rule:   rule.Name,
			Detail: rule.Detail,
			Weight: weight,
		})
	}

	if result.Score > 0 {
		result.SnippetHash = HashContent(text)
	}
	return result, nil
}

// HashContent 返回内容 SHA-256 的 16 位十六进制前缀，
// 审计只存哈希，不存原文。
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

package compliance

import "strings"

// 否决后的安全改写模板，按触发内容类别选择开场白。
const (
	rewritePII     = "I need to keep personal information private. Let me provide a general response instead:\n\n"
	rewritePHI     = "For healthcare privacy compliance, I'll provide general medical information instead:\n\n"
	rewritePCI     = "I can't process payment information. Here's general financial guidance instead:\n\n"
	rewriteGeneral = "Let me rephrase this to keep it safe and compliant:\n\n"
)

// RewriteTemplate 根据触发的规则选择安全改写的开场白。
// 优先级：PHI > PCI > PII > 通用。
func RewriteTemplate(findings []Finding) string {
	var phi, pci, pii bool
	for _, f := range findings {
		rule := strings.ToLower(f.Rule + " " + f.EntityType)
		switch {
		case strings.Contains(rule, "phi"), strings.Contains(rule, "medical"),
			strings.Contains(rule, "diagnosis"), strings.Contains(rule, "medication"):
			phi = true
		case strings.Contains(rule, "credit"), strings.Contains(rule, "bank"),
			strings.Contains(rule, "pci"), strings.Contains(rule, "iban"),
			strings.Contains(rule, "routing"):
			pci = true
		case strings.Contains(rule, "email"), strings.Contains(rule, "phone"),
			strings.Contains(rule, "ssn"), strings.Contains(rule, "address"),
			strings.Contains(rule, "dob"):
			pii = true
		}
	}
	switch {
	case phi:
		return rewritePHI
	case pci:
		return rewritePCI
	case pii:
		return rewritePII
	default:
		return rewriteGeneral
	}
}

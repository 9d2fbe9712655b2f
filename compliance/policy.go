package compliance

// Policy 定义风险策略：规则权重、地区覆写、阈值。
type Policy struct {
	// Threshold 触发 BLOCK 的最低总分（含等于）。
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// ConfidenceFloor 低于该置信度的实体在计分前被丢弃。
	ConfidenceFloor float64 `json:"confidence_floor" yaml:"confidence_floor"`

	// EntityWeight 实体得分的基础权重（乘以实体置信度）。
	EntityWeight float64 `json:"entity_weight" yaml:"entity_weight"`

	// Weights 规则名到权重的映射。
	Weights map[string]float64 `json:"weights" yaml:"weights"`

	// RegionalWeights 按合规地区覆写部分权重。
	RegionalWeights map[string]map[string]float64 `json:"regional_weights" yaml:"regional_weights"`
}

// DefaultPolicy 返回面向受监管行业的默认策略。
func DefaultPolicy() *Policy {
	return &Policy{
		Threshold:       1.0,
		ConfidenceFloor: 0.6,
		EntityWeight:    0.9,
		Weights: map[string]float64{
			// PII
			"email":   0.4,
			"phone":   0.5,
			"ssn":     1.2,
			"dob":     0.5,
			"address": 0.5,
			// PCI
			"credit_card":    1.5,
			"iban":           0.9,
			"bank_account":   0.7,
			"routing_number": 0.8,
			// PHI
			"medical_record": 1.0,
			"phi_hint":       0.6,
			"diagnosis":      0.8,
			"medication":     0.7,
			// 安全凭据
			"password": 0.5,
			"api_key":  0.8,
			"secret":   0.7,
		},
		RegionalWeights: map[string]map[string]float64{
			"HIPAA": {"phi_hint": 1.0, "medical_record": 1.5},
			"PCI":   {"credit_card": 2.0, "bank_account": 1.2},
			"GDPR":  {"email": 0.6, "address": 0.7},
			"CCPA":  {"email": 0.5, "phone": 0.6},
		},
	}
}

// EffectiveWeights 返回应用地区覆写后的权重表。
func (p *Policy) EffectiveWeights(region string) map[string]float64 {
	weights := make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		weights[k] = v
	}
	if overrides, ok := p.RegionalWeights[region]; ok {
		for k, v := range overrides {
			weights[k] = v
		}
	}
	return weights
}

// WeightFor 返回规则的有效权重，未配置时使用 0.5。
func (p *Policy) WeightFor(rule, region string) float64 {
	if overrides, ok := p.RegionalWeights[region]; ok {
		if w, ok := overrides[rule]; ok {
			return w
		}
	}
	if w, ok := p.Weights[rule]; ok {
		return w
	}
	return 0.5
}

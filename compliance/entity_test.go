package compliance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexRecognizer_Analyze(t *testing.T) {
	recognizer := NewRegexRecognizer()

	tests := []struct {
		name       string
		text       string
		wantTypes  []string
		confidence map[string]float64
	}{
		{
			name:      "ssn",
			text:      "His SSN is 123-45-6789.",
			wantTypes: []string{"US_SSN"},
			confidence: map[string]float64{
				"US_SSN": 0.85,
			},
		},
		{
			name:      "email and phone together",
			text:      "Reach john.doe@example.com or (555) 123-4567.",
			wantTypes: []string{"EMAIL_ADDRESS", "PHONE_NUMBER"},
			confidence: map[string]float64{
				"EMAIL_ADDRESS": 0.95,
				"PHONE_NUMBER":  0.7,
			},
		},
		{
			name:      "credit card with separators",
			text:      "Charged to 4111-1111-1111-1234.",
			wantTypes: []string{"CREDIT_CARD"},
		},
		{
			name:      "medical record number",
			text:      "MRN: 12345678 on file.",
			wantTypes: []string{"MEDICAL_RECORD_NUMBER"},
		},
		{
			name:      "iban",
			text:      "Transfer to DE89370400440532013000 today.",
			wantTypes: []string{"IBAN_CODE"},
		},
		{
			name:      "clean text",
			text:      "The weather is nice today.",
			wantTypes: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := recognizer.Analyze(context.Background(), tt.text)
			require.NoError(t, err)

			var gotTypes []string
			for _, e := range result.Entities {
				gotTypes = append(gotTypes, e.Type)
				if want, ok := tt.confidence[e.Type]; ok {
					assert.InDelta(t, want, e.Confidence, 1e-9)
				}
				// 命中片段必须是原文切片。
				assert.Equal(t, tt.text[e.Start:e.End], e.Text)
			}
			assert.ElementsMatch(t, tt.wantTypes, gotTypes)
		})
	}
}

func TestRegexRecognizer_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRegexRecognizer().Analyze(ctx, "123-45-6789")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRewriteTemplate_Priority(t *testing.T) {
	tests := []struct {
		name     string
		findings []Finding
		want     string
	}{
		{
			name:     "phi wins over pci and pii",
			findings: []Finding{{Rule: "ssn"}, {Rule: "credit_card_candidate"}, {Rule: "medical_record"}},
			want:     rewritePHI,
		},
		{
			name:     "pci wins over pii",
			findings: []Finding{{Rule: "email"}, {EntityType: "IBAN_CODE"}},
			want:     rewritePCI,
		},
		{
			name:     "pii alone",
			findings: []Finding{{Rule: "phone"}},
			want:     rewritePII,
		},
		{
			name:     "entity type carries category",
			findings: []Finding{{Rule: "entity", EntityType: "MEDICAL_RECORD_NUMBER"}},
			want:     rewritePHI,
		},
		{
			name:     "no recognized category",
			findings: []Finding{{Rule: "assessor_error"}},
			want:     rewriteGeneral,
		},
		{
			name:     "empty findings",
			findings: nil,
			want:     rewriteGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteTemplate(tt.findings))
		})
	}
}

package triage

import (
	"testing"

	"sentinel/internal/core"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want core.TriageAction
	}{
		{
			name: "guardrail failure always reviews",
			in:   Input{RelevancyScore: 0.95, KeywordHits: 5, GuardrailPassed: false},
			want: core.ActionReview,
		},
		{
			name: "high relevancy with hits auto-publishes",
			in:   Input{RelevancyScore: 0.81, KeywordHits: 1, GuardrailPassed: true},
			want: core.ActionAutoPublish,
		},
		{
			name: "mid relevancy with hits reviews",
			in:   Input{RelevancyScore: 0.7, KeywordHits: 2, GuardrailPassed: true},
			want: core.ActionReview,
		},
		{
			name: "boundary 0.6 with hits reviews",
			in:   Input{RelevancyScore: 0.6, KeywordHits: 1, GuardrailPassed: true},
			want: core.ActionReview,
		},
		{
			name: "boundary 0.8 with hits reviews not auto-publish",
			in:   Input{RelevancyScore: 0.8, KeywordHits: 1, GuardrailPassed: true},
			want: core.ActionReview,
		},
		{
			name: "high relevancy no hits reviews",
			in:   Input{RelevancyScore: 0.9, KeywordHits: 0, GuardrailPassed: true},
			want: core.ActionReview,
		},
		{
			name: "low relevancy drops",
			in:   Input{RelevancyScore: 0.3, KeywordHits: 0, GuardrailPassed: true},
			want: core.ActionDrop,
		},
		{
			name: "below review floor with hits still drops",
			in:   Input{RelevancyScore: 0.5, KeywordHits: 3, GuardrailPassed: true},
			want: core.ActionDrop,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.in); got != tt.want {
				t.Errorf("Decide(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

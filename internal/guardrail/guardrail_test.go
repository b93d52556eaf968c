package guardrail

import (
	"context"
	"encoding/json"
	"testing"

	"sentinel/internal/core"
	"sentinel/internal/models"
)

func validArticlePayload(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"article_id":    "a1",
		"feed_id":       "f1",
		"canonical_url": "https://example.com/a",
		"title":         "A title",
		"content_hash":  "abc123",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestValidatePassesCleanArticle(t *testing.T) {
	v := &Validator{}
	result := v.Validate(context.Background(), SchemaArticle, validArticlePayload(t), "Routine patch released", "A vendor released a routine patch for CVE-2026-1111.", []string{"CVE-2026-1111"})
	if !result.Passed {
		t.Fatalf("Validate() = %+v, want passed", result)
	}
}

func TestValidateSchemaMissingFieldFails(t *testing.T) {
	v := &Validator{}
	payload, _ := json.Marshal(map[string]interface{}{"article_id": "a1"})
	result := v.Validate(context.Background(), SchemaArticle, payload, "t", "c", nil)
	if result.Passed {
		t.Fatalf("Validate() = %+v, want fail on missing required fields", result)
	}
}

func TestValidatePIIDetectionRedacts(t *testing.T) {
	v := &Validator{}
	content := "Contact the analyst at jane.doe@example.com for details."
	result := v.Validate(context.Background(), SchemaArticle, validArticlePayload(t), "t", content, nil)
	if result.Passed {
		t.Fatalf("Validate() = %+v, want fail on high-severity PII violation", result)
	}
	if result.RedactedContent == content {
		t.Fatalf("RedactedContent was not redacted")
	}
}

func TestCheckCVEHallucinationAndMissing(t *testing.T) {
	content := "Researchers disclosed CVE-2026-5555 affecting the product."
	violations := checkCVE([]string{"CVE-2026-9999"}, content, 2026)

	var sawHallucination, sawMissing bool
	for _, v := range violations {
		if v.Kind == "cve_hallucination" {
			sawHallucination = true
		}
		if v.Kind == "cve_missing" {
			sawMissing = true
		}
	}
	if !sawHallucination {
		t.Errorf("checkCVE() = %+v, want a hallucination violation for CVE-2026-9999", violations)
	}
	if !sawMissing {
		t.Errorf("checkCVE() = %+v, want a missing violation for CVE-2026-5555", violations)
	}
}

func TestCheckCVEMalformedFormat(t *testing.T) {
	violations := checkCVE([]string{"CVE-26-1"}, "", 2026)
	if len(violations) != 1 || violations[0].Kind != "cve_format" {
		t.Fatalf("checkCVE() = %+v, want one cve_format violation", violations)
	}
}

func TestCheckBiasLexiconAndSensational(t *testing.T) {
	violations := checkBias(context.Background(), "Shocking bombshell report stuns everyone", "", nil)

	var sawSensational, sawAbsolute bool
	for _, v := range violations {
		if v.Kind == "sensationalism_title" {
			sawSensational = true
		}
		if v.Kind == "bias_absolute" {
			sawAbsolute = true
		}
	}
	if !sawSensational {
		t.Errorf("checkBias() = %+v, want sensationalism_title violation", violations)
	}
	if !sawAbsolute {
		t.Errorf("checkBias() = %+v, want bias_absolute violation", violations)
	}
}

func TestAggregatePassRules(t *testing.T) {
	tests := []struct {
		name string
		sevs []core.Severity
		want bool
	}{
		{"no violations", nil, true},
		{"one high fails", []core.Severity{core.SeverityHigh}, false},
		{"one critical fails", []core.Severity{core.SeverityCritical}, false},
		{"three medium passes", []core.Severity{core.SeverityMedium, core.SeverityMedium, core.SeverityMedium}, true},
		{"four medium fails", []core.Severity{core.SeverityMedium, core.SeverityMedium, core.SeverityMedium, core.SeverityMedium}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var violations []core.Violation
			for _, s := range tt.sevs {
				violations = append(violations, core.Violation{Severity: s})
			}
			if got := aggregatePass(violations); got != tt.want {
				t.Errorf("aggregatePass(%v) = %v, want %v", tt.sevs, got, tt.want)
			}
		})
	}
}

func TestValidatePanicRecoveryReturnsMediumViolation(t *testing.T) {
	v := &Validator{PII: panickingPIIModel{}}
	result := v.Validate(context.Background(), SchemaArticle, validArticlePayload(t), "t", "some content", nil)
	if result.Passed {
		t.Fatalf("Validate() = %+v, want fail after recovered panic", result)
	}
	if len(result.Violations) != 1 || result.Violations[0].Kind != "internal_error" {
		t.Fatalf("Validate() violations = %+v, want single internal_error violation", result.Violations)
	}
}

type panickingPIIModel struct{}

func (panickingPIIModel) DetectPII(ctx context.Context, content string) ([]models.PIISpan, error) {
	panic("boom")
}

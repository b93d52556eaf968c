package relevance

import (
	"context"
	"errors"
	"testing"

	"sentinel/internal/core"
	"sentinel/internal/keywords"
	"sentinel/internal/models"
)

type fakeEntityModel struct {
	entities core.EntityExtraction
	err      error
}

func (f *fakeEntityModel) ExtractEntities(ctx context.Context, content string) (core.EntityExtraction, error) {
	return f.entities, f.err
}

type fakeRelevanceModel struct {
	assessment models.RelevanceAssessment
	err        error
}

func (f *fakeRelevanceModel) AssessRelevance(ctx context.Context, title, content, keywordSummary string) (models.RelevanceAssessment, error) {
	return f.assessment, f.err
}

func testRegistry(t *testing.T) *keywords.Registry {
	t.Helper()
	doc := []byte(`
critical:
  - keyword: ransomware
    weight: 0.9
settings:
  enable_fuzzy_matching: false
`)
	reg, err := keywords.LoadDocument(doc)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	return reg
}

func TestEvaluateComposesScoreAndConfidence(t *testing.T) {
	eval := &Evaluator{
		Keywords: testRegistry(t),
		Entities: &fakeEntityModel{entities: core.EntityExtraction{CVEs: []string{"CVE-2026-1234"}, Malware: []string{"x"}}},
		Model:    &fakeRelevanceModel{assessment: models.RelevanceAssessment{IsRelevant: true, RelevancyScore: 0.7, Rationale: "matches ransomware campaign"}},
	}

	result, err := eval.Evaluate(context.Background(), "New ransomware campaign", "A ransomware group claimed responsibility for the ransomware attack.")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.IsRelevant {
		t.Fatalf("IsRelevant = false, want true")
	}
	if result.RelevancyScore <= 0.7 {
		t.Fatalf("RelevancyScore = %v, want > base 0.7 after hit-count boost", result.RelevancyScore)
	}
	if result.RelevancyScore > 1.0 {
		t.Fatalf("RelevancyScore = %v, want clamped to <= 1.0", result.RelevancyScore)
	}
	if result.Confidence <= 0.7 {
		t.Fatalf("Confidence = %v, want boosted above base 0.7", result.Confidence)
	}
}

func TestEvaluateModelFailureReturnsConservativeResult(t *testing.T) {
	eval := &Evaluator{
		Keywords: testRegistry(t),
		Entities: &fakeEntityModel{},
		Model:    &fakeRelevanceModel{err: errors.New("model unavailable")},
	}

	result, err := eval.Evaluate(context.Background(), "title", "content")
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil (failure is reported via Result)", err)
	}
	if result.IsRelevant || result.RelevancyScore != 0.0 || result.Rationale != "assessment unavailable" || result.Confidence != 0.5 {
		t.Fatalf("Evaluate() = %+v, want conservative unavailable result", result)
	}
}

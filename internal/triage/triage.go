// Package triage implements the decision table that turns a relevance
// assessment and a guardrail verdict into one of AUTO_PUBLISH, REVIEW, or
// DROP (spec.md §4.6). It is a pure function with no external
// dependency.
package triage

import "sentinel/internal/core"

const (
	autoPublishRelevancyFloor = 0.8
	reviewRelevancyFloor      = 0.6
)

// Input bundles the two upstream verdicts the decision table consumes.
type Input struct {
	RelevancyScore      float64
	KeywordHits         int // distinct matched primary terms
	GuardrailPassed     bool
	GuardrailViolations int
}

// Decide applies the triage decision table in order.
func Decide(in Input) core.TriageAction {
	if !in.GuardrailPassed {
		return core.ActionReview
	}
	switch {
	case in.RelevancyScore > autoPublishRelevancyFloor && in.KeywordHits >= 1:
		return core.ActionAutoPublish
	case in.RelevancyScore >= reviewRelevancyFloor && in.RelevancyScore <= autoPublishRelevancyFloor && in.KeywordHits >= 1:
		return core.ActionReview
	case in.RelevancyScore > autoPublishRelevancyFloor && in.KeywordHits == 0:
		return core.ActionReview
	default:
		return core.ActionDrop
	}
}

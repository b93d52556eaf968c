// Package guardrail runs the four independent validation checks against a
// processed article and aggregates them into a pass/fail verdict
// (spec.md §4.5).
package guardrail

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/core"
	"sentinel/internal/models"
)

const (
	mediumViolationFailThreshold = 3
	startingConfidence           = 0.95
	confidencePenaltyPerFinding  = 0.05
	minimumConfidence            = 0.5
)

// Result is the guardrail validator's output, always returned even on
// internal error (which becomes one medium violation rather than a
// propagated error).
type Result struct {
	Passed          bool
	Violations      []core.Violation
	Flags           []string
	Confidence      float64
	Rationale       string
	RedactedContent string
}

// Validator runs the schema, PII, CVE, and bias checks.
type Validator struct {
	Moderation models.ModerationModel
	PII        models.PIIModel
	CurrentYear func() int
}

// Validate checks article title/content/schema payload, cves, and runs
// the external moderation/PII models. It never returns an error: an
// internal failure becomes one medium-severity violation instead.
func (v *Validator) Validate(ctx context.Context, schemaKind SchemaKind, payload []byte, title, content string, extractedCVEs []string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Passed: false,
				Violations: []core.Violation{{
					Kind:        "internal_error",
					Severity:    core.SeverityMedium,
					Description: fmt.Sprintf("guardrail validator panicked: %v", r),
					Confidence:  0.5,
				}},
				Confidence: minimumConfidence,
				Rationale:  "internal error during validation",
			}
		}
	}()

	var violations []core.Violation
	violations = append(violations, checkSchema(schemaKind, payload)...)

	piiViolations, redacted := checkPII(ctx, content, v.PII)
	violations = append(violations, piiViolations...)

	currentYear := time.Now().UTC().Year()
	if v.CurrentYear != nil {
		currentYear = v.CurrentYear()
	}
	violations = append(violations, checkCVE(extractedCVEs, content, currentYear)...)

	violations = append(violations, checkBias(ctx, title, content, v.Moderation)...)

	return Result{
		Passed:          aggregatePass(violations),
		Violations:      violations,
		Flags:           violationKinds(violations),
		Confidence:      aggregateConfidence(violations),
		Rationale:       rationale(violations),
		RedactedContent: redacted,
	}
}

func aggregatePass(violations []core.Violation) bool {
	var mediumCount int
	for _, v := range violations {
		switch v.Severity {
		case core.SeverityCritical, core.SeverityHigh:
			return false
		case core.SeverityMedium:
			mediumCount++
		}
	}
	return mediumCount <= mediumViolationFailThreshold
}

func aggregateConfidence(violations []core.Violation) float64 {
	c := startingConfidence - float64(len(violations))*confidencePenaltyPerFinding
	if c < minimumConfidence {
		return minimumConfidence
	}
	return c
}

func violationKinds(violations []core.Violation) []string {
	if len(violations) == 0 {
		return nil
	}
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Kind
	}
	return out
}

func rationale(violations []core.Violation) string {
	if len(violations) == 0 {
		return "no guardrail violations found"
	}
	return fmt.Sprintf("%d violation(s) found across schema/pii/cve/bias checks", len(violations))
}

// Package relevance scores an article against the keyword watchlist and
// the external relevance/entity-extraction models (spec.md §4.4).
package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sentinel/internal/core"
	"sentinel/internal/keywords"
	"sentinel/internal/models"
)

// Result is the relevance evaluator's output for one article.
type Result struct {
	IsRelevant     bool
	RelevancyScore float64
	KeywordMatches []core.KeywordMatch
	Entities       core.EntityExtraction
	Rationale      string
	Confidence     float64
}

// unavailableResult is returned whenever the RelevanceModel call fails,
// per spec.md §4.4's conservative-failure rule.
var unavailableResult = Result{
	IsRelevant:     false,
	RelevancyScore: 0.0,
	Rationale:      "assessment unavailable",
	Confidence:     0.5,
}

// Evaluator runs the keyword matcher of §4.1 followed by the entity
// extraction and relevance model calls, composing their outputs into a
// single score and confidence.
type Evaluator struct {
	Keywords *keywords.Registry
	Entities models.EntityExtractionModel
	Model    models.RelevanceModel
}

// Evaluate scores title+content against the configured watchlist.
func (e *Evaluator) Evaluate(ctx context.Context, title, content string) (Result, error) {
	matches := e.Keywords.Match(title, content)

	entities, err := e.Entities.ExtractEntities(ctx, content)
	if err != nil {
		slog.Warn("relevance: entity extraction failed, continuing with no entities", "error", err)
		entities = core.EntityExtraction{}
	}

	assessment, err := e.Model.AssessRelevance(ctx, title, content, summarizeMatches(matches))
	if err != nil {
		result := unavailableResult
		result.KeywordMatches = matches
		result.Entities = entities
		return result, nil
	}

	base := clamp01(assessment.RelevancyScore)
	totalHits := 0
	var confidenceSum float64
	for _, m := range matches {
		totalHits += m.HitCount
		confidenceSum += m.Confidence
	}

	final := minFloat(1.0, base+minFloat(0.2, 0.05*float64(totalHits)))

	confidence := 0.7
	if len(matches) > 0 {
		confidence += (confidenceSum / float64(len(matches))) * 0.1
	}
	confidence += minFloat(0.15, 0.03*float64(entities.Count()))
	if final > 0.8 {
		confidence += 0.1
	} else if final > 0.6 {
		confidence += 0.05
	}
	confidence = minFloat(1.0, confidence)

	return Result{
		IsRelevant:     assessment.IsRelevant,
		RelevancyScore: final,
		KeywordMatches: matches,
		Entities:       entities,
		Rationale:      assessment.Rationale,
		Confidence:     confidence,
	}, nil
}

func summarizeMatches(matches []core.KeywordMatch) string {
	if len(matches) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("%s (%dx, confidence %.2f)", m.Keyword, m.HitCount, m.Confidence))
	}
	return strings.Join(parts, "; ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

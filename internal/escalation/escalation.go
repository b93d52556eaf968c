// Package escalation computes review-queue priority and performs the
// atomic REVIEW transition plus notification dispatch for articles the
// triage engine routes to manual review (spec.md §4.7).
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/core"
	"sentinel/internal/notify"
	"sentinel/internal/store"
)

// Reason names why an article was escalated, each carrying its own
// priority multiplier.
type Reason string

const (
	ReasonSensitiveContent       Reason = "sensitive_content"
	ReasonPolicyViolation        Reason = "policy_violation"
	ReasonGuardrailViolation     Reason = "guardrail_violation"
	ReasonQualityConcern         Reason = "quality_concern"
	ReasonComplexEntities        Reason = "complex_entities"
	ReasonLowConfidence          Reason = "low_confidence"
	ReasonPotentialFalsePositive Reason = "potential_false_positive"
	ReasonManualReviewRequested  Reason = "manual_review_requested"

	// Reasons the pipeline orchestrator derives directly (spec.md §4.9.6c)
	// that aren't named in the §4.7 multiplier table. Mapped onto the
	// closest listed category: a mid-band relevancy score is a quality
	// concern, not an alarm; a high score with no keyword hits at all is
	// a confidence mismatch between the model and the watchlist.
	ReasonMediumRelevancy         Reason = "medium_relevancy"
	ReasonHighRelevancyNoKeywords Reason = "high_relevancy_no_keywords"
)

var reasonMultipliers = map[Reason]float64{
	ReasonSensitiveContent:        1.8,
	ReasonPolicyViolation:         1.6,
	ReasonGuardrailViolation:      1.5,
	ReasonQualityConcern:          1.4,
	ReasonMediumRelevancy:         1.4,
	ReasonComplexEntities:         1.3,
	ReasonLowConfidence:           1.2,
	ReasonHighRelevancyNoKeywords: 1.2,
	ReasonPotentialFalsePositive:  1.1,
	ReasonManualReviewRequested:   1.0,
}

const (
	weightRelevancy  = 0.30
	weightKeywords   = 0.25
	weightEntities   = 0.15
	weightGuardrail  = 0.20
	weightTimeSens   = 0.10
	keywordNormCap   = 5.0
	entityNormCap    = 10.0
	guardrailNormCap = 3.0
	timeSensHorizon  = 24 * time.Hour
)

// Factors bundles the raw signals the priority formula weighs.
type Factors struct {
	RelevancyScore      float64
	KeywordMatches      int
	TotalEntities       int
	GuardrailViolations int
	ArticleAge          time.Duration
	Reason              Reason
}

// PriorityScore computes spec.md §4.7's weighted-sum score, multiplied by
// the reason multiplier and clamped to [0, 1].
func PriorityScore(f Factors) float64 {
	timeSensitivity := 1 - f.ArticleAge.Hours()/timeSensHorizon.Hours()
	if timeSensitivity < 0 {
		timeSensitivity = 0
	}

	base := weightRelevancy*clamp01(f.RelevancyScore) +
		weightKeywords*minFloat(float64(f.KeywordMatches)/keywordNormCap, 1.0) +
		weightEntities*minFloat(float64(f.TotalEntities)/entityNormCap, 1.0) +
		weightGuardrail*minFloat(float64(f.GuardrailViolations)/guardrailNormCap, 1.0) +
		weightTimeSens*timeSensitivity

	multiplier, ok := reasonMultipliers[f.Reason]
	if !ok {
		multiplier = 1.0
	}

	return clamp01(base * multiplier)
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

// Escalator writes the REVIEW transition and dispatches a notification.
type Escalator struct {
	Articles *store.ArticleRepository
	Sink     notify.Sink
}

// NewEscalator constructs an Escalator.
func NewEscalator(articles *store.ArticleRepository, sink notify.Sink) *Escalator {
	return &Escalator{Articles: articles, Sink: sink}
}

// Escalate transitions article to REVIEW atomically with its escalation
// record, estimates its queue position, and best-effort notifies the
// configured sink. A concurrent transition of the same article fails the
// whole call with the store's precondition error.
func (e *Escalator) Escalate(ctx context.Context, article *core.Article, reason Reason) (*core.Article, int, error) {
	priority := PriorityScore(Factors{
		RelevancyScore:      article.RelevancyScore,
		KeywordMatches:      len(article.KeywordMatches),
		TotalEntities:        article.Entities.Count(),
		GuardrailViolations: len(article.GuardrailFlags),
		ArticleAge:          time.Since(article.PublishedAt),
		Reason:              reason,
	})

	record := &core.EscalationRecord{
		EscalationID:  uuid.NewString(),
		Reason:        string(reason),
		PriorityScore: priority,
		EscalatedAt:   time.Now().UTC(),
	}

	updated, err := e.Articles.Update(ctx, article.ID, article.Version, func(a *core.Article) error {
		prevState := a.State
		prevVersion := a.Version
		a.State = core.StateReview
		a.PriorityScore = priority
		a.Escalation = record
		a.AuditTrail = append(a.AuditTrail, core.AuditEntry{
			AuditID:     uuid.NewString(),
			Timestamp:   record.EscalatedAt,
			Action:      "escalate",
			PrevState:   prevState,
			NewState:    core.StateReview,
			Rationale:   string(reason),
			PrevVersion: prevVersion,
			NewVersion:  prevVersion + 1,
		})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("escalation: transition article %q to review: %w", article.ID, err)
	}

	position, err := e.Articles.CountStateWithGreaterPriority(ctx, core.StateReview, priority)
	if err != nil {
		slog.Warn("escalation: failed to estimate queue position", "article_id", article.ID, "error", err)
		position = 0
	}

	if e.Sink != nil {
		n := notify.Notification{
			ArticleID:     article.ID,
			Title:         article.Title,
			Severity:      notify.SeverityFor(priority),
			PriorityScore: priority,
			Reason:        string(reason),
			QueuePosition: position,
		}
		if err := e.Sink.Notify(ctx, n); err != nil {
			slog.Warn("escalation: notification dispatch failed", "article_id", article.ID, "error", err)
		}
	}

	return updated, position, nil
}

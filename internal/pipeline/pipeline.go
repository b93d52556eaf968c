// Package pipeline implements the orchestrator that drives each parsed
// article through the relevance, dedup, guardrail, and triage stages,
// persists the outcome, and dispatches it (spec.md §4.9). Articles within
// a batch are processed with bounded concurrency; a single article's
// failure never aborts the batch.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sentinel/internal/core"
	"sentinel/internal/dedup"
	"sentinel/internal/escalation"
	"sentinel/internal/events"
	"sentinel/internal/guardrail"
	"sentinel/internal/relevance"
	"sentinel/internal/store"
	"sentinel/internal/triage"
)

const (
	defaultMaxConcurrency  = 5
	defaultArticleDeadline = 120 * time.Second
)

// Orchestrator wires the pipeline stages and drives a feed's batch of
// parsed articles through them.
type Orchestrator struct {
	Articles  *store.ArticleRepository
	Relevance *relevance.Evaluator
	Dedup     *dedup.Engine
	Guardrail *guardrail.Validator
	Escalator *escalation.Escalator
	Events    *events.Bus

	MaxConcurrency  int
	ArticleDeadline time.Duration
}

// NewOrchestrator builds an Orchestrator with spec.md's default
// concurrency and per-article deadline.
func NewOrchestrator(articles *store.ArticleRepository, rel *relevance.Evaluator, dd *dedup.Engine, gr *guardrail.Validator, esc *escalation.Escalator, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		Articles:        articles,
		Relevance:       rel,
		Dedup:           dd,
		Guardrail:       gr,
		Escalator:       esc,
		Events:          bus,
		MaxConcurrency:  defaultMaxConcurrency,
		ArticleDeadline: defaultArticleDeadline,
	}
}

// StepTrace records one pipeline step's outcome for a single article.
type StepTrace struct {
	Step     string
	Duration time.Duration
	Err      error
}

// ArticleResult is the per-article outcome of a Run call.
type ArticleResult struct {
	ArticleID string
	Action    core.TriageAction
	State     core.ArticleState
	Trace     []StepTrace
	Err       error
}

// Result aggregates a batch run's per-article outcomes.
type Result struct {
	Processed []ArticleResult
}

// Run processes parsed through the per-article workflow with bounded
// concurrency (default 5). Within an article, steps run sequentially;
// across articles, there is no ordering guarantee.
func (o *Orchestrator) Run(ctx context.Context, feedID string, parsed []core.ParsedArticle) *Result {
	limit := o.MaxConcurrency
	if limit <= 0 {
		limit = defaultMaxConcurrency
	}
	deadline := o.ArticleDeadline
	if deadline <= 0 {
		deadline = defaultArticleDeadline
	}

	var (
		mu      sync.Mutex
		results = make([]ArticleResult, 0, len(parsed))
	)

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for _, pa := range parsed {
		g.Go(func() error {
			articleCtx, cancel := context.WithTimeout(ctx, deadline)
			defer cancel()

			result := o.processOne(articleCtx, feedID, pa)
			if articleCtx.Err() != nil && result.Err == nil {
				result.Err = fmt.Errorf("pipeline: article %q exceeded its %s deadline", pa.ArticleID, deadline)
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil // per-article failures never abort the batch
		})
	}
	_ = g.Wait()

	return &Result{Processed: results}
}

func (o *Orchestrator) processOne(ctx context.Context, feedID string, pa core.ParsedArticle) ArticleResult {
	res := ArticleResult{ArticleID: pa.ArticleID}

	article := &core.Article{
		ID:                pa.ArticleID,
		FeedID:            feedID,
		CanonicalURL:      pa.CanonicalURL,
		RawURL:            pa.URL,
		Title:             pa.Title,
		PublishedAt:       pa.PublishedAt,
		IngestedAt:        time.Now().UTC(),
		ContentHash:       pa.ContentHash,
		RawBlobKey:        pa.RawBlobRef,
		NormalizedBlobKey: pa.NormalizedBlobRef,
		Tags:              pa.Tags,
		State:             core.StateIngested,
	}
	if err := o.Articles.Create(ctx, article); err != nil {
		res.Err = fmt.Errorf("pipeline: create article %q: %w", pa.ArticleID, err)
		return res
	}
	res.State = article.State

	var relevanceResult relevance.Result
	res.Trace = append(res.Trace, o.step("relevance", func() error {
		r, err := o.Relevance.Evaluate(ctx, pa.Title, pa.NormalizedContent)
		relevanceResult = r
		return err
	}))
	if err := res.Trace[len(res.Trace)-1].Err; err != nil {
		res.Err = err
		return res
	}

	var dedupResult dedup.Result
	res.Trace = append(res.Trace, o.step("dedup", func() error {
		d, err := o.Dedup.Evaluate(ctx, article, pa.NormalizedContent)
		dedupResult = d
		return err
	}))
	if err := res.Trace[len(res.Trace)-1].Err; err != nil {
		res.Err = err
		return res
	}

	if dedupResult.IsDuplicate {
		res.Action = core.ActionDrop
		updated, err := o.Articles.Update(ctx, article.ID, article.Version, func(a *core.Article) error {
			prevState, prevVersion := a.State, a.Version
			a.IsDuplicate = article.IsDuplicate
			a.DuplicateOf = article.DuplicateOf
			a.ClusterID = article.ClusterID
			a.TriageAction = core.ActionDrop
			a.State = core.StateArchived
			a.AuditTrail = append(a.AuditTrail, pipelineAuditEntry(prevState, core.StateArchived, "duplicate", "duplicate of "+article.DuplicateOf, prevVersion))
			return nil
		})
		if err != nil {
			res.Err = fmt.Errorf("pipeline: archive duplicate %q: %w", article.ID, err)
			return res
		}
		res.State = updated.State
		return res
	}

	var guardrailResult guardrail.Result
	res.Trace = append(res.Trace, o.step("guardrail", func() error {
		payload, err := json.Marshal(article)
		if err != nil {
			return err
		}
		guardrailResult = o.Guardrail.Validate(ctx, guardrail.SchemaArticle, payload, article.Title, pa.NormalizedContent, relevanceResult.Entities.CVEs)
		return nil
	}))

	keywordHits := len(relevanceResult.KeywordMatches)
	action := triage.Decide(triage.Input{
		RelevancyScore:      relevanceResult.RelevancyScore,
		KeywordHits:         keywordHits,
		GuardrailPassed:     guardrailResult.Passed,
		GuardrailViolations: len(guardrailResult.Violations),
	})
	res.Action = action

	newState := core.StateProcessed
	if action == core.ActionDrop {
		newState = core.StateArchived
	}

	updated, err := o.Articles.Update(ctx, article.ID, article.Version, func(a *core.Article) error {
		prevState, prevVersion := a.State, a.Version
		a.RelevancyScore = relevanceResult.RelevancyScore
		a.Confidence = relevanceResult.Confidence
		a.KeywordMatches = relevanceResult.KeywordMatches
		a.Entities = relevanceResult.Entities
		a.GuardrailFlags = guardrailResult.Violations
		a.TriageAction = action
		a.IsDuplicate = article.IsDuplicate
		a.ClusterID = article.ClusterID
		a.State = newState
		a.AuditTrail = append(a.AuditTrail, pipelineAuditEntry(prevState, newState, string(action), "", prevVersion))
		return nil
	})
	if err != nil {
		res.Err = fmt.Errorf("pipeline: persist processing results for %q: %w", article.ID, err)
		return res
	}
	article = updated
	res.State = article.State

	switch action {
	case core.ActionAutoPublish:
		published, err := o.Articles.Update(ctx, article.ID, article.Version, func(a *core.Article) error {
			prevState, prevVersion := a.State, a.Version
			a.State = core.StatePublished
			a.AuditTrail = append(a.AuditTrail, pipelineAuditEntry(prevState, core.StatePublished, "auto_publish", "", prevVersion))
			return nil
		})
		if err != nil {
			res.Err = fmt.Errorf("pipeline: publish %q: %w", article.ID, err)
			return res
		}
		article = published
		res.State = article.State
		if o.Events != nil {
			o.Events.Emit(ctx, events.Event{Kind: events.ArticleApproved, ArticleID: article.ID, Reviewer: "system", Timestamp: time.Now().UTC()})
		}
	case core.ActionReview:
		if o.Escalator != nil {
			reason := reviewReason(guardrailResult.Passed, relevanceResult.RelevancyScore, keywordHits)
			updatedArticle, _, err := o.Escalator.Escalate(ctx, article, reason)
			if err != nil {
				res.Err = fmt.Errorf("pipeline: escalate %q: %w", article.ID, err)
				return res
			}
			res.State = updatedArticle.State
		}
	}

	return res
}

func (o *Orchestrator) step(name string, fn func() error) StepTrace {
	start := time.Now()
	err := fn()
	trace := StepTrace{Step: name, Duration: time.Since(start), Err: err}
	if err != nil {
		slog.Warn("pipeline: step failed", "step", name, "duration", trace.Duration, "error", err)
	} else {
		slog.Debug("pipeline: step completed", "step", name, "duration", trace.Duration)
	}
	return trace
}

// reviewReason derives the escalation reason from spec.md §4.9.6c's
// ordered rule list.
func reviewReason(guardrailPassed bool, score float64, keywordHits int) escalation.Reason {
	switch {
	case !guardrailPassed:
		return escalation.ReasonGuardrailViolation
	case score >= 0.6 && score <= 0.8 && keywordHits >= 1:
		return escalation.ReasonMediumRelevancy
	case score > 0.8 && keywordHits == 0:
		return escalation.ReasonHighRelevancyNoKeywords
	default:
		return escalation.ReasonManualReviewRequested
	}
}

func pipelineAuditEntry(prevState, newState core.ArticleState, decision, rationale string, prevVersion int64) core.AuditEntry {
	return core.AuditEntry{
		AuditID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Action:      "pipeline",
		Actor:       "system",
		PrevState:   prevState,
		NewState:    newState,
		Decision:    decision,
		Rationale:   rationale,
		PrevVersion: prevVersion,
		NewVersion:  prevVersion + 1,
	}
}

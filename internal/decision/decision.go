// Package decision implements the article state machine and the
// decision processor that drives it: it validates a reviewer's decision
// against the allowed transition table, applies it as a single
// conditional mutation with version-conflict retry, appends an audit
// entry, and emits a best-effort downstream event (spec.md §4.8).
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"sentinel/internal/core"
	"sentinel/internal/events"
	"sentinel/internal/store"
)

// Kind is a reviewer decision.
type Kind string

const (
	Approve       Kind = "approve"
	Reject        Kind = "reject"
	Edit          Kind = "edit"
	EscalateAgain Kind = "escalate"
)

// ErrInvalidTransition is returned when (state, decision) is not in the
// allowed transition table.
var ErrInvalidTransition = errors.New("decision: invalid transition")

// ErrConflict is returned when the conditional update keeps losing the
// optimistic-concurrency race after the retry budget is exhausted.
var ErrConflict = errors.New("decision: conflict, all retries exhausted")

const maxConflictRetries = 3

// transitions maps (currentState, decision) -> nextState.
var transitions = map[core.ArticleState]map[Kind]core.ArticleState{
	core.StateReview: {
		Approve:       core.StatePublished,
		Reject:        core.StateArchived,
		Edit:          core.StateReview,
		EscalateAgain: core.StateReview,
	},
	core.StatePublished: {
		Reject: core.StateArchived,
	},
}

var eventKindFor = map[Kind]events.Kind{
	Approve:       events.ArticleApproved,
	Reject:        events.ArticleRejected,
	Edit:          events.ArticleEditRequested,
	EscalateAgain: events.ArticleEscalated,
}

// Request is the reviewer-submitted decision input.
type Request struct {
	ArticleID     string
	Decision      Kind
	Reviewer      string
	Rationale     string
	Modifications map[string]string
}

// Result is the outcome of processing a single Request.
type Result struct {
	ArticleID string
	Article   *core.Article
	Err       error
}

// Processor applies reviewer decisions to articles.
type Processor struct {
	Articles *store.ArticleRepository
	Events   *events.Bus
}

// NewProcessor constructs a Processor.
func NewProcessor(articles *store.ArticleRepository, bus *events.Bus) *Processor {
	return &Processor{Articles: articles, Events: bus}
}

// Process applies req as a single conditional mutation, retrying up to
// maxConflictRetries times on a version-precondition loss before
// reporting ErrConflict.
func (p *Processor) Process(ctx context.Context, req Request) (*core.Article, error) {
	var result *core.Article
	attempts := 0

	retryable := func() error {
		attempts++
		current, err := p.Articles.Get(ctx, req.ArticleID)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("decision: load article %q: %w", req.ArticleID, err))
		}

		nextState, ok := transitions[current.State][req.Decision]
		if !ok {
			return backoff.Permanent(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, req.Decision))
		}

		now := time.Now().UTC()
		updated, err := p.Articles.Update(ctx, req.ArticleID, current.Version, func(a *core.Article) error {
			prevState := a.State
			prevVersion := a.Version
			a.State = nextState
			for k, v := range req.Modifications {
				applyModification(a, k, v)
			}
			a.AuditTrail = append(a.AuditTrail, core.AuditEntry{
				AuditID:     uuid.NewString(),
				Timestamp:   now,
				Action:      "decision",
				Actor:       req.Reviewer,
				PrevState:   prevState,
				NewState:    nextState,
				Decision:    string(req.Decision),
				Rationale:   req.Rationale,
				PrevVersion: prevVersion,
				NewVersion:  prevVersion + 1,
			})
			return nil
		})
		if err != nil {
			if errors.Is(err, store.ErrPreconditionFailed) {
				return err // retryable
			}
			return backoff.Permanent(fmt.Errorf("decision: apply transition for %q: %w", req.ArticleID, err))
		}

		result = updated
		return nil
	}

	conflictBackoff := backoff.NewExponentialBackOff()
	conflictBackoff.InitialInterval = 10 * time.Millisecond
	conflictBackoff.MaxInterval = 100 * time.Millisecond
	bo := backoff.WithMaxRetries(conflictBackoff, maxConflictRetries)
	if err := backoff.Retry(retryable, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, fmt.Errorf("%w: article %q after %d attempts", ErrConflict, req.ArticleID, attempts)
		}
		return nil, err
	}

	if p.Events != nil {
		if kind, ok := eventKindFor[req.Decision]; ok {
			p.Events.Emit(ctx, events.Event{
				Kind:      kind,
				ArticleID: req.ArticleID,
				Reviewer:  req.Reviewer,
				Rationale: req.Rationale,
				Timestamp: time.Now().UTC(),
			})
		}
	}

	return result, nil
}

// ProcessBatch applies each request independently; one request's failure
// does not abort the rest. It returns per-item results plus aggregate
// succeeded/failed counts.
func (p *Processor) ProcessBatch(ctx context.Context, reqs []Request) (results []Result, succeeded, failed int) {
	results = make([]Result, 0, len(reqs))
	for _, req := range reqs {
		article, err := p.Process(ctx, req)
		results = append(results, Result{ArticleID: req.ArticleID, Article: article, Err: err})
		if err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	return results, succeeded, failed
}

func applyModification(a *core.Article, field, value string) {
	switch field {
	case "title":
		a.Title = value
	case "summary":
		a.Summary = value
	}
}

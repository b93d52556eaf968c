// Package events implements the decision processor's logical event bus
// (spec.md §4.8): an in-process, best-effort, fire-and-forget fan-out of
// state-transition events to interested subscribers.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Kind names a decision-processor event.
type Kind string

const (
	ArticleApproved      Kind = "article_approved"
	ArticleRejected      Kind = "article_rejected"
	ArticleEditRequested Kind = "article_edit_requested"
	ArticleEscalated     Kind = "article_escalated"
)

// Event is a single emitted event.
type Event struct {
	Kind      Kind
	ArticleID string
	Reviewer  string
	Rationale string
	Timestamp time.Time
}

// Sink receives emitted events. A Sink should not block significantly;
// Bus.Emit already treats a Sink error as non-fatal to the caller.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// Bus fans an event out to zero or more sinks. Emission is best-effort:
// a sink failure is logged but never propagated to the caller, matching
// the decision processor's "emission failure does not roll back the
// transition" contract.
type Bus struct {
	sinks []Sink
}

// NewBus builds a Bus over the given sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: sinks}
}

// Subscribe appends a sink to the bus.
func (b *Bus) Subscribe(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Emit fans e out to every subscribed sink, logging but swallowing any
// error a sink returns.
func (b *Bus) Emit(ctx context.Context, e Event) {
	for _, s := range b.sinks {
		if err := s.Handle(ctx, e); err != nil {
			slog.Warn("events: sink failed to handle event",
				"kind", e.Kind, "article_id", e.ArticleID, "error", err)
		}
	}
}

// LogSink is a Sink that just logs the event, used as the default
// subscriber when no external integration is configured.
type LogSink struct{}

// Handle logs e at info level.
func (LogSink) Handle(ctx context.Context, e Event) error {
	slog.Info("events: article transition",
		"kind", e.Kind, "article_id", e.ArticleID, "reviewer", e.Reviewer, "rationale", e.Rationale)
	return nil
}

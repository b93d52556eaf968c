// Package models declares the external model collaborators the pipeline
// calls out to: embedding, relevance scoring, entity extraction,
// moderation, and PII detection. Concrete implementations live behind
// these interfaces so the pipeline can be exercised against fakes in
// tests without a live model endpoint.
package models

import (
	"context"

	"sentinel/internal/core"
)

// EmbeddingModel produces a dense vector representation of text for
// semantic similarity search.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// RelevanceAssessment is the raw model judgment consumed by the relevance
// evaluator before score adjustment and confidence composition.
type RelevanceAssessment struct {
	IsRelevant     bool
	RelevancyScore float64
	Rationale      string
}

// RelevanceModel judges whether an article matches the watchlist intent,
// given the article body and a summary of keyword hits found in it.
type RelevanceModel interface {
	AssessRelevance(ctx context.Context, title, content string, keywordSummary string) (RelevanceAssessment, error)
}

// EntityExtractionModel extracts the seven named-entity kinds from article
// text.
type EntityExtractionModel interface {
	ExtractEntities(ctx context.Context, content string) (core.EntityExtraction, error)
}

// ModerationFinding is the structured verdict a ModerationModel returns.
type ModerationFinding struct {
	HasBias     bool
	BiasType    string
	Severity    core.Severity
	Description string
	Confidence  float64
}

// ModerationModel judges an article for bias and sensationalism beyond
// what the lexicon-based checks in the guardrail validator can see.
type ModerationModel interface {
	Moderate(ctx context.Context, title, content string) (ModerationFinding, error)
}

// PIISpan is a single detected span of personally identifying information.
type PIISpan struct {
	Start      int
	End        int
	Kind       string
	Confidence float64
}

// PIIModel detects named-person, address, date-of-birth, and government-id
// spans that regex detectors alone cannot reliably find.
type PIIModel interface {
	DetectPII(ctx context.Context, content string) ([]PIISpan, error)
}

// VectorMatch is a single semantic-search hit.
type VectorMatch struct {
	ArticleID  string
	Similarity float64
}

// VectorStore indexes article embeddings and serves k-nearest-neighbor
// similarity queries for the dedup engine's semantic stage (§4.3).
// Concretely backed by the pgvector adapter in internal/store.
type VectorStore interface {
	Store(ctx context.Context, articleID string, embedding []float64) error
	SearchKNN(ctx context.Context, embedding []float64, k int, excludeID string) ([]VectorMatch, error)
}

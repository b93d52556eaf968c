package dedup

import (
	"context"
	"log/slog"

	"sentinel/internal/models"
)

const (
	semanticK                 = 10
	semanticSimilarityMinimum = 0.85
	embeddingContentChars     = 2000
)

// SemanticResult is the outcome of the embedding/vector-index fallback
// stage.
type SemanticResult struct {
	IsDuplicate bool
	DuplicateOf string
	Similarity  float64
	Degraded    bool // true if the stage could not run and fell back silently-non-blocking
	Embedding   []float64
}

// SemanticStage wraps the embedding model and vector index used for
// near-duplicate detection once the heuristic stage finds nothing.
type SemanticStage struct {
	Embeddings models.EmbeddingModel
	Vectors    models.VectorStore
}

// Run computes an embedding for title + the first embeddingContentChars of
// content, queries the k nearest neighbors excluding articleID, and
// reports a duplicate if the top hit clears semanticSimilarityMinimum. Any
// failure degrades to a non-duplicate result — the caller must never block
// the pipeline on this stage.
func (s *SemanticStage) Run(ctx context.Context, articleID, title, content string) SemanticResult {
	if s == nil || s.Embeddings == nil || s.Vectors == nil {
		return SemanticResult{Degraded: true}
	}

	text := title + " " + truncate(content, embeddingContentChars)
	embedding, err := s.Embeddings.Embed(ctx, text)
	if err != nil {
		slog.Warn("dedup: semantic stage embedding failed, falling back to heuristic result", "article_id", articleID, "error", err)
		return SemanticResult{Degraded: true}
	}

	matches, err := s.Vectors.SearchKNN(ctx, embedding, semanticK, articleID)
	if err != nil {
		slog.Warn("dedup: semantic stage vector search failed, falling back to heuristic result", "article_id", articleID, "error", err)
		return SemanticResult{Degraded: true, Embedding: embedding}
	}
	if len(matches) == 0 {
		return SemanticResult{Embedding: embedding}
	}

	top := matches[0]
	for _, m := range matches[1:] {
		if m.Similarity > top.Similarity {
			top = m
		}
	}
	if top.Similarity >= semanticSimilarityMinimum {
		return SemanticResult{IsDuplicate: true, DuplicateOf: top.ArticleID, Similarity: top.Similarity, Embedding: embedding}
	}
	return SemanticResult{Similarity: top.Similarity, Embedding: embedding}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

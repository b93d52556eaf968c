package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sentinel/internal/core"
	"sentinel/internal/store"
)

// SlidingWindow is the span of prior articles the heuristic stage compares
// a new article against.
const SlidingWindow = 72 * time.Hour

// Method names surfaced on a Result, matching the heuristic/semantic
// method vocabulary named in spec.md §4.3.
const MethodSemantic = "semantic_similarity"

// Result is the dedup engine's overall verdict for one article, after
// whichever stage produced it.
type Result struct {
	IsDuplicate bool
	DuplicateOf string
	Score       float64
	Method      string
	ClusterID   string
}

// Engine runs the heuristic then semantic dedup stages and performs
// cluster assignment.
type Engine struct {
	Articles *store.ArticleRepository
	Semantic *SemanticStage
}

// NewEngine wires an Engine against an article repository and an optional
// semantic stage (nil disables the semantic fallback entirely).
func NewEngine(articles *store.ArticleRepository, semantic *SemanticStage) *Engine {
	return &Engine{Articles: articles, Semantic: semantic}
}

// Evaluate runs both dedup stages for a not-yet-persisted article and
// assigns its cluster bookkeeping. The article's ClusterID, IsDuplicate,
// and DuplicateOf fields are populated in place; callers persist the
// article after this returns. content is the normalized article body, used
// only by the semantic stage's embedding input.
func (e *Engine) Evaluate(ctx context.Context, article *core.Article, content string) (Result, error) {
	fp := BuildFingerprint(article.RawURL, article.CanonicalURL, article.Title, article.ContentHash)

	since := article.PublishedAt.Add(-SlidingWindow)
	prior, err := e.Articles.RecentGlobal(ctx, since, 0)
	if err != nil {
		return Result{}, fmt.Errorf("dedup: load candidate window: %w", err)
	}

	var candidates []Candidate
	for _, p := range prior {
		if p.ID == article.ID {
			continue
		}
		candidates = append(candidates, Candidate{
			ArticleID:   p.ID,
			Fingerprint: BuildFingerprint(p.RawURL, p.CanonicalURL, p.Title, p.ContentHash),
		})
	}

	heuristic := RunHeuristic(fp, candidates)
	var result Result
	var semanticEmbedding []float64

	if heuristic.IsDuplicate {
		result = Result{IsDuplicate: true, DuplicateOf: heuristic.DuplicateOf, Score: heuristic.Score, Method: heuristic.Method}
	} else {
		semantic := e.Semantic.Run(ctx, article.ID, article.Title, content)
		semanticEmbedding = semantic.Embedding
		if semantic.IsDuplicate {
			result = Result{IsDuplicate: true, DuplicateOf: semantic.DuplicateOf, Score: semantic.Similarity, Method: MethodSemantic}
		} else {
			result = Result{IsDuplicate: false}
		}
	}

	if err := e.assignCluster(ctx, article, &result); err != nil {
		return Result{}, err
	}

	if !result.IsDuplicate && semanticEmbedding != nil && e.Semantic != nil && e.Semantic.Vectors != nil {
		if err := e.Semantic.Vectors.Store(ctx, article.ID, semanticEmbedding); err != nil {
			slog.Warn("dedup: failed to index embedding for future comparisons", "article_id", article.ID, "error", err)
		}
	}

	return result, nil
}

// assignCluster implements spec.md §4.3's cluster-assignment paragraph:
// a non-duplicate becomes canonical of a fresh cluster; a duplicate joins
// its canonical's cluster, creating that cluster in place if the canonical
// predates cluster bookkeeping.
func (e *Engine) assignCluster(ctx context.Context, article *core.Article, result *Result) error {
	if !result.IsDuplicate {
		result.ClusterID = "cluster_" + article.ID
		article.ClusterID = result.ClusterID
		article.IsDuplicate = false
		article.DuplicateOf = ""
		return nil
	}

	canonical, err := e.Articles.Get(ctx, result.DuplicateOf)
	if err != nil {
		return fmt.Errorf("dedup: load canonical %q: %w", result.DuplicateOf, err)
	}

	clusterID := canonical.ClusterID
	if clusterID == "" {
		clusterID = "cluster_" + canonical.ID
		// No version precondition: the mutation sees the stored record, so a
		// concurrent writer that set the cluster first is adopted, not failed.
		_, err := e.Articles.Update(ctx, canonical.ID, 0, func(c *core.Article) error {
			if c.ClusterID == "" {
				c.ClusterID = clusterID
			} else {
				clusterID = c.ClusterID // lost the race; another writer already set it
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("dedup: create cluster for canonical %q: %w", canonical.ID, err)
		}
	}

	result.ClusterID = clusterID
	article.ClusterID = clusterID
	article.IsDuplicate = true
	article.DuplicateOf = canonical.ID
	return nil
}

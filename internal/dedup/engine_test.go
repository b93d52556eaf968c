package dedup

import (
	"context"
	"testing"
	"time"

	"sentinel/internal/core"
	"sentinel/internal/models"
	"sentinel/internal/store"
)

type fakeEmbeddingModel struct {
	vector []float64
	err    error
}

func (f *fakeEmbeddingModel) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeVectorStore struct {
	stored  map[string][]float64
	matches []models.VectorMatch
	err     error
}

func (f *fakeVectorStore) Store(ctx context.Context, articleID string, embedding []float64) error {
	if f.stored == nil {
		f.stored = make(map[string][]float64)
	}
	f.stored[articleID] = embedding
	return nil
}

func (f *fakeVectorStore) SearchKNN(ctx context.Context, embedding []float64, k int, excludeID string) ([]models.VectorMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func newTestEngine(t *testing.T, semantic *SemanticStage) (*Engine, *store.ArticleRepository) {
	t.Helper()
	entities := store.NewMemoryEntityStore()
	articles := store.NewArticleRepository(entities)
	return NewEngine(articles, semantic), articles
}

func TestEngineEvaluateNonDuplicateCreatesOwnCluster(t *testing.T) {
	engine, _ := newTestEngine(t, &SemanticStage{
		Embeddings: &fakeEmbeddingModel{vector: []float64{0.1, 0.2}},
		Vectors:    &fakeVectorStore{},
	})

	article := &core.Article{ID: "a1", FeedID: "f1", Title: "New report on threat actor activity", PublishedAt: time.Now()}
	result, err := engine.Evaluate(context.Background(), article, "some content")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.IsDuplicate {
		t.Fatalf("Evaluate() = %+v, want non-duplicate", result)
	}
	if article.ClusterID != "cluster_a1" {
		t.Fatalf("ClusterID = %q, want cluster_a1", article.ClusterID)
	}
}

func TestEngineEvaluateHeuristicDuplicateJoinsExistingCluster(t *testing.T) {
	engine, articles := newTestEngine(t, nil)
	ctx := context.Background()

	canonical := &core.Article{
		ID: "canonical-1", FeedID: "f1", RawURL: "https://example.com/story",
		CanonicalURL: "https://example.com/story", Title: "Original story",
		PublishedAt: time.Now(), ClusterID: "cluster_canonical-1",
	}
	if err := articles.Create(ctx, canonical); err != nil {
		t.Fatalf("Create canonical: %v", err)
	}

	dup := &core.Article{
		ID: "dup-1", FeedID: "f1", RawURL: "https://example.com/story",
		CanonicalURL: "https://example.com/story", Title: "Original story", PublishedAt: time.Now(),
	}
	result, err := engine.Evaluate(ctx, dup, "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.IsDuplicate || result.DuplicateOf != "canonical-1" {
		t.Fatalf("Evaluate() = %+v, want duplicate of canonical-1", result)
	}
	if dup.ClusterID != "cluster_canonical-1" {
		t.Fatalf("ClusterID = %q, want cluster_canonical-1", dup.ClusterID)
	}
}

func TestEngineEvaluateCreatesClusterInPlaceForPreExistingCanonical(t *testing.T) {
	engine, articles := newTestEngine(t, nil)
	ctx := context.Background()

	// Canonical predates cluster bookkeeping: no ClusterID set yet.
	canonical := &core.Article{
		ID: "canonical-2", FeedID: "f1", RawURL: "https://example.com/legacy",
		CanonicalURL: "https://example.com/legacy", Title: "Legacy story", PublishedAt: time.Now(),
	}
	if err := articles.Create(ctx, canonical); err != nil {
		t.Fatalf("Create canonical: %v", err)
	}

	dup := &core.Article{
		ID: "dup-2", FeedID: "f1", RawURL: "https://example.com/legacy",
		CanonicalURL: "https://example.com/legacy", Title: "Legacy story", PublishedAt: time.Now(),
	}
	if _, err := engine.Evaluate(ctx, dup, ""); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if dup.ClusterID != "cluster_canonical-2" {
		t.Fatalf("ClusterID = %q, want cluster_canonical-2", dup.ClusterID)
	}

	got, err := articles.Get(ctx, "canonical-2")
	if err != nil {
		t.Fatalf("Get canonical: %v", err)
	}
	if got.ClusterID != "cluster_canonical-2" {
		t.Fatalf("canonical ClusterID = %q, want cluster created in place", got.ClusterID)
	}
}

func TestEngineEvaluateSemanticFallbackDegradesGracefully(t *testing.T) {
	engine, _ := newTestEngine(t, &SemanticStage{
		Embeddings: &fakeEmbeddingModel{err: context.DeadlineExceeded},
		Vectors:    &fakeVectorStore{},
	})

	article := &core.Article{ID: "a1", FeedID: "f1", Title: "Totally unique headline", PublishedAt: time.Now()}
	result, err := engine.Evaluate(context.Background(), article, "content")
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want graceful degradation with no error", err)
	}
	if result.IsDuplicate {
		t.Fatalf("Evaluate() = %+v, want non-duplicate on semantic degradation", result)
	}
}

func TestEngineEvaluateSemanticDuplicate(t *testing.T) {
	engine, articles := newTestEngine(t, &SemanticStage{
		Embeddings: &fakeEmbeddingModel{vector: []float64{0.5}},
		Vectors: &fakeVectorStore{
			matches: []models.VectorMatch{{ArticleID: "existing-1", Similarity: 0.9}},
		},
	})
	ctx := context.Background()
	if err := articles.Create(ctx, &core.Article{ID: "existing-1", FeedID: "f1", Title: "Existing", PublishedAt: time.Now(), ClusterID: "cluster_existing-1"}); err != nil {
		t.Fatalf("Create existing-1: %v", err)
	}

	article := &core.Article{ID: "a2", FeedID: "f1", Title: "Near duplicate coverage", PublishedAt: time.Now()}
	result, err := engine.Evaluate(ctx, article, "content")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.IsDuplicate || result.DuplicateOf != "existing-1" || result.Method != MethodSemantic {
		t.Fatalf("Evaluate() = %+v, want semantic duplicate of existing-1", result)
	}
}

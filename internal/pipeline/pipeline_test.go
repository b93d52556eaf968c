package pipeline

import (
	"context"
	"testing"
	"time"

	"sentinel/internal/core"
	"sentinel/internal/dedup"
	"sentinel/internal/escalation"
	"sentinel/internal/events"
	"sentinel/internal/guardrail"
	"sentinel/internal/keywords"
	"sentinel/internal/models"
	"sentinel/internal/notify"
	"sentinel/internal/relevance"
	"sentinel/internal/store"
)

type fakeEntityModel struct{}

func (fakeEntityModel) ExtractEntities(ctx context.Context, content string) (core.EntityExtraction, error) {
	return core.EntityExtraction{}, nil
}

type fakeRelevanceModel struct {
	score      float64
	isRelevant bool
}

func (f fakeRelevanceModel) AssessRelevance(ctx context.Context, title, content, keywordSummary string) (models.RelevanceAssessment, error) {
	return models.RelevanceAssessment{IsRelevant: f.isRelevant, RelevancyScore: f.score, Rationale: "test"}, nil
}

type fakeEmbeddingModel struct{}

func (fakeEmbeddingModel) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

type fakeVectorStore struct{}

func (fakeVectorStore) Store(ctx context.Context, articleID string, embedding []float64) error {
	return nil
}

func (fakeVectorStore) SearchKNN(ctx context.Context, embedding []float64, k int, excludeID string) ([]models.VectorMatch, error) {
	return nil, nil
}

type capturingSink struct {
	notifications []notify.Notification
}

func (c *capturingSink) Notify(ctx context.Context, n notify.Notification) error {
	c.notifications = append(c.notifications, n)
	return nil
}

func testKeywordRegistry(t *testing.T) *keywords.Registry {
	t.Helper()
	doc := []byte(`
critical:
  - keyword: ransomware
    weight: 0.9
settings:
  enable_fuzzy_matching: false
`)
	reg, err := keywords.LoadDocument(doc)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	return reg
}

func newTestOrchestrator(t *testing.T, score float64, isRelevant bool, sink notify.Sink) (*Orchestrator, *store.ArticleRepository) {
	t.Helper()
	entities := store.NewMemoryEntityStore()
	articles := store.NewArticleRepository(entities)

	rel := &relevance.Evaluator{
		Keywords: testKeywordRegistry(t),
		Entities: fakeEntityModel{},
		Model:    fakeRelevanceModel{score: score, isRelevant: isRelevant},
	}
	dd := dedup.NewEngine(articles, &dedup.SemanticStage{Embeddings: fakeEmbeddingModel{}, Vectors: fakeVectorStore{}})
	gr := &guardrail.Validator{}
	esc := escalation.NewEscalator(articles, sink)
	bus := events.NewBus()

	return NewOrchestrator(articles, rel, dd, gr, esc, bus), articles
}

func TestRunAutoPublishesHighRelevancyArticle(t *testing.T) {
	orch, articles := newTestOrchestrator(t, 0.95, true, nil)

	parsed := []core.ParsedArticle{{
		ArticleID:         "a1",
		Title:             "New ransomware campaign hits utilities",
		URL:               "https://example.com/a1",
		CanonicalURL:      "https://example.com/a1",
		PublishedAt:       time.Now(),
		NormalizedContent: "A ransomware group claimed a new campaign against utility providers.",
		ContentHash:       "hash1",
	}}

	result := orch.Run(context.Background(), "feed1", parsed)
	if len(result.Processed) != 1 {
		t.Fatalf("len(Processed) = %d, want 1", len(result.Processed))
	}
	pr := result.Processed[0]
	if pr.Err != nil {
		t.Fatalf("Processed[0].Err = %v", pr.Err)
	}
	if pr.Action != core.ActionAutoPublish {
		t.Errorf("Action = %v, want AUTO_PUBLISH", pr.Action)
	}
	if pr.State != core.StatePublished {
		t.Errorf("State = %v, want PUBLISHED", pr.State)
	}

	stored, err := articles.Get(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.State != core.StatePublished {
		t.Errorf("stored.State = %v, want PUBLISHED", stored.State)
	}
}

func TestRunEscalatesMediumRelevancyToReview(t *testing.T) {
	sink := &capturingSink{}
	orch, articles := newTestOrchestrator(t, 0.7, true, sink)

	parsed := []core.ParsedArticle{{
		ArticleID:         "a2",
		Title:             "Ransomware activity observed",
		URL:               "https://example.com/a2",
		CanonicalURL:      "https://example.com/a2",
		PublishedAt:       time.Now(),
		NormalizedContent: "Researchers observed ransomware activity affecting a small vendor.",
		ContentHash:       "hash2",
	}}

	result := orch.Run(context.Background(), "feed1", parsed)
	pr := result.Processed[0]
	if pr.Err != nil {
		t.Fatalf("Processed[0].Err = %v", pr.Err)
	}
	if pr.Action != core.ActionReview {
		t.Fatalf("Action = %v, want REVIEW", pr.Action)
	}
	if pr.State != core.StateReview {
		t.Errorf("State = %v, want REVIEW", pr.State)
	}
	if len(sink.notifications) != 1 {
		t.Fatalf("len(notifications) = %d, want 1", len(sink.notifications))
	}

	stored, err := articles.Get(context.Background(), "a2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Escalation == nil || stored.Escalation.Reason != string(escalation.ReasonMediumRelevancy) {
		t.Errorf("stored.Escalation = %+v, want medium_relevancy reason", stored.Escalation)
	}
}

func TestRunDropsLowRelevancyArticle(t *testing.T) {
	orch, articles := newTestOrchestrator(t, 0.2, false, nil)

	parsed := []core.ParsedArticle{{
		ArticleID:         "a3",
		Title:             "Unrelated company news",
		URL:               "https://example.com/a3",
		CanonicalURL:      "https://example.com/a3",
		PublishedAt:       time.Now(),
		NormalizedContent: "A company announced a quarterly earnings report.",
		ContentHash:       "hash3",
	}}

	result := orch.Run(context.Background(), "feed1", parsed)
	pr := result.Processed[0]
	if pr.Err != nil {
		t.Fatalf("Processed[0].Err = %v", pr.Err)
	}
	if pr.Action != core.ActionDrop {
		t.Fatalf("Action = %v, want DROP", pr.Action)
	}
	if pr.State != core.StateArchived {
		t.Errorf("State = %v, want ARCHIVED", pr.State)
	}

	stored, err := articles.Get(context.Background(), "a3")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.State != core.StateArchived {
		t.Errorf("stored.State = %v, want ARCHIVED", stored.State)
	}
}

func TestRunSkipsDuplicateWithDropAction(t *testing.T) {
	orch, articles := newTestOrchestrator(t, 0.95, true, nil)
	ctx := context.Background()

	canonical := &core.Article{
		ID: "canonical", FeedID: "feed1", RawURL: "https://example.com/same",
		CanonicalURL: "https://example.com/same", Title: "Same story", PublishedAt: time.Now(),
		ClusterID: "cluster_canonical",
	}
	if err := articles.Create(ctx, canonical); err != nil {
		t.Fatalf("Create canonical: %v", err)
	}

	parsed := []core.ParsedArticle{{
		ArticleID:         "dup",
		Title:             "Same story",
		URL:               "https://example.com/same",
		CanonicalURL:      "https://example.com/same",
		PublishedAt:       time.Now(),
		NormalizedContent: "duplicate content",
		ContentHash:       "hash4",
	}}

	result := orch.Run(ctx, "feed1", parsed)
	pr := result.Processed[0]
	if pr.Err != nil {
		t.Fatalf("Processed[0].Err = %v", pr.Err)
	}
	if pr.Action != core.ActionDrop {
		t.Fatalf("Action = %v, want DROP for duplicate", pr.Action)
	}

	stored, err := articles.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.IsDuplicate || stored.DuplicateOf != "canonical" || stored.State != core.StateArchived {
		t.Errorf("stored = %+v, want archived duplicate of canonical", stored)
	}
}

func TestRunProcessesBatchConcurrentlyWithoutAbortingOnFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, 0.95, true, nil)
	ctx := context.Background()

	parsed := []core.ParsedArticle{
		{ArticleID: "ok1", Title: "Ransomware strikes again", URL: "https://example.com/ok1", CanonicalURL: "https://example.com/ok1", PublishedAt: time.Now(), NormalizedContent: "ransomware", ContentHash: "h1"},
		{ArticleID: "ok2", Title: "Second ransomware story", URL: "https://example.com/ok2", CanonicalURL: "https://example.com/ok2", PublishedAt: time.Now(), NormalizedContent: "ransomware again", ContentHash: "h2"},
	}

	result := orch.Run(ctx, "feed1", parsed)
	if len(result.Processed) != 2 {
		t.Fatalf("len(Processed) = %d, want 2", len(result.Processed))
	}
	for _, pr := range result.Processed {
		if pr.Err != nil {
			t.Errorf("Processed[%s].Err = %v", pr.ArticleID, pr.Err)
		}
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sentinel/internal/core"
	"sentinel/internal/dedup"
	"sentinel/internal/escalation"
	"sentinel/internal/events"
	"sentinel/internal/guardrail"
	"sentinel/internal/keywords"
	"sentinel/internal/logger"
	"sentinel/internal/models"
	"sentinel/internal/notify"
	"sentinel/internal/pipeline"
	"sentinel/internal/relevance"
	"sentinel/internal/store"
)

func newRunCmd() *cobra.Command {
	var feedID string

	cmd := &cobra.Command{
		Use:   "run [batch-file]",
		Short: "Triage a batch of parsed articles from a single feed",
		Long: `Run drives one feed's batch of already-parsed articles through the
relevance, dedup, guardrail, and triage pipeline and persists the outcome
for each. batch-file is a JSON array of core.ParsedArticle values, the
shape the external feed parser is expected to produce.

Example:
  sentinel run --feed-id cisa-advisories batch.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args[0], feedID)
		},
	}

	cmd.Flags().StringVar(&feedID, "feed-id", "", "feed identifier the batch was fetched from (required)")
	cmd.MarkFlagRequired("feed-id")

	return cmd
}

func runBatch(ctx context.Context, batchFile, feedID string) error {
	log := logger.Get()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(batchFile)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	var parsed []core.ParsedArticle
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse batch file: %w", err)
	}
	log.Info("loaded batch", "feed_id", feedID, "articles", len(parsed))

	keywordData, err := os.ReadFile(cfg.Keywords.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to read keyword registry: %w", err)
	}
	keywordRegistry, err := keywords.LoadDocument(keywordData)
	if err != nil {
		return fmt.Errorf("failed to load keyword registry: %w", err)
	}

	genaiModel, err := models.NewGenAIModel(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.GenerativeModel, cfg.AI.Gemini.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("failed to initialize AI model client: %w", err)
	}

	entities, err := store.NewPostgresEntityStore(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer entities.Close()
	articles := store.NewArticleRepository(entities)

	vectors := store.NewPgVectorStore(entities.DB())

	relEvaluator := &relevance.Evaluator{
		Keywords: keywordRegistry,
		Entities: genaiModel,
		Model:    genaiModel,
	}
	dedupEngine := dedup.NewEngine(articles, &dedup.SemanticStage{
		Embeddings: genaiModel,
		Vectors:    vectors,
	})
	guardrailValidator := &guardrail.Validator{
		Moderation: genaiModel,
		PII:        genaiModel,
	}

	var sink notify.Sink
	if cfg.Notify.Slack.WebhookURL != "" {
		sink = notify.NewSlackSink(cfg.Notify.Slack.WebhookURL)
	}
	escalator := escalation.NewEscalator(articles, sink)

	bus := events.NewBus(events.LogSink{})

	orchestrator := pipeline.NewOrchestrator(articles, relEvaluator, dedupEngine, guardrailValidator, escalator, bus)
	orchestrator.MaxConcurrency = cfg.Pipeline.MaxConcurrency
	orchestrator.ArticleDeadline = cfg.Pipeline.ArticleDeadline

	result := orchestrator.Run(ctx, feedID, parsed)

	succeeded, failed := 0, 0
	for _, r := range result.Processed {
		if r.Err != nil {
			failed++
			log.Error("article processing failed", "article_id", r.ArticleID, "error", r.Err)
			continue
		}
		succeeded++
	}
	log.Info("batch complete", "feed_id", feedID, "succeeded", succeeded, "failed", failed)
	fmt.Printf("processed %d articles: %d succeeded, %d failed\n", len(parsed), succeeded, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed processing", failed, len(parsed))
	}
	return nil
}

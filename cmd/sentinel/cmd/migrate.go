package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sentinel/internal/logger"
	"sentinel/internal/store"
)

// entitySchema creates the single JSONB-backed entities table
// PostgresEntityStore expects, plus the pgvector extension and embeddings
// table PgVectorStore expects. It is idempotent.
const entitySchema = `
CREATE TABLE IF NOT EXISTS entities (
	key        TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	payload    JSONB NOT NULL,
	indexes    JSONB NOT NULL,
	sort_key   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_by_state ON entities ((indexes->>'by_state'), sort_key);
CREATE INDEX IF NOT EXISTS entities_by_feed ON entities ((indexes->>'by_feed'), sort_key);
CREATE INDEX IF NOT EXISTS entities_by_article ON entities ((indexes->>'by_article'), sort_key);
CREATE INDEX IF NOT EXISTS entities_by_thread ON entities ((indexes->>'by_thread'), sort_key);
CREATE INDEX IF NOT EXISTS entities_global ON entities ((indexes->>'global'), sort_key);

CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS article_embeddings (
	article_id       TEXT PRIMARY KEY,
	embedding_vector vector NOT NULL
);
`

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the entities/embeddings schema",
		Long: `Apply the schema PostgresEntityStore and PgVectorStore expect: a single
JSONB entities table with its secondary-index columns, and the pgvector
extension plus article_embeddings table for semantic dedup. Idempotent —
safe to run on every deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
	return cmd
}

func runMigrate(ctx context.Context) error {
	log := logger.Get()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	entities, err := store.NewPostgresEntityStore(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer entities.Close()

	log.Info("applying entity schema")
	if _, err := entities.DB().ExecContext(ctx, entitySchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	fmt.Println("schema applied successfully")
	return nil
}

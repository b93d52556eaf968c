package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/models"
)

// PgVectorStore implements models.VectorStore using PostgreSQL's pgvector
// extension for cosine-similarity k-NN search over article embeddings.
type PgVectorStore struct {
	db *sql.DB
}

// NewPgVectorStore wraps an existing connection pool. Callers typically
// share the pool used by PostgresEntityStore.
func NewPgVectorStore(db *sql.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

// Store upserts an article's embedding into the embeddings table.
func (p *PgVectorStore) Store(ctx context.Context, articleID string, embedding []float64) error {
	query := `
		INSERT INTO article_embeddings (article_id, embedding_vector)
		VALUES ($1, $2::vector)
		ON CONFLICT (article_id) DO UPDATE SET embedding_vector = EXCLUDED.embedding_vector
	`
	if _, err := p.db.ExecContext(ctx, query, articleID, formatVector(embedding)); err != nil {
		return fmt.Errorf("store: pgvector store %q: %w", articleID, err)
	}
	return nil
}

// SearchKNN returns the k nearest neighbors by cosine similarity, excluding
// excludeID, ordered by descending similarity.
func (p *PgVectorStore) SearchKNN(ctx context.Context, embedding []float64, k int, excludeID string) ([]models.VectorMatch, error) {
	if k <= 0 {
		k = 10
	}
	vectorStr := formatVector(embedding)

	query := `
		SELECT article_id, 1 - (embedding_vector <=> $1::vector) AS similarity
		FROM article_embeddings
		WHERE article_id != $2
		ORDER BY embedding_vector <=> $1::vector
		LIMIT $3
	`
	rows, err := p.db.QueryContext(ctx, query, vectorStr, excludeID, k)
	if err != nil {
		return nil, fmt.Errorf("store: pgvector search: %w", err)
	}
	defer rows.Close()

	var out []models.VectorMatch
	for rows.Next() {
		var m models.VectorMatch
		if err := rows.Scan(&m.ArticleID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("store: pgvector search: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// formatVector renders a float64 slice in pgvector's literal format,
// e.g. "[0.1,0.2,0.3]".
func formatVector(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

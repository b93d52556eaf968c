package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // Postgres driver
)

// execer is satisfied by both *sql.DB and *sql.Tx, the same seam the
// teacher's postgresArticleRepo uses to share code between a plain
// connection and a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresEntityStore implements EntityStore over a single "entities" table
// with a JSONB payload column, so floats in Payload round-trip byte for
// byte rather than being reparsed into float64 (R2).
type PostgresEntityStore struct {
	db *sql.DB
}

// NewPostgresEntityStore opens a connection pool and verifies connectivity.
// maxOpen and maxIdle of 0 fall back to 25/5, the teacher's pool-size
// defaults for its own postgres-backed repositories.
func NewPostgresEntityStore(connectionString string, maxOpen, maxIdle int) (*PostgresEntityStore, error) {
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresEntityStore{db: db}, nil
}

// DB returns the underlying connection pool, so callers that need a
// second store over the same database (PgVectorStore) can share it
// instead of opening a second pool.
func (s *PostgresEntityStore) DB() *sql.DB {
	return s.db
}

// Close releases the underlying connection pool.
func (s *PostgresEntityStore) Close() error {
	return s.db.Close()
}

func (s *PostgresEntityStore) Put(ctx context.Context, item Item, ifAbsent bool) error {
	return putWith(ctx, s.db, item, ifAbsent)
}

func putWith(ctx context.Context, x execer, item Item, ifAbsent bool) error {
	indexesJSON, err := json.Marshal(item.Indexes)
	if err != nil {
		return fmt.Errorf("store: marshal indexes: %w", err)
	}

	query := `
		INSERT INTO entities (key, version, payload, indexes, sort_key)
		VALUES ($1, $2, $3, $4, $5)
	`
	if !ifAbsent {
		query += `
		ON CONFLICT (key) DO UPDATE SET
			version = EXCLUDED.version, payload = EXCLUDED.payload,
			indexes = EXCLUDED.indexes, sort_key = EXCLUDED.sort_key`
	} else {
		query += ` ON CONFLICT (key) DO NOTHING`
	}

	res, err := x.ExecContext(ctx, query, item.Key, item.Version, json.RawMessage(item.Payload), indexesJSON, item.SortKey)
	if err != nil {
		return fmt.Errorf("store: put %q: %w", item.Key, err)
	}
	if ifAbsent {
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: put %q: rows affected: %w", item.Key, err)
		}
		if n == 0 {
			return fmt.Errorf("store: put %q: %w", item.Key, ErrPreconditionFailed)
		}
	}
	return nil
}

func (s *PostgresEntityStore) Update(ctx context.Context, key string, mutate Mutation, ifExists bool, ifVersion int64) (Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, fmt.Errorf("store: update %q: begin tx: %w", key, err)
	}
	defer tx.Rollback()

	current, exists, err := getForUpdate(ctx, tx, key)
	if err != nil {
		return Item{}, err
	}
	if ifExists && !exists {
		return Item{}, fmt.Errorf("store: update %q: %w", key, ErrPreconditionFailed)
	}
	if ifVersion != 0 && exists && current.Version != ifVersion {
		return Item{}, fmt.Errorf("store: update %q: %w", key, ErrPreconditionFailed)
	}

	next, err := mutate(current, exists)
	if err != nil {
		return Item{}, fmt.Errorf("store: update %q: mutation: %w", key, err)
	}
	next.Key = key

	if err := putWith(ctx, tx, next, false); err != nil {
		return Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("store: update %q: commit: %w", key, err)
	}
	return next, nil
}

func getForUpdate(ctx context.Context, x execer, key string) (Item, bool, error) {
	row := x.QueryRowContext(ctx, `
		SELECT key, version, payload, indexes, sort_key
		FROM entities WHERE key = $1 FOR UPDATE`, key)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return item, true, nil
}

func (s *PostgresEntityStore) Get(ctx context.Context, key string, strongRead bool) (Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, version, payload, indexes, sort_key
		FROM entities WHERE key = $1`, key)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("store: get %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("store: get %q: %w", key, err)
	}
	return item, nil
}

func (s *PostgresEntityStore) QuerySecondary(ctx context.Context, indexName, partition string, bounds RangeBounds, filter func(Item) bool, limit int, cursor string) ([]Item, string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT key, version, payload, indexes, sort_key
		FROM entities
		WHERE indexes->>$1 = $2`
	args := []interface{}{indexName, partition}
	n := len(args)

	if bounds.From != "" {
		n++
		query += fmt.Sprintf(" AND sort_key >= $%d", n)
		args = append(args, bounds.From)
	}
	if bounds.To != "" {
		n++
		query += fmt.Sprintf(" AND sort_key <= $%d", n)
		args = append(args, bounds.To)
	}
	if cursor != "" {
		n++
		query += fmt.Sprintf(" AND sort_key > $%d", n)
		args = append(args, cursor)
	}
	query += " ORDER BY sort_key ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("store: querySecondary %s/%s: %w", indexName, partition, err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() && len(out) < limit {
		item, err := scanItemRows(rows)
		if err != nil {
			return nil, "", fmt.Errorf("store: querySecondary %s/%s: %w", indexName, partition, err)
		}
		if filter != nil && !filter(item) {
			continue
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("store: querySecondary %s/%s: %w", indexName, partition, err)
	}

	nextCursor := ""
	if len(out) == limit {
		nextCursor = out[len(out)-1].SortKey
	}
	return out, nextCursor, nil
}

func (s *PostgresEntityStore) BatchPut(ctx context.Context, items []Item) error {
	if err := checkBatchPutSize(len(items)); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: batchPut: begin tx: %w", err)
	}
	defer tx.Rollback()
	for _, item := range items {
		if err := putWith(ctx, tx, item, false); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresEntityStore) BatchGet(ctx context.Context, keys []string) ([]Item, error) {
	if err := checkBatchGetSize(len(keys)); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(keys))
	placeholders := make([]string, len(keys))
	for i, k := range keys {
		args[i] = k
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`
		SELECT key, version, payload, indexes, sort_key
		FROM entities WHERE key IN (%s)`, joinComma(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: batchGet: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItemRows(rows)
		if err != nil {
			return nil, fmt.Errorf("store: batchGet: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PostgresEntityStore) TransactWrite(ctx context.Context, ops []WriteOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: transactWrite: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.Kind {
		case WriteOpPut:
			if err := putWith(ctx, tx, op.Item, op.IfAbsent); err != nil {
				return err
			}
		case WriteOpUpdate:
			current, exists, err := getForUpdate(ctx, tx, op.Item.Key)
			if err != nil {
				return err
			}
			if op.IfVersion != 0 && exists && current.Version != op.IfVersion {
				return fmt.Errorf("store: transactWrite %q: %w", op.Item.Key, ErrPreconditionFailed)
			}
			if err := putWith(ctx, tx, op.Item, false); err != nil {
				return err
			}
		default:
			return fmt.Errorf("store: transactWrite: unknown op kind %d", op.Kind)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row *sql.Row) (Item, error) {
	return scanRow(row)
}

func scanItemRows(rows *sql.Rows) (Item, error) {
	return scanRow(rows)
}

func scanRow(s rowScanner) (Item, error) {
	var item Item
	var payload, indexesJSON []byte
	var sortKey sql.NullString
	if err := s.Scan(&item.Key, &item.Version, &payload, &indexesJSON, &sortKey); err != nil {
		return Item{}, err
	}
	item.Payload = payload
	item.SortKey = sortKey.String
	if len(indexesJSON) > 0 {
		if err := json.Unmarshal(indexesJSON, &item.Indexes); err != nil {
			return Item{}, fmt.Errorf("unmarshal indexes: %w", err)
		}
	}
	return item, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

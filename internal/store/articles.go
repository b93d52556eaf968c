package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sentinel/internal/core"
)

const articleKeyPrefix = "article/"

// ArticleRepository is a typed view over an EntityStore, the way the
// teacher's postgresArticleRepo sits on top of database/sql: callers work
// with core.Article values, and this layer owns the key scheme, secondary
// indexes, and JSON (de)serialization.
type ArticleRepository struct {
	entities EntityStore
}

// NewArticleRepository wraps an EntityStore for Article access.
func NewArticleRepository(entities EntityStore) *ArticleRepository {
	return &ArticleRepository{entities: entities}
}

func articleKey(id string) string {
	return articleKeyPrefix + id
}

func articleItem(article core.Article) (Item, error) {
	payload, err := json.Marshal(article)
	if err != nil {
		return Item{}, fmt.Errorf("store: marshal article %q: %w", article.ID, err)
	}
	return Item{
		Key:     articleKey(article.ID),
		Version: article.Version,
		Payload: payload,
		Indexes: map[string]string{
			"by_feed":  article.FeedID,
			"global":   "all",
			"by_state": string(article.State),
		},
		SortKey: article.PublishedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func decodeArticle(item Item) (*core.Article, error) {
	var article core.Article
	if err := json.Unmarshal(item.Payload, &article); err != nil {
		return nil, fmt.Errorf("store: unmarshal article: %w", err)
	}
	article.Version = item.Version
	return &article, nil
}

// Create inserts a new article, failing with ErrPreconditionFailed if the
// ID already exists.
func (r *ArticleRepository) Create(ctx context.Context, article *core.Article) error {
	if article.Version == 0 {
		article.Version = 1
	}
	item, err := articleItem(*article)
	if err != nil {
		return err
	}
	return r.entities.Put(ctx, item, true)
}

// Get retrieves an article by ID.
func (r *ArticleRepository) Get(ctx context.Context, id string) (*core.Article, error) {
	item, err := r.entities.Get(ctx, articleKey(id), false)
	if err != nil {
		return nil, err
	}
	return decodeArticle(item)
}

// ArticleMutation transforms the current article in place.
type ArticleMutation func(article *core.Article) error

// Update applies mutate to the current article and persists the result
// under an ifVersion precondition, so concurrent mutators race safely.
func (r *ArticleRepository) Update(ctx context.Context, id string, ifVersion int64, mutate ArticleMutation) (*core.Article, error) {
	item, err := r.entities.Update(ctx, articleKey(id), func(current Item, exists bool) (Item, error) {
		if !exists {
			return Item{}, fmt.Errorf("store: update article %q: %w", id, ErrNotFound)
		}
		article, err := decodeArticle(current)
		if err != nil {
			return Item{}, err
		}
		if err := mutate(article); err != nil {
			return Item{}, err
		}
		article.Version++
		return articleItem(*article)
	}, true, ifVersion)
	if err != nil {
		return nil, err
	}
	return decodeArticle(item)
}

// RecentByFeed returns articles for feedID published at or after since,
// used by the dedup engine's sliding-window candidate scan.
func (r *ArticleRepository) RecentByFeed(ctx context.Context, feedID string, since time.Time, limit int) ([]core.Article, error) {
	return r.queryWindow(ctx, "by_feed", feedID, since, limit)
}

// RecentGlobal returns articles across all feeds published at or after
// since, for dedup candidates that may originate from a different feed
// than the new article.
func (r *ArticleRepository) RecentGlobal(ctx context.Context, since time.Time, limit int) ([]core.Article, error) {
	return r.queryWindow(ctx, "global", "all", since, limit)
}

func (r *ArticleRepository) queryWindow(ctx context.Context, indexName, partition string, since time.Time, limit int) ([]core.Article, error) {
	bounds := RangeBounds{From: since.UTC().Format(time.RFC3339Nano)}
	var out []core.Article
	cursor := ""
	for {
		items, next, err := r.entities.QuerySecondary(ctx, indexName, partition, bounds, nil, limit, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			article, err := decodeArticle(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *article)
		}
		if next == "" || (limit > 0 && len(out) >= limit) {
			break
		}
		cursor = next
	}
	return out, nil
}

// CountStateWithGreaterPriority counts articles currently in state with a
// PriorityScore strictly greater than priority, used by the escalator to
// estimate a newly-escalated article's position in the review queue.
func (r *ArticleRepository) CountStateWithGreaterPriority(ctx context.Context, state core.ArticleState, priority float64) (int, error) {
	filter := func(item Item) bool {
		article, err := decodeArticle(item)
		if err != nil {
			return false
		}
		return article.PriorityScore > priority
	}

	var count int
	cursor := ""
	for {
		items, next, err := r.entities.QuerySecondary(ctx, "by_state", string(state), RangeBounds{}, filter, 100, cursor)
		if err != nil {
			return 0, err
		}
		count += len(items)
		if next == "" {
			break
		}
		cursor = next
	}
	return count, nil
}

// ListState returns every article currently in state, paginating through
// the by_state index until exhausted (or limit is reached, if nonzero).
// Used by the query facade to render the review queue.
func (r *ArticleRepository) ListState(ctx context.Context, state core.ArticleState, limit int) ([]core.Article, error) {
	var out []core.Article
	cursor := ""
	for {
		items, next, err := r.entities.QuerySecondary(ctx, "by_state", string(state), RangeBounds{}, nil, 100, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			article, err := decodeArticle(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *article)
		}
		if next == "" || (limit > 0 && len(out) >= limit) {
			break
		}
		cursor = next
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Package comments implements the storage and invariant-checking half of
// the threaded-commentary subsystem (spec.md §3, §4.10): thread-ID
// assignment, depth enforcement, reply-count maintenance, and orphan
// detection for comments whose article has since been deleted. The HTTP
// comment API itself stays an external collaborator.
package comments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/core"
	"sentinel/internal/store"
)

const commentKeyPrefix = "comment/"

// ErrDepthExceeded is returned when a reply would nest past
// core.MaxCommentDepth.
var ErrDepthExceeded = errors.New("comments: max thread depth exceeded")

// ErrParentNotFound is returned when CreateReply names a parent comment
// that doesn't exist.
var ErrParentNotFound = errors.New("comments: parent comment not found")

// Repository is a typed view over a store.EntityStore for Comment access,
// the way store.ArticleRepository sits on top of the same abstraction,
// grounded on the teacher's internal/persistence.*Repository pattern.
type Repository struct {
	entities store.EntityStore
}

// NewRepository wraps an EntityStore for comment access.
func NewRepository(entities store.EntityStore) *Repository {
	return &Repository{entities: entities}
}

func commentKey(id string) string {
	return commentKeyPrefix + id
}

func commentItem(c core.Comment) (store.Item, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return store.Item{}, fmt.Errorf("comments: marshal comment %q: %w", c.CommentID, err)
	}
	return store.Item{
		Key:     commentKey(c.CommentID),
		Payload: payload,
		Indexes: map[string]string{
			"by_article": c.ArticleID,
			"by_thread":  c.ThreadID,
			"global":     "all",
		},
		SortKey: c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func decodeComment(item store.Item) (*core.Comment, error) {
	var c core.Comment
	if err := json.Unmarshal(item.Payload, &c); err != nil {
		return nil, fmt.Errorf("comments: unmarshal comment: %w", err)
	}
	return &c, nil
}

// CreateRoot inserts a new top-level comment on an article. ThreadID is
// set to the comment's own ID, per spec.md §3.
func (r *Repository) CreateRoot(ctx context.Context, c *core.Comment) error {
	if c.CommentID == "" {
		c.CommentID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.ThreadID = c.CommentID
	c.ParentCommentID = ""
	c.Depth = 0
	if c.Visibility == "" {
		c.Visibility = core.VisibilityPublic
	}

	item, err := commentItem(*c)
	if err != nil {
		return err
	}
	return r.entities.Put(ctx, item, true)
}

// CreateReply inserts a comment nested under parentID, inheriting its
// thread ID and incrementing its depth. It enforces core.MaxCommentDepth
// and bumps the parent's reply_count atomically with the insert via
// TransactWrite — the one multi-entity write the spec's non-goal on
// transactional writes explicitly carves out for the article/comment
// linkage.
func (r *Repository) CreateReply(ctx context.Context, c *core.Comment, parentID string) error {
	parentItem, err := r.entities.Get(ctx, commentKey(parentID), true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrParentNotFound, parentID)
		}
		return fmt.Errorf("comments: load parent %q: %w", parentID, err)
	}
	parent, err := decodeComment(parentItem)
	if err != nil {
		return err
	}

	if parent.Depth+1 > core.MaxCommentDepth {
		return fmt.Errorf("%w: parent %q is at depth %d", ErrDepthExceeded, parentID, parent.Depth)
	}

	if c.CommentID == "" {
		c.CommentID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.ArticleID = parent.ArticleID
	c.ThreadID = parent.ThreadID
	c.ParentCommentID = parentID
	c.Depth = parent.Depth + 1
	if c.Visibility == "" {
		c.Visibility = core.VisibilityPublic
	}

	childItem, err := commentItem(*c)
	if err != nil {
		return err
	}

	parent.ReplyCount++
	updatedParentItem, err := commentItem(*parent)
	if err != nil {
		return err
	}
	updatedParentItem.Version = parentItem.Version + 1

	return r.entities.TransactWrite(ctx, []store.WriteOp{
		{Kind: store.WriteOpPut, Item: childItem, IfAbsent: true},
		{Kind: store.WriteOpUpdate, Item: updatedParentItem, IfVersion: parentItem.Version},
	})
}

// Get retrieves a comment by ID.
func (r *Repository) Get(ctx context.Context, id string) (*core.Comment, error) {
	item, err := r.entities.Get(ctx, commentKey(id), false)
	if err != nil {
		return nil, err
	}
	return decodeComment(item)
}

// ListByArticle returns an article's comments ordered by creation time,
// across every thread attached to it.
func (r *Repository) ListByArticle(ctx context.Context, articleID string, limit int) ([]core.Comment, error) {
	return r.queryAll(ctx, "by_article", articleID, limit)
}

// ListByThread returns every comment in a single thread (the root plus
// all of its nested replies), ordered by creation time.
func (r *Repository) ListByThread(ctx context.Context, threadID string, limit int) ([]core.Comment, error) {
	return r.queryAll(ctx, "by_thread", threadID, limit)
}

func (r *Repository) queryAll(ctx context.Context, indexName, partition string, limit int) ([]core.Comment, error) {
	var out []core.Comment
	cursor := ""
	for {
		items, next, err := r.entities.QuerySecondary(ctx, indexName, partition, store.RangeBounds{}, nil, 100, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			c, err := decodeComment(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *c)
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

// OrphanedComment names a comment whose article no longer exists.
type OrphanedComment struct {
	CommentID string
	ArticleID string
}

// CheckOrphans scans every comment and reports those whose article was
// deleted out from under them. Comments hold only a weak reference to
// their article (spec.md §3's Ownership note): article deletion never
// cascades, so this is the invariant checker that surfaces the
// resulting orphans for an operator to triage.
func CheckOrphans(ctx context.Context, comments *Repository, articles *store.ArticleRepository) ([]OrphanedComment, error) {
	var orphans []OrphanedComment
	cursor := ""
	for {
		items, next, err := comments.entities.QuerySecondary(ctx, "global", "all", store.RangeBounds{}, nil, 100, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			c, err := decodeComment(item)
			if err != nil {
				return nil, err
			}
			if _, err := articles.Get(ctx, c.ArticleID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					orphans = append(orphans, OrphanedComment{CommentID: c.CommentID, ArticleID: c.ArticleID})
					continue
				}
				return nil, fmt.Errorf("comments: checking article %q for comment %q: %w", c.ArticleID, c.CommentID, err)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return orphans, nil
}

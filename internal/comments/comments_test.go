package comments

import (
	"context"
	"testing"

	"sentinel/internal/core"
	"sentinel/internal/store"
)

func newTestRepo() *Repository {
	return NewRepository(store.NewMemoryEntityStore())
}

func TestCreateRootAssignsOwnThreadID(t *testing.T) {
	repo := newTestRepo()
	c := &core.Comment{CommentID: "c1", ArticleID: "a1", Author: "alice", Content: "first"}
	if err := repo.CreateRoot(context.Background(), c); err != nil {
		t.Fatalf("CreateRoot() error = %v", err)
	}
	if c.ThreadID != "c1" {
		t.Errorf("ThreadID = %q, want %q", c.ThreadID, "c1")
	}
	if c.Depth != 0 {
		t.Errorf("Depth = %d, want 0", c.Depth)
	}
	if c.Visibility != core.VisibilityPublic {
		t.Errorf("Visibility = %q, want public", c.Visibility)
	}
}

func TestCreateReplyInheritsThreadAndIncrementsDepth(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	root := &core.Comment{CommentID: "root", ArticleID: "a1", Author: "alice", Content: "root"}
	if err := repo.CreateRoot(ctx, root); err != nil {
		t.Fatalf("CreateRoot() error = %v", err)
	}

	reply := &core.Comment{CommentID: "reply1", ArticleID: "a1", Author: "bob", Content: "reply"}
	if err := repo.CreateReply(ctx, reply, "root"); err != nil {
		t.Fatalf("CreateReply() error = %v", err)
	}
	if reply.ThreadID != "root" {
		t.Errorf("ThreadID = %q, want %q", reply.ThreadID, "root")
	}
	if reply.Depth != 1 {
		t.Errorf("Depth = %d, want 1", reply.Depth)
	}

	stored, err := repo.Get(ctx, "root")
	if err != nil {
		t.Fatalf("Get(root) error = %v", err)
	}
	if stored.ReplyCount != 1 {
		t.Errorf("root.ReplyCount = %d, want 1", stored.ReplyCount)
	}
}

func TestCreateReplyExceedingMaxDepthFails(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	parentID := "c0"
	root := &core.Comment{CommentID: parentID, ArticleID: "a1", Author: "alice", Content: "root"}
	if err := repo.CreateRoot(ctx, root); err != nil {
		t.Fatalf("CreateRoot() error = %v", err)
	}

	for i := 0; i < core.MaxCommentDepth; i++ {
		reply := &core.Comment{ArticleID: "a1", Author: "bob", Content: "reply"}
		if err := repo.CreateReply(ctx, reply, parentID); err != nil {
			t.Fatalf("CreateReply() at depth %d error = %v", i+1, err)
		}
		parentID = reply.CommentID
	}

	tooDeep := &core.Comment{ArticleID: "a1", Author: "carol", Content: "too deep"}
	err := repo.CreateReply(ctx, tooDeep, parentID)
	if err == nil {
		t.Fatal("CreateReply() at depth 11 succeeded, want ErrDepthExceeded")
	}
}

func TestCreateReplyMissingParentFails(t *testing.T) {
	repo := newTestRepo()
	reply := &core.Comment{ArticleID: "a1", Author: "bob", Content: "orphan reply"}
	err := repo.CreateReply(context.Background(), reply, "does-not-exist")
	if err == nil {
		t.Fatal("CreateReply() with missing parent succeeded, want ErrParentNotFound")
	}
}

func TestListByArticleReturnsAllThreads(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	root1 := &core.Comment{CommentID: "t1", ArticleID: "a1", Author: "alice", Content: "thread 1"}
	root2 := &core.Comment{CommentID: "t2", ArticleID: "a1", Author: "bob", Content: "thread 2"}
	if err := repo.CreateRoot(ctx, root1); err != nil {
		t.Fatalf("CreateRoot(t1) error = %v", err)
	}
	if err := repo.CreateRoot(ctx, root2); err != nil {
		t.Fatalf("CreateRoot(t2) error = %v", err)
	}

	got, err := repo.ListByArticle(ctx, "a1", 0)
	if err != nil {
		t.Fatalf("ListByArticle() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ListByArticle) = %d, want 2", len(got))
	}
}

func TestCheckOrphansFindsCommentsOnDeletedArticles(t *testing.T) {
	entities := store.NewMemoryEntityStore()
	articles := store.NewArticleRepository(entities)
	repo := NewRepository(entities)
	ctx := context.Background()

	if err := articles.Create(ctx, &core.Article{ID: "live", FeedID: "f1"}); err != nil {
		t.Fatalf("Create(live) error = %v", err)
	}

	onLive := &core.Comment{CommentID: "c-live", ArticleID: "live", Author: "alice", Content: "fine"}
	onGone := &core.Comment{CommentID: "c-gone", ArticleID: "deleted", Author: "bob", Content: "orphaned"}
	if err := repo.CreateRoot(ctx, onLive); err != nil {
		t.Fatalf("CreateRoot(onLive) error = %v", err)
	}
	if err := repo.CreateRoot(ctx, onGone); err != nil {
		t.Fatalf("CreateRoot(onGone) error = %v", err)
	}

	orphans, err := CheckOrphans(ctx, repo, articles)
	if err != nil {
		t.Fatalf("CheckOrphans() error = %v", err)
	}
	if len(orphans) != 1 || orphans[0].CommentID != "c-gone" {
		t.Errorf("orphans = %+v, want exactly c-gone", orphans)
	}
}

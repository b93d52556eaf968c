// Package store abstracts the two storage shapes the pipeline depends on:
// a keyed entity store for versioned JSON records, and a content-addressed
// blob store for raw/normalized article bodies.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get/Update when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// ErrPreconditionFailed is returned when a conditional put/update loses an
// optimistic-concurrency race (ifAbsent, ifExists, or ifVersion mismatch).
var ErrPreconditionFailed = errors.New("store: precondition failed")

// ErrThrottled names a backing store's capacity-exhaustion signal. Neither
// MemoryEntityStore nor PostgresEntityStore returns it, and no caller in
// this repository retries on it.
var ErrThrottled = errors.New("store: throttled")

// Item is a single versioned record in the keyed entity store. Payload
// carries the entity-specific fields as JSON so the store stays generic
// across Article, Comment, and any future entity kind.
type Item struct {
	Key     string
	Version int64
	Payload []byte
	// Indexes maps a secondary-index name to the partition value this item
	// belongs to within that index, e.g. "by_feed" -> feedID.
	Indexes map[string]string
	// SortKey orders items within a secondary-index partition, e.g. an
	// RFC3339 published_at timestamp.
	SortKey string
}

// RangeBounds restricts a QuerySecondary scan to SortKey values in [From, To].
// An empty bound is unrestricted on that side.
type RangeBounds struct {
	From string
	To   string
}

// WriteOp is a single operation within a TransactWrite call.
type WriteOp struct {
	Kind      WriteOpKind
	Item      Item
	IfAbsent  bool
	IfVersion int64 // only consulted when Kind == WriteOpUpdate
}

// WriteOpKind distinguishes put from update within a transaction.
type WriteOpKind int

const (
	WriteOpPut WriteOpKind = iota
	WriteOpUpdate
)

// Mutation transforms the current value of a key during Update. It receives
// the current item (zero value if absent) and returns the item to persist.
type Mutation func(current Item, exists bool) (Item, error)

// EntityStore is the keyed entity store interface (spec §4.2). Floats
// embedded in Payload must round-trip without precision loss; implementations
// achieve this with a numeric-preserving JSON codec (see postgres.go).
type EntityStore interface {
	// Put writes item unconditionally, or only if the key is absent when
	// ifAbsent is true. Returns ErrPreconditionFailed on a failed ifAbsent.
	Put(ctx context.Context, item Item, ifAbsent bool) error

	// Update applies mutate to the current value of key and persists the
	// result. ifExists requires the key to already exist. ifVersion, when
	// nonzero, requires the current item's Version to match exactly.
	// Returns ErrPreconditionFailed on any condition mismatch.
	Update(ctx context.Context, key string, mutate Mutation, ifExists bool, ifVersion int64) (Item, error)

	// Get reads a single item by key. strongRead requests a read that is not
	// served from a stale replica, where the backend distinguishes the two.
	Get(ctx context.Context, key string, strongRead bool) (Item, error)

	// QuerySecondary scans a named secondary index's partition within
	// optional SortKey bounds, applying filter and returning up to limit
	// items plus an opaque cursor for the next page (empty when exhausted).
	QuerySecondary(ctx context.Context, indexName, partition string, bounds RangeBounds, filter func(Item) bool, limit int, cursor string) ([]Item, string, error)

	// BatchPut writes up to 25 items unconditionally.
	BatchPut(ctx context.Context, items []Item) error

	// BatchGet reads up to 100 keys. Missing keys are simply absent from the
	// result, not an error.
	BatchGet(ctx context.Context, keys []string) ([]Item, error)

	// TransactWrite applies every op atomically, or none at all.
	TransactWrite(ctx context.Context, ops []WriteOp) error
}

// BlobStore is the content-addressed blob store interface (spec §4.2).
type BlobStore interface {
	// Put writes bytes under bucket/key, returning a reference string the
	// caller can pass to Get. Implementations apply server-side encryption.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)

	// Get retrieves previously stored bytes and their content type.
	Get(ctx context.Context, bucket, key string) ([]byte, string, error)
}

const (
	maxBatchPut = 25
	maxBatchGet = 100
)

func checkBatchPutSize(n int) error {
	if n > maxBatchPut {
		return fmt.Errorf("store: batchPut accepts at most %d items, got %d", maxBatchPut, n)
	}
	return nil
}

func checkBatchGetSize(n int) error {
	if n > maxBatchGet {
		return fmt.Errorf("store: batchGet accepts at most %d keys, got %d", maxBatchGet, n)
	}
	return nil
}

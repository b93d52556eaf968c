package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryEntityStore is an in-process EntityStore, used by package tests and
// by single-process deployments that don't need Postgres durability.
type MemoryEntityStore struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewMemoryEntityStore returns an empty in-memory store.
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{items: make(map[string]Item)}
}

func (s *MemoryEntityStore) Put(ctx context.Context, item Item, ifAbsent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ifAbsent {
		if _, exists := s.items[item.Key]; exists {
			return fmt.Errorf("store: put %q: %w", item.Key, ErrPreconditionFailed)
		}
	}
	s.items[item.Key] = cloneItem(item)
	return nil
}

func (s *MemoryEntityStore) Update(ctx context.Context, key string, mutate Mutation, ifExists bool, ifVersion int64) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[key]
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
	s.items[key] = cloneItem(next)
	return cloneItem(next), nil
}

func (s *MemoryEntityStore) Get(ctx context.Context, key string, strongRead bool) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return Item{}, fmt.Errorf("store: get %q: %w", key, ErrNotFound)
	}
	return cloneItem(item), nil
}

func (s *MemoryEntityStore) QuerySecondary(ctx context.Context, indexName, partition string, bounds RangeBounds, filter func(Item) bool, limit int, cursor string) ([]Item, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	var candidates []Item
	for _, item := range s.items {
		if item.Indexes[indexName] != partition {
			continue
		}
		if bounds.From != "" && item.SortKey < bounds.From {
			continue
		}
		if bounds.To != "" && item.SortKey > bounds.To {
			continue
		}
		if cursor != "" && item.SortKey <= cursor {
			continue
		}
		if filter != nil && !filter(item) {
			continue
		}
		candidates = append(candidates, cloneItem(item))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].SortKey < candidates[j].SortKey })

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	nextCursor := ""
	if len(candidates) == limit && limit > 0 {
		nextCursor = candidates[len(candidates)-1].SortKey
	}
	return candidates, nextCursor, nil
}

func (s *MemoryEntityStore) BatchPut(ctx context.Context, items []Item) error {
	if err := checkBatchPutSize(len(items)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.items[item.Key] = cloneItem(item)
	}
	return nil
}

func (s *MemoryEntityStore) BatchGet(ctx context.Context, keys []string) ([]Item, error) {
	if err := checkBatchGetSize(len(keys)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, k := range keys {
		if item, ok := s.items[k]; ok {
			out = append(out, cloneItem(item))
		}
	}
	return out, nil
}

func (s *MemoryEntityStore) TransactWrite(ctx context.Context, ops []WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every condition before mutating anything, so the transaction
	// is all-or-nothing even though the in-memory map has no undo log.
	for _, op := range ops {
		current, exists := s.items[op.Item.Key]
		switch op.Kind {
		case WriteOpPut:
			if op.IfAbsent && exists {
				return fmt.Errorf("store: transactWrite %q: %w", op.Item.Key, ErrPreconditionFailed)
			}
		case WriteOpUpdate:
			if op.IfVersion != 0 && exists && current.Version != op.IfVersion {
				return fmt.Errorf("store: transactWrite %q: %w", op.Item.Key, ErrPreconditionFailed)
			}
		default:
			return fmt.Errorf("store: transactWrite: unknown op kind %d", op.Kind)
		}
	}

	for _, op := range ops {
		s.items[op.Item.Key] = cloneItem(op.Item)
	}
	return nil
}

func cloneItem(item Item) Item {
	out := item
	if item.Payload != nil {
		out.Payload = append([]byte(nil), item.Payload...)
	}
	if item.Indexes != nil {
		out.Indexes = make(map[string]string, len(item.Indexes))
		for k, v := range item.Indexes {
			out.Indexes[k] = v
		}
	}
	return out
}

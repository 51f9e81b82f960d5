package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps encoded snapshots in memory, keyed by Ref.Identifier().
// Loads decode a fresh copy, so callers never share state with the store.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	payload []byte
	meta    Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	snapshot, err := decode[T](record.payload)
	if err != nil {
		return zero, Meta{}, false, err
	}
	return snapshot, record.meta.clone(), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	payload, err := encode(snapshot)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	if err := checkETag(meta.ETag, current.meta.ETag, exists); err != nil {
		return Meta{}, err
	}
	out := meta.stamped(payload, s.now())
	s.records[key] = memoryRecord{payload: payload, meta: out.clone()}
	return out, nil
}

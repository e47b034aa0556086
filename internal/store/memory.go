package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and as a reference
// implementation of the store contract. Safe for concurrent use.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{collections: make(map[string]map[string]Document)}
}

// Get implements Store.
func (m *MemStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return Clone(doc), nil
}

// Set implements Store.
func (m *MemStore) Set(_ context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(collection, id, doc)
	return nil
}

func (m *MemStore) setLocked(collection, id string, doc Document) {
	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]Document)
		m.collections[collection] = col
	}
	col[id] = Clone(doc)
}

// Update implements Store.
func (m *MemStore) Update(_ context.Context, collection, id string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(collection, id, fields)
}

func (m *MemStore) updateLocked(collection, id string, fields Document) error {
	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := Clone(doc)
	mergeFields(merged, Clone(fields))
	m.collections[collection][id] = merged
	return nil
}

// Query implements Store.
func (m *MemStore) Query(_ context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for id, doc := range m.collections[collection] {
		if matches(doc, filters) {
			out = append(out, Snapshot{ID: id, Doc: Clone(doc)})
		}
	}
	return out, nil
}

// Batch implements Store.
func (m *MemStore) Batch() Batch {
	return &memBatch{store: m}
}

type memBatch struct {
	store *MemStore
	ops   []batchOp
}

func (b *memBatch) add(op batchOp) error {
	if len(b.ops) >= BatchLimit {
		return ErrBatchFull
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *memBatch) Set(collection, id string, doc Document) error {
	return b.add(batchOp{kind: 's', collection: collection, id: id, doc: doc})
}

func (b *memBatch) Update(collection, id string, fields Document) error {
	return b.add(batchOp{kind: 'u', collection: collection, id: id, doc: fields})
}

func (b *memBatch) Delete(collection, id string) error {
	return b.add(batchOp{kind: 'd', collection: collection, id: id})
}

func (b *memBatch) Len() int {
	return len(b.ops)
}

func (b *memBatch) Commit(_ context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	// validate updates against missing documents before applying anything,
	// so a failed commit leaves the store untouched
	for _, op := range b.ops {
		if op.kind == 'u' {
			if _, ok := b.store.collections[op.collection][op.id]; !ok {
				return ErrNotFound
			}
		}
	}
	for _, op := range b.ops {
		switch op.kind {
		case 's':
			b.store.setLocked(op.collection, op.id, op.doc)
		case 'u':
			_ = b.store.updateLocked(op.collection, op.id, op.doc)
		case 'd':
			delete(b.store.collections[op.collection], op.id)
		}
	}
	b.ops = nil
	return nil
}

// MemCache is an in-memory Cache with per-entry expiry, used by tests.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]memCacheEntry
}

type memCacheEntry struct {
	value   []byte
	expires time.Time
}

// NewMemCache creates an empty in-memory cache.
func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]memCacheEntry)}
}

// Get implements Cache.
func (c *MemCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements Cache.
func (c *MemCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memCacheEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

// Package store defines the document store and key/value cache consumed by
// the protection layer, together with a Badger-backed implementation and
// in-memory variants for tests.
//
// Documents are hierarchical: a collection path such as
// "users/U1/conversations" contains documents addressed by id. Writes are
// atomic per document; batches commit atomically up to BatchLimit operations.
package store

import (
	"context"
	"errors"
	"time"
)

// Document is a JSON-compatible mapping of field names to values. Values may
// be strings, bools, numbers, nested maps, lists, or raw bytes.
type Document = map[string]any

// BatchLimit is the maximum number of operations a single batch may hold.
const BatchLimit = 500

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrBatchFull is returned when adding an operation to a full batch.
	ErrBatchFull = errors.New("store: batch is full")
)

// deleteSentinel marks a field for removal in an Update.
type deleteSentinel struct{}

// Delete is the sentinel value used in Update field maps to remove a field
// from the stored document.
var Delete = deleteSentinel{}

// Snapshot pairs a document with its id, as returned by queries.
type Snapshot struct {
	ID  string
	Doc Document
}

// Filter is an equality or inequality predicate over a top-level field.
type Filter struct {
	Field string
	Op    string // "==" or "!="
	Value any
}

// Where builds a Filter.
func Where(field, op string, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Store is the document store interface consumed by the repositories.
// Implementations must guarantee atomic single-document writes.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set overwrites the document with the given id.
	Set(ctx context.Context, collection, id string, doc Document) error
	// Update merges fields into an existing document. A field whose value is
	// the Delete sentinel is removed. Returns ErrNotFound for missing docs.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Query returns all documents in the collection matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	// Batch returns an empty write batch bound to this store.
	Batch() Batch
}

// Batch accumulates up to BatchLimit write operations and commits them
// atomically. A batch is single-use: after Commit it must be discarded.
type Batch interface {
	// Set queues a full-document overwrite.
	Set(collection, id string, doc Document) error
	// Update queues a field merge; the Delete sentinel removes fields.
	Update(collection, id string, fields Document) error
	// Delete queues a document removal.
	Delete(collection, id string) error
	// Len reports the number of queued operations.
	Len() int
	// Commit applies all queued operations atomically.
	Commit(ctx context.Context) error
}

// Cache is a short-TTL key/value cache for hot per-user lookups.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value that expires after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// matches reports whether doc satisfies every filter.
func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		switch f.Op {
		case "==":
			if !ok || v != f.Value {
				return false
			}
		case "!=":
			if ok && v == f.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the document. Nested maps, lists, and byte
// slices are copied; scalar values are shared.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

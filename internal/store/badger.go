package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// key prefixes separate documents from cache entries in the shared Badger DB.
const (
	docPrefix   = "doc/"
	cachePrefix = "cache/"
)

// Badger implements Store and Cache on top of a single Badger database.
// Documents are stored under "doc/<collection>/<id>"; cache entries use
// Badger's native TTL support under "cache/<key>".
type Badger struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens or creates a Badger database in the given directory.
func Open(dir string, log *zap.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %s: %w", dir, err)
	}
	return &Badger{db: db, log: log}, nil
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// StartGC runs Badger value-log garbage collection on the given interval
// until the context is cancelled.
func (b *Badger) StartGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := b.db.RunValueLogGC(0.5)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					b.log.Error("badger value log GC failed", zap.Error(err))
				}
			}
		}
	}()
}

func docKey(collection, id string) []byte {
	return []byte(docPrefix + collection + "/" + id)
}

// Get implements Store.
func (b *Badger) Get(_ context.Context, collection, id string) (Document, error) {
	var doc Document
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = decodeDoc(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Set implements Store.
func (b *Badger) Set(_ context.Context, collection, id string, doc Document) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, id), data)
	})
	if err != nil {
		return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update implements Store. The read-merge-write happens inside a single
// Badger transaction, so per-document atomicity holds under concurrency.
func (b *Badger) Update(_ context.Context, collection, id string, fields Document) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return updateInTxn(txn, collection, id, fields)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	return nil
}

func updateInTxn(txn *badger.Txn, collection, id string, fields Document) error {
	key := docKey(collection, id)
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	var doc Document
	err = item.Value(func(val []byte) error {
		doc, err = decodeDoc(val)
		return err
	})
	if err != nil {
		return err
	}
	mergeFields(doc, fields)
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// mergeFields applies a partial update to doc, honoring the Delete sentinel.
func mergeFields(doc, fields Document) {
	for k, v := range fields {
		if _, ok := v.(deleteSentinel); ok {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
}

// Query implements Store. It scans the collection prefix; documents of
// nested subcollections are skipped.
func (b *Badger) Query(_ context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	prefix := []byte(docPrefix + collection + "/")
	var out []Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			if strings.ContainsRune(id, '/') {
				continue
			}
			var doc Document
			err := item.Value(func(val []byte) error {
				var derr error
				doc, derr = decodeDoc(val)
				return derr
			})
			if err != nil {
				return err
			}
			if matches(doc, filters) {
				out = append(out, Snapshot{ID: id, Doc: doc})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	return out, nil
}

// Batch implements Store.
func (b *Badger) Batch() Batch {
	return &badgerBatch{store: b}
}

// batchOp is one queued batch operation.
type batchOp struct {
	kind       byte // 's' set, 'u' update, 'd' delete
	collection string
	id         string
	doc        Document
}

type badgerBatch struct {
	store *Badger
	ops   []batchOp
}

func (b *badgerBatch) add(op batchOp) error {
	if len(b.ops) >= BatchLimit {
		return ErrBatchFull
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *badgerBatch) Set(collection, id string, doc Document) error {
	return b.add(batchOp{kind: 's', collection: collection, id: id, doc: doc})
}

func (b *badgerBatch) Update(collection, id string, fields Document) error {
	return b.add(batchOp{kind: 'u', collection: collection, id: id, doc: fields})
}

func (b *badgerBatch) Delete(collection, id string) error {
	return b.add(batchOp{kind: 'd', collection: collection, id: id})
}

func (b *badgerBatch) Len() int {
	return len(b.ops)
}

// Commit applies every queued operation inside one Badger transaction;
// either all take effect or none do.
func (b *badgerBatch) Commit(_ context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.store.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			switch op.kind {
			case 's':
				data, err := encodeDoc(op.doc)
				if err != nil {
					return err
				}
				if err := txn.Set(docKey(op.collection, op.id), data); err != nil {
					return err
				}
			case 'u':
				if err := updateInTxn(txn, op.collection, op.id, op.doc); err != nil {
					return err
				}
			case 'd':
				if err := txn.Delete(docKey(op.collection, op.id)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: commit batch of %d ops: %w", len(b.ops), err)
	}
	b.ops = nil
	return nil
}

// BadgerCache implements Cache using Badger TTL entries.
type BadgerCache struct {
	db *badger.DB
}

// Cache returns a Cache view over the same database.
func (b *Badger) Cache() *BadgerCache {
	return &BadgerCache{db: b.db}
}

// Get implements Cache. Expired entries are reported as absent.
func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: cache get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Cache.
func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cachePrefix+key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store: cache set %s: %w", key, err)
	}
	return nil
}

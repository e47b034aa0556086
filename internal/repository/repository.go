// Package repository provides persistence for the document families covered
// by the protection layer. Every repository composes the write/read pipeline
// around the document store, so callers only ever handle plaintext
// documents, and implements the scan/re-encode operations the migration
// engine drives.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

// familyRepo implements the operations shared by every document family.
// The exported repositories embed it and add family-specific methods.
type familyRepo struct {
	docs      store.Store
	pipe      *protection.Pipeline
	tf        *protection.Transformer
	spec      protection.FamilySpec
	col       func(uid string) string
	batchSize int
	log       *zap.Logger
}

// Family returns the family type identifier used in migration requests.
func (r *familyRepo) Family() string {
	return r.spec.Name
}

// upsert writes a document through the pipeline. The caller's document is
// returned unchanged; ciphertext never leaves the store boundary.
func (r *familyRepo) upsert(ctx context.Context, uid, id string, doc store.Document) error {
	prepared, err := r.pipe.BeforeWrite(ctx, uid, r.spec, doc)
	if err != nil {
		return err
	}
	return r.docs.Set(ctx, r.col(uid), id, prepared)
}

// get reads a document through the pipeline.
func (r *familyRepo) get(ctx context.Context, uid, id string) (store.Document, error) {
	doc, err := r.docs.Get(ctx, r.col(uid), id)
	if err != nil {
		return nil, err
	}
	return r.pipe.AfterRead(uid, r.spec, doc), nil
}

// query runs a filtered collection scan through the pipeline.
func (r *familyRepo) query(ctx context.Context, uid string, filters ...store.Filter) ([]store.Snapshot, error) {
	snaps, err := r.docs.Query(ctx, r.col(uid), filters...)
	if err != nil {
		return nil, err
	}
	return r.pipe.AfterReadSnapshots(uid, r.spec, snaps), nil
}

// FindToMigrate returns the ids of documents whose stored level differs from
// the target. Documents visible outside the owner's trust boundary (public
// or shared) are excluded: their content is already considered leaked and
// must not be sealed under a key the outside reader cannot derive.
func (r *familyRepo) FindToMigrate(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error) {
	snaps, err := r.docs.Query(ctx, r.col(uid))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, s := range snaps {
		if r.excludedByVisibility(s.Doc) {
			continue
		}
		if protection.DocLevel(s.Doc) != target {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (r *familyRepo) excludedByVisibility(doc store.Document) bool {
	if r.spec.VisibilityField == "" {
		return false
	}
	v, _ := doc[r.spec.VisibilityField].(string)
	return v == models.VisibilityPublic || v == models.VisibilityShared
}

// MigrateBatch re-encodes each named document to the target level. Updates
// bundle the level and the changed fields, so every committed document is
// self-consistent. A document that fails to decode is logged and skipped;
// the next scan picks it up again.
func (r *familyRepo) MigrateBatch(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
	batch := r.docs.Batch()
	for _, id := range ids {
		var err error
		batch, err = r.migrateOne(ctx, batch, uid, id, target)
		if err != nil {
			return err
		}
	}
	return batch.Commit(ctx)
}

// migrateOne stages one document's migration, flushing the batch first when
// it is full. Returns the batch to continue with.
func (r *familyRepo) migrateOne(ctx context.Context, batch store.Batch, uid, id string, target models.ProtectionLevel) (store.Batch, error) {
	doc, err := r.docs.Get(ctx, r.col(uid), id)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Warn("migration target vanished", zap.String("uid", uid), zap.String("id", id))
		return batch, nil
	}
	if err != nil {
		return batch, err
	}
	if protection.DocLevel(doc) == target || r.excludedByVisibility(doc) {
		return batch, nil
	}

	update, err := r.migrationUpdate(doc, uid, target)
	if err != nil {
		// decode failures abort this document only; the batch continues
		r.log.Error("skipping document that failed to migrate",
			zap.String("uid", uid),
			zap.String("family", r.spec.Name),
			zap.String("id", id),
			zap.Error(err))
		return batch, nil
	}

	batch, err = r.flushIfFull(ctx, batch, 1)
	if err != nil {
		return batch, err
	}
	if err := batch.Update(r.col(uid), id, update); err != nil {
		return batch, err
	}
	return batch, nil
}

// flushIfFull commits the batch and starts a new one when adding n more
// operations would exceed the configured commit size.
func (r *familyRepo) flushIfFull(ctx context.Context, batch store.Batch, n int) (store.Batch, error) {
	if batch.Len()+n <= r.batchSize {
		return batch, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return batch, err
	}
	return r.docs.Batch(), nil
}

// migrationUpdate computes the partial update that moves a stored document
// to the target level: the level key, every re-encoded sensitive field, and
// explicit clears for siblings the new encoding no longer needs.
func (r *familyRepo) migrationUpdate(doc store.Document, uid string, target models.ProtectionLevel) (store.Document, error) {
	plain, err := r.tf.DecodeStrict(doc, uid, r.spec)
	if err != nil {
		return nil, err
	}
	encoded, err := r.tf.PrepareForWrite(plain, uid, target, r.spec)
	if err != nil {
		return nil, fmt.Errorf("re-encode at %s: %w", target, err)
	}

	update := store.Document{models.LevelKey: string(target)}
	for _, f := range r.spec.Fields {
		if v, ok := encoded[f.Name]; ok {
			update[f.Name] = v
		}
		if v, ok := encoded[f.Marker()]; ok {
			update[f.Marker()] = v
		} else if _, had := doc[f.Marker()]; had {
			// the new encoding dropped compression; clear the stale marker
			update[f.Marker()] = store.Delete
		}
		if f.Kind == protection.FieldHashedText {
			if v, ok := encoded[f.HashField()]; ok {
				update[f.HashField()] = v
			} else if _, had := doc[f.HashField()]; had {
				update[f.HashField()] = store.Delete
			}
		}
	}
	return update, nil
}

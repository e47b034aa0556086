package protection

import (
	"context"

	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

// Pipeline is the middleware the repositories compose around storage calls.
// BeforeWrite stamps the protection level and encodes sensitive fields just
// before a document reaches the store; AfterRead reverses the encoding on
// the way out. Callers on both sides only ever see plaintext documents.
type Pipeline struct {
	resolver *Resolver
	tf       *Transformer
}

// NewPipeline creates a Pipeline from a resolver and a transformer.
func NewPipeline(resolver *Resolver, tf *Transformer) *Pipeline {
	return &Pipeline{resolver: resolver, tf: tf}
}

// BeforeWrite returns the storage form of the document: the protection level
// is stamped (resolving the user's default when absent) and the family's
// sensitive fields are encoded for that level. Documents that carry neither
// the level key nor any sensitive field pass through unchanged.
func (p *Pipeline) BeforeWrite(ctx context.Context, uid string, spec FamilySpec, doc store.Document) (store.Document, error) {
	if doc == nil || !spec.Touches(doc) {
		return doc, nil
	}
	level := DocLevel(doc)
	if _, stamped := doc[models.LevelKey].(string); !stamped {
		level = p.resolver.Resolve(ctx, uid)
	}
	out, err := p.tf.PrepareForWrite(doc, uid, level, spec)
	if err != nil {
		return nil, err
	}
	out[models.LevelKey] = string(level)
	return out, nil
}

// BeforeWriteAll applies BeforeWrite to a homogeneous list of documents.
func (p *Pipeline) BeforeWriteAll(ctx context.Context, uid string, spec FamilySpec, docs []store.Document) ([]store.Document, error) {
	out := make([]store.Document, len(docs))
	for i, doc := range docs {
		prepared, err := p.BeforeWrite(ctx, uid, spec, doc)
		if err != nil {
			return nil, err
		}
		out[i] = prepared
	}
	return out, nil
}

// BeforeUpdate encodes a partial update against the level already stamped on
// the stored document. The update itself never changes the level.
func (p *Pipeline) BeforeUpdate(uid string, spec FamilySpec, level models.ProtectionLevel, fields store.Document) (store.Document, error) {
	return p.tf.PrepareForWrite(fields, uid, level, spec)
}

// AfterRead decodes a document read from the store, trusting the level
// stamped on the document itself. Undecodable fields come back as stored.
func (p *Pipeline) AfterRead(uid string, spec FamilySpec, doc store.Document) store.Document {
	return p.tf.PrepareForRead(doc, uid, spec)
}

// AfterReadAll applies AfterRead to each document in the list.
func (p *Pipeline) AfterReadAll(uid string, spec FamilySpec, docs []store.Document) []store.Document {
	out := make([]store.Document, len(docs))
	for i, doc := range docs {
		out[i] = p.AfterRead(uid, spec, doc)
	}
	return out
}

// AfterReadSnapshots decodes query results in place of their documents,
// preserving ids.
func (p *Pipeline) AfterReadSnapshots(uid string, spec FamilySpec, snaps []store.Snapshot) []store.Snapshot {
	out := make([]store.Snapshot, len(snaps))
	for i, s := range snaps {
		out[i] = store.Snapshot{ID: s.ID, Doc: p.AfterRead(uid, spec, s.Doc)}
	}
	return out
}

package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

func conversationsCol(uid string) string {
	return "users/" + uid + "/conversations"
}

func photosCol(uid, cid string) string {
	return "users/" + uid + "/conversations/" + cid + "/photos"
}

// ConversationRepository persists conversations and their photo
// subcollection. Transcript segments are compressed at every protection
// level and encrypted at enhanced; photo payloads are encrypted at enhanced.
type ConversationRepository struct {
	familyRepo
}

// NewConversationRepository constructs a ConversationRepository.
// batchSize bounds the number of operations committed per migration batch.
func NewConversationRepository(docs store.Store, pipe *protection.Pipeline, tf *protection.Transformer, batchSize int, log *zap.Logger) *ConversationRepository {
	return &ConversationRepository{familyRepo{
		docs:      docs,
		pipe:      pipe,
		tf:        tf,
		spec:      protection.Conversations,
		col:       conversationsCol,
		batchSize: batchSize,
		log:       log,
	}}
}

// Upsert stores a conversation for the user. A missing id is generated.
// Returns the conversation id.
func (r *ConversationRepository) Upsert(ctx context.Context, uid string, conversation store.Document) (string, error) {
	id, _ := conversation["id"].(string)
	if id == "" {
		id = uuid.NewString()
		conversation["id"] = id
	}
	return id, r.upsert(ctx, uid, id, conversation)
}

// Get returns one conversation with its sensitive fields decoded.
func (r *ConversationRepository) Get(ctx context.Context, uid, id string) (store.Document, error) {
	return r.get(ctx, uid, id)
}

// List returns the user's conversations newest first, excluding discarded
// ones unless includeDiscarded is set.
func (r *ConversationRepository) List(ctx context.Context, uid string, includeDiscarded bool) ([]store.Snapshot, error) {
	var filters []store.Filter
	if !includeDiscarded {
		filters = append(filters, store.Where("discarded", "!=", true))
	}
	snaps, err := r.query(ctx, uid, filters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		a, _ := snaps[i].Doc["created_at"].(string)
		b, _ := snaps[j].Doc["created_at"].(string)
		return a > b
	})
	return snaps, nil
}

// UpdateSegments replaces a conversation's transcript segments, encoding
// them under the level already stamped on the stored document.
func (r *ConversationRepository) UpdateSegments(ctx context.Context, uid, id string, segments []any) error {
	doc, err := r.docs.Get(ctx, conversationsCol(uid), id)
	if err != nil {
		return err
	}
	fields, err := r.pipe.BeforeUpdate(uid, r.spec, protection.DocLevel(doc), store.Document{
		"transcript_segments": segments,
	})
	if err != nil {
		return err
	}
	return r.docs.Update(ctx, conversationsCol(uid), id, fields)
}

// SetVisibility updates a conversation's visibility flag. Conversations
// made public or shared drop out of future migrations.
func (r *ConversationRepository) SetVisibility(ctx context.Context, uid, id, visibility string) error {
	return r.docs.Update(ctx, conversationsCol(uid), id, store.Document{
		"visibility": visibility,
	})
}

// StorePhotos writes photos under a conversation, encoding each through the
// pipeline. Missing photo ids are generated.
func (r *ConversationRepository) StorePhotos(ctx context.Context, uid, cid string, photos []store.Document) error {
	prepared, err := r.pipe.BeforeWriteAll(ctx, uid, protection.Photos, photos)
	if err != nil {
		return err
	}
	for i, photo := range prepared {
		id, _ := photos[i]["id"].(string)
		if id == "" {
			id = uuid.NewString()
			photos[i]["id"] = id
			photo["id"] = id
		}
		if err := r.docs.Set(ctx, photosCol(uid, cid), id, photo); err != nil {
			return err
		}
	}
	return nil
}

// GetPhotos returns a conversation's photos with payloads decoded.
func (r *ConversationRepository) GetPhotos(ctx context.Context, uid, cid string) ([]store.Snapshot, error) {
	snaps, err := r.docs.Query(ctx, photosCol(uid, cid))
	if err != nil {
		return nil, err
	}
	return r.pipe.AfterReadSnapshots(uid, protection.Photos, snaps), nil
}

// MigrateBatch re-encodes conversations and their photo subcollections to
// the target level. Photos ride in the parent's batch and the batch is
// flushed whenever the next operation would overflow it.
func (r *ConversationRepository) MigrateBatch(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
	batch := r.docs.Batch()
	var err error
	for _, id := range ids {
		batch, err = r.migrateOne(ctx, batch, uid, id, target)
		if err != nil {
			return err
		}
		photos := r.photoRepo(id)
		snaps, err := r.docs.Query(ctx, photosCol(uid, id))
		if err != nil {
			return err
		}
		for _, s := range snaps {
			batch, err = photos.migrateOne(ctx, batch, uid, s.ID, target)
			if err != nil {
				return err
			}
		}
	}
	return batch.Commit(ctx)
}

// photoRepo is a view of the photo subcollection of one conversation.
func (r *ConversationRepository) photoRepo(cid string) *familyRepo {
	return &familyRepo{
		docs:      r.docs,
		pipe:      r.pipe,
		tf:        r.tf,
		spec:      protection.Photos,
		col:       func(uid string) string { return photosCol(uid, cid) },
		batchSize: r.batchSize,
		log:       r.log,
	}
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

func messagesCol(uid string) string {
	return "users/" + uid + "/messages"
}

// ChatRepository persists chat messages. The message text is encrypted at
// the enhanced protection level.
type ChatRepository struct {
	familyRepo
}

// NewChatRepository constructs a ChatRepository.
func NewChatRepository(docs store.Store, pipe *protection.Pipeline, tf *protection.Transformer, batchSize int, log *zap.Logger) *ChatRepository {
	return &ChatRepository{familyRepo{
		docs:      docs,
		pipe:      pipe,
		tf:        tf,
		spec:      protection.ChatMessages,
		col:       messagesCol,
		batchSize: batchSize,
		log:       log,
	}}
}

// Add stores a chat message for the user, generating an id when missing.
// Returns the message id.
func (r *ChatRepository) Add(ctx context.Context, uid string, message store.Document) (string, error) {
	id, _ := message["id"].(string)
	if id == "" {
		id = uuid.NewString()
		message["id"] = id
	}
	return id, r.upsert(ctx, uid, id, message)
}

// Get returns one chat message with its text decoded.
func (r *ChatRepository) Get(ctx context.Context, uid, id string) (store.Document, error) {
	return r.get(ctx, uid, id)
}

// List returns all of the user's chat messages with text decoded.
func (r *ChatRepository) List(ctx context.Context, uid string) ([]store.Snapshot, error) {
	return r.query(ctx, uid)
}

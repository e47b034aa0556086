package repository

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

func memoriesCol(uid string) string {
	return "users/" + uid + "/memories"
}

// MemoryRepository persists extracted long-term memories. The memory
// content is encrypted at the enhanced protection level.
type MemoryRepository struct {
	familyRepo
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository(docs store.Store, pipe *protection.Pipeline, tf *protection.Transformer, batchSize int, log *zap.Logger) *MemoryRepository {
	return &MemoryRepository{familyRepo{
		docs:      docs,
		pipe:      pipe,
		tf:        tf,
		spec:      protection.Memories,
		col:       memoriesCol,
		batchSize: batchSize,
		log:       log,
	}}
}

// Create stores a memory for the user, generating an id when missing.
// Returns the memory id.
func (r *MemoryRepository) Create(ctx context.Context, uid string, memory store.Document) (string, error) {
	id, _ := memory["id"].(string)
	if id == "" {
		id = uuid.NewString()
		memory["id"] = id
	}
	return id, r.upsert(ctx, uid, id, memory)
}

// Get returns one memory with its content decoded.
func (r *MemoryRepository) Get(ctx context.Context, uid, id string) (store.Document, error) {
	return r.get(ctx, uid, id)
}

// List returns all of the user's memories with content decoded.
func (r *MemoryRepository) List(ctx context.Context, uid string) ([]store.Snapshot, error) {
	return r.query(ctx, uid)
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/encryption"
	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

func peopleCol(uid string) string {
	return "users/" + uid + "/people"
}

// PersonRepository persists people records. The phone number is encrypted
// at enhanced and indexed through a deterministic hash sibling so equality
// lookups keep working over ciphertext.
type PersonRepository struct {
	familyRepo
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(docs store.Store, pipe *protection.Pipeline, tf *protection.Transformer, batchSize int, log *zap.Logger) *PersonRepository {
	return &PersonRepository{familyRepo{
		docs:      docs,
		pipe:      pipe,
		tf:        tf,
		spec:      protection.People,
		col:       peopleCol,
		batchSize: batchSize,
		log:       log,
	}}
}

// Create stores a person record, generating an id when missing.
// Returns the person id.
func (r *PersonRepository) Create(ctx context.Context, uid string, person store.Document) (string, error) {
	id, _ := person["id"].(string)
	if id == "" {
		id = uuid.NewString()
		person["id"] = id
	}
	return id, r.upsert(ctx, uid, id, person)
}

// Get returns one person with the phone number decoded.
func (r *PersonRepository) Get(ctx context.Context, uid, id string) (store.Document, error) {
	return r.get(ctx, uid, id)
}

// List returns all of the user's people records.
func (r *PersonRepository) List(ctx context.Context, uid string) ([]store.Snapshot, error) {
	return r.query(ctx, uid)
}

// GetByPhone finds the person with the given phone number. Enhanced records
// are matched through the hash sibling; records written before the hash
// existed are matched by plaintext as a fallback.
func (r *PersonRepository) GetByPhone(ctx context.Context, uid, phone string) (string, store.Document, error) {
	snaps, err := r.docs.Query(ctx, peopleCol(uid),
		store.Where("phone_number_hash", "==", encryption.QueryHash(phone)))
	if err != nil {
		return "", nil, err
	}
	if len(snaps) == 0 {
		snaps, err = r.docs.Query(ctx, peopleCol(uid),
			store.Where("phone_number", "==", phone))
		if err != nil {
			return "", nil, err
		}
	}
	if len(snaps) == 0 {
		return "", nil, store.ErrNotFound
	}
	s := snaps[0]
	return s.ID, r.pipe.AfterRead(uid, r.spec, s.Doc), nil
}

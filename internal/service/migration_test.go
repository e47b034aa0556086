package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/encryption"
	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/repository"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

type mockFamily struct {
	FamilyFunc        func() string
	FindToMigrateFunc func(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error)
	MigrateBatchFunc  func(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error
}

func (m *mockFamily) Family() string { return m.FamilyFunc() }

func (m *mockFamily) FindToMigrate(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error) {
	return m.FindToMigrateFunc(ctx, uid, target)
}

func (m *mockFamily) MigrateBatch(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
	return m.MigrateBatchFunc(ctx, uid, ids, target)
}

func TestStatusCollectsAcrossFamilies(t *testing.T) {
	conversations := &mockFamily{
		FamilyFunc: func() string { return models.FamilyConversation },
		FindToMigrateFunc: func(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error) {
			return []string{"c1", "c2"}, nil
		},
	}
	memories := &mockFamily{
		FamilyFunc: func() string { return models.FamilyMemory },
		FindToMigrateFunc: func(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error) {
			return []string{"m1"}, nil
		},
	}

	s := NewMigrationService(zap.NewNop(), conversations, memories)
	pending, err := s.Status(context.Background(), "u1", models.LevelEnhanced)
	require.NoError(t, err)
	assert.Equal(t, []models.PendingMigration{
		{ID: "c1", Type: models.FamilyConversation},
		{ID: "c2", Type: models.FamilyConversation},
		{ID: "m1", Type: models.FamilyMemory},
	}, pending)
}

func TestStatusScanError(t *testing.T) {
	broken := &mockFamily{
		FamilyFunc: func() string { return models.FamilyChat },
		FindToMigrateFunc: func(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error) {
			return nil, errors.New("scan blew up")
		},
	}

	s := NewMigrationService(zap.NewNop(), broken)
	_, err := s.Status(context.Background(), "u1", models.LevelEnhanced)
	assert.Error(t, err)
}

func TestMigrateBatchGroupsByFamily(t *testing.T) {
	var convIDs, memIDs []string
	conversations := &mockFamily{
		FamilyFunc: func() string { return models.FamilyConversation },
		MigrateBatchFunc: func(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
			convIDs = ids
			return nil
		},
	}
	memories := &mockFamily{
		FamilyFunc: func() string { return models.FamilyMemory },
		MigrateBatchFunc: func(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
			memIDs = ids
			return nil
		},
	}

	s := NewMigrationService(zap.NewNop(), conversations, memories)
	err := s.MigrateBatch(context.Background(), "u1", []models.MigrationRequest{
		{ID: "c1", Type: models.FamilyConversation, TargetLevel: models.LevelEnhanced},
		{ID: "m1", Type: models.FamilyMemory, TargetLevel: models.LevelEnhanced},
		{ID: "c2", Type: models.FamilyConversation, TargetLevel: models.LevelEnhanced},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, convIDs)
	assert.Equal(t, []string{"m1"}, memIDs)
}

func TestMigrateBatchUnknownFamily(t *testing.T) {
	conversations := &mockFamily{
		FamilyFunc: func() string { return models.FamilyConversation },
		MigrateBatchFunc: func(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
			return nil
		},
	}

	s := NewMigrationService(zap.NewNop(), conversations)
	err := s.MigrateBatch(context.Background(), "u1", []models.MigrationRequest{
		{ID: "w1", Type: "widget", TargetLevel: models.LevelEnhanced},
		{ID: "c1", Type: models.FamilyConversation, TargetLevel: models.LevelEnhanced},
	})
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestMigrateBatchJoinsFamilyErrors(t *testing.T) {
	failing := &mockFamily{
		FamilyFunc: func() string { return models.FamilyChat },
		MigrateBatchFunc: func(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
			return errors.New("commit failed")
		},
	}
	var memIDs []string
	memories := &mockFamily{
		FamilyFunc: func() string { return models.FamilyMemory },
		MigrateBatchFunc: func(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error {
			memIDs = ids
			return nil
		},
	}

	s := NewMigrationService(zap.NewNop(), failing, memories)
	err := s.MigrateBatch(context.Background(), "u1", []models.MigrationRequest{
		{ID: "x1", Type: models.FamilyChat, TargetLevel: models.LevelEnhanced},
		{ID: "m1", Type: models.FamilyMemory, TargetLevel: models.LevelEnhanced},
	})
	assert.Error(t, err)
	// the chat failure does not block the memory batch
	assert.Equal(t, []string{"m1"}, memIDs)
}

// TestFullCorpusMigration drives the whole engine over real repositories:
// scan the corpus, migrate everything pending, finalize the profile level,
// and verify a rescan comes back empty with public documents untouched.
func TestFullCorpusMigration(t *testing.T) {
	ctx := context.Background()
	const uid = "u1"

	keys, err := encryption.NewKeyService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	t.Cleanup(keys.Close)

	log := zap.NewNop()
	docs := store.NewMemStore()
	tf := protection.NewTransformer(keys, log)
	resolver := protection.NewResolver(store.NewMemCache(), docs, time.Minute, log)
	pipe := protection.NewPipeline(resolver, tf)

	conversations := repository.NewConversationRepository(docs, pipe, tf, 100, log)
	chats := repository.NewChatRepository(docs, pipe, tf, 100, log)
	memories := repository.NewMemoryRepository(docs, pipe, tf, 100, log)
	people := repository.NewPersonRepository(docs, pipe, tf, 100, log)

	engine := NewMigrationService(log, conversations, chats, memories, people)
	users := NewUserService(docs, resolver, log)

	// 110 standard conversations, 130 already enhanced, 10 public
	for i := range 110 {
		_, err := conversations.Upsert(ctx, uid, store.Document{
			"id":                  fmt.Sprintf("std-%03d", i),
			"transcript_segments": []any{map[string]any{"text": "standard"}},
		})
		require.NoError(t, err)
	}
	require.NoError(t, users.SetLevel(ctx, uid, models.LevelEnhanced))
	for i := range 130 {
		_, err := conversations.Upsert(ctx, uid, store.Document{
			"id":                  fmt.Sprintf("enh-%03d", i),
			"transcript_segments": []any{map[string]any{"text": "already enhanced"}},
		})
		require.NoError(t, err)
	}
	require.NoError(t, users.SetLevel(ctx, uid, models.LevelStandard))
	for i := range 10 {
		_, err := conversations.Upsert(ctx, uid, store.Document{
			"id":                  fmt.Sprintf("pub-%03d", i),
			"transcript_segments": []any{map[string]any{"text": "public"}},
			"visibility":          models.VisibilityPublic,
		})
		require.NoError(t, err)
	}
	chatID, err := chats.Add(ctx, uid, store.Document{"text": "a chat message"})
	require.NoError(t, err)
	memID, err := memories.Create(ctx, uid, store.Document{"content": "a memory"})
	require.NoError(t, err)
	personID, err := people.Create(ctx, uid, store.Document{"phone_number": "+15551234567"})
	require.NoError(t, err)

	pending, err := engine.Status(ctx, uid, models.LevelEnhanced)
	require.NoError(t, err)
	assert.Len(t, pending, 110+3)

	var requests []models.MigrationRequest
	for _, p := range pending {
		requests = append(requests, models.MigrationRequest{
			ID: p.ID, Type: p.Type, TargetLevel: models.LevelEnhanced,
		})
	}
	require.NoError(t, engine.MigrateBatch(ctx, uid, requests))
	require.NoError(t, users.SetLevel(ctx, uid, models.LevelEnhanced))

	rescan, err := engine.Status(ctx, uid, models.LevelEnhanced)
	require.NoError(t, err)
	assert.Empty(t, rescan)

	level, err := users.GetLevel(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.LevelEnhanced, level)

	// public conversations stay at standard with their plaintext intact
	for i := range 10 {
		id := fmt.Sprintf("pub-%03d", i)
		doc, err := docs.Get(ctx, "users/"+uid+"/conversations", id)
		require.NoError(t, err)
		assert.Equal(t, string(models.LevelStandard), doc[models.LevelKey])
	}

	// migrated documents round-trip through the read path
	chat, err := chats.Get(ctx, uid, chatID)
	require.NoError(t, err)
	assert.Equal(t, "a chat message", chat["text"])
	mem, err := memories.Get(ctx, uid, memID)
	require.NoError(t, err)
	assert.Equal(t, "a memory", mem["content"])
	gotID, person, err := people.GetByPhone(ctx, uid, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, personID, gotID)
	assert.Equal(t, "+15551234567", person["phone_number"])
}

package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

// ErrInvalidLevel is returned when a caller supplies an unknown protection level.
var ErrInvalidLevel = errors.New("service: invalid protection level")

// UserService reads and updates the user profile's default protection level.
// The profile level only affects new documents; existing documents keep the
// level stamped on them until migrated.
type UserService struct {
	docs     store.Store
	resolver *protection.Resolver
	log      *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(docs store.Store, resolver *protection.Resolver, log *zap.Logger) *UserService {
	return &UserService{docs: docs, resolver: resolver, log: log}
}

// GetLevel returns the user's current default protection level.
// A missing profile reads as standard.
func (s *UserService) GetLevel(ctx context.Context, uid string) (models.ProtectionLevel, error) {
	profile, err := s.docs.Get(ctx, protection.UsersCollection, uid)
	if errors.Is(err, store.ErrNotFound) {
		return models.LevelStandard, nil
	}
	if err != nil {
		return "", err
	}
	return protection.DocLevel(profile), nil
}

// SetLevel updates the user's default protection level and primes the
// resolver cache so subsequent writes pick it up immediately. Called by the
// migration finalize step once every document has been re-encoded.
func (s *UserService) SetLevel(ctx context.Context, uid string, level models.ProtectionLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	err := s.docs.Update(ctx, protection.UsersCollection, uid, store.Document{
		models.LevelKey: string(level),
	})
	if errors.Is(err, store.ErrNotFound) {
		err = s.docs.Set(ctx, protection.UsersCollection, uid, store.Document{
			models.LevelKey: string(level),
		})
	}
	if err != nil {
		return err
	}
	s.resolver.Prime(ctx, uid, level)
	s.log.Info("protection level updated", zap.String("uid", uid), zap.String("level", string(level)))
	return nil
}

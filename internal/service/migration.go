// Package service provides business logic for protection-level migrations
// and user profile settings, delegating persistence to repository and store
// interfaces.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/models"
)

// ErrUnknownFamily is returned for migration requests naming a document
// family the engine does not manage.
var ErrUnknownFamily = errors.New("service: unknown document family")

// Migratable is the per-family surface the migration engine drives.
type Migratable interface {
	// Family returns the family type identifier.
	Family() string
	// FindToMigrate returns ids of documents not yet at the target level,
	// excluding public and shared documents.
	FindToMigrate(ctx context.Context, uid string, target models.ProtectionLevel) ([]string, error)
	// MigrateBatch re-encodes the named documents to the target level in
	// bounded, atomically committed batches. It must be safe to retry.
	MigrateBatch(ctx context.Context, uid string, ids []string, target models.ProtectionLevel) error
}

// MigrationService moves a user's corpus between protection levels across
// all managed document families. Two concurrent migrations for the same uid
// are disallowed by contract; the engine takes no lock.
type MigrationService struct {
	families map[string]Migratable
	order    []string
	log      *zap.Logger
}

// NewMigrationService constructs a MigrationService over the given families.
func NewMigrationService(log *zap.Logger, families ...Migratable) *MigrationService {
	s := &MigrationService{families: make(map[string]Migratable), log: log}
	for _, f := range families {
		s.families[f.Family()] = f
		s.order = append(s.order, f.Family())
	}
	return s
}

// Status returns every document still awaiting migration to the target
// level, across all families.
func (s *MigrationService) Status(ctx context.Context, uid string, target models.ProtectionLevel) ([]models.PendingMigration, error) {
	pending := []models.PendingMigration{}
	for _, name := range s.order {
		ids, err := s.families[name].FindToMigrate(ctx, uid, target)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		for _, id := range ids {
			pending = append(pending, models.PendingMigration{ID: id, Type: name})
		}
	}
	return pending, nil
}

// MigrateBatch groups the requests by family and target level and dispatches
// each group to its repository. Failures are joined so one family's error
// does not hide another's.
func (s *MigrationService) MigrateBatch(ctx context.Context, uid string, requests []models.MigrationRequest) error {
	type groupKey struct {
		family string
		target models.ProtectionLevel
	}
	groups := make(map[groupKey][]string)
	var keys []groupKey
	var errs []error
	for _, req := range requests {
		if _, ok := s.families[req.Type]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownFamily, req.Type))
			continue
		}
		k := groupKey{family: req.Type, target: req.TargetLevel}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], req.ID)
	}

	for _, k := range keys {
		ids := groups[k]
		if err := s.families[k.family].MigrateBatch(ctx, uid, ids, k.target); err != nil {
			s.log.Error("family migration batch failed",
				zap.String("uid", uid),
				zap.String("family", k.family),
				zap.Int("ids", len(ids)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("migrate %s batch: %w", k.family, err))
		}
	}
	return errors.Join(errs...)
}

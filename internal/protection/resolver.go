package protection

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

// UsersCollection is the collection holding user profile documents.
const UsersCollection = "users"

// Resolver resolves the current protection level for a user: cache first,
// then the user profile, defaulting to standard. It is consulted only on
// writes where the document does not already carry a level; reads always
// trust the level stamped on the document.
type Resolver struct {
	cache store.Cache
	docs  store.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewResolver creates a Resolver backed by the given cache and store.
// ttl bounds how long a resolved level is served from the cache.
func NewResolver(cache store.Cache, docs store.Store, ttl time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{cache: cache, docs: docs, ttl: ttl, log: log}
}

func cacheKey(uid string) string {
	return uid + ":" + models.LevelKey
}

// Resolve returns the user's current protection level. Every failure along
// the way degrades to standard: a wrong "standard" is safe, and the cache
// TTL bounds staleness.
func (r *Resolver) Resolve(ctx context.Context, uid string) models.ProtectionLevel {
	if cached, ok, err := r.cache.Get(ctx, cacheKey(uid)); err != nil {
		r.log.Warn("protection level cache read failed", zap.String("uid", uid), zap.Error(err))
	} else if ok {
		if l := models.ProtectionLevel(cached); l.Valid() {
			return l
		}
	}

	level := models.LevelStandard
	profile, err := r.docs.Get(ctx, UsersCollection, uid)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Warn("profile read failed, defaulting protection level",
			zap.String("uid", uid), zap.Error(err))
		return models.LevelStandard
	}
	if profile != nil {
		level = DocLevel(profile)
	}

	if err := r.cache.Set(ctx, cacheKey(uid), []byte(level), r.ttl); err != nil {
		r.log.Warn("protection level cache write failed", zap.String("uid", uid), zap.Error(err))
	}
	return level
}

// Prime overwrites the cached level for a user. Called when the profile
// level changes so subsequent writes pick up the new default immediately.
func (r *Resolver) Prime(ctx context.Context, uid string, level models.ProtectionLevel) {
	if err := r.cache.Set(ctx, cacheKey(uid), []byte(level), r.ttl); err != nil {
		r.log.Warn("protection level cache prime failed", zap.String("uid", uid), zap.Error(err))
	}
}

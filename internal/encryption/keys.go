// Package encryption implements per-user key derivation, the authenticated
// encryption envelope used for sensitive document fields, and the
// deterministic query hash for equality lookups over encrypted values.
package encryption

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size in bytes of a derived per-user key (AES-256).
const KeySize = 32

// hkdfInfo isolates keys derived for field encryption from any other use of
// the same master secret. It must never change: existing ciphertexts depend
// on it.
const hkdfInfo = "user-data-encryption"

// MinSecretLen is the minimum length of the master secret in bytes.
const MinSecretLen = 32

// KeyService derives per-user encryption keys from the process-wide master
// secret. Derived keys are cached in memory and never persisted.
type KeyService struct {
	secret []byte
	cache  *ristretto.Cache
}

// NewKeyService creates a KeyService from the master secret.
// The secret must be at least MinSecretLen bytes.
func NewKeyService(secret []byte) (*KeyService, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("encryption: master secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("encryption: create key cache: %w", err)
	}
	return &KeyService{secret: secret, cache: cache}, nil
}

// Derive returns the 32-byte key for the given user. The derivation is
// HKDF-SHA256 with the uid as salt and a fixed info string; it is pure, so
// results are cached by uid.
func (s *KeyService) Derive(uid string) ([]byte, error) {
	if v, ok := s.cache.Get(uid); ok {
		if key, ok := v.([]byte); ok {
			return key, nil
		}
	}

	r := hkdf.New(sha256.New, s.secret, []byte(uid), []byte(hkdfInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("encryption: derive key for uid %q: %w", uid, err)
	}

	s.cache.Set(uid, key, 1)
	return key, nil
}

// Close releases the in-memory key cache. Keys never leave the process.
func (s *KeyService) Close() {
	s.cache.Close()
}

package encryption

import (
	"crypto/sha256"
	"encoding/hex"
)

// QueryHash returns the deterministic lookup key for a cleartext value:
// hex(SHA-256(utf8(value))). It is stored in a sibling field next to an
// encrypted value so the store can answer equality queries without the
// cleartext. The hash is always computed from cleartext, never ciphertext.
func QueryHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

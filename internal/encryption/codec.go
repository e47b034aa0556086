package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// NonceSize is the AES-GCM nonce size in bytes.
const NonceSize = 12

// ErrDecrypt indicates an envelope that could not be decrypted: malformed
// base64, a truncated envelope, or an authentication failure (wrong key or
// tampered ciphertext).
var ErrDecrypt = errors.New("encryption: decrypt failed")

// Encrypt seals the plaintext under the given 32-byte key and returns the
// storage envelope: base64(nonce || ciphertext || tag). A fresh random nonce
// is generated per call, so two encryptions of the same plaintext differ.
func Encrypt(plaintext, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encryption: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt. Any malformed input or
// authentication failure yields an error wrapping ErrDecrypt; corrupted
// plaintext is never returned.
func Decrypt(envelope string, key []byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecrypt, err)
	}
	if len(data) < NonceSize {
		return nil, fmt.Errorf("%w: envelope too short", ErrDecrypt)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption: create AEAD: %w", err)
	}
	return aead, nil
}

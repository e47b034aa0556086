package encryption

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewKeyService_ShortSecret(t *testing.T) {
	if _, err := NewKeyService([]byte("short")); err == nil {
		t.Fatal("expected error for short master secret")
	}
	if _, err := NewKeyService(nil); err == nil {
		t.Fatal("expected error for missing master secret")
	}
}

func TestDerive_DeterministicPerUID(t *testing.T) {
	keys := testKeys(t)

	k1a, err := keys.Derive("U1")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	k1b, err := keys.Derive("U1")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if !bytes.Equal(k1a, k1b) {
		t.Error("same uid derived different keys")
	}
	if len(k1a) != KeySize {
		t.Errorf("key length = %d; want %d", len(k1a), KeySize)
	}

	k2, err := keys.Derive("U2")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if bytes.Equal(k1a, k2) {
		t.Error("distinct uids derived identical keys")
	}
}

func TestDerive_DependsOnSecret(t *testing.T) {
	a := testKeys(t)
	b, err := NewKeyService([]byte(strings.Repeat("x", MinSecretLen)))
	if err != nil {
		t.Fatalf("NewKeyService failed: %v", err)
	}
	defer b.Close()

	ka, _ := a.Derive("U1")
	kb, _ := b.Derive("U1")
	if bytes.Equal(ka, kb) {
		t.Error("different master secrets derived identical keys")
	}
}

package storage

import (
	"testing"

	"moob/crypto"
)

func newTestSealer(t *testing.T) TokenSealer {
	t.Helper()

	sealer, err := crypto.NewTokenCipherFromSecret([]byte("0123456789abcdef0123456789abcdef"), "test-installation")
	if err != nil {
		t.Fatalf("create test sealer: %v", err)
	}
	return sealer
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir, newTestSealer(t))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

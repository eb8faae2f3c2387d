package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureTokenSecretIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.key")

	first, err := EnsureTokenSecret(path)
	if err != nil {
		t.Fatalf("first EnsureTokenSecret failed: %v", err)
	}
	second, err := EnsureTokenSecret(path)
	if err != nil {
		t.Fatalf("second EnsureTokenSecret failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected token secret to be reused from disk")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token secret: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestLoadTokenSecretRejectsWrongPEMType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.key")
	raw := "-----BEGIN SOMETHING ELSE-----\nAAAA\n-----END SOMETHING ELSE-----\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadTokenSecret(path); err == nil {
		t.Fatalf("expected wrong PEM type to fail")
	}
}

func TestTokenCipherRoundTripIsBoundToInstallation(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "token.key")

	cipherA, err := NewTokenCipher(secretPath, "install-a")
	if err != nil {
		t.Fatalf("NewTokenCipher failed: %v", err)
	}
	sealed, err := cipherA.Seal("access-token-123")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed == "access-token-123" {
		t.Fatalf("expected sealed token to differ from plaintext")
	}

	opened, err := cipherA.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != "access-token-123" {
		t.Fatalf("expected round trip, got %q", opened)
	}

	cipherB, err := NewTokenCipher(secretPath, "install-b")
	if err != nil {
		t.Fatalf("NewTokenCipher for second installation failed: %v", err)
	}
	if _, err := cipherB.Open(sealed); err == nil {
		t.Fatalf("expected token sealed for another installation to fail")
	}
}

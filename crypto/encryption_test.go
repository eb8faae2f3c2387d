package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}

	plaintext := []byte("eyJhbGciOiJIUzI1NiJ9.payload.signature")
	aad := []byte("installation-1")

	ciphertext, nonce, err := Encrypt(key, plaintext, aad)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(nonce) != 12 {
		t.Fatalf("expected 12-byte nonce, got %d", len(nonce))
	}
	if len(ciphertext) == 0 {
		t.Fatalf("expected non-empty ciphertext")
	}

	decrypted, err := Decrypt(key, nonce, ciphertext, aad)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(plaintext, decrypted) {
		t.Fatalf("decrypted plaintext does not match original")
	}

	if _, err := Decrypt(key, nonce, ciphertext, []byte("installation-2")); err == nil {
		t.Fatalf("expected decrypt with different additional data to fail")
	}
}

func TestEncryptRejectsShortKey(t *testing.T) {
	if _, _, err := Encrypt(make([]byte, 16), []byte("x"), nil); err == nil {
		t.Fatalf("expected 16-byte key to be rejected")
	}
}

func TestOpenStringRejectsTruncatedValue(t *testing.T) {
	key := make([]byte, 32)
	if _, err := OpenString(key, "AAAA", nil); err == nil {
		t.Fatalf("expected truncated sealed value to fail")
	}
	if _, err := OpenString(key, "not base64!", nil); err == nil {
		t.Fatalf("expected malformed base64 to fail")
	}
}

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenSecretPEMType = "MOOB TOKEN SECRET"
	tokenSecretSize    = 32
	tokenKeyInfo       = "moob-token-at-rest-v1"
)

// EnsureTokenSecret loads the local token secret from disk, generating it on first run.
func EnsureTokenSecret(path string) ([]byte, error) {
	secret, err := LoadTokenSecret(path)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	secret = make([]byte, tokenSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}
	if err := SaveTokenSecret(path, secret); err != nil {
		return nil, err
	}

	return secret, nil
}

// LoadTokenSecret loads the token secret from a PEM file.
func LoadTokenSecret(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token secret: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode token secret PEM: no PEM block")
	}
	if block.Type != tokenSecretPEMType {
		return nil, fmt.Errorf("decode token secret PEM: unexpected type %q", block.Type)
	}
	if len(block.Bytes) != tokenSecretSize {
		return nil, fmt.Errorf("decode token secret PEM: invalid size %d", len(block.Bytes))
	}

	return block.Bytes, nil
}

// SaveTokenSecret writes the token secret PEM file with 0600 permissions.
func SaveTokenSecret(path string, secret []byte) error {
	if len(secret) != tokenSecretSize {
		return fmt.Errorf("save token secret: invalid size %d", len(secret))
	}

	block := &pem.Block{
		Type:  tokenSecretPEMType,
		Bytes: secret,
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write token secret: %w", err)
	}

	return nil
}

// DeriveTokenKey derives the AES-256 key used to seal the bearer token.
// The installation ID is used as the HKDF salt.
func DeriveTokenKey(secret []byte, installationID string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	h := hkdf.New(sha256.New, secret, []byte(installationID), []byte(tokenKeyInfo))
	key := make([]byte, aes256KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return key, nil
}

// TokenCipher seals and opens bearer tokens for at-rest storage.
type TokenCipher struct {
	key []byte
	aad []byte
}

// NewTokenCipher loads (or creates) the secret at secretPath and derives the token key.
func NewTokenCipher(secretPath, installationID string) (*TokenCipher, error) {
	secret, err := EnsureTokenSecret(secretPath)
	if err != nil {
		return nil, err
	}
	return NewTokenCipherFromSecret(secret, installationID)
}

// NewTokenCipherFromSecret derives the token key from an in-memory secret.
func NewTokenCipherFromSecret(secret []byte, installationID string) (*TokenCipher, error) {
	key, err := DeriveTokenKey(secret, installationID)
	if err != nil {
		return nil, err
	}
	return &TokenCipher{key: key, aad: []byte(installationID)}, nil
}

// Seal encrypts a token.
func (c *TokenCipher) Seal(token string) (string, error) {
	return SealString(c.key, token, c.aad)
}

// Open decrypts a sealed token.
func (c *TokenCipher) Open(sealed string) (string, error) {
	return OpenString(c.key, sealed, c.aad)
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// Token returns the persisted bearer token, or "" when none is stored.
func (s *Store) Token() (string, error) {
	var sealed string
	err := s.db.QueryRow(
		`SELECT sealed_value FROM credentials WHERE credential_key = ?`,
		credentialBearerToken,
	).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read bearer token: %w", err)
	}

	token, err := s.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("open bearer token: %w", err)
	}
	return token, nil
}

// SetToken seals and persists the bearer token, replacing any previous one.
func (s *Store) SetToken(token string) error {
	if token == "" {
		return errors.New("token is required")
	}

	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return fmt.Errorf("seal bearer token: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO credentials (credential_key, sealed_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(credential_key) DO UPDATE SET
			sealed_value = excluded.sealed_value,
			updated_at = excluded.updated_at`,
		credentialBearerToken,
		sealed,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write bearer token: %w", err)
	}

	return nil
}

// ClearToken removes the persisted bearer token. Clearing an absent token is not an error.
func (s *Store) ClearToken() error {
	if _, err := s.db.Exec(
		`DELETE FROM credentials WHERE credential_key = ?`,
		credentialBearerToken,
	); err != nil {
		return fmt.Errorf("delete bearer token: %w", err)
	}
	return nil
}

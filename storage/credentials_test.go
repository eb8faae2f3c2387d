package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLifecycle(t *testing.T) {
	store := newTestStore(t)

	token, err := store.Token()
	require.NoError(t, err)
	assert.Empty(t, token, "fresh store must report logged out")

	require.NoError(t, store.SetToken("first"))
	require.NoError(t, store.SetToken("second"))

	token, err = store.Token()
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	require.NoError(t, store.ClearToken())
	require.NoError(t, store.ClearToken())

	token, err = store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenIsSealedAtRest(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetToken("plain-bearer-token"))

	var sealed string
	require.NoError(t, store.db.QueryRow(`SELECT sealed_value FROM credentials`).Scan(&sealed))
	assert.NotContains(t, sealed, "plain-bearer-token")
}

func TestSetTokenRejectsEmpty(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.SetToken(""))
}

func TestSetTokenSurfacesWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO credentials").WillReturnError(errors.New("disk I/O error"))

	store := newStore(db, newTestSealer(t))
	err = store.SetToken("token")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "write bearer token"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenSurfacesUnreadableCiphertext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT sealed_value FROM credentials").
		WithArgs(credentialBearerToken).
		WillReturnRows(sqlmock.NewRows([]string{"sealed_value"}).AddRow("bm90LXNlYWxlZA=="))

	store := newStore(db, newTestSealer(t))
	_, err = store.Token()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open bearer token")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearTokenSurfacesDeleteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM credentials").
		WithArgs(credentialBearerToken).
		WillReturnError(errors.New("database is locked"))

	store := newStore(db, newTestSealer(t))
	require.Error(t, store.ClearToken())
	require.NoError(t, mock.ExpectationsWereMet())
}

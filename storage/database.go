package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDBFileName is the SQLite filename under the data directory.
	DefaultDBFileName = "moob.db"
	// DefaultSubmissionRetention is how long journal rows survive PruneExpired.
	DefaultSubmissionRetention = 90 * 24 * time.Hour
)

type migration struct {
	name string
	sql  string
}

// schema is applied in order; PRAGMA user_version records how many ran.
var migrations = []migration{
	{
		name: "credentials",
		sql: `
CREATE TABLE IF NOT EXISTS credentials (
  credential_key TEXT PRIMARY KEY,
  sealed_value   TEXT NOT NULL,
  updated_at     INTEGER NOT NULL
);`,
	},
	{
		name: "submissions",
		sql: `
CREATE TABLE IF NOT EXISTS submissions (
  submission_id     TEXT PRIMARY KEY,
  platform          TEXT NOT NULL CHECK(platform IN ('telegram','slack','discord','whatsapp')),
  content_preview   TEXT NOT NULL,
  recipient_count   INTEGER NOT NULL,
  file_name         TEXT,
  status            TEXT NOT NULL CHECK(status IN ('sent','failed')),
  remote_message_id TEXT,
  error_message     TEXT,
  submitted_at      INTEGER NOT NULL
);`,
	},
	{
		name: "submissions_by_time",
		sql: `
CREATE INDEX IF NOT EXISTS idx_submissions_time
ON submissions (submitted_at DESC, submission_id);`,
	},
}

// TokenSealer encrypts the bearer token before it touches disk.
type TokenSealer interface {
	Seal(token string) (string, error)
	Open(sealed string) (string, error)
}

// Store holds the client's SQLite database: the sealed credential and the
// local submission journal.
type Store struct {
	db        *sql.DB
	sealer    TokenSealer
	retention time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) moob.db under dataDir. It returns the database
// path alongside the store.
func Open(dataDir string, sealer TokenSealer) (*Store, string, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create storage directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	store, err := OpenPath(dbPath, sealer)
	if err != nil {
		return nil, "", err
	}
	return store, dbPath, nil
}

// OpenPath opens the database at dbPath in WAL mode and brings the schema up
// to date.
func OpenPath(dbPath string, sealer TokenSealer) (*Store, error) {
	if sealer == nil {
		return nil, fmt.Errorf("open %s: token sealer is required", dbPath)
	}

	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	db, err := sql.Open("sqlite3", "file:"+filepath.ToSlash(dbPath)+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	store := newStore(db, sealer)
	if err := store.prepare(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return store, nil
}

func newStore(db *sql.DB, sealer TokenSealer) *Store {
	return &Store{db: db, sealer: sealer, retention: DefaultSubmissionRetention}
}

func (s *Store) prepare() error {
	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("read journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return fmt.Errorf("journal mode is %q, want wal", mode)
	}
	return s.migrate()
}

func (s *Store) migrate() error {
	var applied int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	pending := migrations[min(applied, len(migrations)):]
	if len(pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema upgrade: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range pending {
		if _, err := tx.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", len(migrations))); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Close folds the WAL back into the main database file and closes the
// connection. Later calls return the first result.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// PruneExpired removes journal rows older than the retention window.
func (s *Store) PruneExpired() (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	return s.PruneSubmissions(time.Now().Add(-s.retention).UnixMilli())
}

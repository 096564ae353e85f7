package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"smartcal/internal/models"
)

// Storage keys. They match the names the browser app used in localStorage.
const (
	KeyAccessToken = "googleAccessToken"
	KeyUserEmail   = "googleUserEmail"
)

// Store persists the session as two entries of a local key/value table.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS local_storage (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	return err
}

// Save stores both halves of the session in one transaction.
func (s *Store) Save(token, email string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO local_storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(upsert, KeyAccessToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if _, err := tx.Exec(upsert, KeyUserEmail, email); err != nil {
		return fmt.Errorf("save email: %w", err)
	}
	return tx.Commit()
}

// Load returns the stored session, or nil if either half is missing.
func (s *Store) Load() (*models.Session, error) {
	rows, err := s.db.Query(`SELECT key, value FROM local_storage WHERE key IN (?, ?)`, KeyAccessToken, KeyUserEmail)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	sess := &models.Session{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		switch key {
		case KeyAccessToken:
			sess.AccessToken = value
		case KeyUserEmail:
			sess.Email = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !sess.Valid() {
		return nil, nil
	}
	return sess, nil
}

// Clear removes both session entries.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM local_storage WHERE key IN (?, ?)`, KeyAccessToken, KeyUserEmail)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

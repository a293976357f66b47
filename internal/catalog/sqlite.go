package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog_documents (
	slot       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	written_at INTEGER NOT NULL
);`

// SQLiteLocation stores the document as a row in a SQLite database. The
// database is opened on first use, so a bad path only fails that location.
type SQLiteLocation struct {
	path string
	slot string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteLocation returns a location backed by the database at path.
func NewSQLiteLocation(path string) *SQLiteLocation {
	return &SQLiteLocation{path: path, slot: "default"}
}

// Path returns the database file path.
func (s *SQLiteLocation) Path() string { return s.path }

// Read returns the stored document.
func (s *SQLiteLocation) Read(ctx context.Context) ([]byte, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, err
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	var body []byte
	err = db.QueryRowContext(ctx,
		`SELECT body FROM catalog_documents WHERE slot = ?`, s.slot).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, os.ErrNotExist
	}
	return body, err
}

// Write replaces the stored document.
func (s *SQLiteLocation) Write(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO catalog_documents (slot, body, written_at) VALUES (?, ?, ?)`,
		s.slot, data, time.Now().Unix())
	return err
}

// Close releases the database handle, if one was opened.
func (s *SQLiteLocation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteLocation) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return db, nil
}

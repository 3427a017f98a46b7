// Package history keeps a SQLite journal of saved label files.
package history

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Entry is one successful label file write.
type Entry struct {
	ID        int64     `json:"id"`
	SavedAt   time.Time `json:"saved_at"`
	ImagePath string    `json:"image_path"`
	LabelPath string    `json:"label_path"`
	Kept      int       `json:"kept"`
	Accepted  int       `json:"accepted"`
	LineCount int       `json:"line_count"`
}

// Store wraps the journal database with serialised access.
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens (creating if needed) the journal at dbPath.
func New(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{conn: conn}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to migrate history database")
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		saved_at DATETIME NOT NULL,
		image_path TEXT NOT NULL,
		label_path TEXT NOT NULL,
		kept INTEGER DEFAULT 0,
		accepted INTEGER DEFAULT 0,
		line_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_saves_saved_at ON saves(saved_at);
	CREATE INDEX IF NOT EXISTS idx_saves_label_path ON saves(label_path);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// RecordSave appends an entry. A zero SavedAt is set to the current time.
func (s *Store) RecordSave(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now()
	}

	_, err := s.conn.Exec(`
		INSERT INTO saves (saved_at, image_path, label_path, kept, accepted, line_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.SavedAt.UTC(), e.ImagePath, e.LabelPath, e.Kept, e.Accepted, e.LineCount)
	if err != nil {
		return errors.Wrap(err, "failed to record save")
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, saved_at, image_path, label_path, kept, accepted, line_count
		FROM saves ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SavedAt, &e.ImagePath, &e.LabelPath, &e.Kept, &e.Accepted, &e.LineCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to read history")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

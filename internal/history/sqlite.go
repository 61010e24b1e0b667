// Package history keeps a local record of submitted animate/generate jobs so
// the CLI can list them and resume polling after the process exits.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Kind distinguishes which pipeline a submission went to.
const (
	KindAnimate  = "animate"
	KindGenerate = "generate"
)

// Entry is one recorded submission.
type Entry struct {
	ModelID     string
	Name        string
	Kind        string // animate or generate
	Stage       string // last observed pipeline stage
	Status      string // pending, processing, done, failed
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the entry no longer needs polling.
func (e Entry) Terminal() bool {
	return e.Status == "done" || e.Status == "failed"
}

// Store persists submissions in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and ensures the
// submissions table exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS submissions (
		model_id     TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		kind         TEXT NOT NULL,
		stage        TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating submissions table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts a freshly accepted submission. Recording the same model ID
// twice is a no-op.
func (s *Store) Record(modelID, name, kind string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO submissions (model_id, name, kind) VALUES (?, ?, ?)",
		modelID, name, kind,
	)
	if err != nil {
		return fmt.Errorf("recording submission %s: %w", modelID, err)
	}
	return nil
}

// UpdateStage stores the latest observed stage and status for a submission.
func (s *Store) UpdateStage(modelID, stage, status string) error {
	_, err := s.db.Exec(
		"UPDATE submissions SET stage = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE model_id = ?",
		stage, status, modelID,
	)
	if err != nil {
		return fmt.Errorf("updating submission %s: %w", modelID, err)
	}
	return nil
}

// Get returns the entry for a model ID, or sql.ErrNoRows if unknown.
func (s *Store) Get(modelID string) (Entry, error) {
	row := s.db.QueryRow(
		"SELECT model_id, name, kind, stage, status, submitted_at, updated_at FROM submissions WHERE model_id = ?",
		modelID,
	)
	return scanEntry(row)
}

// List returns all submissions, newest first.
func (s *Store) List() ([]Entry, error) {
	return s.query("SELECT model_id, name, kind, stage, status, submitted_at, updated_at FROM submissions ORDER BY submitted_at DESC")
}

// Pending returns the submissions that have not reached a terminal status.
func (s *Store) Pending() ([]Entry, error) {
	return s.query("SELECT model_id, name, kind, stage, status, submitted_at, updated_at FROM submissions WHERE status NOT IN ('done', 'failed') ORDER BY submitted_at")
}

func (s *Store) query(q string) ([]Entry, error) {
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ModelID, &e.Name, &e.Kind, &e.Stage, &e.Status, &e.SubmittedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

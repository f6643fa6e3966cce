// Package store provides a SQLite-backed history of ingested documents and
// question/answer exchanges. The history is informational only: retrieval
// never reads from it, and it survives server restarts while the loaded
// document does not.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/docqa-go/internal/ingestion"
)

// Document is a persisted record of an ingested upload.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   string    `json:"location,omitempty"`
	ChunkCount int       `json:"chunkCount"`
	Bytes      int       `json:"bytes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Exchange is a single question and its outcome.
type Exchange struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"documentId,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryStore persists documents and exchanges. Implementations must be
// safe for concurrent use.
type HistoryStore interface {
	RecordDocument(ctx context.Context, res *ingestion.Result) error
	RecordExchange(ctx context.Context, ex Exchange) error
	// RecentExchanges returns up to n exchanges, newest first.
	RecentExchanges(ctx context.Context, n int) ([]Exchange, error)
	// RecentDocuments returns up to n documents, newest first.
	RecentDocuments(ctx context.Context, n int) ([]Document, error)
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.docqa/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY and keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    name         TEXT    NOT NULL,
    location     TEXT    NOT NULL DEFAULT '',
    chunk_count  INTEGER NOT NULL,
    bytes        INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE TABLE IF NOT EXISTS exchanges (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  TEXT    NOT NULL DEFAULT '',
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL DEFAULT '',
    error        TEXT    NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges (created_at);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordDocument persists a descriptor of an ingested document. It satisfies
// ingestion.Recorder.
func (s *SQLiteStore) RecordDocument(ctx context.Context, res *ingestion.Result) error {
	const q = `INSERT OR REPLACE INTO documents (id, name, location, chunk_count, bytes, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, res.DocumentID, res.Name, res.Location,
		res.ChunkCount, res.Bytes, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("store: record document: %w", err)
	}
	return nil
}

// RecordExchange persists a question and its answer or error. A zero
// CreatedAt is set to now.
func (s *SQLiteStore) RecordExchange(ctx context.Context, ex Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	const q = `INSERT INTO exchanges (document_id, question, answer, error, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, ex.DocumentID, ex.Question, ex.Answer, ex.Error,
		ex.DurationMS, ex.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("store: record exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to n exchanges, newest first.
func (s *SQLiteStore) RecentExchanges(ctx context.Context, n int) ([]Exchange, error) {
	const q = `
SELECT id, document_id, question, answer, error, duration_ms, created_at
FROM   exchanges
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var ts int64
		if err := rows.Scan(&ex.ID, &ex.DocumentID, &ex.Question, &ex.Answer, &ex.Error, &ex.DurationMS, &ts); err != nil {
			return nil, fmt.Errorf("store: recent exchanges scan: %w", err)
		}
		ex.CreatedAt = time.UnixMilli(ts).UTC()
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent exchanges rows: %w", err)
	}
	return out, nil
}

// RecentDocuments returns up to n documents, newest first.
func (s *SQLiteStore) RecentDocuments(ctx context.Context, n int) ([]Document, error) {
	const q = `
SELECT id, name, location, chunk_count, bytes, created_at
FROM   documents
ORDER  BY created_at DESC, rowid DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var ts int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Location, &d.ChunkCount, &d.Bytes, &ts); err != nil {
			return nil, fmt.Errorf("store: recent documents scan: %w", err)
		}
		d.CreatedAt = time.UnixMilli(ts).UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent documents rows: %w", err)
	}
	return out, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

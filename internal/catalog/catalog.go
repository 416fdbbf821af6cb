// Package catalog records processed documents and their stored artifacts
// in SQLite, keyed by doc id and by input content hash.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no document row matches.
var ErrNotFound = errors.New("catalog: document not found")

// Document statuses.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Document is one catalog row.
type Document struct {
	DocID        string `json:"doc_id"`
	ContentHash  string `json:"content_hash"`
	SourceName   string `json:"source_name"`
	Status       string `json:"status"`
	Title        string `json:"title,omitempty"`
	ISBN         string `json:"isbn,omitempty"`
	PageCount    int    `json:"page_count"`
	ChunkCount   int    `json:"chunk_count"`
	SegmentCount int    `json:"qa_segment_count"`
	NodeCount    int    `json:"kg_node_count"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Artifact is a stored output of a document.
type Artifact struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int    `json:"size"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id        TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	source_name   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	isbn          TEXT NOT NULL DEFAULT '',
	page_count    INTEGER NOT NULL DEFAULT 0,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	segment_count INTEGER NOT NULL DEFAULT 0,
	node_count    INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS artifacts (
	doc_id TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	name   TEXT NOT NULL,
	key    TEXT NOT NULL,
	size   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (doc_id, name)
);
`

// Store wraps the catalog database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// Begin records a document as processing, resetting counts and error.
func (s *Store) Begin(ctx context.Context, docID, contentHash, sourceName string) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, content_hash, source_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			source_name = excluded.source_name,
			status = excluded.status,
			page_count = 0, chunk_count = 0, segment_count = 0, node_count = 0,
			error = '',
			updated_at = excluded.updated_at
	`, docID, contentHash, sourceName, StatusProcessing, ts, ts)
	if err != nil {
		return fmt.Errorf("begin %s: %w", docID, err)
	}
	return nil
}

// Summary carries the counts recorded when a document completes.
type Summary struct {
	Title        string
	ISBN         string
	PageCount    int
	ChunkCount   int
	SegmentCount int
	NodeCount    int
}

// Complete marks a document done and replaces its artifact list.
func (s *Store) Complete(ctx context.Context, docID string, sum Summary, artifacts []Artifact) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, title = ?, isbn = ?, page_count = ?, chunk_count = ?,
				segment_count = ?, node_count = ?, error = '', updated_at = ?
			WHERE doc_id = ?
		`, StatusComplete, sum.Title, sum.ISBN, sum.PageCount, sum.ChunkCount, sum.SegmentCount, sum.NodeCount, now(), docID)
		if err != nil {
			return fmt.Errorf("complete %s: %w", docID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("complete %s: %w", docID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE doc_id = ?", docID); err != nil {
			return fmt.Errorf("clear artifacts %s: %w", docID, err)
		}
		for _, a := range artifacts {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO artifacts (doc_id, name, key, size) VALUES (?, ?, ?, ?)",
				docID, a.Name, a.Key, a.Size); err != nil {
				return fmt.Errorf("insert artifact %s/%s: %w", docID, a.Name, err)
			}
		}
		return nil
	})
}

// Fail marks a document failed with msg.
func (s *Store) Fail(ctx context.Context, docID, msg string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE doc_id = ?",
		StatusFailed, msg, now(), docID)
	if err != nil {
		return fmt.Errorf("fail %s: %w", docID, err)
	}
	return nil
}

const selectDocument = `
	SELECT doc_id, content_hash, source_name, status, title, isbn, page_count, chunk_count,
		segment_count, node_count, error, created_at, updated_at
	FROM documents`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.DocID, &d.ContentHash, &d.SourceName, &d.Status, &d.Title, &d.ISBN,
		&d.PageCount, &d.ChunkCount, &d.SegmentCount, &d.NodeCount, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Get(ctx context.Context, docID string) (*Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, selectDocument+" WHERE doc_id = ?", docID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docID, err)
	}
	return d, nil
}

// FindByHash returns the completed document with the given input hash.
func (s *Store) FindByHash(ctx context.Context, contentHash string) (*Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		selectDocument+" WHERE content_hash = ? AND status = ? ORDER BY updated_at DESC LIMIT 1",
		contentHash, StatusComplete))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return d, nil
}

// List returns documents, newest first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, selectDocument+" ORDER BY updated_at DESC, doc_id")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// Artifacts lists the stored outputs of a document by name.
func (s *Store) Artifacts(ctx context.Context, docID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, key, size FROM artifacts WHERE doc_id = ? ORDER BY name", docID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts %s: %w", docID, err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Name, &a.Key, &a.Size); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes a document and its artifact rows.
func (s *Store) Delete(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

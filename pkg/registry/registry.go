// Package registry tracks ingested documents in a local SQLite database.
// The vector store holds chunk content; this is the system of record for
// document metadata and listings.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"docgraph/internal/models"
	"docgraph/pkg/logx"
)

var log = logx.NewLogger("registry")

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

type Registry struct {
	db *sql.DB
}

// Open creates or opens the registry database at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, logx.Wrap(err, "error creating registry directory")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, logx.Wrap(err, "error opening registry")
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("registry open at %s", path)
	return r, nil
}

func (r *Registry) migrate() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		filename      TEXT NOT NULL,
		source_url    TEXT NOT NULL DEFAULT '',
		domain        TEXT NOT NULL,
		document_type TEXT NOT NULL,
		chunk_count   INTEGER NOT NULL,
		page_count    INTEGER NOT NULL,
		confidence    REAL NOT NULL,
		key_entities  TEXT NOT NULL DEFAULT '[]',
		uploaded_at   TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return logx.Errorf("error migrating registry: %w", err)
	}
	return nil
}

// Put inserts or replaces a document record.
func (r *Registry) Put(ctx context.Context, doc models.Document) error {
	entities, err := json.Marshal(doc.KeyEntities)
	if err != nil {
		return fmt.Errorf("error encoding key entities: %w", err)
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `INSERT OR REPLACE INTO documents
		(id, filename, source_url, domain, document_type, chunk_count, page_count, confidence, key_entities, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.SourceURL, doc.Domain, doc.DocumentType,
		doc.ChunkCount, doc.PageCount, doc.Confidence, string(entities), doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("error storing document record: %w", err)
	}
	return nil
}

// Get returns one document record by id.
func (r *Registry) Get(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, filename, source_url, domain, document_type,
		chunk_count, page_count, confidence, key_entities, uploaded_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading document: %w", err)
	}
	return doc, nil
}

// List returns all documents, most recently uploaded first.
func (r *Registry) List(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, filename, source_url, domain, document_type,
		chunk_count, page_count, confidence, key_entities, uploaded_at
		FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Delete removes a document record. Deleting an unknown id returns
// ErrNotFound.
func (r *Registry) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting document record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

func scanDocument(scan func(...any) error) (*models.Document, error) {
	var doc models.Document
	var entities string
	if err := scan(&doc.ID, &doc.Filename, &doc.SourceURL, &doc.Domain, &doc.DocumentType,
		&doc.ChunkCount, &doc.PageCount, &doc.Confidence, &entities, &doc.UploadedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entities), &doc.KeyEntities); err != nil {
		return nil, fmt.Errorf("error decoding key entities: %w", err)
	}
	return &doc, nil
}

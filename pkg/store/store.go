// Package store persists document chunks and their embeddings in Postgres
// with the pgvector extension.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docgraph/internal/models"
	"docgraph/pkg/config"
	"docgraph/pkg/logx"
	"docgraph/pkg/metrics"
)

var log = logx.NewLogger("store")

type Store struct {
	pool      *pgxpool.Pool
	tableName string
	batchSize int
}

// New connects to Postgres and ensures the chunk table, vector extension,
// and indexes exist.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, logx.Wrap(err, "error connecting to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, logx.Wrap(err, "error pinging database")
	}

	s := &Store{
		pool:      pool,
		tableName: cfg.TableName,
		batchSize: cfg.BatchSize,
	}
	if err := s.ensureSchema(ctx, cfg.VectorDim); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context, vectorDim int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            TEXT PRIMARY KEY,
			document_id   TEXT NOT NULL,
			content       TEXT NOT NULL,
			chunk_type    TEXT NOT NULL,
			page_number   INT NOT NULL,
			position      INT NOT NULL,
			domain        TEXT NOT NULL,
			document_type TEXT NOT NULL,
			concepts      JSONB NOT NULL DEFAULT '[]',
			metadata      JSONB NOT NULL DEFAULT '{}',
			embedding     vector(%d),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.tableName, vectorDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_id_idx ON %s (document_id)`,
			s.tableName, s.tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			s.tableName, s.tableName),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return logx.Errorf("error ensuring schema: %w", err)
		}
	}
	return nil
}

// StoreChunks upserts a document's chunks in batches inside a transaction.
func (s *Store) StoreChunks(ctx context.Context, domain, documentType string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`INSERT INTO %s
		(id, document_id, content, chunk_type, page_number, position, domain, document_type, concepts, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			concepts = EXCLUDED.concepts,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, s.tableName)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for _, chunk := range chunks[start:end] {
			concepts, err := json.Marshal(orEmpty(chunk.Concepts))
			if err != nil {
				return fmt.Errorf("error encoding concepts: %w", err)
			}
			metadata, err := json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("error encoding metadata: %w", err)
			}
			batch.Queue(query,
				chunk.ID, chunk.DocumentID, chunk.Content, chunk.Type,
				chunk.PageNumber, chunk.Position, domain, documentType,
				concepts, metadata, pgvector.NewVector(chunk.Embedding))
		}

		results := tx.SendBatch(ctx, batch)
		for range chunks[start:end] {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("error storing chunk batch: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("error closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing chunks: %w", err)
	}

	metrics.ChunksStored.Add(float64(len(chunks)))
	log.Debug("stored %d chunks for domain %s", len(chunks), domain)
	return nil
}

// Search returns the chunks nearest to the query embedding by cosine
// distance, optionally filtered by domain and document type.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, domain, documentType string) ([]models.ScoredChunk, error) {
	where, args := searchFilters(domain, documentType)
	args = append([]any{pgvector.NewVector(embedding)}, args...)

	query := fmt.Sprintf(`SELECT id, document_id, content, chunk_type, page_number, position,
			domain, document_type, concepts, metadata, embedding <=> $1 AS distance
		FROM %s%s
		ORDER BY embedding <=> $1
		LIMIT %d`, s.tableName, where, topK)

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	metrics.VectorSearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("error searching chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		var concepts, metadata []byte
		var distance float64
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Content, &sc.Type,
			&sc.PageNumber, &sc.Position, &sc.Domain, &sc.DocumentType,
			&concepts, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("error scanning chunk: %w", err)
		}
		if err := json.Unmarshal(concepts, &sc.Concepts); err != nil {
			return nil, fmt.Errorf("error decoding concepts: %w", err)
		}
		if err := json.Unmarshal(metadata, &sc.Metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata: %w", err)
		}
		sc.Distance = &distance
		results = append(results, sc)
	}
	return results, rows.Err()
}

// DocumentChunks returns all chunks of one document in position order.
func (s *Store) DocumentChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	query := fmt.Sprintf(`SELECT id, document_id, content, chunk_type, page_number, position, concepts, metadata
		FROM %s WHERE document_id = $1 ORDER BY position`, s.tableName)

	rows, err := s.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("error loading document chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var concepts, metadata []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Type,
			&c.PageNumber, &c.Position, &concepts, &metadata); err != nil {
			return nil, fmt.Errorf("error scanning chunk: %w", err)
		}
		if err := json.Unmarshal(concepts, &c.Concepts); err != nil {
			return nil, fmt.Errorf("error decoding concepts: %w", err)
		}
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes all chunks belonging to a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, documentID); err != nil {
		return fmt.Errorf("error deleting document chunks: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// searchFilters builds the WHERE clause for Search. Placeholder numbering
// starts at $2 because $1 is always the query embedding.
func searchFilters(domain, documentType string) (string, []any) {
	var clauses []string
	var args []any
	next := 2

	if domain != "" {
		clauses = append(clauses, fmt.Sprintf("domain = $%d", next))
		args = append(args, domain)
		next++
	}
	if documentType != "" {
		clauses = append(clauses, fmt.Sprintf("document_type = $%d", next))
		args = append(args, documentType)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

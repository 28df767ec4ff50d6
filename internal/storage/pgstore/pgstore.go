// Package pgstore implements the storage.Store contract on PostgreSQL with
// the pgvector extension. Documents and chunks live in two relational tables
// with a transactional add; vector search uses the cosine distance operator
// over an ivfflat index, text search uses ILIKE. Schema initialization is
// lazy and single-flight, mirroring the Qdrant collection manager.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// defaultVectorDim is the embedding column width used when the config does
// not specify one. Matches nomic-embed-text.
const defaultVectorDim = 768

// Config holds connection parameters for a Postgres storage instance.
type Config struct {
	// ConnString is the pgx connection string (DATABASE_URL form).
	ConnString string
	// VectorDim is the embedding column dimensionality; 0 uses the default.
	VectorDim int
}

// Store is a storage.Store backed by PostgreSQL + pgvector.
type Store struct {
	// pool is the underlying connection pool.
	pool *pgxpool.Pool

	// vectorDim is the resolved embedding column width.
	vectorDim int

	// initMu single-flights lazy schema creation; ready flips once the
	// schema is confirmed. On error ready stays false so a later call retries.
	initMu sync.Mutex
	ready  bool
}

// New constructs a Store and its connection pool. The schema is NOT created
// here — the first real operation triggers the single-flight initialization.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("pgstore: connection string must not be empty")
	}
	dim := cfg.VectorDim
	if dim <= 0 {
		dim = defaultVectorDim
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}
	return &Store{pool: pool, vectorDim: dim}, nil
}

// ensureSchema creates the pgvector extension, tables, and index once per
// process. Double-checked so the post-initialization path is one mutex tap.
func (s *Store) ensureSchema(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			file_name    TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size         BIGINT NOT NULL,
			content      TEXT NOT NULL,
			uploaded_at  TIMESTAMPTZ NOT NULL,
			uploaded_by  TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content     TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			embedding   vector(%d),
			UNIQUE (document_id, chunk_index)
		)`, s.vectorDim),
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx
			ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks (document_id, chunk_index)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: %w: ensure schema: %v", storage.ErrUnavailable, err)
		}
	}
	s.ready = true
	return nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "postgres" }

// Capabilities implements storage.Store.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{VectorSearch: true, TextSearch: true}
}

// Metric implements storage.Store. The <=> operator yields cosine distance
// in [0, 2].
func (s *Store) Metric() storage.Metric { return storage.MetricCosineDistance }

// Add implements storage.Store. Document header and chunks share one
// transaction; a failing chunk rolls back the whole document.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: %w: begin: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	const insertDoc = `INSERT INTO documents (id, file_name, content_type, size, content, uploaded_at, uploaded_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertDoc,
		doc.ID, doc.FileName, doc.ContentType, doc.Size, doc.Content, doc.UploadedAt, doc.UploadedBy,
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("pgstore: insert document %s: %w", doc.ID, err)
	}

	const insertChunk = `INSERT INTO chunks (id, document_id, chunk_index, content, created_at, embedding)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range doc.Chunks {
		c := &doc.Chunks[i]
		var emb any
		if len(c.Embedding) > 0 {
			emb = pgvector.NewVector(c.Embedding)
		}
		if _, err := tx.Exec(ctx, insertChunk,
			c.ID, c.DocumentID, c.Index, c.Content, c.CreatedAt, emb,
		); err != nil {
			return fmt.Errorf("pgstore: insert chunk %d of %s: %w", c.Index, doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit document %s: %w", doc.ID, err)
	}
	return nil
}

// GetByID implements storage.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	const q = `SELECT id, file_name, content_type, size, content, uploaded_at, uploaded_by
FROM documents WHERE id = $1`
	var doc document.Document
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&doc.ID, &doc.FileName, &doc.ContentType, &doc.Size, &doc.Content,
		&doc.UploadedAt, &doc.UploadedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: select document %s: %w", id, err)
	}

	chunks, err := s.chunksFor(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Chunks = chunks
	return &doc, nil
}

// chunksFor loads all chunks for a document ordered by index.
func (s *Store) chunksFor(ctx context.Context, documentID string) ([]document.Chunk, error) {
	const q = `SELECT id, document_id, chunk_index, content, created_at, embedding
FROM chunks WHERE document_id = $1 ORDER BY chunk_index`
	rows, err := s.pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: select chunks of %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []document.Chunk
	for rows.Next() {
		var c document.Chunk
		var emb *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.CreatedAt, &emb); err != nil {
			return nil, fmt.Errorf("pgstore: scan chunk of %s: %w", documentID, err)
		}
		if emb != nil {
			c.Embedding = emb.Slice()
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetAll implements storage.Store.
func (s *Store) GetAll(ctx context.Context) ([]*document.Document, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM documents ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list documents: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pgstore: scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: list documents: %w", err)
	}

	out := make([]*document.Document, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		doc, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Delete implements storage.Store. Chunks cascade with the document row.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("pgstore: delete document %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgstore: count documents: %w", err)
	}
	return n, nil
}

// SearchVector implements storage.Store using the pgvector cosine distance
// operator. The raw score is the distance itself; the search engine maps it
// onto the common similarity scale.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	const q = `SELECT id, document_id, chunk_index, content, created_at, embedding <=> $1 AS distance
FROM chunks WHERE embedding IS NOT NULL ORDER BY distance LIMIT $2`
	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("pgstore: vector search: %w", err)
	}
	defer rows.Close()

	var hits []storage.ScoredChunk
	for rows.Next() {
		var c document.Chunk
		var distance float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("pgstore: scan vector hit: %w", err)
		}
		hits = append(hits, storage.ScoredChunk{Chunk: c, Score: distance})
	}
	return hits, rows.Err()
}

// SearchText implements storage.Store with an ILIKE scan. The raw score is
// the match count per chunk, capped at 1.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	needle := strings.TrimSpace(query)
	if needle == "" || limit <= 0 {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	const q = `SELECT id, document_id, chunk_index, content, created_at
FROM chunks WHERE content ILIKE '%' || $1 || '%' LIMIT $2`
	rows, err := s.pool.Query(ctx, q, escapeLike(needle), limit)
	if err != nil {
		return nil, fmt.Errorf("pgstore: text search: %w", err)
	}
	defer rows.Close()

	lower := strings.ToLower(needle)
	var hits []storage.ScoredChunk
	for rows.Next() {
		var c document.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan search hit: %w", err)
		}
		score := float64(strings.Count(strings.ToLower(c.Content), lower)) / 4
		if score > 1 {
			score = 1
		}
		hits = append(hits, storage.ScoredChunk{Chunk: c, Score: score})
	}
	return hits, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping implements storage.Pinger for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// escapeLike escapes LIKE wildcards in user-supplied query text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Package sqlitestore implements the storage.Store contract on a local
// SQLite database. Document and chunk writes share one transaction, so a
// failing chunk rolls back the whole add. The driver is text-capable via
// LIKE scans; embeddings are persisted as JSON for round-tripping but are
// not searched.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Store is a storage.Store backed by a local SQLite database.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    file_name    TEXT    NOT NULL,
    content_type TEXT    NOT NULL,
    size         INTEGER NOT NULL,
    content      TEXT    NOT NULL,
    uploaded_at  INTEGER NOT NULL,  -- Unix timestamp (seconds)
    uploaded_by  TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
    id           TEXT    PRIMARY KEY,
    document_id  TEXT    NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index  INTEGER NOT NULL,
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL,
    embedding    TEXT,              -- JSON array of float32, NULL when absent
    UNIQUE (document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document
    ON chunks (document_id, chunk_index);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("sqlitestore: enable foreign keys: %w", err)
	}
	return nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "sqlite" }

// Capabilities implements storage.Store. Relational LIKE scans only.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{TextSearch: true}
}

// Metric implements storage.Store.
func (s *Store) Metric() storage.Metric { return storage.MetricUnknown }

// Add implements storage.Store. Document header and all chunks are written
// inside one transaction; any failure rolls the whole document back.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w: begin: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback()

	const insertDoc = `INSERT INTO documents (id, file_name, content_type, size, content, uploaded_at, uploaded_by)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertDoc,
		doc.ID, doc.FileName, doc.ContentType, doc.Size, doc.Content,
		doc.UploadedAt.Unix(), doc.UploadedBy,
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("sqlitestore: insert document %s: %w", doc.ID, err)
	}

	const insertChunk = `INSERT INTO chunks (id, document_id, chunk_index, content, created_at, embedding)
VALUES (?, ?, ?, ?, ?, ?)`
	for i := range doc.Chunks {
		c := &doc.Chunks[i]
		emb, err := marshalEmbedding(c.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertChunk,
			c.ID, c.DocumentID, c.Index, c.Content, c.CreatedAt.Unix(), emb,
		); err != nil {
			return fmt.Errorf("sqlitestore: insert chunk %d of %s: %w", c.Index, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit document %s: %w", doc.ID, err)
	}
	return nil
}

// GetByID implements storage.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	const q = `SELECT id, file_name, content_type, size, content, uploaded_at, uploaded_by
FROM documents WHERE id = ?`
	var doc document.Document
	var uploadedAt int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&doc.ID, &doc.FileName, &doc.ContentType, &doc.Size, &doc.Content,
		&uploadedAt, &doc.UploadedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: select document %s: %w", id, err)
	}
	doc.UploadedAt = time.Unix(uploadedAt, 0).UTC()

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
FROM chunks WHERE document_id = ? ORDER BY chunk_index`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: select chunks of %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []document.Chunk
	for rows.Next() {
		var c document.Chunk
		var createdAt int64
		var emb sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &createdAt, &emb); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan chunk of %s: %w", documentID, err)
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		if emb.Valid && emb.String != "" {
			if err := json.Unmarshal([]byte(emb.String), &c.Embedding); err != nil {
				return nil, fmt.Errorf("sqlitestore: decode embedding of chunk %s: %w", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetAll implements storage.Store.
func (s *Store) GetAll(ctx context.Context) ([]*document.Document, error) {
	const q = `SELECT id FROM documents ORDER BY uploaded_at, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list documents: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlitestore: scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: list documents: %w", err)
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

// Delete implements storage.Store. Chunk rows go with the document via the
// ON DELETE CASCADE foreign key.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: delete document %s: %w", id, err)
	}
	return n > 0, nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlitestore: count documents: %w", err)
	}
	return n, nil
}

// SearchVector implements storage.Store. Never called: the capability flag
// is off.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	return nil, fmt.Errorf("sqlitestore: vector search not supported")
}

// SearchText implements storage.Store with a case-insensitive LIKE scan.
// The raw score is the match count per chunk, capped at 1.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	needle := strings.TrimSpace(query)
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	const q = `SELECT id, document_id, chunk_index, content, created_at, embedding
FROM chunks WHERE content LIKE ? ESCAPE '\' LIMIT ?`
	pattern := "%" + escapeLike(needle) + "%"
	rows, err := s.db.QueryContext(ctx, q, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: text search: %w", err)
	}
	defer rows.Close()

	lower := strings.ToLower(needle)
	var hits []storage.ScoredChunk
	for rows.Next() {
		var c document.Chunk
		var createdAt int64
		var emb sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &createdAt, &emb); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan search hit: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		score := float64(strings.Count(strings.ToLower(c.Content), lower)) / 4
		if score > 1 {
			score = 1
		}
		hits = append(hits, storage.ScoredChunk{Chunk: c, Score: score})
	}
	return hits, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlitestore: close: %w", err)
	}
	return nil
}

// Ping implements storage.Pinger for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// marshalEmbedding encodes a vector as JSON, or NULL when absent.
func marshalEmbedding(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: encode embedding: %w", err)
	}
	return string(data), nil
}

// escapeLike escapes LIKE wildcards in user-supplied query text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

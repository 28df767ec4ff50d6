// Package fsstore implements the storage.Store contract on top of a local
// filesystem tree. Each document is one JSON file under the root directory,
// named by its identifier. The driver is text-capable only — embeddings are
// persisted with the chunks but never searched.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// docExt is the file extension of persisted documents.
const docExt = ".json"

// Store is a filesystem-backed storage.Store. Safe for concurrent use
// within one process; cross-process writers are not coordinated.
type Store struct {
	// root is the directory holding one JSON file per document.
	root string
}

// storedDocument is the on-disk representation of a document.
type storedDocument struct {
	ID          string        `json:"id"`
	FileName    string        `json:"file_name"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	Content     string        `json:"content"`
	UploadedAt  time.Time     `json:"uploaded_at"`
	UploadedBy  string        `json:"uploaded_by"`
	Chunks      []storedChunk `json:"chunks"`
}

// storedChunk is the on-disk representation of a chunk.
type storedChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// New constructs a filesystem store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("fsstore: root directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("fsstore: create root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "filesystem" }

// Capabilities implements storage.Store. Text search only.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{TextSearch: true}
}

// Metric implements storage.Store. The driver performs no vector search.
func (s *Store) Metric() storage.Metric { return storage.MetricUnknown }

// path returns the file path for a document ID. IDs are generated UUIDs, but
// the base-name check guards against path traversal from hand-crafted IDs.
func (s *Store) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", fmt.Errorf("fsstore: invalid document id %q", id)
	}
	return filepath.Join(s.root, id+docExt), nil
}

// Add implements storage.Store. The document is written to a temp file and
// linked into place with an exclusive create, so concurrent adds of the same
// identifier race safely: exactly one wins, the rest get ErrAlreadyExists.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	dst, err := s.path(doc.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(toStored(doc))
	if err != nil {
		return fmt.Errorf("fsstore: marshal document %s: %w", doc.ID, err)
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("fsstore: %w: %v", storage.ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fsstore: write document %s: %w", doc.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsstore: close temp for %s: %w", doc.ID, err)
	}

	// Link is the atomic create-if-absent: it fails when dst already exists
	// instead of silently replacing it the way rename would.
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("fsstore: store document %s: %w", doc.ID, err)
	}
	return nil
}

// GetByID implements storage.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("fsstore: read document %s: %w", id, err)
	}
	var sd storedDocument
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("fsstore: decode document %s: %w", id, err)
	}
	return fromStored(&sd), nil
}

// GetAll implements storage.Store. Files that fail to parse are skipped so
// one corrupt entry cannot hide the rest of the tree.
func (s *Store) GetAll(ctx context.Context) ([]*document.Document, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("fsstore: list root %s: %w", s.root, err)
	}

	var out []*document.Document
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), docExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), docExt)
		doc, err := s.GetByID(ctx, id)
		if err != nil || doc == nil {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("fsstore: delete document %s: %w", id, err)
	}
	return true, nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("fsstore: list root %s: %w", s.root, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), docExt) {
			n++
		}
	}
	return n, nil
}

// SearchVector implements storage.Store. Never called: the capability flag
// is off.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	return nil, fmt.Errorf("fsstore: vector search not supported")
}

// SearchText implements storage.Store with a case-insensitive substring scan
// over every stored chunk.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	docs, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var hits []storage.ScoredChunk
	for _, doc := range docs {
		for i := range doc.Chunks {
			c := &doc.Chunks[i]
			n := strings.Count(strings.ToLower(c.Content), needle)
			if n == 0 {
				continue
			}
			score := float64(n) / 4
			if score > 1 {
				score = 1
			}
			hits = append(hits, storage.ScoredChunk{Chunk: c.Clone(), Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close implements storage.Store. Nothing to release.
func (s *Store) Close() error { return nil }

// toStored converts the domain document to its on-disk form.
func toStored(d *document.Document) *storedDocument {
	sd := &storedDocument{
		ID:          d.ID,
		FileName:    d.FileName,
		ContentType: d.ContentType,
		Size:        d.Size,
		Content:     d.Content,
		UploadedAt:  d.UploadedAt,
		UploadedBy:  d.UploadedBy,
		Chunks:      make([]storedChunk, len(d.Chunks)),
	}
	for i, c := range d.Chunks {
		sd.Chunks[i] = storedChunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Index:      c.Index,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
			Embedding:  c.Embedding,
		}
	}
	return sd
}

// fromStored converts the on-disk form back to the domain document.
func fromStored(sd *storedDocument) *document.Document {
	d := &document.Document{
		ID:          sd.ID,
		FileName:    sd.FileName,
		ContentType: sd.ContentType,
		Size:        sd.Size,
		Content:     sd.Content,
		UploadedAt:  sd.UploadedAt,
		UploadedBy:  sd.UploadedBy,
		Chunks:      make([]document.Chunk, len(sd.Chunks)),
	}
	for i, c := range sd.Chunks {
		d.Chunks[i] = document.Chunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Index:      c.Index,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
			Embedding:  c.Embedding,
		}
	}
	return d
}

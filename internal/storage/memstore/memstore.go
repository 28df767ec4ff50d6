// Package memstore implements the storage.Store contract with an in-process
// map. It supports both brute-force vector search and substring text search,
// making it the reference driver for the search engine's tests and the
// default backend when no external store is configured.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// Store is an in-memory storage.Store. Safe for concurrent use.
type Store struct {
	// mu guards docs. Never held across any blocking call.
	mu sync.RWMutex

	// docs maps document ID to the stored document.
	docs map[string]*document.Document
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{docs: make(map[string]*document.Document)}
}

// Name implements storage.Store.
func (s *Store) Name() string { return "memory" }

// Capabilities implements storage.Store. The map driver supports both search
// paths: brute-force cosine over stored embeddings and substring matching.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{VectorSearch: true, TextSearch: true}
}

// Metric implements storage.Store. Brute-force scoring computes cosine
// similarity directly.
func (s *Store) Metric() storage.Metric { return storage.MetricCosineSimilarity }

// Add implements storage.Store. The document is validated as a whole before
// any state changes, so a single bad chunk leaves the store untouched.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

// GetByID implements storage.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

// GetAll implements storage.Store. Results are ordered by upload time so
// repeated calls are deterministic.
func (s *Store) GetAll(ctx context.Context) ([]*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*document.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc.Clone())
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// SearchVector implements storage.Store with a brute-force cosine scan over
// every embedded chunk. Chunks without embeddings are skipped.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var hits []storage.ScoredChunk
	for _, doc := range s.docs {
		for i := range doc.Chunks {
			c := &doc.Chunks[i]
			if len(c.Embedding) == 0 {
				continue
			}
			hits = append(hits, storage.ScoredChunk{
				Chunk: c.Clone(),
				Score: storage.CosineSimilarity(vector, c.Embedding),
			})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchText implements storage.Store with a case-insensitive substring scan.
// The raw score is the match density: occurrences of the query per chunk,
// capped at 1.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var hits []storage.ScoredChunk
	for _, doc := range s.docs {
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
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close implements storage.Store. Nothing to release.
func (s *Store) Close() error { return nil }

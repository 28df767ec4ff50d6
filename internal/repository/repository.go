// Package repository exposes the public document surface of ragstore: Add,
// GetByID, GetAll, Delete, Count, and Search, composed from one storage
// driver, the embedding pipeline, and the hybrid search engine. The active
// backend is selected once per process by the factory in this package —
// never by runtime type inspection.
package repository

import (
	"context"
	"log/slog"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/embedder"
	"github.com/54b3r/ragstore-go/internal/ingest"
	"github.com/54b3r/ragstore-go/internal/logging"
	"github.com/54b3r/ragstore-go/internal/search"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// Repository is the composed public surface over one storage backend.
// Safe for concurrent use.
type Repository struct {
	// store is the active backend driver.
	store storage.Store

	// pipeline resolves embeddings at ingest time.
	pipeline *ingest.Pipeline

	// engine answers Search calls.
	engine *search.Engine
}

// New composes a Repository from its parts. emb may be nil — ingest then
// skips embedding and retrieval runs on the keyword path.
func New(store storage.Store, emb embedder.Embedder, pipelineCfg *ingest.Config, engineOpts search.Options) *Repository {
	return &Repository{
		store:    store,
		pipeline: ingest.NewPipeline(emb, pipelineCfg),
		engine:   search.NewEngine([]storage.Store{store}, emb, engineOpts),
	}
}

// Ingest builds a document from raw text, resolves embeddings, and persists
// it. The returned document carries the generated identifiers.
func (r *Repository) Ingest(ctx context.Context, fileName, contentType, uploadedBy, text string) (*document.Document, error) {
	doc := r.pipeline.BuildDocument(fileName, contentType, uploadedBy, text)
	if err := r.Add(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Add validates and persists a pre-built document, resolving any missing
// chunk embeddings first. Validation and conflict errors surface to the
// caller; a write path must never lose data silently.
func (r *Repository) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	r.pipeline.ResolveEmbeddings(ctx, doc)
	return r.store.Add(ctx, doc)
}

// GetByID returns the stored document or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*document.Document, error) {
	return r.store.GetByID(ctx, id)
}

// GetAll returns every stored document. Under backend pagination limits the
// result may be partial — callers must not assume completeness beyond the
// backend's own consistency model.
func (r *Repository) GetAll(ctx context.Context) ([]*document.Document, error) {
	return r.store.GetAll(ctx)
}

// Delete removes a document and its chunks; false means the identifier was
// unknown.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// Count returns the number of stored documents.
func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Search returns the most relevant chunks for the query. It never returns
// an error: failures degrade inside the engine and an empty list is a valid
// outcome. limit <= 0 uses the engine default. The engine hands back a wider
// candidate set for re-ranking; the facade truncates to the requested count.
func (r *Repository) Search(ctx context.Context, query string, limit int) []document.Chunk {
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	results := r.engine.Search(ctx, query, limit)
	if len(results) > limit {
		results = results[:limit]
	}
	logging.FromContext(ctx).Debug("search completed",
		slog.String("backend", r.store.Name()),
		slog.Int("results", len(results)),
	)
	return results
}

// Store exposes the active driver for readiness probes and stats.
func (r *Repository) Store() storage.Store {
	return r.store
}

// Close releases the backend driver's resources.
func (r *Repository) Close() error {
	return r.store.Close()
}

// Package storage defines the contract every ragstore backend driver
// implements: document CRUD plus raw vector/text search behind capability
// flags. Concrete drivers (memory, filesystem, SQLite, Redis, Qdrant,
// Postgres) live in the subpackages and satisfy [Store] so the repository
// facade and the hybrid search engine never depend on a specific backend.
package storage

import (
	"context"

	"github.com/54b3r/ragstore-go/internal/document"
)

// Capabilities advertises which raw search paths a driver supports. The
// hybrid search engine only calls the paths a driver exposes.
type Capabilities struct {
	// VectorSearch is true when the driver can rank chunks by similarity to
	// a query embedding (native k-NN or brute-force).
	VectorSearch bool

	// TextSearch is true when the driver can rank chunks by substring /
	// keyword match against a query string.
	TextSearch bool
}

// Metric identifies how a driver's raw vector-search scores are to be
// interpreted. Raw scores are backend-specific; the search engine maps them
// onto a common normalized similarity before merging hits across drivers.
type Metric int

const (
	// MetricUnknown means the score semantics are undeclared. Mapped with
	// the conservative clamp(1-d, 0, 1).
	MetricUnknown Metric = iota

	// MetricCosineDistance is a cosine distance in [0, 2]; 0 is identical.
	MetricCosineDistance

	// MetricCosineSimilarity is a cosine similarity in [-1, 1]; 1 is identical.
	MetricCosineSimilarity

	// MetricL2Distance is a Euclidean distance in [0, inf); 0 is identical.
	MetricL2Distance

	// MetricInnerProduct is an inner product in [-1, 1] over normalized
	// vectors; 1 is identical.
	MetricInnerProduct
)

// ScoredChunk is one raw search hit: a chunk plus the backend's raw score.
type ScoredChunk struct {
	// Chunk is a copy of the stored chunk.
	Chunk document.Chunk

	// Score is the raw backend score, interpreted per the driver's Metric.
	Score float64
}

// Store is the contract implemented by every backend driver.
// Implementations must be safe to call from multiple goroutines and must
// enforce the document model invariants on every write.
type Store interface {
	// Name returns a short driver label used in logs and hit provenance
	// (e.g. "qdrant", "memory").
	Name() string

	// Capabilities reports which raw search paths this driver supports.
	Capabilities() Capabilities

	// Metric declares how SearchVector scores are to be interpreted.
	Metric() Metric

	// Add persists a document and all of its chunks atomically. It fails
	// with a *document.ValidationError for a malformed document, with
	// ErrAlreadyExists when the identifier is taken, and with a backend
	// error otherwise. On failure no partial document is left visible.
	Add(ctx context.Context, doc *document.Document) error

	// GetByID returns the stored document with all chunks, or (nil, nil)
	// when the identifier is unknown. Absence is not an error.
	GetByID(ctx context.Context, id string) (*document.Document, error)

	// GetAll returns every stored document. Drivers that paginate accumulate
	// page by page; transient page failures are retried a bounded number of
	// times and then treated as end-of-data, so the result may be partial.
	GetAll(ctx context.Context) ([]*document.Document, error)

	// Delete removes the document and all owned chunks. Returns false, not
	// an error, when the identifier does not exist.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// SearchVector returns up to limit chunks ranked by similarity to the
	// query embedding. Only valid when Capabilities().VectorSearch is true.
	SearchVector(ctx context.Context, vector []float32, limit int) ([]ScoredChunk, error)

	// SearchText returns up to limit chunks matching the query text. Only
	// valid when Capabilities().TextSearch is true.
	SearchText(ctx context.Context, query string, limit int) ([]ScoredChunk, error)

	// Close releases any resources held by the driver.
	Close() error
}

// Pinger is implemented by drivers that can report backend reachability for
// readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

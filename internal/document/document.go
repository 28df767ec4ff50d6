// Package document defines the core data model moved between every component
// of ragstore: the Document (a unit of ingested content) and its ordered
// DocumentChunks (the atomic units of retrieval and embedding).
// Validation of the model invariants lives here so every storage driver
// enforces exactly the same rules.
package document

import (
	"time"

	"github.com/google/uuid"
)

// MaxChunkIndex is the highest permitted zero-based chunk index within a
// single document. Anything larger indicates a runaway chunker upstream.
const MaxChunkIndex = 10_000

// MaxChunkContentLen is the maximum number of characters allowed in one
// chunk's content.
const MaxChunkContentLen = 1_000_000

// Document is a unit of ingested content. A Document owns its chunks
// exclusively: chunks are persisted and destroyed with their parent and are
// never shared across documents.
type Document struct {
	// ID is the opaque unique identifier, generated at creation, immutable.
	ID string

	// FileName is the name of the source file as uploaded.
	FileName string

	// ContentType is the MIME type of the source file.
	ContentType string

	// Size is the byte size of the original file.
	Size int64

	// Content is the raw joined text extracted from the file.
	Content string

	// UploadedAt is when the document was ingested.
	UploadedAt time.Time

	// UploadedBy identifies the uploader.
	UploadedBy string

	// Chunks is the ordered list of content chunks owned by this document.
	// A document with zero chunks is invalid and rejected by every write path.
	Chunks []Chunk
}

// Chunk is a contiguous slice of a document's text, the unit of retrieval.
type Chunk struct {
	// ID is the unique identifier of this chunk.
	ID string

	// DocumentID is the identifier of the owning document. It must equal the
	// parent Document's ID.
	DocumentID string

	// Index is the zero-based sequential position of this chunk within its
	// document. Non-negative, at most MaxChunkIndex.
	Index int

	// Content is the chunk text. Non-empty, at most MaxChunkContentLen
	// characters.
	Content string

	// CreatedAt is when the chunk was created.
	CreatedAt time.Time

	// Embedding is the dense vector for this chunk. Either empty (not yet
	// embedded, or embedding failed and was skipped) or a complete vector of
	// one of the allowed dimensionalities with no NaN/Inf/all-zero content.
	Embedding []float32

	// RelevanceScore is a transient ranking artifact populated only during
	// search, normalized to [0,1]. It is never persisted.
	RelevanceScore float64
}

// New constructs an empty Document with a freshly generated identifier and
// the upload timestamp set to now.
func New(fileName, contentType, uploadedBy string) *Document {
	return &Document{
		ID:          uuid.NewString(),
		FileName:    fileName,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  uploadedBy,
	}
}

// NewChunk constructs a Chunk owned by the given document.
func NewChunk(documentID string, index int, content string) Chunk {
	return Chunk{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Index:      index,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone returns a deep copy of the chunk, including its embedding. Used by
// the result cache and the storage drivers so callers can never mutate
// shared state through a returned chunk.
func (c Chunk) Clone() Chunk {
	out := c
	if len(c.Embedding) > 0 {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	return out
}

// Clone returns a deep copy of the document and all of its chunks.
func (d *Document) Clone() *Document {
	out := *d
	if len(d.Chunks) > 0 {
		out.Chunks = make([]Chunk, len(d.Chunks))
		for i, c := range d.Chunks {
			out.Chunks[i] = c.Clone()
		}
	}
	return &out
}

// CloneChunks returns a deep copy of a chunk slice.
func CloneChunks(chunks []Chunk) []Chunk {
	if chunks == nil {
		return nil
	}
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.Clone()
	}
	return out
}

package document

import (
	"fmt"
	"math"
)

// allowedDimensions lists the embedding dimensionalities accepted by the
// write paths. These match the output sizes of the supported embedding
// models (nomic-embed-text: 768, text-embedding-3-small: 1536,
// text-embedding-3-large: 3072).
var allowedDimensions = map[int]bool{
	384:  true,
	768:  true,
	1024: true,
	1536: true,
	3072: true,
}

// ValidationError reports a rejected document or chunk. It is never retried
// and is surfaced to the caller unchanged.
type ValidationError struct {
	// Field names the offending attribute (e.g. "chunks", "chunk.content").
	Field string
	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("document: validation failed: %s: %s", e.Field, e.Reason)
}

// Validate checks every model invariant on the document and all of its
// chunks. A single bad chunk rejects the whole document — write paths must
// not leave partial state visible.
func (d *Document) Validate() error {
	if d == nil {
		return &ValidationError{Field: "document", Reason: "document is nil"}
	}
	if d.ID == "" {
		return &ValidationError{Field: "id", Reason: "identifier is empty"}
	}
	if d.FileName == "" {
		return &ValidationError{Field: "file_name", Reason: "file name is empty"}
	}
	if len(d.Chunks) == 0 {
		return &ValidationError{Field: "chunks", Reason: "document has zero chunks"}
	}
	for i := range d.Chunks {
		if err := d.Chunks[i].Validate(d.ID); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the chunk invariants against the owning document ID.
func (c *Chunk) Validate(documentID string) error {
	if c.ID == "" {
		return &ValidationError{Field: "chunk.id", Reason: "identifier is empty"}
	}
	if c.DocumentID != documentID {
		return &ValidationError{
			Field:  "chunk.document_id",
			Reason: fmt.Sprintf("chunk %s belongs to %q, not %q", c.ID, c.DocumentID, documentID),
		}
	}
	if c.Index < 0 || c.Index > MaxChunkIndex {
		return &ValidationError{
			Field:  "chunk.index",
			Reason: fmt.Sprintf("index %d outside [0, %d]", c.Index, MaxChunkIndex),
		}
	}
	if c.Content == "" {
		return &ValidationError{Field: "chunk.content", Reason: "content is empty"}
	}
	if len(c.Content) > MaxChunkContentLen {
		return &ValidationError{
			Field:  "chunk.content",
			Reason: fmt.Sprintf("content length %d exceeds %d", len(c.Content), MaxChunkContentLen),
		}
	}
	if err := ValidateEmbedding(c.Embedding); err != nil {
		return err
	}
	return nil
}

// ValidateEmbedding checks that a vector is either absent or well-formed:
// an allowed dimensionality, every component finite, and at least one
// component with a normal (non-zero, non-subnormal) magnitude. A vector of
// all zeros or all subnormals carries no direction and would poison cosine
// similarity downstream.
func ValidateEmbedding(v []float32) error {
	if len(v) == 0 {
		return nil
	}
	if !allowedDimensions[len(v)] {
		return &ValidationError{
			Field:  "chunk.embedding",
			Reason: fmt.Sprintf("dimensionality %d is not an allowed size", len(v)),
		}
	}
	sane := false
	for i, f := range v {
		f64 := float64(f)
		if math.IsNaN(f64) || math.IsInf(f64, 0) {
			return &ValidationError{
				Field:  "chunk.embedding",
				Reason: fmt.Sprintf("component %d is not finite", i),
			}
		}
		if math.Abs(f64) >= math.SmallestNonzeroFloat32*float64(1<<23) {
			sane = true
		}
	}
	if !sane {
		return &ValidationError{
			Field:  "chunk.embedding",
			Reason: "vector is all-zero or all-subnormal",
		}
	}
	return nil
}

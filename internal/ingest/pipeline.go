// Package ingest implements the document ingestion pipeline: it chunks raw
// text into bounded slices, resolves embeddings for chunks that lack them,
// and hands the finished document to the storage driver. Embedding runs
// concurrently per chunk and tolerates individual failures — a chunk whose
// embedding call fails is kept with an empty vector rather than failing the
// whole document.
package ingest

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/embedder"
	"github.com/54b3r/ragstore-go/internal/logging"
)

// WriteBatchSize is the number of chunks grouped into one backend write
// request. Sized below the transport limits of the batched drivers; the
// Qdrant driver flushes upserts at this granularity.
const WriteBatchSize = 200

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between
	// consecutive chunks. Defaults to 100 if zero or out of range.
	ChunkOverlap int

	// MaxConcurrency bounds the number of in-flight embedding calls per
	// document. Defaults to 8 if zero.
	MaxConcurrency int
}

// Pipeline chunks, embeds, and prepares documents for storage.
type Pipeline struct {
	// embedder converts chunk text into dense vectors. May be nil, in
	// which case chunks are stored without embeddings and retrieval relies
	// on the keyword path.
	embedder embedder.Embedder

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided embedder and config.
// A nil embedder is allowed — embedding is then skipped entirely.
func NewPipeline(emb embedder.Embedder, cfg *Config) *Pipeline {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	return &Pipeline{embedder: emb, cfg: cfg}
}

// BuildDocument constructs a Document from raw text: the text is chunked,
// each chunk gets a generated identifier, and the document-level attributes
// are filled in. Embeddings are not resolved here — call ResolveEmbeddings.
func (p *Pipeline) BuildDocument(fileName, contentType, uploadedBy, text string) *document.Document {
	doc := document.New(fileName, contentType, uploadedBy)
	doc.Content = text
	doc.Size = int64(len(text))

	for i, piece := range p.Chunk(text) {
		doc.Chunks = append(doc.Chunks, document.NewChunk(doc.ID, i, piece))
	}
	return doc
}

// ResolveEmbeddings fills in the embedding of every chunk that lacks one,
// calling the embedding capability concurrently with bounded parallelism.
// A single chunk's failure is logged and that chunk is skipped — it does not
// fail the document. Each call is independently cancellable through ctx.
func (p *Pipeline) ResolveEmbeddings(ctx context.Context, doc *document.Document) {
	if p.embedder == nil {
		return
	}
	log := logging.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)

	for i := range doc.Chunks {
		c := &doc.Chunks[i]
		if len(c.Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			vec, err := embedder.EmbedOne(gctx, p.embedder, c.Content)
			if err != nil {
				log.Warn("chunk embedding failed, storing without vector",
					slog.String("document_id", doc.ID),
					slog.Int("chunk_index", c.Index),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if err := document.ValidateEmbedding(vec); err != nil {
				log.Warn("embedder returned invalid vector, storing without it",
					slog.String("document_id", doc.ID),
					slog.Int("chunk_index", c.Index),
					slog.String("error", err.Error()),
				)
				return nil
			}
			c.Embedding = vec
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
}

// Chunk splits text into overlapping slices of at most ChunkSize characters.
func (p *Pipeline) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// Package qdrantstore implements the storage.Store contract on a Qdrant
// vector search engine. Each chunk is one point; document-level attributes
// ride on every point's payload so a document can be reconstructed from its
// chunk points alone. The target collection is created lazily on first use
// by a single-flight collection manager.
package qdrantstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

const (
	// maxUpsertBatch caps points per upsert request to stay under the gRPC
	// message size limit. Batches are flushed sequentially so a mid-stream
	// failure leaves only the not-yet-flushed batches unwritten.
	maxUpsertBatch = 200

	// scrollPageSize is the page size used when enumerating all points.
	scrollPageSize = 256
)

// Config holds connection parameters for a Qdrant storage instance.
type Config struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string
	// Port is the Qdrant gRPC port (default: 6334).
	Port int
	// Collection is the Qdrant collection name (default: ragstore).
	Collection string
	// VectorSize is the embedding dimensionality; 0 resolves it lazily from
	// a sibling collection or the built-in default.
	VectorSize uint64
	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Store is a storage.Store backed by a Qdrant instance.
type Store struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// collection is the target collection name.
	collection string

	// manager lazily ensures the collection exists before any operation.
	manager *collectionManager
}

// New constructs a Store. The collection is NOT created here — the first
// real operation triggers the single-flight initialization, so constructing
// a store against an unreachable server succeeds and the error surfaces on
// first use, where the caller can degrade.
func New(cfg *Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "ragstore"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: create client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		manager: &collectionManager{
			client:     client,
			collection: cfg.Collection,
			vectorSize: cfg.VectorSize,
		},
	}, nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "qdrant" }

// Capabilities implements storage.Store. Qdrant is queried for k-NN only;
// keyword fallback runs client-side over GetAll.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{VectorSearch: true}
}

// Metric implements storage.Store. Collections are created with cosine
// distance; Qdrant reports query scores as cosine similarity.
func (s *Store) Metric() storage.Metric { return storage.MetricCosineSimilarity }

// Add implements storage.Store. Uniqueness is checked with an exact count on
// the document_id payload field; chunk points are then upserted in batches
// of maxUpsertBatch, flushed sequentially. A retried add after a mid-stream
// failure fails on the AlreadyExists check, making the partial write
// discoverable rather than silently doubled.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := s.manager.EnsureReady(ctx); err != nil {
		return err
	}

	existing, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         documentFilter(doc.ID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: %w: uniqueness check for %s: %v", storage.ErrUnavailable, doc.ID, err)
	}
	if existing > 0 {
		return storage.ErrAlreadyExists
	}

	points := make([]*qdrant.PointStruct, 0, len(doc.Chunks))
	for i := range doc.Chunks {
		points = append(points, s.toPoint(doc, &doc.Chunks[i]))
	}

	for start := 0; start < len(points); start += maxUpsertBatch {
		end := min(start+maxUpsertBatch, len(points))
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points[start:end],
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("qdrantstore: upsert batch [%d:%d] of %s: %w", start, end, doc.ID, err)
		}
	}
	return nil
}

// GetByID implements storage.Store, reconstructing the document from its
// chunk points.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	if err := s.manager.EnsureReady(ctx); err != nil {
		return nil, err
	}

	points, err := s.scrollAll(ctx, documentFilter(id))
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}
	return assembleDocument(id, points), nil
}

// GetAll implements storage.Store. All points are scrolled page by page and
// grouped into documents; transient page failures degrade to a partial
// result via storage.FetchPages.
func (s *Store) GetAll(ctx context.Context) ([]*document.Document, error) {
	if err := s.manager.EnsureReady(ctx); err != nil {
		return nil, err
	}

	points, err := s.scrollAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string][]*qdrant.RetrievedPoint)
	for _, p := range points {
		docID := payloadString(p.GetPayload(), "document_id")
		if docID == "" {
			continue
		}
		byDoc[docID] = append(byDoc[docID], p)
	}

	out := make([]*document.Document, 0, len(byDoc))
	for id, pts := range byDoc {
		out = append(out, assembleDocument(id, pts))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// scrollAll pages through every point matching filter. The high-level
// Scroll API returns no cursor, so pagination advances by offsetting on the
// last point ID of the previous page and dropping the overlapping first row.
func (s *Store) scrollAll(ctx context.Context, filter *qdrant.Filter) ([]*qdrant.RetrievedPoint, error) {
	var offset *qdrant.PointId
	return storage.FetchPages(ctx, s.Name(), func(ctx context.Context, _ int) ([]*qdrant.RetrievedPoint, bool, error) {
		page, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, false, &storage.TransientError{Op: "scroll", Err: err}
		}
		full := len(page) == scrollPageSize
		if offset != nil && len(page) > 0 && page[0].GetId().GetUuid() == offset.GetUuid() {
			page = page[1:]
		}
		if len(page) == 0 {
			return nil, false, nil
		}
		offset = page[len(page)-1].GetId()
		return page, full, nil
	})
}

// Delete implements storage.Store via a filtered delete on document_id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.manager.EnsureReady(ctx); err != nil {
		return false, err
	}

	existing, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         documentFilter(id),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("qdrantstore: existence check for %s: %w", id, err)
	}
	if existing == 0 {
		return false, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(id)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("qdrantstore: delete document %s: %w", id, err)
	}
	return true, nil
}

// Count implements storage.Store. Qdrant counts points, not documents, so
// distinct document IDs are tallied from a payload-only scroll.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.manager.EnsureReady(ctx); err != nil {
		return 0, err
	}

	points, err := s.scrollAll(ctx, nil)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	for _, p := range points {
		if id := payloadString(p.GetPayload(), "document_id"); id != "" {
			seen[id] = true
		}
	}
	return len(seen), nil
}

// SearchVector implements storage.Store with a k-NN query.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	if err := s.manager.EnsureReady(ctx); err != nil {
		return nil, err
	}

	// Chunks whose embedding failed at ingest are stored with a placeholder
	// vector; the filter keeps them out of similarity results.
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchBool("embedded", true),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: query: %w", err)
	}

	hits := make([]storage.ScoredChunk, 0, len(results))
	for _, r := range results {
		hits = append(hits, storage.ScoredChunk{
			Chunk: chunkFromPayload(r.GetId().GetUuid(), r.GetPayload(), nil),
			Score: float64(r.GetScore()),
		})
	}
	return hits, nil
}

// SearchText implements storage.Store. Never called: the capability flag
// is off — keyword fallback runs client-side over GetAll.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	return nil, fmt.Errorf("qdrantstore: text search not supported")
}

// Close closes the underlying Qdrant gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping implements storage.Pinger for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.client.HealthCheck(ctx)
	return err
}

// documentFilter matches all points belonging to one document.
func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("document_id", documentID),
		},
	}
}

// toPoint converts a chunk (plus document-level attributes) to a Qdrant point.
// The full document text rides only on the index-0 point to keep payloads small.
// A chunk without an embedding still becomes a point: the collection demands a
// fixed-dimension vector on every point, so it gets a placeholder vector and
// an embedded=false payload flag. SearchVector filters those out and document
// reconstruction strips the placeholder, so the chunk survives a failed embed
// without failing the whole document add.
func (s *Store) toPoint(doc *document.Document, c *document.Chunk) *qdrant.PointStruct {
	payload := map[string]any{
		"document_id":  doc.ID,
		"chunk_index":  int64(c.Index),
		"content":      c.Content,
		"created_at":   c.CreatedAt.UTC().Format(time.RFC3339Nano),
		"file_name":    doc.FileName,
		"content_type": doc.ContentType,
		"size":         doc.Size,
		"uploaded_at":  doc.UploadedAt.UTC().Format(time.RFC3339Nano),
		"uploaded_by":  doc.UploadedBy,
		"embedded":     len(c.Embedding) > 0,
	}
	if c.Index == 0 {
		payload["document_content"] = doc.Content
	}
	vec := c.Embedding
	if len(vec) == 0 {
		vec = placeholderVector(s.manager.resolvedSize())
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(c.ID),
		Vectors: qdrant.NewVectors(vec...),
		Payload: qdrant.NewValueMap(payload),
	}
}

// placeholderVector is the vector stored for chunks without an embedding.
// One-hot rather than all-zero: a zero vector has no direction under cosine
// distance. The embedded=false filter keeps it out of query results either way.
func placeholderVector(size uint64) []float32 {
	v := make([]float32, size)
	if size > 0 {
		v[0] = 1
	}
	return v
}

// assembleDocument rebuilds a document from its chunk points, ordered by
// chunk index.
func assembleDocument(id string, points []*qdrant.RetrievedPoint) *document.Document {
	doc := &document.Document{ID: id}
	for _, p := range points {
		payload := p.GetPayload()
		var embedding []float32
		if v := p.GetVectors().GetVector(); v != nil && payloadBool(payload, "embedded") {
			embedding = v.GetData()
		}
		doc.Chunks = append(doc.Chunks, chunkFromPayload(p.GetId().GetUuid(), payload, embedding))

		// Document-level attributes are identical on every point; take them
		// from whichever point is seen first, and the text from index 0.
		if doc.FileName == "" {
			doc.FileName = payloadString(payload, "file_name")
			doc.ContentType = payloadString(payload, "content_type")
			doc.Size = payloadInt(payload, "size")
			doc.UploadedBy = payloadString(payload, "uploaded_by")
			doc.UploadedAt = payloadTime(payload, "uploaded_at")
		}
		if content := payloadString(payload, "document_content"); content != "" {
			doc.Content = content
		}
	}
	sort.Slice(doc.Chunks, func(i, j int) bool { return doc.Chunks[i].Index < doc.Chunks[j].Index })
	return doc
}

// chunkFromPayload rebuilds a chunk from a point payload.
func chunkFromPayload(id string, payload map[string]*qdrant.Value, embedding []float32) document.Chunk {
	return document.Chunk{
		ID:         id,
		DocumentID: payloadString(payload, "document_id"),
		Index:      int(payloadInt(payload, "chunk_index")),
		Content:    payloadString(payload, "content"),
		CreatedAt:  payloadTime(payload, "created_at"),
		Embedding:  embedding,
	}
}

// payloadString extracts a string payload field, or "".
func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// payloadBool extracts a boolean payload field. A missing field reads as
// true: only points explicitly written with embedded=false carry a
// placeholder vector.
func payloadBool(payload map[string]*qdrant.Value, key string) bool {
	if v, ok := payload[key]; ok {
		return v.GetBoolValue()
	}
	return true
}

// payloadInt extracts an integer payload field, or 0.
func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

// payloadTime extracts an RFC3339 timestamp payload field, or the zero time.
func payloadTime(payload map[string]*qdrant.Value, key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, payloadString(payload, key))
	if err != nil {
		return time.Time{}
	}
	return t
}

package search

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// fakeStore is a configurable storage.Store for engine tests. Call counts
// let tests assert which paths executed.
type fakeStore struct {
	name   string
	caps   storage.Capabilities
	metric storage.Metric

	docs       []*document.Document
	vectorHits []storage.ScoredChunk
	vectorErr  error
	textHits   []storage.ScoredChunk
	textErr    error
	getAllErr  error

	vectorCalls int
	textCalls   int
	getAllCalls int
}

func (f *fakeStore) Name() string                       { return f.name }
func (f *fakeStore) Capabilities() storage.Capabilities { return f.caps }
func (f *fakeStore) Metric() storage.Metric             { return f.metric }

func (f *fakeStore) Add(ctx context.Context, doc *document.Document) error { return nil }

func (f *fakeStore) GetByID(ctx context.Context, id string) (*document.Document, error) {
	return nil, nil
}

func (f *fakeStore) GetAll(ctx context.Context) ([]*document.Document, error) {
	f.getAllCalls++
	return f.docs, f.getAllErr
}

func (f *fakeStore) Delete(ctx context.Context, id string) (bool, error) { return false, nil }
func (f *fakeStore) Count(ctx context.Context) (int, error)              { return len(f.docs), nil }

func (f *fakeStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	f.vectorCalls++
	return f.vectorHits, f.vectorErr
}

func (f *fakeStore) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	f.textCalls++
	return f.textHits, f.textErr
}

func (f *fakeStore) Close() error { return nil }

// fakeEmbedder returns a fixed vector, or an error when failWith is set.
type fakeEmbedder struct {
	vec      []float32
	failWith error
	calls    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func mkChunk(docID string, index int, content string) document.Chunk {
	c := document.NewChunk(docID, index, content)
	return c
}

func mkDoc(id string, contents ...string) *document.Document {
	d := &document.Document{ID: id, FileName: id + ".txt"}
	for i, c := range contents {
		d.Chunks = append(d.Chunks, mkChunk(id, i, c))
	}
	return d
}

func Test_Search_EmptyQueryReturnsNil(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil, nil, Options{})

	if got := e.Search(t.Context(), "   ", 5); got != nil {
		t.Errorf("expected nil for blank query, got %v", got)
	}
}

func Test_Search_DedupKeepsMaxScore(t *testing.T) {
	t.Parallel()

	// The same (document, chunk index) arrives on both paths: the vector
	// path normalizes raw similarity 0 to 0.5, the keyword path scores a
	// full term overlap at 1.0. The merged result must carry the max.
	shared := mkChunk("doc-1", 0, "alpha beta")
	store := &fakeStore{
		name:       "fake",
		caps:       storage.Capabilities{VectorSearch: true, TextSearch: true},
		metric:     storage.MetricCosineSimilarity,
		vectorHits: []storage.ScoredChunk{{Chunk: shared, Score: 0}},
		textHits:   []storage.ScoredChunk{{Chunk: shared, Score: 0.2}},
	}
	e := NewEngine([]storage.Store{store}, &fakeEmbedder{vec: []float32{1, 0}}, Options{})

	got := e.Search(t.Context(), "alpha beta", 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 deduplicated result, got %d", len(got))
	}
	if got[0].RelevanceScore != 1.0 {
		t.Errorf("expected max score 1.0 kept, got %v", got[0].RelevanceScore)
	}
}

func Test_Search_EmbedderFailureFallsBackToKeyword(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		name:     "fake",
		caps:     storage.Capabilities{VectorSearch: true, TextSearch: true},
		metric:   storage.MetricCosineSimilarity,
		textHits: []storage.ScoredChunk{{Chunk: mkChunk("doc-1", 0, "postgres replication lag"), Score: 0.8}},
	}
	emb := &fakeEmbedder{failWith: errors.New("embedding backend down")}
	e := NewEngine([]storage.Store{store}, emb, Options{})

	got := e.Search(t.Context(), "postgres replication", 5)
	if len(got) != 1 {
		t.Fatalf("expected keyword results despite embedder failure, got %d", len(got))
	}
	if store.vectorCalls != 0 {
		t.Errorf("vector search must be skipped without an embedding, got %d calls", store.vectorCalls)
	}
	if got[0].RelevanceScore != 1.0 {
		t.Errorf("expected full term overlap 1.0, got %v", got[0].RelevanceScore)
	}
}

func Test_Search_NilEmbedderRunsKeywordPath(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		name:     "fake",
		caps:     storage.Capabilities{TextSearch: true},
		textHits: []storage.ScoredChunk{{Chunk: mkChunk("doc-1", 0, "redis cluster failover"), Score: 0.8}},
	}
	e := NewEngine([]storage.Store{store}, nil, Options{})

	got := e.Search(t.Context(), "redis failover", 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 result on the keyword path, got %d", len(got))
	}
}

func Test_Search_DegradesToFullScan(t *testing.T) {
	t.Parallel()

	// Vector-only backend whose search fails: the hybrid pass yields
	// nothing and the engine degrades to the client-side scan.
	store := &fakeStore{
		name:      "fake",
		caps:      storage.Capabilities{VectorSearch: true},
		metric:    storage.MetricCosineSimilarity,
		vectorErr: errors.New("backend unavailable"),
		docs:      []*document.Document{mkDoc("doc-1", "the incident report for tuesday")},
	}
	e := NewEngine([]storage.Store{store}, &fakeEmbedder{vec: []float32{1}}, Options{})

	got := e.Search(t.Context(), "incident report", 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 scan result, got %d", len(got))
	}
	if got[0].RelevanceScore != FallbackScore {
		t.Errorf("scan results carry the neutral score %v, got %v", FallbackScore, got[0].RelevanceScore)
	}
	if store.getAllCalls == 0 {
		t.Error("expected the fallback scan to run GetAll")
	}
}

func Test_Search_EverythingFailsYieldsEmpty(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		name:      "fake",
		caps:      storage.Capabilities{VectorSearch: true, TextSearch: true},
		metric:    storage.MetricCosineSimilarity,
		vectorErr: errors.New("down"),
		textErr:   errors.New("down"),
		getAllErr: errors.New("down"),
	}
	e := NewEngine([]storage.Store{store}, &fakeEmbedder{vec: []float32{1}}, Options{})

	if got := e.Search(t.Context(), "anything at all", 5); len(got) != 0 {
		t.Errorf("expected empty result when every path fails, got %d", len(got))
	}
}

func Test_Search_CacheAbsorbsRepeatQueries(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		name:     "fake",
		caps:     storage.Capabilities{TextSearch: true},
		textHits: []storage.ScoredChunk{{Chunk: mkChunk("doc-1", 0, "observability pipeline design"), Score: 0.8}},
	}
	e := NewEngine([]storage.Store{store}, nil, Options{})

	first := e.Search(t.Context(), "observability pipeline", 5)
	second := e.Search(t.Context(), "  Observability   PIPELINE ", 5)

	if store.textCalls != 1 {
		t.Errorf("expected the normalized repeat to hit the cache, got %d backend calls", store.textCalls)
	}
	if len(first) != len(second) || second[0].Content != first[0].Content {
		t.Errorf("cached result differs: %v vs %v", first, second)
	}

	// A different limit is a different key.
	e.Search(t.Context(), "observability pipeline", 10)
	if store.textCalls != 2 {
		t.Errorf("expected a different limit to miss the cache, got %d backend calls", store.textCalls)
	}
}

func Test_Search_DiversityKeepsOtherDocuments(t *testing.T) {
	t.Parallel()

	// One document dominates the raw scores with five chunks; diversity
	// must still let the weaker document into the breadth.
	hits := []storage.ScoredChunk{
		{Chunk: mkChunk("doc-a", 0, "grafana dashboards one"), Score: 0.9},
		{Chunk: mkChunk("doc-a", 1, "grafana dashboards two"), Score: 0.8},
		{Chunk: mkChunk("doc-a", 2, "grafana dashboards three"), Score: 0.7},
		{Chunk: mkChunk("doc-a", 3, "grafana dashboards four"), Score: 0.6},
		{Chunk: mkChunk("doc-a", 4, "grafana dashboards five"), Score: 0.5},
		{Chunk: mkChunk("doc-b", 0, "grafana alerting"), Score: -0.5},
	}
	store := &fakeStore{
		name:       "fake",
		caps:       storage.Capabilities{VectorSearch: true},
		metric:     storage.MetricCosineSimilarity,
		vectorHits: hits,
	}
	e := NewEngine([]storage.Store{store}, &fakeEmbedder{vec: []float32{1}}, Options{})

	got := e.Search(t.Context(), "grafana dashboards", 2)

	seen := map[string]bool{}
	for _, c := range got {
		seen[c.DocumentID] = true
	}
	if !seen["doc-b"] {
		t.Error("expected the diversity stage to keep doc-b in the breadth")
	}

	// Breadth is limit * factor, not the raw candidate count.
	if want := 2 * DefaultBreadthFactor; len(got) > want {
		t.Errorf("breadth exceeded: got %d, cap %d", len(got), want)
	}

	// Scores must be sorted descending.
	for i := 1; i < len(got); i++ {
		if got[i].RelevanceScore > got[i-1].RelevanceScore {
			t.Fatalf("results not sorted: %v before %v", got[i-1].RelevanceScore, got[i].RelevanceScore)
		}
	}
}

func Test_Search_PerDocumentCapIsMinTopPerDocumentLimit(t *testing.T) {
	t.Parallel()

	// Ten chunks of doc-a outscore everything, yet the diversity stage may
	// admit at most min(TopPerDocument, limit) = min(3, 4) = 3 of them.
	// BreadthFactor 1 removes the fill stage's extra slots, so the cap is
	// visible directly in the returned set.
	var hits []storage.ScoredChunk
	for i := 0; i < 10; i++ {
		hits = append(hits, storage.ScoredChunk{
			Chunk: mkChunk("doc-a", i, "vault unseal runbook"),
			Score: 0.9 - float64(i)*0.05,
		})
	}
	hits = append(hits,
		storage.ScoredChunk{Chunk: mkChunk("doc-b", 0, "vault policies"), Score: -0.4},
		storage.ScoredChunk{Chunk: mkChunk("doc-c", 0, "vault audit log"), Score: -0.5},
	)
	store := &fakeStore{
		name:       "fake",
		caps:       storage.Capabilities{VectorSearch: true},
		metric:     storage.MetricCosineSimilarity,
		vectorHits: hits,
	}
	e := NewEngine([]storage.Store{store}, &fakeEmbedder{vec: []float32{1}}, Options{BreadthFactor: 1})

	got := e.Search(t.Context(), "vault unseal", 4)

	perDoc := map[string]int{}
	for _, c := range got {
		perDoc[c.DocumentID]++
	}
	if perDoc["doc-a"] != 3 {
		t.Errorf("expected exactly 3 chunks of the dominant document, got %d (full: %v)", perDoc["doc-a"], perDoc)
	}
	if len(got) != 4 {
		t.Errorf("expected the 4 requested results, got %d", len(got))
	}
	if perDoc["doc-b"] != 1 {
		t.Errorf("expected the next-best document to fill the fourth slot, got %v", perDoc)
	}
}

func Test_Search_KeywordFloorDropsWeakOverlap(t *testing.T) {
	t.Parallel()

	// Nine of the ten query terms miss: overlap 0.1 sits at the floor and
	// the hit is dropped rather than surfaced as noise.
	store := &fakeStore{
		name:     "fake",
		caps:     storage.Capabilities{TextSearch: true},
		textHits: []storage.ScoredChunk{{Chunk: mkChunk("doc-1", 0, "alpha"), Score: 0.9}},
	}
	e := NewEngine([]storage.Store{store}, nil, Options{})

	query := "alpha bravo charlie delta echo foxtrot golf hotel india juliett"
	got := e.Search(t.Context(), query, 5)
	if len(got) != 0 {
		t.Errorf("expected the floor to drop the hit, got %d results", len(got))
	}
}

func Test_Search_DefaultLimitApplied(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		name:     "fake",
		caps:     storage.Capabilities{TextSearch: true},
		textHits: []storage.ScoredChunk{{Chunk: mkChunk("doc-1", 0, "kafka consumer groups"), Score: 0.8}},
	}
	e := NewEngine([]storage.Store{store}, nil, Options{})

	if got := e.Search(t.Context(), "kafka consumer", 0); len(got) != 1 {
		t.Fatalf("limit <= 0 must fall back to the default, got %d results", len(got))
	}
}

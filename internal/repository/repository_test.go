package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/search"
	"github.com/54b3r/ragstore-go/internal/storage"
	"github.com/54b3r/ragstore-go/internal/storage/memstore"
)

// stubEmbedder returns a deterministic 384-dim vector per text.
type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, 384)
		vec[len(texts[i])%384] = 1
		out[i] = vec
	}
	return out, nil
}

func newRepo(t *testing.T) (*Repository, *stubEmbedder) {
	t.Helper()
	emb := &stubEmbedder{}
	repo := New(memstore.New(), emb, nil, search.Options{})
	t.Cleanup(func() { _ = repo.Close() })
	return repo, emb
}

func TestIngest_RoundTrip(t *testing.T) {
	t.Parallel()
	repo, emb := newRepo(t)
	ctx := t.Context()

	doc, err := repo.Ingest(ctx, "guide.md", "text/markdown", "alice", "how to configure the scheduler")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.ID == "" || len(doc.Chunks) == 0 {
		t.Fatalf("incomplete document: %+v", doc)
	}
	if emb.calls == 0 {
		t.Error("expected embeddings to be resolved during ingest")
	}

	got, err := repo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.FileName != "guide.md" {
		t.Fatalf("unexpected document: %+v", got)
	}
	if len(got.Chunks[0].Embedding) != 384 {
		t.Errorf("stored chunk missing embedding: %d dims", len(got.Chunks[0].Embedding))
	}
}

func TestAdd_ValidatesBeforeEmbedding(t *testing.T) {
	t.Parallel()
	repo, emb := newRepo(t)

	bad := document.New("a.txt", "text/plain", "")
	// No chunks: validation must reject before any embedding work.
	err := repo.Add(t.Context(), bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *document.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for an invalid document", emb.calls)
	}
}

func TestIngest_DuplicateLeavesCountUnchanged(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := t.Context()

	doc, err := repo.Ingest(ctx, "a.txt", "text/plain", "", "some content")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Re-adding the same document must conflict, not duplicate.
	err = repo.Add(ctx, doc)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	count, _ := repo.Count(ctx)
	if count != 1 {
		t.Errorf("count changed on duplicate: %d", count)
	}
}

func TestDelete_AbsentReturnsFalse(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	deleted, err := repo.Delete(t.Context(), "missing")
	if err != nil || deleted {
		t.Fatalf("got %v, %v", deleted, err)
	}
}

func TestSearch_FindsIngestedContent(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := t.Context()

	if _, err := repo.Ingest(ctx, "a.txt", "text/plain", "", "the postgres connection pool settings"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := repo.Ingest(ctx, "b.txt", "text/plain", "", "notes about something else entirely"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	results := repo.Search(ctx, "postgres connection pool", 5)
	if len(results) == 0 {
		t.Fatal("expected results for matching content")
	}
	if results[0].Content != "the postgres connection pool settings" {
		t.Errorf("unexpected top result: %q", results[0].Content)
	}
	if results[0].RelevanceScore <= 0 {
		t.Errorf("expected positive relevance, got %v", results[0].RelevanceScore)
	}
}

func TestSearch_NeverErrorsOnEmptyStore(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	if got := repo.Search(t.Context(), "anything", 5); len(got) != 0 {
		t.Errorf("expected empty results, got %d", len(got))
	}
}

func TestBackend_VectorCapable(t *testing.T) {
	t.Parallel()

	vector := []Backend{BackendMemory, BackendRedis, BackendQdrant, BackendPostgres}
	for _, b := range vector {
		if !b.VectorCapable() {
			t.Errorf("%s should be vector capable", b)
		}
	}
	textOnly := []Backend{BackendFilesystem, BackendSQLite}
	for _, b := range textOnly {
		if b.VectorCapable() {
			t.Errorf("%s should not be vector capable", b)
		}
	}
}

func TestBackendFromEnv_Default(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	if got := BackendFromEnv(); got != BackendMemory {
		t.Errorf("default backend: got %s", got)
	}

	t.Setenv("STORAGE_BACKEND", "QDRANT")
	if got := BackendFromEnv(); got != BackendQdrant {
		t.Errorf("case-insensitive backend: got %s", got)
	}
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := t.Context()

	// Several distinct documents all matching the query, so the engine's
	// wider candidate set exceeds the requested count.
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		if _, err := repo.Ingest(ctx, name, "text/plain", "", "deploy checklist for "+name); err != nil {
			t.Fatalf("Ingest %s: %v", name, err)
		}
	}

	got := repo.Search(ctx, "deploy checklist", 1)
	if len(got) != 1 {
		t.Fatalf("want exactly 1 result, got %d", len(got))
	}
	if got[0].RelevanceScore <= 0 {
		t.Errorf("top result has no score: %+v", got[0])
	}
}

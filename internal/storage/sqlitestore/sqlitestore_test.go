package sqlitestore

import (
	"errors"
	"testing"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDoc(t *testing.T, fileName string, contents ...string) *document.Document {
	t.Helper()
	d := document.New(fileName, "text/plain", "test")
	for i, c := range contents {
		d.Content += c
		d.Chunks = append(d.Chunks, document.NewChunk(d.ID, i, c))
	}
	d.Size = int64(len(d.Content))
	return d
}

func TestAdd_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	doc := newDoc(t, "a.txt", "first chunk", "second chunk")
	doc.Chunks[1].Embedding = make([]float32, 384)
	doc.Chunks[1].Embedding[7] = -0.5

	if err := s.Add(ctx, doc); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("document not found after Add")
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got.Chunks))
	}
	if got.Chunks[0].Index != 0 || got.Chunks[1].Index != 1 {
		t.Errorf("chunks out of order: %d, %d", got.Chunks[0].Index, got.Chunks[1].Index)
	}
	if got.Chunks[1].Embedding[7] != -0.5 {
		t.Errorf("embedding not preserved: %v", got.Chunks[1].Embedding[7])
	}
}

func TestAdd_DuplicateIsRejected(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	doc := newDoc(t, "a.txt", "content")
	if err := s.Add(ctx, doc); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := s.Add(ctx, doc); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	count, _ := s.Count(ctx)
	if count != 1 {
		t.Errorf("duplicate Add changed count: %d", count)
	}
}

func TestAdd_InvalidDocumentRollsBack(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	doc := newDoc(t, "a.txt", "ok chunk")
	doc.Chunks[0].Content = "" // violates the content invariant
	if err := s.Add(ctx, doc); err == nil {
		t.Fatal("expected validation error")
	}

	count, _ := s.Count(ctx)
	if count != 0 {
		t.Errorf("failed Add left partial state: count=%d", count)
	}
}

func TestDelete_CascadesToChunks(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	doc := newDoc(t, "a.txt", "one", "two", "three")
	if err := s.Add(ctx, doc); err != nil {
		t.Fatalf("Add: %v", err)
	}

	deleted, err := s.Delete(ctx, doc.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete: got %v, %v", deleted, err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if n != 0 {
		t.Errorf("expected cascade delete of chunks, %d remain", n)
	}
}

func TestDelete_AbsentReturnsFalse(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	deleted, err := s.Delete(t.Context(), "no-such-id")
	if err != nil || deleted {
		t.Fatalf("got %v, %v", deleted, err)
	}
}

func TestGetByID_AbsentReturnsNilNil(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	got, err := s.GetByID(t.Context(), "no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSearchText_EscapesLikeWildcards(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	if err := s.Add(ctx, newDoc(t, "a.txt", "contains a literal % sign")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, newDoc(t, "b.txt", "nothing special here")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := s.SearchText(ctx, "literal %", 10)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected the %% to match literally, got %d hits", len(hits))
	}
}

func TestSearchText_LimitApplied(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	doc := newDoc(t, "a.txt", "match one", "match two", "match three")
	if err := s.Add(ctx, doc); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := s.SearchText(ctx, "match", 2)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected limit 2 applied, got %d", len(hits))
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	if err := s.Ping(t.Context()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

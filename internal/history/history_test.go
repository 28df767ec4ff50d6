package history

import (
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	if err := s.Append(ctx, "sess-1", RoleUser, "first query"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "sess-1", RoleAssistant, "first result"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := s.Recent(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleUser || entries[0].Content != "first query" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Role != RoleAssistant {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestRecent_TailOrderedOldestFirst(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		content := string(rune('a' + i))
		if err := s.Append(ctx, "sess-1", RoleUser, content); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, err := s.Recent(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected the 2-entry tail, got %d", len(entries))
	}
	if entries[0].Content != "d" || entries[1].Content != "e" {
		t.Errorf("tail must replay oldest-first: %q, %q", entries[0].Content, entries[1].Content)
	}
}

func TestRecent_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	if err := s.Append(ctx, "sess-1", RoleUser, "mine"); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "sess-2", RoleUser, "theirs"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Recent(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "mine" {
		t.Errorf("session leakage: %+v", entries)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := t.Context()

	if err := s.Append(ctx, "sess-1", RoleUser, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "sess-1", RoleAssistant, "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "sess-2", RoleUser, "kept"); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Clear(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	other, err := s.Recent(ctx, "sess-2", 10)
	if err != nil || len(other) != 1 {
		t.Errorf("other session affected: %v, %v", other, err)
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append(t.Context(), "sess-1", RoleUser, "durable"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	entries, err := s2.Recent(t.Context(), "sess-1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "durable" {
		t.Errorf("entry not persisted: %+v", entries)
	}
}

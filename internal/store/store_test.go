package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/docqa-go/internal/ingestion"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecentExchanges(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		ex := Exchange{DocumentID: "doc-1", Question: q, Answer: "a-" + q, DurationMS: 12, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.RecordExchange(ctx, ex); err != nil {
			t.Fatalf("record %s: %v", q, err)
		}
	}

	got, err := s.RecentExchanges(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 exchanges, got %d", len(got))
	}
	for i, want := range []string{"third", "second", "first"} {
		if got[i].Question != want {
			t.Errorf("exchange[%d]: want %q, got %q", i, want, got[i].Question)
		}
	}
	if got[0].Answer != "a-third" || got[0].DocumentID != "doc-1" || got[0].DurationMS != 12 {
		t.Errorf("exchange fields not round-tripped: %+v", got[0])
	}
	if !got[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[2].CreatedAt, base)
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.RecordExchange(ctx, Exchange{Question: "q"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := s.RecentExchanges(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("want 4 exchanges, got %d", len(got))
	}
}

func Test_Store_ErrorExchange(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordExchange(ctx, Exchange{Question: "q", Error: "generation failed"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.RecentExchanges(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if got[0].Error != "generation failed" || got[0].Answer != "" {
		t.Errorf("exchange = %+v", got[0])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should default to now")
	}
}

func Test_Store_EmptyReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	got, err := s.RecentExchanges(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want 0 exchanges, got %d", len(got))
	}
}

func Test_Store_Documents(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	res := &ingestion.Result{DocumentID: "doc-1", Name: "manual.pdf", Location: "file:///tmp/manual.pdf", ChunkCount: 4, Bytes: 2048}
	if err := s.RecordDocument(ctx, res); err != nil {
		t.Fatalf("record document: %v", err)
	}
	// Recording the same id again replaces the row.
	res.ChunkCount = 5
	if err := s.RecordDocument(ctx, res); err != nil {
		t.Fatalf("re-record document: %v", err)
	}

	docs, err := s.RecentDocuments(ctx, 10)
	if err != nil {
		t.Fatalf("recent documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 document, got %d", len(docs))
	}
	if docs[0].Name != "manual.pdf" || docs[0].ChunkCount != 5 || docs[0].Bytes != 2048 {
		t.Errorf("document = %+v", docs[0])
	}
}

func Test_Store_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.RecordExchange(ctx, Exchange{Question: "persist me"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	if err := s2.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	got, err := s2.RecentExchanges(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].Question != "persist me" {
		t.Errorf("got %+v after reopen", got)
	}
}

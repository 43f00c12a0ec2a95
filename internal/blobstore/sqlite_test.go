package blobstore

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/db"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d)
}

func TestPut_Dedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	data := []byte("%PDF-1.4 quarterly report")

	fp1, err := s.Put(ctx, data, "q3.pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	fp2, err := s.Put(ctx, data, "renamed.pdf")
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if fp1 != fp2 || fp1 != fingerprint.Of(data) {
		t.Fatalf("fingerprints differ: %s %s", fp1, fp2)
	}

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(docs))
	}
	if docs[0].Filename != "q3.pdf" {
		t.Errorf("filename = %q, want first upload's name", docs[0].Filename)
	}
	if docs[0].Data != nil {
		t.Error("List should not load document data")
	}
}

func TestPut_ConcurrentIdentical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	data := []byte("same bytes")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Put(ctx, data, "a.pdf"); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	docs, _ := s.List(ctx)
	if len(docs) != 1 {
		t.Errorf("expected 1 document after concurrent puts, got %d", len(docs))
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return created }

	data := []byte("document body")
	fp, _ := s.Put(ctx, data, "body.pdf")

	doc, err := s.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc == nil {
		t.Fatal("expected document")
	}
	if !bytes.Equal(doc.Data, data) {
		t.Errorf("data = %q", doc.Data)
	}
	if doc.Size != int64(len(data)) || doc.Filename != "body.pdf" {
		t.Errorf("unexpected document %+v", doc)
	}
	if !doc.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", doc.CreatedAt, created)
	}

	missing, err := s.Get(ctx, fingerprint.Of([]byte("other")))
	if err != nil || missing != nil {
		t.Errorf("Get missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fp, _ := s.Put(ctx, []byte("x"), "x.pdf")

	if ok, err := s.Exists(ctx, fp); err != nil || !ok {
		t.Errorf("Exists(stored) = %v, %v", ok, err)
	}
	if ok, err := s.Exists(ctx, fingerprint.Of([]byte("y"))); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.pdf", "mid.pdf", "new.pdf"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		if _, err := s.Put(ctx, []byte(name), name); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"new.pdf", "mid.pdf", "old.pdf"}
	for i, d := range docs {
		if d.Filename != want[i] {
			t.Errorf("docs[%d] = %q, want %q", i, d.Filename, want[i])
		}
	}
}

package rag

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/ziadkadry99/pdf-inquiry/internal/answer"
	"github.com/ziadkadry99/pdf-inquiry/internal/blobstore"
	"github.com/ziadkadry99/pdf-inquiry/internal/conversation"
	"github.com/ziadkadry99/pdf-inquiry/internal/db"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/index"
	"github.com/ziadkadry99/pdf-inquiry/internal/indexcache"
	"github.com/ziadkadry99/pdf-inquiry/internal/llm"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

// textSegmenter treats the document bytes as text with pages separated by
// form feeds, one passage per page.
type textSegmenter struct {
	mu    sync.Mutex
	calls int
}

func (s *textSegmenter) Segment(_ context.Context, data []byte) ([]segment.Passage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, &segment.ExtractionError{Reason: "not a PDF"}
	}
	var passages []segment.Passage
	for i, page := range strings.Split(strings.TrimPrefix(string(data), "%PDF"), "\f") {
		passages = append(passages, segment.Passage{Text: page, Page: i + 1, Index: i})
	}
	return passages, nil
}

func (s *textSegmenter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// letterEmbedder embeds text as normalized lowercase letter counts plus a
// constant component.
type letterEmbedder struct {
	err error
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 27)
		vec[0] = 0.1
		for _, ch := range strings.ToLower(text) {
			if ch >= 'a' && ch <= 'z' {
				vec[1+ch-'a']++
			}
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *letterEmbedder) Dimensions() int { return 27 }
func (e *letterEmbedder) Name() string    { return "letters" }

type fakeProvider struct {
	mu    sync.Mutex
	calls []llm.CompletionRequest
	reply string
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply}, nil
}

func (f *fakeProvider) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Messages[len(c.Messages)-1].Content)
	}
	return out
}

type fixture struct {
	svc       *Service
	segmenter *textSegmenter
	embedder  *letterEmbedder
	provider  *fakeProvider
	blobs     *blobstore.SQLiteStore
	convs     *conversation.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	f := &fixture{
		segmenter: &textSegmenter{},
		embedder:  &letterEmbedder{},
		provider:  &fakeProvider{reply: "Revenue is rising."},
		blobs:     blobstore.NewSQLiteStore(d),
		convs:     conversation.NewSQLiteStore(d),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc, err = New(Config{
		Segmenter:     f.segmenter,
		Builder:       index.NewBuilder(f.embedder),
		Cache:         indexcache.New(),
		Blobs:         f.blobs,
		Conversations: f.convs,
		Composer:      answer.New(f.provider, answer.Options{Model: "test"}, logger),
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestAskRevenueTrends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := []byte("%PDFRevenue trends.")

	res, err := f.svc.Ingest(ctx, data, "h1.pdf")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Fingerprint != fingerprint.Of(data) || res.Passages != 1 || res.Cached {
		t.Fatalf("Ingest = %+v", res)
	}

	reply, err := f.svc.Ask(ctx, "alice", res.Fingerprint, "What are the trends?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Answer != "Revenue is rising." {
		t.Errorf("answer = %q", reply.Answer)
	}
	if len(reply.Sources) != 1 || reply.Sources[0].Passage.Text != "Revenue trends." {
		t.Errorf("sources = %+v", reply.Sources)
	}

	prompts := f.provider.prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "Revenue trends.") || !strings.Contains(prompts[0], "What are the trends?") {
		t.Fatalf("prompts = %q", prompts)
	}

	turns, err := f.convs.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(turns) != 1 || turns[0].Question != "What are the trends?" || turns[0].Answer != "Revenue is rising." {
		t.Fatalf("turns = %+v", turns)
	}
	meta, err := f.convs.Meta(ctx, "alice", res.Fingerprint)
	if err != nil || meta == nil || meta.Name != "What are the trends?" {
		t.Fatalf("meta = %+v, %v", meta, err)
	}
}

func TestAskWithoutIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, "alice", fingerprint.Of([]byte("never uploaded")), "anything?")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Ask = %v, want ErrNoDocument", err)
	}
	if err.Error() != "⚠️ No PDF loaded or vector store missing." {
		t.Errorf("message = %q", err.Error())
	}
	if len(f.provider.prompts()) != 0 {
		t.Error("composer was called without an index")
	}
	turns, _ := f.convs.List(ctx, "alice")
	if len(turns) != 0 {
		t.Errorf("recorded %d turns", len(turns))
	}

	sess := NewSession("alice")
	if _, err := f.svc.AskSession(ctx, sess, "anything?"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("AskSession = %v, want ErrNoDocument", err)
	}
	if _, err := f.svc.SummarizeSession(ctx, sess); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("SummarizeSession = %v, want ErrNoDocument", err)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Ask(context.Background(), "alice", fingerprint.Of(nil), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Ask = %v, want ErrEmptyQuestion", err)
	}
}

func TestAskServiceErrorBecomesAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Ingest(ctx, []byte("%PDFRevenue trends."), "a.pdf")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	f.provider.err = &llm.StatusError{Provider: "fake", StatusCode: 401, Body: "unauthorized"}

	reply, err := f.svc.Ask(ctx, "alice", res.Fingerprint, "What?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.HasPrefix(reply.Answer, "⚠️ Error connecting to API: ") {
		t.Errorf("answer = %q", reply.Answer)
	}
	if reply.Turn == nil || reply.Turn.Answer != reply.Answer {
		t.Errorf("error answer was not recorded: %+v", reply.Turn)
	}
}

func TestIngestCachedNotRebuilt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := []byte("%PDFpage one\fpage two")

	if _, err := f.svc.Ingest(ctx, data, "first.pdf"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	res, err := f.svc.Ingest(ctx, data, "second.pdf")
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !res.Cached {
		t.Error("second ingest was not served from cache")
	}
	if n := f.segmenter.count(); n != 1 {
		t.Errorf("segmented %d times, want 1", n)
	}
	docs, _ := f.blobs.List(ctx)
	if len(docs) != 1 || docs[0].Filename != "first.pdf" {
		t.Errorf("documents = %+v", docs)
	}
}

// flakyBlobs fails its first Put.
type flakyBlobs struct {
	blobstore.Store
	mu     sync.Mutex
	failed bool
}

func (b *flakyBlobs) Put(ctx context.Context, data []byte, filename string) (fingerprint.Fingerprint, error) {
	b.mu.Lock()
	first := !b.failed
	b.failed = true
	b.mu.Unlock()
	if first {
		return "", errors.New("disk full")
	}
	return b.Store.Put(ctx, data, filename)
}

func TestIngestRetryStoresBlobAfterFailedPut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blobs := &flakyBlobs{Store: f.blobs}
	f.svc.blobs = blobs
	data := []byte("%PDFRevenue trends.")

	if _, err := f.svc.Ingest(ctx, data, "a.pdf"); err == nil {
		t.Fatal("expected the failed Put to be reported")
	}
	res, err := f.svc.Ingest(ctx, data, "a.pdf")
	if err != nil {
		t.Fatalf("retry Ingest: %v", err)
	}
	if !res.Cached {
		t.Error("retry should reuse the cached index")
	}
	ok, err := f.blobs.Exists(ctx, res.Fingerprint)
	if err != nil || !ok {
		t.Errorf("blob stored after retry = %v, %v; want true", ok, err)
	}
	if n := f.segmenter.count(); n != 1 {
		t.Errorf("segmented %d times, want 1", n)
	}
}

func TestIngestErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, []byte("plain text"), "notes.txt")
	var xerr *segment.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("Ingest = %v, want ExtractionError", err)
	}

	f.embedder.err = errors.New("embedding backend down")
	_, err = f.svc.Ingest(ctx, []byte("%PDFtext"), "a.pdf")
	var eerr *index.EmbeddingError
	if !errors.As(err, &eerr) {
		t.Fatalf("Ingest = %v, want EmbeddingError", err)
	}
	if f.svc.Cache().Len() != 0 {
		t.Error("failed build was cached")
	}
	docs, _ := f.blobs.List(ctx)
	if len(docs) != 0 {
		t.Errorf("stored %d documents after failures", len(docs))
	}
}

func TestUploadAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := NewSession("alice")

	results := f.svc.UploadAll(ctx, sess, []Upload{
		{Filename: "a.pdf", Data: []byte("%PDFalpha")},
		{Filename: "bad.pdf", Data: []byte("garbage")},
		{Filename: "b.pdf", Data: []byte("%PDFbeta")},
	})
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("good files failed: %+v", results)
	}
	if !segment.IsExtractionError(results[1].Err) {
		t.Errorf("bad.pdf err = %v", results[1].Err)
	}
	if len(sess.Files()) != 2 {
		t.Errorf("session files = %+v", sess.Files())
	}
	cur, ok := sess.Current()
	if !ok || cur != results[0].Fingerprint {
		t.Errorf("current = %s, want first upload", cur)
	}

	again := f.svc.UploadAll(ctx, sess, []Upload{{Filename: "a.pdf", Data: []byte("%PDFchanged")}})
	if !again[0].Skipped || again[0].Fingerprint != results[0].Fingerprint {
		t.Errorf("re-upload = %+v, want skipped", again[0])
	}
	if n := f.segmenter.count(); n != 3 {
		t.Errorf("segmented %d times, want 3", n)
	}

	if !sess.SelectFile("b.pdf") {
		t.Fatal("SelectFile(b.pdf) = false")
	}
	reply, err := f.svc.AskSession(ctx, sess, "beta?")
	if err != nil {
		t.Fatalf("AskSession: %v", err)
	}
	if reply.Turn.Fingerprint != results[2].Fingerprint {
		t.Errorf("turn recorded against %s", reply.Turn.Fingerprint)
	}
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = "A short summary."
	res, err := f.svc.Ingest(ctx, []byte("%PDFfirst page\fsecond page"), "a.pdf")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	reply, err := f.svc.Summarize(ctx, "alice", res.Fingerprint)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if reply.Answer != "A short summary." {
		t.Errorf("answer = %q", reply.Answer)
	}
	prompt := f.provider.prompts()[0]
	if strings.Index(prompt, "first page") > strings.Index(prompt, "second page") {
		t.Errorf("summary text not in document order: %q", prompt)
	}
	if reply.Turn == nil || reply.Turn.Question != SummaryQuestion {
		t.Errorf("turn = %+v", reply.Turn)
	}
}

func TestConversationsAndRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h1, _ := f.svc.Ingest(ctx, []byte("%PDFone"), "one.pdf")
	h2, _ := f.svc.Ingest(ctx, []byte("%PDFtwo"), "two.pdf")

	if _, err := f.svc.Ask(ctx, "alice", h1.Fingerprint, "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Ask(ctx, "alice", h2.Fingerprint, "second question"); err != nil {
		t.Fatal(err)
	}

	ok, err := f.svc.Rename(ctx, "alice", h2.Fingerprint, "  Q3 Report  ")
	if err != nil || !ok {
		t.Fatalf("Rename = %v, %v", ok, err)
	}
	if _, err := f.svc.Rename(ctx, "alice", h2.Fingerprint, " "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Rename blank = %v, want ErrEmptyName", err)
	}

	convs, err := f.svc.Conversations(ctx, "alice")
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations", len(convs))
	}
	if convs[0].Fingerprint != h2.Fingerprint || convs[0].Name != "Q3 Report" {
		t.Errorf("first conversation = %+v", convs[0])
	}
	if convs[1].Name != "first question" {
		t.Errorf("second conversation = %+v", convs[1])
	}
}

func TestOpenConversationRebuildsIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := []byte("%PDFRevenue trends.")
	res, _ := f.svc.Ingest(ctx, data, "h1.pdf")
	if _, err := f.svc.Ask(ctx, "alice", res.Fingerprint, "What are the trends?"); err != nil {
		t.Fatal(err)
	}

	// A fresh service shares the stores but starts with an empty cache.
	fresh, err := New(Config{
		Segmenter:     f.segmenter,
		Builder:       index.NewBuilder(f.embedder),
		Blobs:         f.blobs,
		Conversations: f.convs,
		Composer:      answer.New(f.provider, answer.Options{}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	sess := NewSession("alice")
	view, err := fresh.OpenConversation(ctx, sess, res.Fingerprint)
	if err != nil {
		t.Fatalf("OpenConversation: %v", err)
	}
	if !view.Loaded || len(view.Turns) != 1 || view.Name != "What are the trends?" {
		t.Fatalf("view = %+v", view)
	}
	if cur, _ := sess.Current(); cur != res.Fingerprint {
		t.Errorf("session current = %s", cur)
	}
	if _, err := fresh.AskSession(ctx, sess, "again?"); err != nil {
		t.Fatalf("AskSession after reopen: %v", err)
	}

	missing := fingerprint.Of([]byte("gone"))
	if _, err := f.convs.Record(ctx, "alice", "orphan", "x", missing); err != nil {
		t.Fatal(err)
	}
	view, err = fresh.OpenConversation(ctx, NewSession("alice"), missing)
	if err != nil {
		t.Fatalf("OpenConversation missing: %v", err)
	}
	if view.Loaded || len(view.Turns) != 1 {
		t.Errorf("view = %+v", view)
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, _ := f.svc.Ingest(ctx, []byte("%PDFRevenue trends."), "h1.pdf")
	if _, err := f.svc.Ask(ctx, "alice", res.Fingerprint, "What are the trends?"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	name, err := f.svc.Export(ctx, &buf, "alice", res.Fingerprint, FormatText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(name, "chat_export_") || !strings.HasSuffix(name, ".txt") {
		t.Errorf("name = %q", name)
	}
	out := buf.String()
	for _, want := range []string{"Chat Conversation Export", "What are the trends?", "Revenue is rising."} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}

	buf.Reset()
	if _, err := f.svc.Export(ctx, &buf, "alice", res.Fingerprint, FormatXLSX); err != nil {
		t.Fatalf("Export xlsx: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("xlsx export is not a zip archive")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"XLSX", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

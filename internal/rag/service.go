// Package rag answers questions about uploaded PDF documents. It ties the
// segmenter, index cache, document store, answer composer and conversation
// store together behind the operations the server and CLI expose.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/answer"
	"github.com/ziadkadry99/pdf-inquiry/internal/blobstore"
	"github.com/ziadkadry99/pdf-inquiry/internal/conversation"
	"github.com/ziadkadry99/pdf-inquiry/internal/export"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/index"
	"github.com/ziadkadry99/pdf-inquiry/internal/indexcache"
	"github.com/ziadkadry99/pdf-inquiry/internal/retrieval"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

// SummaryQuestion is the question recorded alongside a generated summary.
const SummaryQuestion = "[System] Generate PDF summary"

var (
	// ErrNoDocument means no indexed document is selected. Its text is the
	// message shown to the user in place of an answer.
	ErrNoDocument = errors.New("⚠️ No PDF loaded or vector store missing.")
	// ErrDocumentNotFound means the blob store has no document for a
	// fingerprint, so its index cannot be rebuilt.
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrEmptyName        = errors.New("conversation name is empty")
)

// Segmenter turns raw document bytes into passages.
type Segmenter interface {
	Segment(ctx context.Context, data []byte) ([]segment.Passage, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Segmenter     Segmenter
	Builder       *index.Builder
	Cache         *indexcache.Cache
	Blobs         blobstore.Store
	Conversations conversation.Store
	Composer      *answer.Composer
	// TopK is the number of passages retrieved per question.
	TopK   int
	Sample retrieval.SampleOptions
	Export export.Options
	Logger *slog.Logger
}

// Service implements ingest, question answering, summaries and
// conversation management.
type Service struct {
	segmenter Segmenter
	builder   *index.Builder
	cache     *indexcache.Cache
	blobs     blobstore.Store
	convs     conversation.Store
	composer  *answer.Composer
	topK      int
	sample    retrieval.SampleOptions
	export    export.Options
	logger    *slog.Logger
	now       func() time.Time
}

// New validates cfg and creates a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Segmenter == nil:
		return nil, fmt.Errorf("rag: segmenter is required")
	case cfg.Builder == nil:
		return nil, fmt.Errorf("rag: index builder is required")
	case cfg.Blobs == nil:
		return nil, fmt.Errorf("rag: blob store is required")
	case cfg.Conversations == nil:
		return nil, fmt.Errorf("rag: conversation store is required")
	case cfg.Composer == nil:
		return nil, fmt.Errorf("rag: answer composer is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = indexcache.New()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		segmenter: cfg.Segmenter,
		builder:   cfg.Builder,
		cache:     cfg.Cache,
		blobs:     cfg.Blobs,
		convs:     cfg.Conversations,
		composer:  cfg.Composer,
		topK:      cfg.TopK,
		sample:    cfg.Sample,
		export:    cfg.Export,
		logger:    cfg.Logger,
		now:       time.Now,
	}, nil
}

// Cache returns the index cache shared by all sessions.
func (s *Service) Cache() *indexcache.Cache { return s.cache }

// Upload is one file of an upload batch.
type Upload struct {
	Filename string
	Data     []byte
}

// IngestResult describes the outcome for one uploaded file.
type IngestResult struct {
	Filename    string                  `json:"filename"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint,omitempty"`
	Passages    int                     `json:"passages"`
	// Cached is set when the document was already indexed.
	Cached bool `json:"cached"`
	// Skipped is set when the session already had a file of this name.
	Skipped bool  `json:"skipped"`
	Err     error `json:"-"`
}

// Ingest indexes data and stores it. A document whose fingerprint is
// already cached is not re-indexed. The blob is put on every call; Put is
// put-if-absent, so a store that failed earlier is repaired by a retry.
func (s *Service) Ingest(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	fp := fingerprint.Of(data)
	ix, cached, err := s.cache.GetOrBuild(ctx, fp, func(ctx context.Context) (*index.Index, error) {
		return s.build(ctx, fp, data)
	})
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", filename, err)
	}
	if _, err := s.blobs.Put(ctx, data, filename); err != nil {
		return nil, fmt.Errorf("storing %s: %w", filename, err)
	}
	if !cached {
		s.logger.Info("document indexed", "filename", filename, "fingerprint", fp.Short(), "passages", ix.Len())
	}
	return &IngestResult{Filename: filename, Fingerprint: fp, Passages: ix.Len(), Cached: cached}, nil
}

func (s *Service) build(ctx context.Context, fp fingerprint.Fingerprint, data []byte) (*index.Index, error) {
	passages, err := s.segmenter.Segment(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, fp, passages)
}

// UploadAll ingests each file independently into sess. Files whose name is
// already registered in the session are skipped; a failure on one file does
// not affect the others, and is reported in its result.
func (s *Service) UploadAll(ctx context.Context, sess *Session, files []Upload) []IngestResult {
	results := make([]IngestResult, 0, len(files))
	for _, f := range files {
		if fp, ok := sess.Lookup(f.Filename); ok {
			results = append(results, IngestResult{Filename: f.Filename, Fingerprint: fp, Skipped: true})
			continue
		}
		res, err := s.Ingest(ctx, f.Data, f.Filename)
		if err != nil {
			s.logger.Warn("upload failed", "filename", f.Filename, "error", err)
			results = append(results, IngestResult{Filename: f.Filename, Err: err})
			continue
		}
		sess.Register(f.Filename, res.Fingerprint)
		results = append(results, *res)
	}
	return results
}

// Open returns the index for fp, rebuilding it from the blob store when it
// is not cached.
func (s *Service) Open(ctx context.Context, fp fingerprint.Fingerprint) (*index.Index, error) {
	ix, cached, err := s.cache.GetOrBuild(ctx, fp, func(ctx context.Context) (*index.Index, error) {
		doc, err := s.blobs.Get(ctx, fp)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, ErrDocumentNotFound
		}
		return s.build(ctx, fp, doc.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("opening document %s: %w", fp.Short(), err)
	}
	if !cached {
		s.logger.Info("document reloaded", "fingerprint", fp.Short(), "passages", ix.Len())
	}
	return ix, nil
}

// Reply is the answer to a question or summary request.
type Reply struct {
	Answer  string             `json:"answer"`
	Sources []index.Result     `json:"sources,omitempty"`
	Turn    *conversation.Turn `json:"turn,omitempty"`
}

// Ask answers question about the cached document fp and records the turn
// under username. It returns ErrNoDocument without calling the model when
// fp is not indexed. Model failures become the answer text rather than an
// error.
func (s *Service) Ask(ctx context.Context, username string, fp fingerprint.Fingerprint, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	ix, ok := s.lookup(fp)
	if !ok {
		return nil, ErrNoDocument
	}
	results, err := retrieval.Search(ctx, ix, question, s.topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoDocument
	}

	reply := &Reply{
		Answer:  s.composer.Answer(ctx, question, retrieval.Passages(results)),
		Sources: results,
	}
	if reply.Turn, err = s.record(ctx, username, question, reply.Answer, fp); err != nil {
		return nil, err
	}
	return reply, nil
}

// AskSession answers question about the session's current document.
func (s *Service) AskSession(ctx context.Context, sess *Session, question string) (*Reply, error) {
	fp, ok := sess.Current()
	if !ok {
		return nil, ErrNoDocument
	}
	return s.Ask(ctx, sess.Username, fp, question)
}

// Summarize generates a summary of the cached document fp from a sample of
// its passages and records it as a turn.
func (s *Service) Summarize(ctx context.Context, username string, fp fingerprint.Fingerprint) (*Reply, error) {
	ix, ok := s.lookup(fp)
	if !ok {
		return nil, ErrNoDocument
	}
	text, err := retrieval.Sample(ctx, ix, s.sample)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoDocument
	}

	reply := &Reply{Answer: s.composer.Summarize(ctx, text)}
	if reply.Turn, err = s.record(ctx, username, SummaryQuestion, reply.Answer, fp); err != nil {
		return nil, err
	}
	return reply, nil
}

// SummarizeSession summarizes the session's current document.
func (s *Service) SummarizeSession(ctx context.Context, sess *Session) (*Reply, error) {
	fp, ok := sess.Current()
	if !ok {
		return nil, ErrNoDocument
	}
	return s.Summarize(ctx, sess.Username, fp)
}

func (s *Service) lookup(fp fingerprint.Fingerprint) (*index.Index, bool) {
	if fp == "" {
		return nil, false
	}
	return s.cache.Get(fp)
}

// record stores the turn when there is a user to attribute it to.
func (s *Service) record(ctx context.Context, username, question, ans string, fp fingerprint.Fingerprint) (*conversation.Turn, error) {
	if username == "" {
		return nil, nil
	}
	turn, err := s.convs.Record(ctx, username, question, ans, fp)
	if err != nil {
		return nil, fmt.Errorf("recording turn: %w", err)
	}
	return turn, nil
}

// Conversations lists a user's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, username string) ([]conversation.Conversation, error) {
	turns, err := s.convs.List(ctx, username)
	if err != nil {
		return nil, err
	}
	metas, err := s.convs.Metas(ctx, username)
	if err != nil {
		return nil, err
	}
	return conversation.Group(turns, metas), nil
}

// ConversationView is a reopened conversation.
type ConversationView struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Name        string                  `json:"name"`
	Turns       []conversation.Turn     `json:"turns"`
	// Loaded reports whether the document could be indexed, so that new
	// questions can be asked. It is false when the document is no longer
	// stored.
	Loaded bool `json:"loaded"`
}

// OpenConversation loads a user's turns about fp in chronological order and
// makes sure the document is indexed. On success the document becomes the
// session's current one.
func (s *Service) OpenConversation(ctx context.Context, sess *Session, fp fingerprint.Fingerprint) (*ConversationView, error) {
	turns, err := s.convs.ListByFingerprint(ctx, sess.Username, fp)
	if err != nil {
		return nil, err
	}
	view := &ConversationView{
		Fingerprint: fp,
		Name:        conversation.DefaultTitle,
		Turns:       conversation.Oldest(turns),
	}
	meta, err := s.convs.Meta(ctx, sess.Username, fp)
	if err != nil {
		return nil, err
	}
	if meta != nil && meta.Name != "" {
		view.Name = meta.Name
	}

	if _, err := s.Open(ctx, fp); err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			return nil, err
		}
		s.logger.Warn("conversation document missing", "fingerprint", fp.Short())
		return view, nil
	}
	view.Loaded = true
	sess.Select(fp)
	return view, nil
}

// Rename sets the name of a user's conversation about fp.
func (s *Service) Rename(ctx context.Context, username string, fp fingerprint.Fingerprint, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrEmptyName
	}
	return s.convs.Rename(ctx, username, fp, name)
}

// Documents lists stored documents, newest first.
func (s *Service) Documents(ctx context.Context) ([]blobstore.Document, error) {
	return s.blobs.List(ctx)
}

// Transcript collects a conversation for export.
func (s *Service) Transcript(ctx context.Context, username string, fp fingerprint.Fingerprint) (export.Transcript, error) {
	turns, err := s.convs.ListByFingerprint(ctx, username, fp)
	if err != nil {
		return export.Transcript{}, err
	}
	tr := export.Transcript{
		Name:       conversation.DefaultTitle,
		Turns:      conversation.Oldest(turns),
		ExportedAt: s.now(),
	}
	meta, err := s.convs.Meta(ctx, username, fp)
	if err != nil {
		return export.Transcript{}, err
	}
	if meta != nil && meta.Name != "" {
		tr.Name = meta.Name
	}
	return tr, nil
}

// Format is an export file format.
type Format string

const (
	FormatText Format = "txt"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "txt" (the default when s is empty) or "xlsx".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Export writes a conversation to w in the given format and returns the
// suggested file name.
func (s *Service) Export(ctx context.Context, w io.Writer, username string, fp fingerprint.Fingerprint, format Format) (string, error) {
	tr, err := s.Transcript(ctx, username, fp)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatText:
		err = export.WriteText(w, tr, s.export)
	case FormatXLSX:
		err = export.WriteXLSX(w, tr)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("exporting conversation: %w", err)
	}
	return export.Filename(string(format), tr.ExportedAt), nil
}

// Package segment turns PDF bytes into overlapping text passages.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// Passage is a contiguous span of one page's extracted text.
type Passage struct {
	// Text is the exact span; it may carry the separator that ended it.
	Text string `json:"text"`
	// Page is the 1-based page number the text came from.
	Page int `json:"page"`
	// Index is the passage's position in the whole document.
	Index int `json:"index"`
	// Offset is the byte offset of Text within its page's text.
	Offset int `json:"offset"`
}

// PageText is the plain text of one PDF page.
type PageText struct {
	Number int
	Text   string
}

// ExtractionError reports that a document could not be turned into text.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting document text: %s: %v", e.Reason, e.Err)
	}
	return "extracting document text: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError reports whether err is or wraps an *ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// Options configures a Segmenter.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// TempDir receives the transient copy of each upload. Empty means the
	// system temp directory.
	TempDir string
}

// Segmenter extracts and splits PDF documents. It is safe for concurrent use.
type Segmenter struct {
	splitter *Splitter
	tempDir  string
	extract  func(ctx context.Context, path string) ([]PageText, error)
}

// New creates a Segmenter. Zero chunk settings fall back to the defaults.
func New(opts Options) (*Segmenter, error) {
	size, overlap := opts.ChunkSize, opts.ChunkOverlap
	if size == 0 {
		size = DefaultChunkSize
	}
	if overlap == 0 && opts.ChunkSize == 0 {
		overlap = DefaultChunkOverlap
	}
	splitter, err := NewSplitter(size, overlap)
	if err != nil {
		return nil, err
	}
	return &Segmenter{splitter: splitter, tempDir: opts.TempDir, extract: extractPages}, nil
}

// Segment extracts the text of a PDF and splits it into passages. The bytes
// are staged in a temporary file which is removed before Segment returns.
func (s *Segmenter) Segment(ctx context.Context, data []byte) ([]Passage, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Reason: "empty upload"}
	}

	tmp, err := os.CreateTemp(s.tempDir, "pdfqa-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	pages, err := s.extract(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ExtractionError{Reason: "unreadable PDF", Err: err}
	}

	passages := s.SplitPages(pages)
	if len(passages) == 0 {
		return nil, &ExtractionError{Reason: "no extractable text"}
	}
	return passages, nil
}

// SplitPages splits already-extracted pages into passages. Passages never
// cross a page boundary.
func (s *Segmenter) SplitPages(pages []PageText) []Passage {
	var passages []Passage
	for _, page := range pages {
		for _, sp := range s.splitter.Split(page.Text) {
			passages = append(passages, Passage{
				Text:   page.Text[sp.Start:sp.End],
				Page:   page.Number,
				Index:  len(passages),
				Offset: sp.Start,
			})
		}
	}
	return passages
}

// Reassemble rebuilds each page's text from its passages, dropping the
// overlap between neighbours. Pages are returned in page order.
func Reassemble(passages []Passage) []PageText {
	byPage := make(map[int][]Passage)
	var numbers []int
	for _, p := range passages {
		if _, ok := byPage[p.Page]; !ok {
			numbers = append(numbers, p.Page)
		}
		byPage[p.Page] = append(byPage[p.Page], p)
	}
	sort.Ints(numbers)

	pages := make([]PageText, 0, len(numbers))
	for _, n := range numbers {
		ps := byPage[n]
		sort.Slice(ps, func(i, j int) bool { return ps[i].Offset < ps[j].Offset })

		var sb strings.Builder
		end := 0
		for _, p := range ps {
			pEnd := p.Offset + len(p.Text)
			if pEnd <= end {
				continue
			}
			if p.Offset < end {
				sb.WriteString(p.Text[end-p.Offset:])
			} else {
				sb.WriteString(p.Text)
			}
			end = pEnd
		}
		pages = append(pages, PageText{Number: n, Text: sb.String()})
	}
	return pages
}

// extractPages reads the plain text of every page of the PDF at path. The
// PDF reader panics on some malformed inputs; those panics become errors.
func extractPages(ctx context.Context, path string) (pages []PageText, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var firstErr error
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			continue
		}
		pages = append(pages, PageText{Number: i, Text: text})
	}
	if len(pages) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return pages, nil
}

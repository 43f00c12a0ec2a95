// Package retrieval selects passages from an index for answering and for
// summaries.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/ziadkadry99/pdf-inquiry/internal/index"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

const (
	DefaultTopK            = 3
	DefaultSummaryPassages = 100
	DefaultSummaryChars    = 8000

	// SummaryProbe is the query used to pull a broad sample of passages.
	SummaryProbe = " "
)

// SampleNotice describes what a summary is built from.
const SampleNotice = "Summaries are built from a similarity-ranked sample of up to 100 passages, capped at 8000 characters. Long documents may not be covered in full."

// Search returns up to k passages most similar to query. A nil or empty
// index yields no results.
func Search(ctx context.Context, ix *index.Index, query string, k int) ([]index.Result, error) {
	if ix == nil || ix.Len() == 0 || k <= 0 {
		return nil, nil
	}
	return ix.Search(ctx, query, k)
}

// Passages strips similarity scores from results.
func Passages(results []index.Result) []segment.Passage {
	out := make([]segment.Passage, len(results))
	for i, r := range results {
		out[i] = r.Passage
	}
	return out
}

// JoinText concatenates passage texts with newlines.
func JoinText(passages []segment.Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = strings.TrimSpace(p.Text)
	}
	return strings.Join(texts, "\n")
}

// SampleOptions bounds a summary sample.
type SampleOptions struct {
	MaxPassages int
	MaxChars    int
}

func (o SampleOptions) withDefaults() SampleOptions {
	if o.MaxPassages <= 0 {
		o.MaxPassages = DefaultSummaryPassages
	}
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultSummaryChars
	}
	return o
}

// Sample gathers text for a whole-document summary: up to MaxPassages
// passages ranked against SummaryProbe, put back in document order, joined,
// and cut to MaxChars runes. It is a sample, not the full document.
func Sample(ctx context.Context, ix *index.Index, opts SampleOptions) (string, error) {
	opts = opts.withDefaults()
	results, err := Search(ctx, ix, SummaryProbe, opts.MaxPassages)
	if err != nil {
		return "", err
	}
	passages := Passages(results)
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Index < passages[j].Index })
	return truncate(JoinText(passages), opts.MaxChars), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

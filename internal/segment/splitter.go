package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order, coarsest first. The empty separator
// splits between runes and always applies.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Span is a byte range [Start, End) of the text given to Split.
type Span struct {
	Start int
	End   int
}

// Splitter cuts text into overlapping spans of at most Size runes, preferring
// paragraph breaks, then line breaks, then spaces, and cutting between runes
// only when nothing coarser is available.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter returns a Splitter producing chunks of at most size runes with
// up to overlap runes shared between neighbours.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap, separators: DefaultSeparators}, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the maximum overlap between neighbouring chunks in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunk spans of text in order. Spans never leave a gap
// other than a dropped whitespace-only chunk, and each span ends after the
// previous one.
func (s *Splitter) Split(text string) []Span {
	var out []Span
	for _, sp := range s.split(text, 0, len(text), s.separators) {
		if strings.TrimSpace(text[sp.Start:sp.End]) == "" {
			continue
		}
		out = append(out, sp)
	}
	return out
}

// piece is an atomic unit produced by cutting on one separator. The
// separator stays attached to the end of the piece it terminates, so the
// pieces of a text concatenate back to it exactly.
type piece struct {
	start, end int
	runes      int
}

func (s *Splitter) split(text string, start, end int, seps []string) []Span {
	sub := text[start:end]

	idx := len(seps) - 1
	for i, cand := range seps {
		if cand == "" || strings.Contains(sub, cand) {
			idx = i
			break
		}
	}
	sep, finer := seps[idx], seps[idx+1:]

	var spans []Span
	var small []piece
	for _, p := range cut(sub, sep, start) {
		if p.runes < s.size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			spans = append(spans, s.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			spans = append(spans, Span{Start: p.start, End: p.end})
			continue
		}
		spans = append(spans, s.split(text, p.start, p.end, finer)...)
	}
	if len(small) > 0 {
		spans = append(spans, s.merge(small)...)
	}
	return spans
}

// merge packs consecutive pieces into chunks of at most s.size runes. After a
// chunk is emitted, pieces are dropped from its front until what remains is
// no longer than the overlap, and the remainder opens the next chunk.
func (s *Splitter) merge(pieces []piece) []Span {
	var spans []Span
	var window []piece
	total := 0
	for _, p := range pieces {
		if total+p.runes > s.size && len(window) > 0 {
			spans = append(spans, Span{Start: window[0].start, End: window[len(window)-1].end})
			for total > s.overlap || (total+p.runes > s.size && total > 0) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.runes
	}
	if len(window) > 0 {
		spans = append(spans, Span{Start: window[0].start, End: window[len(window)-1].end})
	}
	return spans
}

func cut(sub, sep string, base int) []piece {
	var out []piece
	if sep == "" {
		for i := 0; i < len(sub); {
			_, w := utf8.DecodeRuneInString(sub[i:])
			out = append(out, piece{start: base + i, end: base + i + w, runes: 1})
			i += w
		}
		return out
	}
	for pos := 0; pos < len(sub); {
		end := len(sub)
		if j := strings.Index(sub[pos:], sep); j >= 0 {
			end = pos + j + len(sep)
		}
		out = append(out, piece{start: base + pos, end: base + end, runes: utf8.RuneCountInString(sub[pos:end])})
		pos = end
	}
	return out
}

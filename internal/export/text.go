// Package export renders a conversation transcript for download.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ziadkadry99/pdf-inquiry/internal/conversation"
)

const (
	Header       = "Chat Conversation Export"
	footerPrefix = "Exported from PDF Inquiry System on "

	timeLayout = "2006-01-02 15:04"

	DefaultWidth        = 80
	DefaultLinesPerPage = 56
)

// Transcript is what gets exported: a conversation's turns, oldest first.
type Transcript struct {
	Name       string
	Turns      []conversation.Turn
	ExportedAt time.Time
}

// Options lays out the text export.
type Options struct {
	// Width is the maximum line length in runes.
	Width int
	// LinesPerPage includes the page number line.
	LinesPerPage int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.LinesPerPage < 6 {
		o.LinesPerPage = DefaultLinesPerPage
	}
	return o
}

// Filename returns the download name for an export in the given format.
func Filename(ext string, at time.Time) string {
	return fmt.Sprintf("chat_export_%s.%s", at.Format("20060102_1504"), ext)
}

// WriteText writes a paginated plain-text transcript. Pages are separated
// by form feeds and end with a "Page n of m" line.
func WriteText(w io.Writer, tr Transcript, opts Options) error {
	opts = opts.withDefaults()
	pages := paginate(transcriptLines(tr, opts.Width), opts.LinesPerPage-2)

	for i, page := range pages {
		if i > 0 {
			if _, err := io.WriteString(w, "\f"); err != nil {
				return err
			}
		}
		for _, l := range page {
			if _, err := io.WriteString(w, l.text+"\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "\nPage %d of %d\n", i+1, len(pages)); err != nil {
			return err
		}
	}
	return nil
}

// line is one output line; heading lines are never left at the bottom of
// a page.
type line struct {
	text    string
	heading bool
}

func transcriptLines(tr Transcript, width int) []line {
	lines := []line{{text: Header}}
	if tr.Name != "" {
		lines = append(lines, line{text: tr.Name})
	}
	lines = append(lines, line{})

	block := func(role string, at time.Time, body string) {
		lines = append(lines, line{text: role + " - " + at.Format(timeLayout), heading: true})
		for _, l := range wrap(body, width) {
			lines = append(lines, line{text: l})
		}
		lines = append(lines, line{})
	}
	for _, t := range tr.Turns {
		block("User", t.Timestamp, t.Question)
		block("Assistant", t.Timestamp, t.Answer)
	}

	lines = append(lines, line{text: footerPrefix + tr.ExportedAt.Format(timeLayout)})
	return lines
}

func paginate(lines []line, perPage int) [][]line {
	var pages [][]line
	var cur []line
	for i, l := range lines {
		last := len(cur) == perPage-1
		orphan := l.heading && last && i+1 < len(lines)
		if len(cur) == perPage || orphan {
			pages = append(pages, cur)
			cur = nil
		}
		if len(cur) == 0 && l.text == "" && len(pages) > 0 {
			continue
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 || len(pages) == 0 {
		pages = append(pages, cur)
	}
	return pages
}

// wrap breaks text into lines of at most width runes, keeping explicit
// newlines and splitting words longer than a line.
func wrap(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := ""
		for _, word := range words {
			for utf8.RuneCountInString(word) > width {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				r := []rune(word)
				out = append(out, string(r[:width]))
				word = string(r[width:])
			}
			switch {
			case cur == "":
				cur = word
			case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= width:
				cur += " " + word
			default:
				out = append(out, cur)
				cur = word
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

package segment

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

// buildPDF writes an uncompressed PDF with one Helvetica text line per
// page. An empty string yields a page with no text.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := "BT ET"
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestSegment_RealPDF(t *testing.T) {
	s := newTestSegmenter(t, 500, 100)
	data := buildPDF("The report covers quarterly revenue.", "", "Costs fell in the third quarter.")

	passages, err := s.Segment(context.Background(), data)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("got %d passages, want 2: %+v", len(passages), passages)
	}

	want := []struct {
		page int
		text string
	}{
		{1, "The report covers quarterly revenue."},
		{3, "Costs fell in the third quarter."},
	}
	for i, w := range want {
		p := passages[i]
		if p.Page != w.page {
			t.Errorf("passage %d Page = %d, want %d", i, p.Page, w.page)
		}
		if p.Index != i {
			t.Errorf("passage %d Index = %d", i, p.Index)
		}
		if strings.TrimSpace(p.Text) != w.text {
			t.Errorf("passage %d Text = %q, want %q", i, p.Text, w.text)
		}
	}
}

func TestExtractPages_PageNumbers(t *testing.T) {
	s := newTestSegmenter(t, 500, 100)
	long := strings.Repeat("Revenue trends upward. ", 60)
	passages, err := s.Segment(context.Background(), buildPDF("Cover page", long))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(passages) < 3 {
		t.Fatalf("expected the long page to split, got %d passages", len(passages))
	}
	if passages[0].Page != 1 {
		t.Errorf("first passage on page %d, want 1", passages[0].Page)
	}
	for _, p := range passages[1:] {
		if p.Page != 2 {
			t.Errorf("passage %d on page %d, want 2", p.Index, p.Page)
		}
	}
	pages := Reassemble(passages)
	if len(pages) != 2 || strings.TrimSpace(pages[1].Text) != strings.TrimSpace(long) {
		t.Errorf("reassembled pages = %+v", pages)
	}
}

func TestSegment_TruncatedPDF(t *testing.T) {
	s := newTestSegmenter(t, 500, 100)
	data := buildPDF("Revenue trends.")
	_, err := s.Segment(context.Background(), data[:len(data)/2])
	if !IsExtractionError(err) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

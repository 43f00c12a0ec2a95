package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

func TestDefaultName(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     string
	}{
		{"short", "What are the revenue trends?", "What are the revenue trends?"},
		{"exact", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"long", strings.Repeat("b", 80), strings.Repeat("b", 50)},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50)},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultName(tt.question); got != tt.want {
				t.Errorf("DefaultName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	h1 := fingerprint.Of([]byte("one"))
	h2 := fingerprint.Of([]byte("two"))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	turns := []Turn{
		{Fingerprint: h2, Timestamp: base.Add(3 * time.Minute)},
		{Fingerprint: h1, Timestamp: base.Add(2 * time.Minute)},
		{Fingerprint: h2, Timestamp: base.Add(1 * time.Minute)},
		{Fingerprint: h1, Timestamp: base},
	}
	metas := []Meta{{Fingerprint: h1, Name: "Q3 Report"}}

	got := Group(turns, metas)
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}
	if got[0].Fingerprint != h2 || got[0].Name != DefaultTitle || got[0].Turns != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Fingerprint != h1 || got[1].Name != "Q3 Report" || got[1].Turns != 2 {
		t.Errorf("second = %+v", got[1])
	}
	if !got[0].LastActive.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("LastActive = %v", got[0].LastActive)
	}
}

func TestGroup_Empty(t *testing.T) {
	if got := Group(nil, nil); len(got) != 0 {
		t.Errorf("expected no conversations, got %v", got)
	}
}

func TestOldest(t *testing.T) {
	turns := []Turn{{ID: "3"}, {ID: "2"}, {ID: "1"}}
	got := Oldest(turns)
	for i, want := range []string{"1", "2", "3"} {
		if got[i].ID != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
	if turns[0].ID != "3" {
		t.Error("Oldest modified its input")
	}
}

// Package conversation records question/answer turns and per-document
// conversation names for each user.
package conversation

import (
	"context"
	"sort"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// DefaultTitle is shown for a conversation that has turns but no name.
const DefaultTitle = "New Conversation"

// nameRunes bounds the name derived from a conversation's first question.
const nameRunes = 50

// Turn is one recorded question and its answer.
type Turn struct {
	ID          string                  `json:"id"`
	Username    string                  `json:"username"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Question    string                  `json:"question"`
	Answer      string                  `json:"answer"`
	Timestamp   time.Time               `json:"timestamp"`
}

// Meta is the named conversation a user has about one document.
type Meta struct {
	Username    string                  `json:"username"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Name        string                  `json:"name"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Store persists turns and conversation metadata.
type Store interface {
	// Record appends a turn. The first turn for a (username, fingerprint)
	// pair also creates its Meta, named after the question.
	Record(ctx context.Context, username, question, answer string, fp fingerprint.Fingerprint) (*Turn, error)
	// List returns all of a user's turns, newest first.
	List(ctx context.Context, username string) ([]Turn, error)
	// ListByFingerprint returns a user's turns about one document, newest first.
	ListByFingerprint(ctx context.Context, username string, fp fingerprint.Fingerprint) ([]Turn, error)
	// Meta returns the conversation metadata, or nil if there is none.
	Meta(ctx context.Context, username string, fp fingerprint.Fingerprint) (*Meta, error)
	// Metas returns all of a user's conversation metadata.
	Metas(ctx context.Context, username string) ([]Meta, error)
	// Rename sets the conversation name, creating the Meta if needed. It
	// reports whether a record was inserted or changed.
	Rename(ctx context.Context, username string, fp fingerprint.Fingerprint, name string) (bool, error)
}

// DefaultName derives a conversation name from its first question.
func DefaultName(question string) string {
	r := []rune(question)
	if len(r) > nameRunes {
		r = r[:nameRunes]
	}
	return string(r)
}

// Conversation is one sidebar entry: all of a user's turns about a document.
type Conversation struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Name        string                  `json:"name"`
	LastActive  time.Time               `json:"last_active"`
	Turns       int                     `json:"turns"`
}

// Group collects turns into one Conversation per fingerprint, most recently
// active first. Names come from metas, falling back to DefaultTitle.
func Group(turns []Turn, metas []Meta) []Conversation {
	names := make(map[fingerprint.Fingerprint]string, len(metas))
	for _, m := range metas {
		names[m.Fingerprint] = m.Name
	}

	byFP := make(map[fingerprint.Fingerprint]*Conversation)
	var order []fingerprint.Fingerprint
	for _, t := range turns {
		c, ok := byFP[t.Fingerprint]
		if !ok {
			name, named := names[t.Fingerprint]
			if !named || name == "" {
				name = DefaultTitle
			}
			c = &Conversation{Fingerprint: t.Fingerprint, Name: name}
			byFP[t.Fingerprint] = c
			order = append(order, t.Fingerprint)
		}
		c.Turns++
		if t.Timestamp.After(c.LastActive) {
			c.LastActive = t.Timestamp
		}
	}

	out := make([]Conversation, 0, len(order))
	for _, fp := range order {
		out = append(out, *byFP[fp])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out
}

// Oldest reverses a newest-first listing into chronological order.
func Oldest(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[len(turns)-1-i] = t
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

package rag

import (
	"sync"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// Session is the state of one interactive user: the files they uploaded,
// by name, and the document currently selected for questions. A session
// lives as long as its connection or CLI loop and is never persisted.
type Session struct {
	Username string

	mu      sync.Mutex
	files   map[string]fingerprint.Fingerprint
	order   []string
	current fingerprint.Fingerprint
}

// NewSession starts an empty session for username.
func NewSession(username string) *Session {
	return &Session{Username: username, files: make(map[string]fingerprint.Fingerprint)}
}

// Lookup returns the fingerprint registered for filename.
func (s *Session) Lookup(filename string) (fingerprint.Fingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.files[filename]
	return fp, ok
}

// Register records filename as uploaded. The first registered file becomes
// the current document.
func (s *Session) Register(filename string, fp fingerprint.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[filename]; !ok {
		s.order = append(s.order, filename)
	}
	s.files[filename] = fp
	if s.current == "" {
		s.current = fp
	}
}

// Select makes fp the current document.
func (s *Session) Select(fp fingerprint.Fingerprint) {
	s.mu.Lock()
	s.current = fp
	s.mu.Unlock()
}

// SelectFile makes the document uploaded as filename current.
func (s *Session) SelectFile(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.files[filename]
	if ok {
		s.current = fp
	}
	return ok
}

// Reset clears the selection, as when starting a new chat. Uploaded files
// stay registered.
func (s *Session) Reset() {
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
}

// Current returns the selected document.
func (s *Session) Current() (fingerprint.Fingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

// File is a named upload.
type File struct {
	Name        string                  `json:"name"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
}

// Files lists uploaded files in upload order.
func (s *Session) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]File, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, File{Name: name, Fingerprint: s.files[name]})
	}
	return out
}

// Package blobstore persists uploaded documents, one record per fingerprint.
package blobstore

import (
	"context"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// Document is a stored upload.
type Document struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Filename    string                  `json:"filename"`
	Size        int64                   `json:"size"`
	CreatedAt   time.Time               `json:"created_at"`
	Data        []byte                  `json:"-"`
}

// Store is a content-addressed document store. Storing the same bytes twice
// keeps the first record, including its filename.
type Store interface {
	// Put stores data under its fingerprint unless already present.
	Put(ctx context.Context, data []byte, filename string) (fingerprint.Fingerprint, error)
	// Get returns the stored document, or nil if there is none.
	Get(ctx context.Context, fp fingerprint.Fingerprint) (*Document, error)
	// Exists reports whether a document is stored under fp.
	Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)
	// List returns stored documents newest first, without their data.
	List(ctx context.Context) ([]Document, error)
}

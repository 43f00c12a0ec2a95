package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/db"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// SQLiteStore keeps documents in the documents table.
type SQLiteStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLiteStore creates a store backed by d.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d, now: time.Now}
}

func (s *SQLiteStore) Put(ctx context.Context, data []byte, filename string) (fingerprint.Fingerprint, error) {
	fp := fingerprint.Of(data)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (fingerprint, filename, size, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		string(fp), filename, len(data), data, db.FormatTime(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("storing document %s: %w", fp.Short(), err)
	}
	return fp, nil
}

func (s *SQLiteStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Document, error) {
	var (
		doc     Document
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, filename, size, data, created_at FROM documents WHERE fingerprint = ?`,
		string(fp),
	).Scan(&doc.Fingerprint, &doc.Filename, &doc.Size, &doc.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", fp.Short(), err)
	}
	if doc.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE fingerprint = ?`, string(fp),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking document %s: %w", fp.Short(), err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, filename, size, created_at FROM documents ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc     Document
			created string
		)
		if err := rows.Scan(&doc.Fingerprint, &doc.Filename, &doc.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if doc.CreatedAt, err = db.ParseTime(created); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/pdf-inquiry/internal/db"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// SQLiteStore keeps turns in chat_turns and names in conversation_meta.
type SQLiteStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLiteStore creates a store backed by d.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d, now: time.Now}
}

func (s *SQLiteStore) Record(ctx context.Context, username, question, answer string, fp fingerprint.Fingerprint) (*Turn, error) {
	turn := &Turn{
		ID:          uuid.New().String(),
		Username:    username,
		Fingerprint: fp,
		Question:    question,
		Answer:      answer,
		Timestamp:   s.now().UTC(),
	}
	ts := db.FormatTime(turn.Timestamp)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_turns (id, username, fingerprint, question, answer, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, username, string(fp), question, answer, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("recording turn: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_meta (username, fingerprint, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(username, fingerprint) DO NOTHING`,
		username, string(fp), DefaultName(question), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversation meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}
	return turn, nil
}

func (s *SQLiteStore) List(ctx context.Context, username string) ([]Turn, error) {
	return s.queryTurns(ctx,
		`SELECT id, username, fingerprint, question, answer, timestamp FROM chat_turns
		 WHERE username = ? ORDER BY timestamp DESC, rowid DESC`, username)
}

func (s *SQLiteStore) ListByFingerprint(ctx context.Context, username string, fp fingerprint.Fingerprint) ([]Turn, error) {
	return s.queryTurns(ctx,
		`SELECT id, username, fingerprint, question, answer, timestamp FROM chat_turns
		 WHERE username = ? AND fingerprint = ? ORDER BY timestamp DESC, rowid DESC`, username, string(fp))
}

func (s *SQLiteStore) queryTurns(ctx context.Context, query string, args ...any) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t  Turn
			ts string
		)
		if err := rows.Scan(&t.ID, &t.Username, &t.Fingerprint, &t.Question, &t.Answer, &ts); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if t.Timestamp, err = db.ParseTime(ts); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) Meta(ctx context.Context, username string, fp fingerprint.Fingerprint) (*Meta, error) {
	var (
		m                Meta
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, fingerprint, name, created_at, updated_at FROM conversation_meta
		 WHERE username = ? AND fingerprint = ?`, username, string(fp),
	).Scan(&m.Username, &m.Fingerprint, &m.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation meta: %w", err)
	}
	if err := parseMetaTimes(&m, created, updated); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) Metas(ctx context.Context, username string) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, fingerprint, name, created_at, updated_at FROM conversation_meta
		 WHERE username = ? ORDER BY updated_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("listing conversation meta: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var (
			m                Meta
			created, updated string
		)
		if err := rows.Scan(&m.Username, &m.Fingerprint, &m.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning conversation meta: %w", err)
		}
		if err := parseMetaTimes(&m, created, updated); err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func (s *SQLiteStore) Rename(ctx context.Context, username string, fp fingerprint.Fingerprint, name string) (bool, error) {
	ts := db.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_meta (username, fingerprint, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(username, fingerprint) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		username, string(fp), name, ts, ts,
	)
	if err != nil {
		return false, fmt.Errorf("renaming conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("renaming conversation: %w", err)
	}
	return n > 0, nil
}

func parseMetaTimes(m *Meta, created, updated string) error {
	var err error
	if m.CreatedAt, err = db.ParseTime(created); err != nil {
		return err
	}
	m.UpdatedAt, err = db.ParseTime(updated)
	return err
}

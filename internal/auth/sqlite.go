package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ziadkadry99/pdf-inquiry/internal/db"
)

// SQLiteStore keeps users in the users table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a user store backed by d.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Create(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, first_name, last_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		u.Username, u.FirstName, u.LastName, u.PasswordHash, db.FormatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, username string) (*User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, first_name, last_name, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	return &u, nil
}

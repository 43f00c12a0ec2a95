// Package auth registers users, checks their passwords and issues login
// tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// User is a registered account.
type User struct {
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Signup is a registration request.
type Signup struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Confirm   string `json:"confirm_password"`
}

// Validate checks that every field is present and the passwords agree.
func (s Signup) Validate() error {
	for _, f := range []string{s.FirstName, s.LastName, s.Username, s.Password, s.Confirm} {
		if strings.TrimSpace(f) == "" {
			return ErrMissingFields
		}
	}
	if s.Password != s.Confirm {
		return ErrPasswordMismatch
	}
	if len(s.Password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}

// Store persists users.
type Store interface {
	// Create inserts u, returning ErrUserExists if the username is taken.
	Create(ctx context.Context, u User) error
	// Get returns the user, or nil if there is none.
	Get(ctx context.Context, username string) (*User, error)
}

// Service implements registration and login on top of a Store.
type Service struct {
	store Store
	cost  int
	now   func() time.Time
}

// NewService creates a Service hashing passwords at bcrypt.DefaultCost.
func NewService(store Store) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register validates s and creates the user with a salted password hash.
func (s *Service) Register(ctx context.Context, req Signup) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := User{
		Username:     req.Username,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate returns the user if password matches.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.Get(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ziadkadry99/pdf-inquiry/internal/auth"
)

// UserStore keeps accounts in the users collection, keyed by username.
type UserStore struct {
	users *mongo.Collection
}

var _ auth.Store = (*UserStore)(nil)

type userDoc struct {
	Username     string    `bson:"_id"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (s *UserStore) Create(ctx context.Context, u auth.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return auth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, username string) (*auth.User, error) {
	var d userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": username}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &auth.User{
		Username:     d.Username,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt.UTC(),
	}, nil
}

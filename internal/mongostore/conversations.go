package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ziadkadry99/pdf-inquiry/internal/conversation"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// ConversationStore keeps turns in chat_history and names in
// conversation_meta, using the field names of the original collections.
type ConversationStore struct {
	history *mongo.Collection
	meta    *mongo.Collection
	now     func() time.Time
}

var _ conversation.Store = (*ConversationStore)(nil)

type turnDoc struct {
	OID       primitive.ObjectID `bson:"_id"`
	ID        string             `bson:"turn_id"`
	Username  string             `bson:"username"`
	Question  string             `bson:"question"`
	Answer    string             `bson:"answer"`
	PDFHash   string             `bson:"pdf_hash"`
	Timestamp time.Time          `bson:"timestamp"`
}

func (d turnDoc) turn() conversation.Turn {
	return conversation.Turn{
		ID:          d.ID,
		Username:    d.Username,
		Fingerprint: fingerprint.Fingerprint(d.PDFHash),
		Question:    d.Question,
		Answer:      d.Answer,
		Timestamp:   d.Timestamp.UTC(),
	}
}

type metaDoc struct {
	Username  string    `bson:"username"`
	PDFHash   string    `bson:"pdf_hash"`
	Name      string    `bson:"conversation_name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d metaDoc) meta() conversation.Meta {
	return conversation.Meta{
		Username:    d.Username,
		Fingerprint: fingerprint.Fingerprint(d.PDFHash),
		Name:        d.Name,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func metaKey(username string, fp fingerprint.Fingerprint) bson.M {
	return bson.M{"username": username, "pdf_hash": string(fp)}
}

func (s *ConversationStore) Record(ctx context.Context, username, question, answer string, fp fingerprint.Fingerprint) (*conversation.Turn, error) {
	// Mongo keeps milliseconds; truncate so the returned turn matches a reload.
	now := s.now().UTC().Truncate(time.Millisecond)

	_, err := s.meta.UpdateOne(ctx, metaKey(username, fp),
		bson.M{"$setOnInsert": bson.M{
			"conversation_name": conversation.DefaultName(question),
			"created_at":        now,
			"updated_at":        now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("creating conversation meta: %w", err)
	}

	doc := turnDoc{
		OID:       primitive.NewObjectID(),
		ID:        uuid.New().String(),
		Username:  username,
		Question:  question,
		Answer:    answer,
		PDFHash:   string(fp),
		Timestamp: now,
	}
	if _, err := s.history.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("recording turn: %w", err)
	}
	t := doc.turn()
	return &t, nil
}

func (s *ConversationStore) List(ctx context.Context, username string) ([]conversation.Turn, error) {
	return s.findTurns(ctx, bson.M{"username": username})
}

func (s *ConversationStore) ListByFingerprint(ctx context.Context, username string, fp fingerprint.Fingerprint) ([]conversation.Turn, error) {
	return s.findTurns(ctx, metaKey(username, fp))
}

func (s *ConversationStore) findTurns(ctx context.Context, filter bson.M) ([]conversation.Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer cur.Close(ctx)

	var turns []conversation.Turn
	for cur.Next(ctx) {
		var d turnDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding turn: %w", err)
		}
		turns = append(turns, d.turn())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	return turns, nil
}

func (s *ConversationStore) Meta(ctx context.Context, username string, fp fingerprint.Fingerprint) (*conversation.Meta, error) {
	var d metaDoc
	err := s.meta.FindOne(ctx, metaKey(username, fp)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation meta: %w", err)
	}
	m := d.meta()
	return &m, nil
}

func (s *ConversationStore) Metas(ctx context.Context, username string) ([]conversation.Meta, error) {
	cur, err := s.meta.Find(ctx, bson.M{"username": username})
	if err != nil {
		return nil, fmt.Errorf("listing conversation meta: %w", err)
	}
	defer cur.Close(ctx)

	var metas []conversation.Meta
	for cur.Next(ctx) {
		var d metaDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding conversation meta: %w", err)
		}
		metas = append(metas, d.meta())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("listing conversation meta: %w", err)
	}
	return metas, nil
}

func (s *ConversationStore) Rename(ctx context.Context, username string, fp fingerprint.Fingerprint, name string) (bool, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	res, err := s.meta.UpdateOne(ctx, metaKey(username, fp),
		bson.M{
			"$set":         bson.M{"conversation_name": name, "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("renaming conversation: %w", err)
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

// Package mongostore implements the document, conversation and user stores
// on MongoDB. Documents live in GridFS and are addressed by the fingerprint
// kept in their metadata.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultDatabase is the database used when none is configured.
const DefaultDatabase = "pdf_qa_system"

// Collection names.
const (
	historyCollection = "chat_history"
	metaCollection    = "conversation_meta"
	usersCollection   = "users"
	filesCollection   = "fs.files"
	chunksCollection  = "fs.chunks"
)

// Client owns the connection and hands out the stores built on it.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	bucket   *gridfs.Bucket
	now      func() time.Time
}

// Connect dials uri, verifies the connection and ensures the indexes the
// stores rely on for deduplication.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if database == "" {
		database = DefaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("opening gridfs bucket: %w", err)
	}

	c := &Client{client: client, database: db, bucket: bucket, now: time.Now}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{filesCollection, mongo.IndexModel{Keys: bson.D{{Key: "metadata.hash", Value: 1}}, Options: unique}},
		{metaCollection, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}, {Key: "pdf_hash", Value: 1}}, Options: unique}},
		{historyCollection, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}, {Key: "timestamp", Value: -1}}}},
	}
	for _, ix := range indexes {
		if _, err := c.database.Collection(ix.collection).Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("creating index on %s: %w", ix.collection, err)
		}
	}
	return nil
}

// Database returns the underlying database handle.
func (c *Client) Database() *mongo.Database { return c.database }

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Blobs returns the GridFS document store.
func (c *Client) Blobs() *BlobStore {
	return &BlobStore{bucket: c.bucket, files: c.database.Collection(filesCollection), chunks: c.database.Collection(chunksCollection)}
}

// Conversations returns the conversation store.
func (c *Client) Conversations() *ConversationStore {
	return &ConversationStore{
		history: c.database.Collection(historyCollection),
		meta:    c.database.Collection(metaCollection),
		now:     c.now,
	}
}

// Users returns the user store.
func (c *Client) Users() *UserStore {
	return &UserStore{users: c.database.Collection(usersCollection)}
}

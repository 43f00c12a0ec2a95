package mongostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ziadkadry99/pdf-inquiry/internal/blobstore"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

// BlobStore keeps documents in GridFS. The unique index on metadata.hash
// makes a concurrent second upload of the same bytes fail on the files
// document, which Put treats as success.
type BlobStore struct {
	bucket *gridfs.Bucket
	files  *mongo.Collection
	chunks *mongo.Collection
}

var _ blobstore.Store = (*BlobStore)(nil)

type fileDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	Filename   string             `bson:"filename"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   struct {
		Hash string `bson:"hash"`
	} `bson:"metadata"`
}

func (d fileDoc) document() blobstore.Document {
	return blobstore.Document{
		Fingerprint: fingerprint.Fingerprint(d.Metadata.Hash),
		Filename:    d.Filename,
		Size:        d.Length,
		CreatedAt:   d.UploadDate.UTC(),
	}
}

func (s *BlobStore) Put(ctx context.Context, data []byte, filename string) (fingerprint.Fingerprint, error) {
	fp := fingerprint.Of(data)
	exists, err := s.Exists(ctx, fp)
	if err != nil {
		return "", err
	}
	if exists {
		return fp, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := primitive.NewObjectID()
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "hash", Value: string(fp)}})
	err = s.bucket.UploadFromStreamWithID(id, filename, bytes.NewReader(data), opts)
	if mongo.IsDuplicateKeyError(err) {
		// Lost a race with an identical upload; drop our orphaned chunks.
		_, _ = s.chunks.DeleteMany(ctx, bson.M{"files_id": id})
		return fp, nil
	}
	if err != nil {
		return "", fmt.Errorf("storing document %s: %w", fp.Short(), err)
	}
	return fp, nil
}

func (s *BlobStore) find(ctx context.Context, fp fingerprint.Fingerprint) (*fileDoc, error) {
	var doc fileDoc
	err := s.files.FindOne(ctx, bson.M{"metadata.hash": string(fp)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding document %s: %w", fp.Short(), err)
	}
	return &doc, nil
}

func (s *BlobStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (*blobstore.Document, error) {
	f, err := s.find(ctx, fp)
	if err != nil || f == nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(int(f.Length))
	if _, err := s.bucket.DownloadToStream(f.ID, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("downloading document %s: %w", fp.Short(), err)
	}
	doc := f.document()
	doc.Data = buf.Bytes()
	return &doc, nil
}

func (s *BlobStore) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	n, err := s.files.CountDocuments(ctx, bson.M{"metadata.hash": string(fp)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking document %s: %w", fp.Short(), err)
	}
	return n > 0, nil
}

func (s *BlobStore) List(ctx context.Context) ([]blobstore.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploadDate", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.files.Find(ctx, bson.M{"metadata.hash": bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer cur.Close(ctx)

	var docs []blobstore.Document
	for cur.Next(ctx) {
		var f fileDoc
		if err := cur.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		docs = append(docs, f.document())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

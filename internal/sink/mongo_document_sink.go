package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// MongoConfig holds document store connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Collection is the subset of *mongo.Collection the document sink uses.
type Collection interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

// ConnectMongo opens a client and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// MongoCollection returns the collection named by cfg.
func MongoCollection(client *mongo.Client, cfg MongoConfig) (*mongo.Collection, error) {
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("mongo database and collection are required, got %q/%q", cfg.Database, cfg.Collection)
	}
	return client.Database(cfg.Database).Collection(cfg.Collection), nil
}

// MongoPinger adapts a client to a readiness probe.
type MongoPinger struct {
	client *mongo.Client
}

// NewMongoPinger creates a readiness probe for client.
func NewMongoPinger(client *mongo.Client) *MongoPinger {
	return &MongoPinger{client: client}
}

// Ping checks the primary.
func (p *MongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

// MongoDocumentSink implements DocumentSink on a MongoDB collection.
type MongoDocumentSink struct {
	coll    Collection
	timeout time.Duration
}

// NewMongoDocumentSink creates a document sink writing to coll.
func NewMongoDocumentSink(coll Collection, timeout time.Duration) *MongoDocumentSink {
	return &MongoDocumentSink{coll: coll, timeout: timeout}
}

// Upsert replaces the whole document keyed by snapshot._id.
func (s *MongoDocumentSink) Upsert(ctx context.Context, snapshot domain.Snapshot) error {
	id, ok := snapshot.ID()
	if !ok {
		return fmt.Errorf("mongo upsert: %w", ErrMissingID)
	}

	doc := make(bson.M, len(snapshot))
	for k, v := range snapshot {
		doc[k] = v
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.ReplaceOne(ctx, idFilter(id), doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo upsert %v: %w", id, err)
	}
	return nil
}

// Delete removes the document keyed by key.
func (s *MongoDocumentSink) Delete(ctx context.Context, key any) error {
	if key == nil {
		return fmt.Errorf("mongo delete: %w", ErrMissingID)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.DeleteOne(ctx, idFilter(domain.Normalize(key))); err != nil {
		return fmt.Errorf("mongo delete %v: %w", key, err)
	}
	return nil
}

func idFilter(id any) bson.D {
	return bson.D{{Key: domain.IDField, Value: id}}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

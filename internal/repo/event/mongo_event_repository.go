package event

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	"github.com/mkrupp/homecase-authsvc/internal/repo/mongodb"
)

const eventCollection = "logs"

// MongoEventRepositoryConfig holds configuration for the MongoDB event repository.
type MongoEventRepositoryConfig struct {
	mongodb.Config
}

// MongoEventRepository implements Repository on a MongoDB collection.
type MongoEventRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Repository = (*MongoEventRepository)(nil)

// NewMongoEventRepository connects to MongoDB and ensures the timestamp index.
func NewMongoEventRepository(ctx context.Context, cfg MongoEventRepositoryConfig) (*MongoEventRepository, error) {
	client, db, err := mongodb.Connect(ctx, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	collection := db.Collection(eventCollection)

	//nolint:exhaustruct
	if _, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &MongoEventRepository{client: client, collection: collection}, nil
}

// Record implements Repository.Record.
func (r *MongoEventRepository) Record(ctx context.Context, event domain.Event) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// List implements Repository.List.
func (r *MongoEventRepository) List(ctx context.Context, limit int) ([]domain.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	var events []domain.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	for i := range events {
		events[i].Timestamp = events[i].Timestamp.UTC()
		events[i].Metadata = normalizeDocument(events[i].Metadata)
	}

	return events, nil
}

// Close implements Repository.Close.
func (r *MongoEventRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

// normalizeDocument turns nested BSON documents and arrays back into plain maps
// and slices so that listed metadata renders as regular JSON.
func normalizeDocument(doc map[string]any) map[string]any {
	for k, v := range doc {
		doc[k] = normalizeValue(v)
	}

	return doc
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalizeValue(e.Value)
		}

		return m
	case bson.M:
		return normalizeDocument(val)
	case map[string]any:
		return normalizeDocument(val)
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}

		return out
	default:
		return v
	}
}

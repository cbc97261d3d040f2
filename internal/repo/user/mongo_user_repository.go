package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	"github.com/mkrupp/homecase-authsvc/internal/repo/mongodb"
)

const userCollection = "users"

// MongoUserRepositoryConfig holds configuration for the MongoDB user repository.
type MongoUserRepositoryConfig struct {
	mongodb.Config
}

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	Username     string        `bson:"username"`
	PasswordHash string        `bson:"password_hash"`
	MFASecret    string        `bson:"mfa_secret"`
	RegisteredAt time.Time     `bson:"date_register"`
	LastLoginAt  *time.Time    `bson:"last_login"`
}

// MongoUserRepository implements Repository on a MongoDB collection.
type MongoUserRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        logging.Logger
}

var _ Repository = (*MongoUserRepository)(nil)

// MongoUserRepositoryFactory creates a factory function that returns a new MongoUserRepository.
func MongoUserRepositoryFactory(ctx context.Context, cfg MongoUserRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewMongoUserRepository(ctx, cfg)
	}
}

// NewMongoUserRepository connects to MongoDB and ensures the unique email index.
func NewMongoUserRepository(ctx context.Context, cfg MongoUserRepositoryConfig) (*MongoUserRepository, error) {
	client, db, err := mongodb.Connect(ctx, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	collection := db.Collection(userCollection)

	//nolint:exhaustruct
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &MongoUserRepository{
		client:     client,
		collection: collection,
		log: logging.GetLogger("repo.user.mongo_user_repository").With(
			logging.Group("db", "database", cfg.Database, "collection", userCollection),
		),
	}, nil
}

// GetUserByEmail implements Repository.GetUserByEmail using MongoDB.
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	var doc userDocument

	if err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("find user: %w", err)
	}

	return &domain.User{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		MFASecret:    doc.MFASecret,
		RegisteredAt: doc.RegisteredAt.UTC(),
		LastLoginAt:  doc.LastLoginAt,
	}, true, nil
}

// CreateUser implements Repository.CreateUser using MongoDB.
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		MFASecret:    user.MFASecret,
		RegisteredAt: user.RegisteredAt,
		LastLoginAt:  user.LastLoginAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		}

		return "", fmt.Errorf("insert user: %w", err)
	}

	return doc.ID.Hex(), nil
}

// UpdateLastLogin implements Repository.UpdateLastLogin using MongoDB.
func (r *MongoUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": bson.M{"last_login": at}})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if res.MatchedCount == 0 {
		return notFound(id)
	}

	return nil
}

// Close implements Repository.Close by disconnecting the client.
func (r *MongoUserRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

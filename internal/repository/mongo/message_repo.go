package mongo

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollectionName = "chat_messages"

// mongoMessageRepository implements repository.MessageRepository
type mongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a new chat message repository backed by MongoDB.
func NewMongoMessageRepository(db *mongo.Database) repository.MessageRepository {
	return &mongoMessageRepository{
		collection: db.Collection(messageCollectionName),
	}
}

// Create inserts a conversation turn.
func (r *mongoMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (primitive.ObjectID, error) {
	if msg.SessionID == "" || msg.Role == "" {
		return primitive.NilObjectID, errors.New("session ID and role are required")
	}

	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetEmbeddedByFeature returns embedded assistant turns for a feature,
// excluding the current session, newest first.
func (r *mongoMessageRepository) GetEmbeddedByFeature(ctx context.Context, feature, excludeSession string, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage

	filter := bson.M{
		"feature":   feature,
		"role":      "assistant",
		"embedding": bson.M{"$exists": true, "$ne": nil},
	}
	if excludeSession != "" {
		filter["sessionId"] = bson.M{"$ne": excludeSession}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// BySession returns all turns of a session in chronological order.
func (r *mongoMessageRepository) BySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// EnsureMessageIndexes creates necessary indexes for the messages collection.
func EnsureMessageIndexes(ctx context.Context, collection *mongo.Collection) {
	_, _ = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "feature", Value: 1}, {Key: "role", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
}

package mongo

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const generationLogCollectionName = "generation_logs"

// mongoGenerationLogRepository implements repository.GenerationLogRepository
type mongoGenerationLogRepository struct {
	collection *mongo.Collection
}

// NewMongoGenerationLogRepository creates a new generation log repository backed by MongoDB.
func NewMongoGenerationLogRepository(db *mongo.Database) repository.GenerationLogRepository {
	return &mongoGenerationLogRepository{
		collection: db.Collection(generationLogCollectionName),
	}
}

// Create inserts one generation log record.
func (r *mongoGenerationLogRepository) Create(ctx context.Context, log *domain.GenerationLog) error {
	log.ID = primitive.NewObjectID()
	if log.CompletedAt.IsZero() {
		log.CompletedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

// Recent returns the newest log records.
func (r *mongoGenerationLogRepository) Recent(ctx context.Context, limit int) ([]domain.GenerationLog, error) {
	var logs []domain.GenerationLog

	findOptions := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

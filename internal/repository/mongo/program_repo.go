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

const programCollectionName = "generated_programs"

// mongoProgramRepository implements repository.ProgramRepository
type mongoProgramRepository struct {
	collection *mongo.Collection
}

// NewMongoProgramRepository creates a new generated-program repository backed by MongoDB.
func NewMongoProgramRepository(db *mongo.Database) repository.ProgramRepository {
	return &mongoProgramRepository{
		collection: db.Collection(programCollectionName),
	}
}

// Upsert creates or replaces the program for a generation id. Repair-loop
// retries re-persist under the same generation id, so this must not create
// duplicates.
func (r *mongoProgramRepository) Upsert(ctx context.Context, program *domain.GeneratedProgram) (primitive.ObjectID, error) {
	if program.GenerationID == "" {
		return primitive.NilObjectID, errors.New("generation ID is required")
	}

	now := time.Now().UTC()
	program.UpdatedAt = now

	filter := bson.M{"generationId": program.GenerationID}
	update := bson.M{
		"$set": bson.M{
			"clientId":    program.ClientID,
			"ownerUserId": program.OwnerUserID,
			"name":        program.Name,
			"skeleton":    program.Skeleton,
			"assignment":  program.Assignment,
			"validation":  program.Validation,
			"isPublic":    program.IsPublic,
			"updatedAt":   program.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"generationId": program.GenerationID,
			"createdAt":    now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved domain.GeneratedProgram
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return primitive.NilObjectID, err
	}

	program.ID = saved.ID
	program.CreatedAt = saved.CreatedAt
	return saved.ID, nil
}

// GetByGenerationID retrieves a program by its generation id.
func (r *mongoProgramRepository) GetByGenerationID(ctx context.Context, generationID string) (*domain.GeneratedProgram, error) {
	var program domain.GeneratedProgram

	err := r.collection.FindOne(ctx, bson.M{"generationId": generationID}).Decode(&program)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &program, nil
}

// CountByOwner counts programs generated for a given user.
func (r *mongoProgramRepository) CountByOwner(ctx context.Context, ownerUserID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"ownerUserId": ownerUserID})
}

// CountPassed counts programs whose validation passed.
func (r *mongoProgramRepository) CountPassed(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"validation.pass": true})
}

// Count counts all generated programs.
func (r *mongoProgramRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// EnsureProgramIndexes creates necessary indexes for the programs collection.
func EnsureProgramIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "generationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "ownerUserId", Value: 1}},
			Options: options.Index(),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}

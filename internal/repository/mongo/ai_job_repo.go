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

const (
	aiJobCollectionName      = "ai_jobs"
	aiJobChunkCollectionName = "ai_job_chunks"
)

// mongoAiJobRepository implements repository.AiJobRepository
type mongoAiJobRepository struct {
	jobs   *mongo.Collection
	chunks *mongo.Collection
}

// NewMongoAiJobRepository creates a new AI job repository backed by MongoDB.
func NewMongoAiJobRepository(db *mongo.Database) repository.AiJobRepository {
	return &mongoAiJobRepository{
		jobs:   db.Collection(aiJobCollectionName),
		chunks: db.Collection(aiJobChunkCollectionName),
	}
}

// Create inserts a new job in pending status.
func (r *mongoAiJobRepository) Create(ctx context.Context, job *domain.AiJob) (primitive.ObjectID, error) {
	if job.Type == "" || job.UserID == "" {
		return primitive.NilObjectID, errors.New("job type and user ID are required")
	}

	job.ID = primitive.NewObjectID()
	job.Status = domain.JobStatusPending
	job.ChunkCount = 0
	job.CreatedAt = time.Now().UTC()

	result, err := r.jobs.InsertOne(ctx, job)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a job by its ID.
func (r *mongoAiJobRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AiJob, error) {
	var job domain.AiJob

	err := r.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// MarkRunning moves a job out of pending. The filter on status makes this a
// compare-and-swap: only one worker wins, a duplicate pickup gets
// ErrUpdateFailed.
func (r *mongoAiJobRepository) MarkRunning(ctx context.Context, id primitive.ObjectID, status domain.JobStatus) error {
	if status != domain.JobStatusProcessing && status != domain.JobStatusStreaming {
		return errors.New("running status must be processing or streaming")
	}

	now := time.Now().UTC()
	result, err := r.jobs.UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.JobStatusPending},
		bson.M{"$set": bson.M{"status": status, "startedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}

// AppendChunk atomically allocates the next index from the job document and
// inserts the chunk. The status filter refuses appends once the job is
// terminal.
func (r *mongoAiJobRepository) AppendChunk(ctx context.Context, jobID primitive.ObjectID, chunkType domain.ChunkType, data map[string]any) (int, error) {
	filter := bson.M{
		"_id":    jobID,
		"status": bson.M{"$in": []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusStreaming}},
	}
	update := bson.M{"$inc": bson.M{"chunkCount": 1}}

	// Return the pre-increment document so its counter is this chunk's index.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before domain.AiJob
	if err := r.jobs.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrJobTerminal
		}
		return 0, err
	}

	chunk := domain.AiJobChunk{
		ID:        primitive.NewObjectID(),
		JobID:     jobID,
		Index:     before.ChunkCount,
		Type:      chunkType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.chunks.InsertOne(ctx, chunk); err != nil {
		return 0, err
	}
	return chunk.Index, nil
}

// ListChunks returns chunks with index > afterIndex, ordered by index.
// Pass afterIndex = -1 to read from the beginning.
func (r *mongoAiJobRepository) ListChunks(ctx context.Context, jobID primitive.ObjectID, afterIndex int) ([]domain.AiJobChunk, error) {
	var chunks []domain.AiJobChunk

	filter := bson.M{"jobId": jobID, "index": bson.M{"$gt": afterIndex}}
	findOptions := options.Find().SetSort(bson.D{{Key: "index", Value: 1}})

	cursor, err := r.chunks.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Complete flips a non-terminal job to completed with its result.
func (r *mongoAiJobRepository) Complete(ctx context.Context, id primitive.ObjectID, result map[string]any) error {
	return r.finish(ctx, id, bson.M{
		"status":      domain.JobStatusCompleted,
		"result":      result,
		"completedAt": time.Now().UTC(),
	})
}

// Fail flips a non-terminal job to failed with its error message.
func (r *mongoAiJobRepository) Fail(ctx context.Context, id primitive.ObjectID, errMsg string) error {
	return r.finish(ctx, id, bson.M{
		"status":      domain.JobStatusFailed,
		"error":       errMsg,
		"completedAt": time.Now().UTC(),
	})
}

// finish guards terminal transitions so a completed job never regresses.
func (r *mongoAiJobRepository) finish(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	result, err := r.jobs.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$nin": []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed}}},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return repository.ErrJobTerminal
	}
	return nil
}

// EnsureAiJobIndexes creates necessary indexes for the job collections.
func EnsureAiJobIndexes(ctx context.Context, jobs, chunks *mongo.Collection) {
	_, _ = jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	_, _ = chunks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jobId", Value: 1}, {Key: "index", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

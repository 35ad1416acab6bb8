package repository

import (
	"alcyxob/coach-ai/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrJobTerminal  = RepositoryError("job already in terminal status")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ExerciseRepository is the "fetch exercise library" contract. The library
// CRUD itself lives in the wider platform; the pipeline only reads snapshots.
type ExerciseRepository interface {
	GetAll(ctx context.Context) ([]domain.Exercise, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
}

// ProfileRepository fetches client profiles for generation requests.
type ProfileRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ClientProfile, error)
}

// ProgramRepository persists generated programs. Upsert is idempotent on the
// generation id so orchestrator retries never create duplicate programs.
type ProgramRepository interface {
	Upsert(ctx context.Context, program *domain.GeneratedProgram) (primitive.ObjectID, error)
	GetByGenerationID(ctx context.Context, generationID string) (*domain.GeneratedProgram, error)
	CountByOwner(ctx context.Context, ownerUserID string) (int64, error)
	CountPassed(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// AiJobRepository is the durable job record contract, including the
// append-only chunk log used for resumable streaming.
type AiJobRepository interface {
	Create(ctx context.Context, job *domain.AiJob) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AiJob, error)
	// MarkRunning transitions a job out of pending exactly once. A second
	// call (duplicate worker pickup) returns ErrUpdateFailed.
	MarkRunning(ctx context.Context, id primitive.ObjectID, status domain.JobStatus) error
	// AppendChunk allocates the next monotonic index and appends the chunk.
	// Appending to a terminal job returns ErrJobTerminal.
	AppendChunk(ctx context.Context, jobID primitive.ObjectID, chunkType domain.ChunkType, data map[string]any) (int, error)
	ListChunks(ctx context.Context, jobID primitive.ObjectID, afterIndex int) ([]domain.AiJobChunk, error)
	Complete(ctx context.Context, id primitive.ObjectID, result map[string]any) error
	Fail(ctx context.Context, id primitive.ObjectID, errMsg string) error
}

// MessageRepository persists conversation turns and serves retrieval
// candidates for the RAG module.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) (primitive.ObjectID, error)
	// GetEmbeddedByFeature returns embedded assistant turns for a feature,
	// excluding the given session, newest first, capped at limit.
	GetEmbeddedByFeature(ctx context.Context, feature, excludeSession string, limit int) ([]domain.ChatMessage, error)
	BySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

// GenerationLogRepository is the best-effort observability sink.
type GenerationLogRepository interface {
	Create(ctx context.Context, log *domain.GenerationLog) error
	Recent(ctx context.Context, limit int) ([]domain.GenerationLog, error)
}

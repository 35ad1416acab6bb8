package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Asynq task types handled by the worker mux.
const (
	TaskTypeChatProgram = "ai:chat_program"
	TaskTypeAnalytics   = "ai:analytics"
)

const aiJobQueue = "ai"

// --- Error Definitions ---
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobAccessDenied = errors.New("job belongs to another user")
	ErrEmptyMessage    = errors.New("message must not be empty")
)

// ChatProgramPayload is the task payload for conversational program building.
type ChatProgramPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	ClientID  string `json:"clientId,omitempty"`
}

// AnalyticsPayload is the task payload for the admin analytics assistant.
type AnalyticsPayload struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

// taskEnvelope is the wire shape every queued task shares.
type taskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// JobService owns the durable job records and the queue handoff. Reads go
// straight to Mongo so status and chunk history survive worker restarts.
type JobService interface {
	CreateChatProgramJob(ctx context.Context, userID string, payload ChatProgramPayload) (*domain.AiJob, error)
	CreateAnalyticsJob(ctx context.Context, userID string, payload AnalyticsPayload) (*domain.AiJob, error)
	GetJob(ctx context.Context, jobID, userID string) (*domain.AiJob, error)
	ListChunks(ctx context.Context, jobID, userID string, afterIndex int) ([]domain.AiJobChunk, error)
}

type jobService struct {
	jobs        repository.AiJobRepository
	asynqClient *asynq.Client
}

// NewJobService creates a new AI job service.
func NewJobService(jobs repository.AiJobRepository, asynqClient *asynq.Client) JobService {
	return &jobService{jobs: jobs, asynqClient: asynqClient}
}

func (s *jobService) CreateChatProgramJob(ctx context.Context, userID string, payload ChatProgramPayload) (*domain.AiJob, error) {
	if payload.Message == "" {
		return nil, ErrEmptyMessage
	}
	input := map[string]any{"sessionId": payload.SessionID, "message": payload.Message}
	if payload.ClientID != "" {
		input["clientId"] = payload.ClientID
	}
	return s.createJob(ctx, domain.JobTypeChatProgram, TaskTypeChatProgram, userID, input, payload)
}

func (s *jobService) CreateAnalyticsJob(ctx context.Context, userID string, payload AnalyticsPayload) (*domain.AiJob, error) {
	if payload.Question == "" {
		return nil, ErrEmptyMessage
	}
	input := map[string]any{"sessionId": payload.SessionID, "question": payload.Question}
	return s.createJob(ctx, domain.JobTypeAnalytics, TaskTypeAnalytics, userID, input, payload)
}

// createJob persists the pending record first, then enqueues. A job that
// exists without a task is visible and eventually fails; a task without a job
// would stream into nothing.
func (s *jobService) createJob(ctx context.Context, jobType domain.JobType, taskType, userID string, input map[string]any, payload any) (*domain.AiJob, error) {
	job := &domain.AiJob{
		Type:      jobType,
		Status:    domain.JobStatusPending,
		Input:     input,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	jobID, err := s.jobs.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}
	job.ID = jobID

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	envelope, err := json.Marshal(taskEnvelope{JobID: jobID.Hex(), Payload: payloadBytes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task envelope: %w", err)
	}

	_, err = s.asynqClient.Enqueue(asynq.NewTask(taskType, envelope),
		asynq.Queue(aiJobQueue),
		asynq.MaxRetry(2),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		// The pending record stays behind; mark it failed so pollers are
		// not left waiting on a job that will never run.
		if failErr := s.jobs.Fail(ctx, jobID, "failed to enqueue job"); failErr != nil {
			log.Printf("WARN: could not mark unenqueued job %s as failed: %v", jobID.Hex(), failErr)
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return job, nil
}

func (s *jobService) GetJob(ctx context.Context, jobID, userID string) (*domain.AiJob, error) {
	return s.loadOwnedJob(ctx, jobID, userID)
}

func (s *jobService) ListChunks(ctx context.Context, jobID, userID string, afterIndex int) ([]domain.AiJobChunk, error) {
	job, err := s.loadOwnedJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	return s.jobs.ListChunks(ctx, job.ID, afterIndex)
}

func (s *jobService) loadOwnedJob(ctx context.Context, jobID, userID string) (*domain.AiJob, error) {
	oid, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return nil, ErrJobNotFound
	}
	job, err := s.jobs.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobAccessDenied
	}
	return job, nil
}

// loadJob resolves a hex job id to its record. Used by workers, which hold
// ids as strings from the task envelope.
func loadJob(ctx context.Context, jobs repository.AiJobRepository, jobID string) (*domain.AiJob, error) {
	oid, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return nil, ErrJobNotFound
	}
	job, err := jobs.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ChunkEmitter writes ordered chunks for one job. Append failures on a live
// job are logged and swallowed; a terminal job stops the producer.
type ChunkEmitter struct {
	jobs  repository.AiJobRepository
	jobID primitive.ObjectID
}

// NewChunkEmitter creates an emitter bound to one job.
func NewChunkEmitter(jobs repository.AiJobRepository, jobID primitive.ObjectID) *ChunkEmitter {
	return &ChunkEmitter{jobs: jobs, jobID: jobID}
}

// Emit appends a chunk. It returns repository.ErrJobTerminal when the job can
// no longer accept output, which producers must treat as a stop signal.
func (e *ChunkEmitter) Emit(ctx context.Context, chunkType domain.ChunkType, data map[string]any) error {
	_, err := e.jobs.AppendChunk(ctx, e.jobID, chunkType, data)
	if err != nil {
		if errors.Is(err, repository.ErrJobTerminal) {
			return err
		}
		log.Printf("WARN: dropping %s chunk for job %s: %v", chunkType, e.jobID.Hex(), err)
	}
	return nil
}

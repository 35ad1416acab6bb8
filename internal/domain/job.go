// internal/domain/job.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobType selects the conversational surface a job runs.
type JobType string

const (
	JobTypeChatProgram JobType = "chat_program"
	JobTypeAnalytics   JobType = "analytics"
)

// JobStatus is the lifecycle state of an AI job. Transitions only move
// forward: pending -> processing/streaming -> completed|failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusStreaming  JobStatus = "streaming"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions or chunk appends are
// allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ChunkType is the vocabulary of streamed events. Consumers must treat
// unknown types as ignorable for forward compatibility.
type ChunkType string

const (
	ChunkDelta          ChunkType = "delta"
	ChunkToolStart      ChunkType = "tool_start"
	ChunkToolResult     ChunkType = "tool_result"
	ChunkProgramCreated ChunkType = "program_created"
	ChunkMessageID      ChunkType = "message_id"
	ChunkDone           ChunkType = "done"
	ChunkError          ChunkType = "error"
)

// AiJob is the durable job record backing resumable streamed generation.
type AiJob struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type        JobType            `bson:"type" json:"type"`
	Status      JobStatus          `bson:"status" json:"status"`
	Input       map[string]any     `bson:"input" json:"input"`
	Result      map[string]any     `bson:"result,omitempty" json:"result,omitempty"`
	Error       string             `bson:"error,omitempty" json:"error,omitempty"`
	UserID      string             `bson:"userId" json:"userId"`
	ChunkCount  int                `bson:"chunkCount" json:"chunkCount"` // index allocator for the append log
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	StartedAt   *time.Time         `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// AiJobChunk is one ordered unit of durably-logged output. Chunks are
// append-only, indexed from 0 with no gaps.
type AiJobChunk struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	JobID     primitive.ObjectID `bson:"jobId" json:"-"`
	Index     int                `bson:"index" json:"index"`
	Type      ChunkType          `bson:"type" json:"type"`
	Data      map[string]any     `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

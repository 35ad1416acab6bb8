// internal/domain/program.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerationRequest is the caller-facing input to the orchestrator.
type GenerationRequest struct {
	Goals                  []string      `json:"goals" binding:"required"`
	DurationWeeks          int           `json:"durationWeeks" binding:"required,min=1,max=16"`
	SessionsPerWeek        int           `json:"sessionsPerWeek" binding:"required,min=1,max=7"`
	SessionLengthMin       int           `json:"sessionLengthMin,omitempty"`
	SplitOverride          SplitType     `json:"splitOverride,omitempty"`
	PeriodizationOverride  Periodization `json:"periodizationOverride,omitempty"`
	EquipmentOverride      []string      `json:"equipmentOverride,omitempty"`
	AdditionalInstructions string        `json:"additionalInstructions,omitempty"`
	ClientID               string        `json:"clientId,omitempty"`
	IsPublic               bool          `json:"isPublic,omitempty"`
}

// TokenUsage is the prompt/completion token accounting for one model call.
type TokenUsage struct {
	PromptTokens     int `bson:"promptTokens" json:"promptTokens"`
	CompletionTokens int `bson:"completionTokens" json:"completionTokens"`
	TotalTokens      int `bson:"totalTokens" json:"totalTokens"`
}

// Add accumulates another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// GeneratedProgram is the persisted result of one generation: the skeleton,
// the assignment and the validation verdict, keyed by generation id so that
// persistence is idempotent across orchestrator retries.
type GeneratedProgram struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GenerationID string             `bson:"generationId" json:"generationId"` // unique
	ClientID     string             `bson:"clientId,omitempty" json:"clientId,omitempty"`
	OwnerUserID  string             `bson:"ownerUserId,omitempty" json:"ownerUserId,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Skeleton     ProgramSkeleton    `bson:"skeleton" json:"skeleton"`
	Assignment   ExerciseAssignment `bson:"assignment" json:"assignment"`
	Validation   ValidationResult   `bson:"validation" json:"validation"`
	IsPublic     bool               `bson:"isPublic" json:"isPublic"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OrchestrationResult is the caller-facing outcome of one generation request.
// Immutable after creation.
type OrchestrationResult struct {
	GenerationID string                `json:"generationId"`
	ProgramID    string                `json:"programId"`
	Validation   ValidationResult      `json:"validation"`
	StepUsage    map[string]TokenUsage `json:"stepUsage"` // keyed by step name
	TotalUsage   TokenUsage            `json:"totalUsage"`
	Duration     time.Duration         `json:"durationMs"`
	Retries      int                   `json:"retries"`
}

// GenerationLog is the best-effort observability record written once per
// top-level generation attempt.
type GenerationLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestedBy  string             `bson:"requestedBy" json:"requestedBy"`
	Status       string             `bson:"status" json:"status"` // "completed" or "failed"
	InputSummary string             `bson:"inputSummary" json:"inputSummary"`
	Model        string             `bson:"model" json:"model"`
	TokensUsed   int                `bson:"tokensUsed" json:"tokensUsed"`
	DurationMs   int64              `bson:"durationMs" json:"durationMs"`
	Error        string             `bson:"error,omitempty" json:"error,omitempty"`
	CompletedAt  time.Time          `bson:"completedAt" json:"completedAt"`
}

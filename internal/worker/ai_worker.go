package worker

import (
	"alcyxob/coach-ai/internal/service"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// taskEnvelope mirrors the shape the job service enqueues.
type taskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// ChatProgramWorker processes conversational program-building jobs.
type ChatProgramWorker struct {
	chat service.ChatService
}

// NewChatProgramWorker creates a new chat program worker.
func NewChatProgramWorker(chat service.ChatService) *ChatProgramWorker {
	return &ChatProgramWorker{chat: chat}
}

// ProcessTask handles one chat_program task.
func (w *ChatProgramWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope taskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}
	var payload service.ChatProgramPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal chat payload: %w", err)
	}

	log.Printf("Starting chat program job: %s", envelope.JobID)
	if err := w.chat.BuildProgram(ctx, envelope.JobID, payload); err != nil {
		log.Printf("ERROR: chat program job %s failed: %v", envelope.JobID, err)
		return err
	}
	log.Printf("Chat program job %s completed", envelope.JobID)
	return nil
}

// AnalyticsWorker processes admin analytics jobs.
type AnalyticsWorker struct {
	analytics service.AnalyticsService
}

// NewAnalyticsWorker creates a new analytics worker.
func NewAnalyticsWorker(analytics service.AnalyticsService) *AnalyticsWorker {
	return &AnalyticsWorker{analytics: analytics}
}

// ProcessTask handles one analytics task.
func (w *AnalyticsWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope taskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}
	var payload service.AnalyticsPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal analytics payload: %w", err)
	}

	log.Printf("Starting analytics job: %s", envelope.JobID)
	if err := w.analytics.Answer(ctx, envelope.JobID, payload); err != nil {
		log.Printf("ERROR: analytics job %s failed: %v", envelope.JobID, err)
		return err
	}
	log.Printf("Analytics job %s completed", envelope.JobID)
	return nil
}

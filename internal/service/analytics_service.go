package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/llm"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

const featureAnalytics = "analytics"

const analyticsRecentLogLimit = 20

// AnalyticsService runs the admin analytics assistant: a tool-augmented
// conversation over aggregate platform data. Same job runtime as the chat
// surface, different tool catalogue and no streaming status (answers are
// short; chunks still flow for consistency).
type AnalyticsService interface {
	Answer(ctx context.Context, jobID string, payload AnalyticsPayload) error
}

type analyticsService struct {
	llm           llm.Completer
	rag           RagService
	jobs          repository.AiJobRepository
	messages      repository.MessageRepository
	programs      repository.ProgramRepository
	logs          repository.GenerationLogRepository
	outbox        *Outbox
	maxToolRounds int
	ragLimit      int
}

// NewAnalyticsService creates a new analytics assistant service.
func NewAnalyticsService(
	completer llm.Completer,
	rag RagService,
	jobs repository.AiJobRepository,
	messages repository.MessageRepository,
	programs repository.ProgramRepository,
	logs repository.GenerationLogRepository,
	outbox *Outbox,
	maxToolRounds int,
	ragLimit int,
) AnalyticsService {
	return &analyticsService{
		llm:           completer,
		rag:           rag,
		jobs:          jobs,
		messages:      messages,
		programs:      programs,
		logs:          logs,
		outbox:        outbox,
		maxToolRounds: maxToolRounds,
		ragLimit:      ragLimit,
	}
}

const analyticsSystemPrompt = `You are an analytics assistant for a coaching platform administrator. Answer questions about program generation activity using the available tools:
- program_stats for program counts and validation pass rates,
- recent_generation_logs for the latest generation attempts with token usage and errors.

Base every number on tool output; never estimate. Keep answers short and factual.`

// Answer processes one analytics job.
func (s *analyticsService) Answer(ctx context.Context, jobID string, payload AnalyticsPayload) error {
	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return err
	}
	if err := s.jobs.MarkRunning(ctx, job.ID, domain.JobStatusProcessing); err != nil {
		if errors.Is(err, repository.ErrUpdateFailed) {
			return fmt.Errorf("job %s already claimed", jobID)
		}
		return err
	}
	emitter := NewChunkEmitter(s.jobs, job.ID)

	result, runErr := s.run(ctx, job, payload, emitter)
	if runErr != nil {
		if err := emitter.Emit(ctx, domain.ChunkError, map[string]any{"message": runErr.Error()}); err != nil {
			log.Printf("WARN: could not emit error chunk for job %s: %v", job.ID.Hex(), err)
		}
		if err := s.jobs.Fail(ctx, job.ID, runErr.Error()); err != nil {
			log.Printf("ERROR: could not mark job %s failed: %v", job.ID.Hex(), err)
		}
		return runErr
	}

	if err := emitter.Emit(ctx, domain.ChunkDone, nil); err != nil {
		return err
	}
	return s.jobs.Complete(ctx, job.ID, result)
}

func (s *analyticsService) run(ctx context.Context, job *domain.AiJob, payload AnalyticsPayload, emitter *ChunkEmitter) (map[string]any, error) {
	system := analyticsSystemPrompt
	retrieved := s.rag.Retrieve(ctx, payload.Question, featureAnalytics, payload.SessionID, s.ragLimit)
	if block := s.rag.FormatBlock(retrieved); block != "" {
		system += "\n\n" + block
	}

	registry := llm.NewRegistry(s.programStatsTool(), s.recentLogsTool())

	var emitErr error
	runResult, err := s.llm.RunTools(ctx, llm.ToolRunRequest{
		System:    system,
		Messages:  []llm.Message{{Role: "user", Content: payload.Question}},
		Registry:  registry,
		MaxRounds: s.maxToolRounds,
	}, func(ev llm.ToolEvent) {
		if emitErr != nil {
			return
		}
		switch ev.Type {
		case llm.EventDelta:
			emitErr = emitter.Emit(ctx, domain.ChunkDelta, map[string]any{"text": ev.Delta})
		case llm.EventToolStart:
			emitErr = emitter.Emit(ctx, domain.ChunkToolStart, map[string]any{"tool": ev.Tool})
		case llm.EventToolResult:
			data := map[string]any{"tool": ev.Tool, "ok": ev.Result.OK}
			if ev.Result.Error != "" {
				data["error"] = ev.Result.Error
			}
			emitErr = emitter.Emit(ctx, domain.ChunkToolResult, data)
		}
	})
	if err != nil {
		return nil, err
	}
	if emitErr != nil {
		return nil, emitErr
	}

	// Conversation turns persist off the hot path; analytics answers are
	// retrieval candidates for later admin sessions.
	now := time.Now().UTC()
	userMsg := &domain.ChatMessage{
		SessionID: payload.SessionID,
		UserID:    job.UserID,
		Feature:   featureAnalytics,
		Role:      "user",
		Content:   payload.Question,
		CreatedAt: now,
	}
	assistantMsg := &domain.ChatMessage{
		SessionID: payload.SessionID,
		UserID:    job.UserID,
		Feature:   featureAnalytics,
		Role:      "assistant",
		Content:   runResult.Content,
		CreatedAt: now,
	}
	s.outbox.Enqueue("analytics_turns", func(ctx context.Context) error {
		if _, err := s.messages.Create(ctx, userMsg); err != nil {
			return err
		}
		_, err := s.messages.Create(ctx, assistantMsg)
		return err
	})

	return map[string]any{
		"content":     runResult.Content,
		"totalTokens": runResult.Usage.TotalTokens,
		"rounds":      runResult.Rounds,
	}, nil
}

func (s *analyticsService) programStatsTool() llm.Tool {
	return llm.Tool{
		Name:        "program_stats",
		Description: "Counts of generated programs: total, how many passed validation, and optionally how many belong to a specific user.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ownerUserId": map[string]any{"type": "string", "description": "restrict the owner count to this user id"},
			},
		},
		Run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				OwnerUserID string `json:"ownerUserId"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid program_stats arguments: %w", err)
				}
			}
			total, err := s.programs.Count(ctx)
			if err != nil {
				return nil, err
			}
			passed, err := s.programs.CountPassed(ctx)
			if err != nil {
				return nil, err
			}
			out := map[string]any{"total": total, "passed": passed}
			if in.OwnerUserID != "" {
				byOwner, err := s.programs.CountByOwner(ctx, in.OwnerUserID)
				if err != nil {
					return nil, err
				}
				out["forOwner"] = byOwner
			}
			return out, nil
		},
	}
}

func (s *analyticsService) recentLogsTool() llm.Tool {
	return llm.Tool{
		Name:        "recent_generation_logs",
		Description: "The most recent program generation attempts with status, token usage, duration and errors.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
			},
		},
		Run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Limit int `json:"limit"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid recent_generation_logs arguments: %w", err)
				}
			}
			if in.Limit <= 0 || in.Limit > 50 {
				in.Limit = analyticsRecentLogLimit
			}
			return s.logs.Recent(ctx, in.Limit)
		},
	}
}

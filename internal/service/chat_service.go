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

const featureChatProgram = "chat_program"

// ChatService runs conversational program building for one job: retrieve
// context, stream a tool-augmented completion, persist the conversation and
// durably log every streamed chunk.
type ChatService interface {
	BuildProgram(ctx context.Context, jobID string, payload ChatProgramPayload) error
}

type chatService struct {
	llm           llm.Completer
	embedder      llm.Embedder
	orchestrator  Orchestrator
	rag           RagService
	jobs          repository.AiJobRepository
	messages      repository.MessageRepository
	exercises     repository.ExerciseRepository
	programs      repository.ProgramRepository
	outbox        *Outbox
	maxToolRounds int
	ragLimit      int
}

// NewChatService creates a new conversational program service.
func NewChatService(
	completer llm.Completer,
	embedder llm.Embedder,
	orchestrator Orchestrator,
	rag RagService,
	jobs repository.AiJobRepository,
	messages repository.MessageRepository,
	exercises repository.ExerciseRepository,
	programs repository.ProgramRepository,
	outbox *Outbox,
	maxToolRounds int,
	ragLimit int,
) ChatService {
	return &chatService{
		llm:           completer,
		embedder:      embedder,
		orchestrator:  orchestrator,
		rag:           rag,
		jobs:          jobs,
		messages:      messages,
		exercises:     exercises,
		programs:      programs,
		outbox:        outbox,
		maxToolRounds: maxToolRounds,
		ragLimit:      ragLimit,
	}
}

const chatSystemPrompt = `You are a knowledgeable strength coach assistant helping a trainer build workout programs through conversation.

You can call tools:
- get_exercise_library to inspect available exercises,
- generate_program to run the full program generation pipeline once the trainer has confirmed goals, duration, frequency and equipment,
- get_program_summary to summarize a previously generated program.

Gather the requirements conversationally before calling generate_program. After generating, briefly summarize the program and mention any validation warnings. Keep replies concise and practical.`

// BuildProgram processes one chat_program job end to end. Every observable
// step is appended to the chunk log so a disconnected client can replay it.
func (s *chatService) BuildProgram(ctx context.Context, jobID string, payload ChatProgramPayload) error {
	job, err := s.claimJob(ctx, jobID, domain.JobStatusStreaming)
	if err != nil {
		return err
	}
	emitter := NewChunkEmitter(s.jobs, job.ID)

	result, runErr := s.run(ctx, job, payload, emitter)
	if runErr != nil {
		s.failJob(ctx, job, emitter, runErr)
		return runErr
	}

	if err := emitter.Emit(ctx, domain.ChunkDone, nil); err != nil {
		return err
	}
	if err := s.jobs.Complete(ctx, job.ID, result); err != nil {
		log.Printf("ERROR: could not complete job %s: %v", job.ID.Hex(), err)
		return err
	}
	return nil
}

func (s *chatService) run(ctx context.Context, job *domain.AiJob, payload ChatProgramPayload, emitter *ChunkEmitter) (map[string]any, error) {
	// Prior turns in this session become the conversation history; prior
	// sessions feed retrieval.
	history, err := s.messages.BySession(ctx, payload.SessionID)
	if err != nil {
		log.Printf("WARN: could not load session history for %s: %v", payload.SessionID, err)
		history = nil
	}

	system := chatSystemPrompt
	retrieved := s.rag.Retrieve(ctx, payload.Message, featureChatProgram, payload.SessionID, s.ragLimit)
	if block := s.rag.FormatBlock(retrieved); block != "" {
		system += "\n\n" + block
	}

	turns := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, llm.Message{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, llm.Message{Role: "user", Content: payload.Message})

	// Persist the user turn off the hot path.
	userMsg := &domain.ChatMessage{
		SessionID: payload.SessionID,
		UserID:    job.UserID,
		Feature:   featureChatProgram,
		Role:      "user",
		Content:   payload.Message,
		CreatedAt: time.Now().UTC(),
	}
	s.outbox.Enqueue("chat_user_message", func(ctx context.Context) error {
		_, err := s.messages.Create(ctx, userMsg)
		return err
	})

	var lastProgram *domain.OrchestrationResult
	registry := llm.NewRegistry(
		s.exerciseLibraryTool(),
		s.generateProgramTool(job.UserID, payload.ClientID, &lastProgram),
		s.programSummaryTool(),
	)

	var emitErr error
	runResult, err := s.llm.RunTools(ctx, llm.ToolRunRequest{
		System:    system,
		Messages:  turns,
		Registry:  registry,
		MaxRounds: s.maxToolRounds,
	}, func(ev llm.ToolEvent) {
		if emitErr != nil {
			return
		}
		emitErr = s.emitToolEvent(ctx, emitter, ev, &lastProgram)
	})
	if err != nil {
		return nil, err
	}
	if emitErr != nil {
		return nil, emitErr
	}

	messageID := s.persistAssistantTurn(ctx, job.UserID, payload.SessionID, runResult.Content)
	if messageID != "" {
		if err := emitter.Emit(ctx, domain.ChunkMessageID, map[string]any{"messageId": messageID}); err != nil {
			return nil, err
		}
	}

	result := map[string]any{
		"content":     runResult.Content,
		"totalTokens": runResult.Usage.TotalTokens,
		"rounds":      runResult.Rounds,
	}
	if messageID != "" {
		result["messageId"] = messageID
	}
	if lastProgram != nil {
		result["programId"] = lastProgram.ProgramID
		result["generationId"] = lastProgram.GenerationID
	}
	return result, nil
}

// emitToolEvent maps streamed tool-run events onto durable chunks. A
// successful generate_program call additionally gets its own chunk type so
// clients can link to the program without parsing tool payloads.
func (s *chatService) emitToolEvent(ctx context.Context, emitter *ChunkEmitter, ev llm.ToolEvent, lastProgram **domain.OrchestrationResult) error {
	switch ev.Type {
	case llm.EventDelta:
		return emitter.Emit(ctx, domain.ChunkDelta, map[string]any{"text": ev.Delta})
	case llm.EventToolStart:
		return emitter.Emit(ctx, domain.ChunkToolStart, map[string]any{"tool": ev.Tool})
	case llm.EventToolResult:
		data := map[string]any{"tool": ev.Tool, "ok": ev.Result.OK}
		if ev.Result.Error != "" {
			data["error"] = ev.Result.Error
		}
		if err := emitter.Emit(ctx, domain.ChunkToolResult, data); err != nil {
			return err
		}
		if ev.Tool == "generate_program" && ev.Result.OK && *lastProgram != nil {
			return emitter.Emit(ctx, domain.ChunkProgramCreated, map[string]any{
				"programId":    (*lastProgram).ProgramID,
				"generationId": (*lastProgram).GenerationID,
				"passed":       (*lastProgram).Validation.Pass,
			})
		}
	}
	return nil
}

func (s *chatService) exerciseLibraryTool() llm.Tool {
	return llm.Tool{
		Name:        "get_exercise_library",
		Description: "List the available exercises with their movement patterns, muscles, equipment and difficulty.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Run: func(ctx context.Context, _ json.RawMessage) (any, error) {
			exercises, err := s.exercises.GetAll(ctx)
			if err != nil {
				return nil, err
			}
			return CompressLibrary(exercises), nil
		},
	}
}

func (s *chatService) generateProgramTool(userID, clientID string, lastProgram **domain.OrchestrationResult) llm.Tool {
	return llm.Tool{
		Name:        "generate_program",
		Description: "Generate a full validated workout program. Call once the trainer has confirmed goals, duration, weekly frequency and equipment.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"goals":                  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"durationWeeks":          map[string]any{"type": "integer", "minimum": 1, "maximum": 16},
				"sessionsPerWeek":        map[string]any{"type": "integer", "minimum": 1, "maximum": 7},
				"equipmentOverride":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"additionalInstructions": map[string]any{"type": "string"},
			},
			"required": []string{"goals", "durationWeeks", "sessionsPerWeek"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var req domain.GenerationRequest
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, fmt.Errorf("invalid generate_program arguments: %w", err)
			}
			req.ClientID = clientID
			res, err := s.orchestrator.Generate(ctx, req, userID)
			if err != nil {
				return nil, err
			}
			*lastProgram = res
			return map[string]any{
				"programId":    res.ProgramID,
				"generationId": res.GenerationID,
				"passed":       res.Validation.Pass,
				"summary":      res.Validation.Summary,
				"retries":      res.Retries,
			}, nil
		},
	}
}

func (s *chatService) programSummaryTool() llm.Tool {
	return llm.Tool{
		Name:        "get_program_summary",
		Description: "Summarize a previously generated program by its generation id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"generationId": map[string]any{"type": "string"},
			},
			"required": []string{"generationId"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				GenerationID string `json:"generationId"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid get_program_summary arguments: %w", err)
			}
			program, err := s.programs.GetByGenerationID(ctx, in.GenerationID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, fmt.Errorf("no program with generation id %s", in.GenerationID)
				}
				return nil, err
			}
			return map[string]any{
				"name":       program.Name,
				"weeks":      len(program.Skeleton.Weeks),
				"slots":      program.Skeleton.SlotCount(),
				"passed":     program.Validation.Pass,
				"validation": program.Validation.Summary,
			}, nil
		},
	}
}

// persistAssistantTurn stores the assistant reply synchronously so the
// message id can be streamed; the embedding is best-effort.
func (s *chatService) persistAssistantTurn(ctx context.Context, userID, sessionID, content string) string {
	if content == "" {
		return ""
	}
	msg := &domain.ChatMessage{
		SessionID: sessionID,
		UserID:    userID,
		Feature:   featureChatProgram,
		Role:      "assistant",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if vec, err := s.embedder.Embed(ctx, content); err != nil {
		log.Printf("WARN: assistant turn embedding failed, storing without: %v", err)
	} else {
		msg.Embedding = vec
	}
	id, err := s.messages.Create(ctx, msg)
	if err != nil {
		log.Printf("WARN: could not persist assistant turn: %v", err)
		return ""
	}
	return id.Hex()
}

// claimJob transitions a pending job into its running status. Losing the
// claim means another worker owns the job; nothing to do.
func (s *chatService) claimJob(ctx context.Context, jobID string, status domain.JobStatus) (*domain.AiJob, error) {
	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.MarkRunning(ctx, job.ID, status); err != nil {
		if errors.Is(err, repository.ErrUpdateFailed) {
			return nil, fmt.Errorf("job %s already claimed", jobID)
		}
		return nil, err
	}
	return job, nil
}

func (s *chatService) failJob(ctx context.Context, job *domain.AiJob, emitter *ChunkEmitter, runErr error) {
	if err := emitter.Emit(ctx, domain.ChunkError, map[string]any{"message": runErr.Error()}); err != nil {
		log.Printf("WARN: could not emit error chunk for job %s: %v", job.ID.Hex(), err)
	}
	if err := s.jobs.Fail(ctx, job.ID, runErr.Error()); err != nil {
		log.Printf("ERROR: could not mark job %s failed: %v", job.ID.Hex(), err)
	}
}

package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrEmptyGoals      = errors.New("generation request needs at least one goal")
	ErrProfileNotFound = errors.New("client profile not found")
)

// Step names used for per-step usage reporting.
const (
	StepAnalyze   = "analyze"
	StepArchitect = "architect"
	StepSelect    = "select"
)

// Orchestrator sequences the generative steps, owns the retry/repair loop,
// persists the result and reports aggregate metrics.
type Orchestrator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, requestedBy string) (*domain.OrchestrationResult, error)
}

type orchestrator struct {
	analyzer   ProfileAnalyzer
	architect  ProgramArchitect
	selector   ExerciseSelector
	exercises  repository.ExerciseRepository
	profiles   repository.ProfileRepository
	programs   repository.ProgramRepository
	logs       repository.GenerationLogRepository
	outbox     *Outbox
	model      string
	maxRetries int
}

// NewOrchestrator creates a new generation orchestrator.
func NewOrchestrator(
	analyzer ProfileAnalyzer,
	architect ProgramArchitect,
	selector ExerciseSelector,
	exercises repository.ExerciseRepository,
	profiles repository.ProfileRepository,
	programs repository.ProgramRepository,
	logs repository.GenerationLogRepository,
	outbox *Outbox,
	model string,
	maxRetries int,
) Orchestrator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &orchestrator{
		analyzer:   analyzer,
		architect:  architect,
		selector:   selector,
		exercises:  exercises,
		profiles:   profiles,
		programs:   programs,
		logs:       logs,
		outbox:     outbox,
		model:      model,
		maxRetries: maxRetries,
	}
}

// Generate runs the full pipeline: compress -> analyze -> architect ->
// select -> validate, with a bounded repair loop. The best available program
// is always persisted with its ValidationResult, even when validation still
// fails after the retry budget: callers must be able to see why a program
// failed its safety checks.
func (o *orchestrator) Generate(ctx context.Context, req domain.GenerationRequest, requestedBy string) (*domain.OrchestrationResult, error) {
	if len(req.Goals) == 0 {
		return nil, ErrEmptyGoals
	}

	start := time.Now()
	generationID := uuid.NewString()
	stepUsage := make(map[string]domain.TokenUsage)
	var totalUsage domain.TokenUsage

	result, err := o.generate(ctx, req, generationID, requestedBy, stepUsage, &totalUsage)
	duration := time.Since(start)

	// One best-effort log per top-level attempt, success or failure.
	o.logAttempt(req, requestedBy, totalUsage, duration, err)

	if err != nil {
		return nil, err
	}
	result.Duration = duration
	result.StepUsage = stepUsage
	result.TotalUsage = totalUsage
	return result, nil
}

func (o *orchestrator) generate(ctx context.Context, req domain.GenerationRequest, generationID, requestedBy string, stepUsage map[string]domain.TokenUsage, totalUsage *domain.TokenUsage) (*domain.OrchestrationResult, error) {
	record := func(step string, usage domain.TokenUsage) {
		u := stepUsage[step]
		u.Add(usage)
		stepUsage[step] = u
		totalUsage.Add(usage)
	}

	// Context compression: library snapshot + normalized profile.
	rawExercises, err := o.exercises.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exercise library: %w", err)
	}
	library := CompressLibrary(rawExercises)

	var profile *domain.ClientProfile
	if req.ClientID != "" {
		clientOID, parseErr := primitive.ObjectIDFromHex(req.ClientID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid client id: %w", parseErr)
		}
		profile, err = o.profiles.GetByID(ctx, clientOID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, err
		}
	}
	norm := NormalizeProfile(profile, req)

	// Generative steps, run once.
	analysis, usage, err := o.analyzer.Analyze(ctx, norm, req, "")
	record(StepAnalyze, usage)
	if err != nil {
		return nil, err
	}

	skeleton, usage, err := o.architect.Design(ctx, analysis, norm, "")
	record(StepArchitect, usage)
	if err != nil {
		return nil, err
	}

	assignment, usage, err := o.selector.Select(ctx, skeleton, library, analysis, norm.Equipment, "")
	record(StepSelect, usage)
	if err != nil {
		return nil, err
	}

	validation := o.validate(skeleton, assignment, analysis, library, norm)

	// Repair loop: restart the step most likely responsible for the
	// dominant error category, feeding the issues back as corrective
	// context. Best-effort; convergence is not guaranteed within budget.
	retries := 0
	for !validation.Pass && retries < o.maxRetries {
		retries++
		corrective := formatIssues(validation.Issues)

		if restartArchitect(validation.DominantErrorCategory()) {
			newSkeleton, u, stepErr := o.architect.Design(ctx, analysis, norm, corrective)
			record(StepArchitect, u)
			if stepErr != nil {
				log.Printf("WARN: repair attempt %d architect step failed, keeping prior skeleton: %v", retries, stepErr)
				break
			}
			newAssignment, u2, selErr := o.selector.Select(ctx, newSkeleton, library, analysis, norm.Equipment, corrective)
			record(StepSelect, u2)
			if selErr != nil {
				log.Printf("WARN: repair attempt %d selection step failed, keeping prior program: %v", retries, selErr)
				break
			}
			skeleton, assignment = newSkeleton, newAssignment
		} else {
			newAssignment, u, selErr := o.selector.Select(ctx, skeleton, library, analysis, norm.Equipment, corrective)
			record(StepSelect, u)
			if selErr != nil {
				log.Printf("WARN: repair attempt %d selection step failed, keeping prior program: %v", retries, selErr)
				break
			}
			assignment = newAssignment
		}

		validation = o.validate(skeleton, assignment, analysis, library, norm)
	}

	// Persist the best available program, passing or not. Idempotent on the
	// generation id.
	name := skeleton.Name
	if name == "" {
		name = "Training Program"
	}
	program := &domain.GeneratedProgram{
		GenerationID: generationID,
		ClientID:     req.ClientID,
		OwnerUserID:  requestedBy,
		Name:         name,
		Skeleton:     *skeleton,
		Assignment:   *assignment,
		Validation:   validation,
		IsPublic:     req.IsPublic,
	}
	programID, err := o.programs.Upsert(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("failed to persist generated program: %w", err)
	}

	return &domain.OrchestrationResult{
		GenerationID: generationID,
		ProgramID:    programID.Hex(),
		Validation:   validation,
		Retries:      retries,
	}, nil
}

func (o *orchestrator) validate(skeleton *domain.ProgramSkeleton, assignment *domain.ExerciseAssignment, analysis *domain.ProfileAnalysis, library []domain.CompressedExercise, norm domain.NormalizedProfile) domain.ValidationResult {
	return Validate(ValidationInput{
		Skeleton:           skeleton,
		Assignment:         assignment,
		Analysis:           analysis,
		Library:            library,
		AvailableEquipment: norm.Equipment,
		ClientTier:         norm.TrainingAge,
		MaxDifficultyScore: norm.MaxDifficultyScore,
	})
}

// restartArchitect decides which generative step the repair loop re-invokes.
// Structural problems need a new skeleton; everything else is a selection
// problem.
func restartArchitect(dominant domain.IssueCategory) bool {
	return dominant == domain.CategoryExcessiveExercises
}

// formatIssues renders validation issues as corrective context for a prompt.
func formatIssues(issues []domain.ValidationIssue) string {
	var sb strings.Builder
	for _, is := range issues {
		if is.Type != domain.IssueError {
			continue
		}
		if is.SlotID != "" {
			fmt.Fprintf(&sb, "- [%s] slot %s: %s\n", is.Category, is.SlotID, is.Message)
		} else {
			fmt.Fprintf(&sb, "- [%s] %s\n", is.Category, is.Message)
		}
	}
	return sb.String()
}

// logAttempt enqueues the generation log through the outbox; a lost log
// never fails the generation.
func (o *orchestrator) logAttempt(req domain.GenerationRequest, requestedBy string, usage domain.TokenUsage, duration time.Duration, genErr error) {
	status := "completed"
	errMsg := ""
	if genErr != nil {
		status = "failed"
		errMsg = genErr.Error()
	}
	entry := &domain.GenerationLog{
		RequestedBy:  requestedBy,
		Status:       status,
		InputSummary: fmt.Sprintf("%d weeks, %d sessions/week, goals: %s", req.DurationWeeks, req.SessionsPerWeek, strings.Join(req.Goals, ", ")),
		Model:        o.model,
		TokensUsed:   usage.TotalTokens,
		DurationMs:   duration.Milliseconds(),
		Error:        errMsg,
		CompletedAt:  time.Now().UTC(),
	}
	o.outbox.Enqueue("generation_log", func(ctx context.Context) error {
		return o.logs.Create(ctx, entry)
	})
}

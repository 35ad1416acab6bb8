package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- step fakes ---

type fakeAnalyzer struct {
	analysis    *domain.ProfileAnalysis
	calls       int
	correctives []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ domain.NormalizedProfile, _ domain.GenerationRequest, corrective string) (*domain.ProfileAnalysis, domain.TokenUsage, error) {
	f.calls++
	f.correctives = append(f.correctives, corrective)
	return f.analysis, domain.TokenUsage{TotalTokens: 10}, nil
}

type fakeArchitect struct {
	skeletons   []*domain.ProgramSkeleton
	calls       int
	correctives []string
}

func (f *fakeArchitect) Design(_ context.Context, _ *domain.ProfileAnalysis, _ domain.NormalizedProfile, corrective string) (*domain.ProgramSkeleton, domain.TokenUsage, error) {
	idx := f.calls
	if idx >= len(f.skeletons) {
		idx = len(f.skeletons) - 1
	}
	f.calls++
	f.correctives = append(f.correctives, corrective)
	return f.skeletons[idx], domain.TokenUsage{TotalTokens: 10}, nil
}

type fakeSelector struct {
	assignments []*domain.ExerciseAssignment
	calls       int
	correctives []string
}

func (f *fakeSelector) Select(_ context.Context, _ *domain.ProgramSkeleton, _ []domain.CompressedExercise, _ *domain.ProfileAnalysis, _ []string, corrective string) (*domain.ExerciseAssignment, domain.TokenUsage, error) {
	idx := f.calls
	if idx >= len(f.assignments) {
		idx = len(f.assignments) - 1
	}
	f.calls++
	f.correctives = append(f.correctives, corrective)
	return f.assignments[idx], domain.TokenUsage{TotalTokens: 10}, nil
}

// --- repository fakes ---

type fakeExerciseRepo struct{ exercises []domain.Exercise }

func (f *fakeExerciseRepo) GetAll(context.Context) ([]domain.Exercise, error) {
	return f.exercises, nil
}
func (f *fakeExerciseRepo) GetByID(context.Context, primitive.ObjectID) (*domain.Exercise, error) {
	return nil, repository.ErrNotFound
}

type fakeProfileRepo struct{ profile *domain.ClientProfile }

func (f *fakeProfileRepo) GetByID(context.Context, primitive.ObjectID) (*domain.ClientProfile, error) {
	if f.profile == nil {
		return nil, repository.ErrNotFound
	}
	return f.profile, nil
}

type fakeProgramRepo struct {
	mu      sync.Mutex
	upserts []*domain.GeneratedProgram
}

func (f *fakeProgramRepo) Upsert(_ context.Context, p *domain.GeneratedProgram) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, p)
	return primitive.NewObjectID(), nil
}
func (f *fakeProgramRepo) GetByGenerationID(context.Context, string) (*domain.GeneratedProgram, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeProgramRepo) CountByOwner(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeProgramRepo) CountPassed(context.Context) (int64, error)          { return 0, nil }
func (f *fakeProgramRepo) Count(context.Context) (int64, error)                { return 0, nil }

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*domain.GenerationLog
}

func (f *fakeLogRepo) Create(_ context.Context, l *domain.GenerationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, l)
	return nil
}
func (f *fakeLogRepo) Recent(context.Context, int) ([]domain.GenerationLog, error) {
	return nil, nil
}

// --- fixtures ---

type orchestratorFixture struct {
	analyzer  *fakeAnalyzer
	architect *fakeArchitect
	selector  *fakeSelector
	programs  *fakeProgramRepo
	outbox    *Outbox
	exRepo    *fakeExerciseRepo

	pressHex string
	rowHex   string
	extraHex []string
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	pressID := primitive.NewObjectID()
	rowID := primitive.NewObjectID()

	fx := &orchestratorFixture{
		analyzer: &fakeAnalyzer{analysis: &domain.ProfileAnalysis{TrainingAge: domain.DifficultyNovice}},
		programs: &fakeProgramRepo{},
		outbox:   NewOutbox(),
		pressHex: pressID.Hex(),
		rowHex:   rowID.Hex(),
	}
	t.Cleanup(fx.outbox.Close)

	fx.architect = &fakeArchitect{skeletons: []*domain.ProgramSkeleton{
		oneWeekSkeleton(
			slotAt(1, 1, 1, domain.MovementPush),
			slotAt(1, 1, 2, domain.MovementPull),
		),
	}}
	fx.selector = &fakeSelector{assignments: []*domain.ExerciseAssignment{fx.goodAssignment()}}

	fx.exercisesFor(t)
	return fx
}

func (fx *orchestratorFixture) exercisesFor(t *testing.T) *fakeExerciseRepo {
	t.Helper()
	pressID, err := primitive.ObjectIDFromHex(fx.pressHex)
	require.NoError(t, err)
	rowID, err := primitive.ObjectIDFromHex(fx.rowHex)
	require.NoError(t, err)
	exercises := []domain.Exercise{
		{ID: pressID, Name: "Push Up", MovementPattern: domain.MovementPush, Equipment: []string{"bodyweight"}, Difficulty: domain.DifficultyNovice, IsCompound: true, PrimaryMuscles: []string{"chest"}},
		{ID: rowID, Name: "Inverted Row", MovementPattern: domain.MovementPull, Equipment: []string{"bodyweight"}, Difficulty: domain.DifficultyNovice, IsCompound: true, PrimaryMuscles: []string{"lats"}},
	}
	// Extra distinct movements so high-volume days stay duplicate-free.
	fx.extraHex = nil
	for i := 0; i < 13; i++ {
		id := primitive.NewObjectID()
		fx.extraHex = append(fx.extraHex, id.Hex())
		exercises = append(exercises, domain.Exercise{
			ID: id, Name: fmt.Sprintf("Push Variation %d", i+1),
			MovementPattern: domain.MovementPush, Equipment: []string{"bodyweight"},
			Difficulty: domain.DifficultyNovice, IsCompound: true, PrimaryMuscles: []string{"chest"},
		})
	}
	fx.exRepo = &fakeExerciseRepo{exercises: exercises}
	return fx.exRepo
}

func (fx *orchestratorFixture) goodAssignment() *domain.ExerciseAssignment {
	return assign(
		[2]string{"w1d1s1", fx.pressHex},
		[2]string{"w1d1s2", fx.rowHex},
	)
}

func (fx *orchestratorFixture) duplicateAssignment() *domain.ExerciseAssignment {
	return assign(
		[2]string{"w1d1s1", fx.pressHex},
		[2]string{"w1d1s2", fx.pressHex},
	)
}

func (fx *orchestratorFixture) build(maxRetries int) Orchestrator {
	return NewOrchestrator(
		fx.analyzer, fx.architect, fx.selector,
		fx.exRepo, &fakeProfileRepo{}, fx.programs, &fakeLogRepo{},
		fx.outbox, "test-model", maxRetries,
	)
}

func validRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		Goals:           []string{"strength"},
		DurationWeeks:   4,
		SessionsPerWeek: 2,
	}
}

func TestGenerateSucceedsFirstPass(t *testing.T) {
	fx := newFixture(t)
	orch := fx.build(2)

	result, err := orch.Generate(context.Background(), validRequest(), "user-1")

	require.NoError(t, err)
	assert.True(t, result.Validation.Pass, result.Validation.Summary)
	assert.Equal(t, 0, result.Retries)
	assert.NotEmpty(t, result.GenerationID)
	assert.NotEmpty(t, result.ProgramID)

	assert.Equal(t, 10, result.StepUsage[StepAnalyze].TotalTokens)
	assert.Equal(t, 10, result.StepUsage[StepArchitect].TotalTokens)
	assert.Equal(t, 10, result.StepUsage[StepSelect].TotalTokens)
	assert.Equal(t, 30, result.TotalUsage.TotalTokens)

	require.Len(t, fx.programs.upserts, 1)
	assert.Equal(t, result.GenerationID, fx.programs.upserts[0].GenerationID)
}

func TestGenerateRepairLoopRestartsSelector(t *testing.T) {
	fx := newFixture(t)
	fx.selector.assignments = []*domain.ExerciseAssignment{
		fx.duplicateAssignment(),
		fx.goodAssignment(),
	}
	orch := fx.build(2)

	result, err := orch.Generate(context.Background(), validRequest(), "user-1")

	require.NoError(t, err)
	assert.True(t, result.Validation.Pass)
	assert.Equal(t, 1, result.Retries)
	assert.Equal(t, 2, fx.selector.calls)
	assert.Equal(t, 1, fx.architect.calls, "selection errors must not restart the architect")

	require.Len(t, fx.selector.correctives, 2)
	assert.Empty(t, fx.selector.correctives[0])
	assert.Contains(t, fx.selector.correctives[1], string(domain.CategoryDuplicateExercise))
}

func TestGenerateRepairLoopRestartsArchitectOnStructuralErrors(t *testing.T) {
	fx := newFixture(t)

	var bigSlots []domain.Slot
	bigAssign := &domain.ExerciseAssignment{}
	for i := 1; i <= 13; i++ {
		bigSlots = append(bigSlots, slotAt(1, 1, i, domain.MovementPush))
		bigAssign.Assignments = append(bigAssign.Assignments, domain.SlotAssignment{
			SlotID: domain.SlotID(1, 1, i), ExerciseID: fx.extraHex[i-1],
		})
	}
	fx.architect.skeletons = append([]*domain.ProgramSkeleton{oneWeekSkeleton(bigSlots...)}, fx.architect.skeletons...)
	fx.selector.assignments = []*domain.ExerciseAssignment{bigAssign, fx.goodAssignment()}
	orch := fx.build(2)

	result, err := orch.Generate(context.Background(), validRequest(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 2, fx.architect.calls, "excessive-exercise errors restart the architect")
	assert.Equal(t, 2, fx.selector.calls)
	assert.GreaterOrEqual(t, result.Retries, 1)
}

func TestGenerateExhaustedBudgetStillPersists(t *testing.T) {
	fx := newFixture(t)
	fx.selector.assignments = []*domain.ExerciseAssignment{fx.duplicateAssignment()}
	orch := fx.build(2)

	result, err := orch.Generate(context.Background(), validRequest(), "user-1")

	require.NoError(t, err, "a failing validation is a result, not an error")
	assert.False(t, result.Validation.Pass)
	assert.Equal(t, 2, result.Retries)
	assert.Equal(t, 3, fx.selector.calls)

	require.Len(t, fx.programs.upserts, 1, "the best available program is persisted with its verdict")
	assert.False(t, fx.programs.upserts[0].Validation.Pass)
}

func TestGenerateRejectsEmptyGoals(t *testing.T) {
	fx := newFixture(t)
	orch := fx.build(2)

	_, err := orch.Generate(context.Background(), domain.GenerationRequest{DurationWeeks: 4, SessionsPerWeek: 2}, "user-1")

	assert.ErrorIs(t, err, ErrEmptyGoals)
	assert.Empty(t, fx.programs.upserts)
}

func TestGenerateUnknownClientProfile(t *testing.T) {
	fx := newFixture(t)
	orch := fx.build(2)

	req := validRequest()
	req.ClientID = primitive.NewObjectID().Hex()
	_, err := orch.Generate(context.Background(), req, "user-1")

	assert.ErrorIs(t, err, ErrProfileNotFound)
}

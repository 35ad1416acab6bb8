package service

import (
	"alcyxob/coach-ai/internal/domain"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectorSkeleton() *domain.ProgramSkeleton {
	return oneWeekSkeleton(
		slotAt(1, 1, 1, domain.MovementPush),
		slotAt(1, 1, 2, domain.MovementPull),
	)
}

func selectWith(t *testing.T, proposal *domain.ExerciseAssignment, library []domain.CompressedExercise, analysis *domain.ProfileAnalysis, equip []string) (*domain.ExerciseAssignment, error) {
	t.Helper()
	raw, err := json.Marshal(proposal)
	require.NoError(t, err)
	selector := NewExerciseSelector(&fakeCompleter{responses: []string{string(raw)}})
	assignment, _, err := selector.Select(context.Background(), selectorSkeleton(), library, analysis, equip, "")
	return assignment, err
}

func TestSelectKeepsValidProposal(t *testing.T) {
	proposal := assign(
		[2]string{"w1d1s1", "ex-press"},
		[2]string{"w1d1s2", "ex-row"},
	)
	assignment, err := selectWith(t, proposal, testLibrary(), &domain.ProfileAnalysis{}, []string{"barbell", "dumbbell", "bench"})

	require.NoError(t, err)
	require.Len(t, assignment.Assignments, 2)
	assert.Equal(t, "ex-press", assignment.Assignments[0].ExerciseID)
	assert.Equal(t, "Bench Press", assignment.Assignments[0].ExerciseName)
	assert.Equal(t, "ex-row", assignment.Assignments[1].ExerciseID)
	assert.Empty(t, assignment.SubstitutionNotes)
}

func TestSelectSubstitutesUnknownExercise(t *testing.T) {
	proposal := assign(
		[2]string{"w1d1s1", "ex-invented"},
		[2]string{"w1d1s2", "ex-row"},
	)
	assignment, err := selectWith(t, proposal, testLibrary(), &domain.ProfileAnalysis{}, []string{"barbell", "dumbbell", "bench"})

	require.NoError(t, err)
	require.Len(t, assignment.Assignments, 2)
	sub := assignment.Assignments[0]
	assert.Equal(t, "w1d1s1", sub.SlotID)
	assert.Equal(t, "ex-press", sub.ExerciseID, "best push substitute is the matching-pattern compound")
	assert.Equal(t, "substituted", sub.Note)
	assert.Contains(t, assignment.SubstitutionNotes, "w1d1s1")
}

func TestSelectRepairsDuplicateWithinDay(t *testing.T) {
	proposal := assign(
		[2]string{"w1d1s1", "ex-press"},
		[2]string{"w1d1s2", "ex-press"},
	)
	assignment, err := selectWith(t, proposal, testLibrary(), &domain.ProfileAnalysis{}, []string{"barbell", "dumbbell", "bench"})

	require.NoError(t, err)
	require.Len(t, assignment.Assignments, 2)
	assert.Equal(t, "ex-press", assignment.Assignments[0].ExerciseID)
	assert.NotEqual(t, "ex-press", assignment.Assignments[1].ExerciseID, "duplicate must be replaced")
}

func TestSelectFillsMissingSlots(t *testing.T) {
	proposal := assign([2]string{"w1d1s1", "ex-press"}) // s2 missing
	assignment, err := selectWith(t, proposal, testLibrary(), &domain.ProfileAnalysis{}, []string{"barbell", "dumbbell", "bench"})

	require.NoError(t, err)
	require.Len(t, assignment.Assignments, 2)
	assert.Equal(t, "w1d1s2", assignment.Assignments[1].SlotID)
	assert.Equal(t, "ex-row", assignment.Assignments[1].ExerciseID, "pull slot gets the pull exercise")
}

func TestSelectSubstituteHonorsEquipment(t *testing.T) {
	// Bench Press needs a barbell, which is unavailable; the substitute for
	// the push slot must work with what is on hand.
	proposal := assign(
		[2]string{"w1d1s1", "ex-missing"},
		[2]string{"w1d1s2", "ex-row"},
	)
	assignment, err := selectWith(t, proposal, testLibrary(), &domain.ProfileAnalysis{}, []string{"dumbbell"})

	require.NoError(t, err)
	assert.Equal(t, "ex-pushup", assignment.Assignments[0].ExerciseID)
}

func TestSelectSubstituteHonorsConstraints(t *testing.T) {
	analysis := &domain.ProfileAnalysis{
		Constraints: []domain.ExerciseConstraint{
			{Type: domain.ConstraintAvoidMuscle, Value: "chest", Reason: "pec strain"},
		},
	}
	proposal := assign(
		[2]string{"w1d1s1", "ex-unknown"},
		[2]string{"w1d1s2", "ex-row"},
	)
	assignment, err := selectWith(t, proposal, testLibrary(), analysis, []string{"barbell", "dumbbell", "bench"})

	require.NoError(t, err)
	for _, as := range assignment.Assignments {
		assert.NotEqual(t, "ex-press", as.ExerciseID)
		assert.NotEqual(t, "ex-pushup", as.ExerciseID)
		assert.NotEqual(t, "ex-planche", as.ExerciseID)
	}
}

func TestSelectErrorsWhenNoCandidateExists(t *testing.T) {
	proposal := assign(
		[2]string{"w1d1s1", "ex-unknown"},
		[2]string{"w1d1s2", "ex-unknown"},
	)
	_, err := selectWith(t, proposal, nil, &domain.ProfileAnalysis{}, []string{"dumbbell"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

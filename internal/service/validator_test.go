package service

import (
	"alcyxob/coach-ai/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func libEx(id, name string, pattern domain.MovementPattern, equip []string, diff domain.Difficulty, score float64, primary []string, compound bool) domain.CompressedExercise {
	return domain.CompressedExercise{
		ID:              id,
		Name:            name,
		MovementPattern: pattern,
		Equipment:       equip,
		Difficulty:      diff,
		DifficultyScore: score,
		PrimaryMuscles:  primary,
		IsCompound:      compound,
	}
}

// testLibrary covers all four fundamental patterns on common equipment.
func testLibrary() []domain.CompressedExercise {
	return []domain.CompressedExercise{
		libEx("ex-press", "Bench Press", domain.MovementPush, []string{"barbell", "bench"}, domain.DifficultyNovice, 3.0, []string{"chest"}, true),
		libEx("ex-row", "Dumbbell Row", domain.MovementPull, []string{"dumbbell"}, domain.DifficultyNovice, 2.5, []string{"lats"}, true),
		libEx("ex-squat", "Goblet Squat", domain.MovementSquat, []string{"dumbbell"}, domain.DifficultyNovice, 2.5, []string{"quads"}, true),
		libEx("ex-hinge", "Romanian Deadlift", domain.MovementHinge, []string{"barbell"}, domain.DifficultyIntermediate, 4.0, []string{"hamstrings"}, true),
		libEx("ex-pushup", "Push Up", domain.MovementPush, []string{"bodyweight"}, domain.DifficultyBeginner, 1.5, []string{"chest"}, true),
		libEx("ex-planche", "Planche Push Up", domain.MovementPush, []string{"bodyweight"}, domain.DifficultyElite, 9.5, []string{"chest"}, true),
	}
}

func oneWeekSkeleton(slots ...domain.Slot) *domain.ProgramSkeleton {
	return &domain.ProgramSkeleton{
		Name: "Test Block",
		Weeks: []domain.SkeletonWeek{{
			Number:            1,
			Phase:             "accumulation",
			IntensityModifier: 1.0,
			Days:              []domain.SkeletonDay{{DayOfWeek: 1, Label: "Full Body", Slots: slots}},
		}},
	}
}

func slotAt(week, day, n int, pattern domain.MovementPattern) domain.Slot {
	return domain.Slot{
		ID:              domain.SlotID(week, day, n),
		Role:            domain.RolePrimaryCompound,
		MovementPattern: pattern,
		Sets:            3,
		Reps:            "8-12",
	}
}

func assign(pairs ...[2]string) *domain.ExerciseAssignment {
	out := &domain.ExerciseAssignment{}
	for _, p := range pairs {
		out.Assignments = append(out.Assignments, domain.SlotAssignment{SlotID: p[0], ExerciseID: p[1]})
	}
	return out
}

func cleanInput() ValidationInput {
	return ValidationInput{
		Skeleton: oneWeekSkeleton(
			slotAt(1, 1, 1, domain.MovementPush),
			slotAt(1, 1, 2, domain.MovementPull),
			slotAt(1, 1, 3, domain.MovementSquat),
			slotAt(1, 1, 4, domain.MovementHinge),
		),
		Assignment: assign(
			[2]string{"w1d1s1", "ex-press"},
			[2]string{"w1d1s2", "ex-row"},
			[2]string{"w1d1s3", "ex-squat"},
			[2]string{"w1d1s4", "ex-hinge"},
		),
		Analysis:           &domain.ProfileAnalysis{},
		Library:            testLibrary(),
		AvailableEquipment: []string{"barbell", "dumbbell", "bench"},
		ClientTier:         domain.DifficultyIntermediate,
	}
}

func TestValidatePassesCleanProgram(t *testing.T) {
	result := Validate(cleanInput())

	assert.True(t, result.Pass, "clean program should pass: %s", result.Summary)
	assert.Equal(t, 0, result.ErrorCount())
	assert.Equal(t, 0, result.WarningCount())
}

func TestValidateIsDeterministic(t *testing.T) {
	in := cleanInput()
	in.AvailableEquipment = []string{"dumbbell"} // force several violations

	first := Validate(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Validate(in))
	}
}

func TestValidateEquipmentViolation(t *testing.T) {
	in := cleanInput()
	in.AvailableEquipment = []string{"dumbbell", "bench"} // no barbell

	result := Validate(in)

	require.False(t, result.Pass)
	violations := 0
	for _, is := range result.Issues {
		if is.Category == domain.CategoryEquipmentViolation {
			violations++
			assert.Equal(t, domain.IssueError, is.Type)
		}
	}
	// Bench Press and Romanian Deadlift both need the barbell.
	assert.Equal(t, 2, violations)
}

func TestValidateBodyweightNeverViolates(t *testing.T) {
	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(slotAt(1, 1, 1, domain.MovementPush))
	in.Assignment = assign([2]string{"w1d1s1", "ex-pushup"})
	in.AvailableEquipment = nil

	result := Validate(in)

	for _, is := range result.Issues {
		assert.NotEqual(t, domain.CategoryEquipmentViolation, is.Category)
	}
}

func TestValidateDuplicateExerciseFlagsLaterSlot(t *testing.T) {
	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(
		slotAt(1, 1, 1, domain.MovementPush),
		slotAt(1, 1, 2, domain.MovementPush),
	)
	in.Assignment = assign(
		[2]string{"w1d1s1", "ex-press"},
		[2]string{"w1d1s2", "ex-press"},
	)

	result := Validate(in)

	require.False(t, result.Pass)
	var dup *domain.ValidationIssue
	for i, is := range result.Issues {
		if is.Category == domain.CategoryDuplicateExercise {
			require.Nil(t, dup, "expected exactly one duplicate issue")
			dup = &result.Issues[i]
		}
	}
	require.NotNil(t, dup)
	assert.Equal(t, "w1d1s2", dup.SlotID)
}

func TestValidateMissingAssignment(t *testing.T) {
	in := cleanInput()
	in.Assignment = assign([2]string{"w1d1s1", "ex-press"}) // s2..s4 empty

	result := Validate(in)

	require.False(t, result.Pass)
	missing := 0
	for _, is := range result.Issues {
		if is.Category == domain.CategoryMissingExercise {
			missing++
		}
	}
	assert.Equal(t, 3, missing)
}

func TestValidateUnknownExerciseID(t *testing.T) {
	in := cleanInput()
	in.Assignment.Assignments[0].ExerciseID = "ex-nonexistent"

	result := Validate(in)

	require.False(t, result.Pass)
	assert.Contains(t, result.Summary, string(domain.CategoryMissingExercise))
}

func TestValidateOrphanAssignment(t *testing.T) {
	in := cleanInput()
	in.Assignment.Assignments = append(in.Assignment.Assignments,
		domain.SlotAssignment{SlotID: "w9d9s9", ExerciseID: "ex-press"})

	result := Validate(in)

	require.False(t, result.Pass)
	found := false
	for _, is := range result.Issues {
		if is.SlotID == "w9d9s9" && is.Category == domain.CategoryMissingExercise {
			found = true
		}
	}
	assert.True(t, found, "orphan assignment must be flagged")
}

func TestValidateInjuryConflict(t *testing.T) {
	in := cleanInput()
	in.Analysis = &domain.ProfileAnalysis{
		Constraints: []domain.ExerciseConstraint{
			{Type: domain.ConstraintAvoidMovement, Value: "hinge", Reason: "lower back strain"},
		},
	}

	result := Validate(in)

	require.False(t, result.Pass)
	found := false
	for _, is := range result.Issues {
		if is.Category == domain.CategoryInjuryConflict {
			found = true
			assert.Equal(t, "w1d1s4", is.SlotID)
			assert.Contains(t, is.Message, "lower back strain")
		}
	}
	assert.True(t, found)
}

func TestValidateDifficultyCeiling(t *testing.T) {
	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(slotAt(1, 1, 1, domain.MovementPush))
	in.Assignment = assign([2]string{"w1d1s1", "ex-planche"})
	in.MaxDifficultyScore = 5.0

	result := Validate(in)

	require.False(t, result.Pass)
	assert.Contains(t, result.Summary, string(domain.CategoryDifficultyCeiling))
}

func TestValidateTierMismatchIsWarningNotError(t *testing.T) {
	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(slotAt(1, 1, 1, domain.MovementPush))
	in.Assignment = assign([2]string{"w1d1s1", "ex-planche"})
	in.ClientTier = domain.DifficultyNovice
	in.MaxDifficultyScore = 0 // no ceiling

	result := Validate(in)

	assert.True(t, result.Pass, "tier mismatch alone must not fail validation")
	found := false
	for _, is := range result.Issues {
		if is.Category == domain.CategoryDifficultyMismatch {
			found = true
			assert.Equal(t, domain.IssueWarning, is.Type)
		}
	}
	assert.True(t, found)
}

func TestValidateMissingPatternWarnings(t *testing.T) {
	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(slotAt(1, 1, 1, domain.MovementPush))
	in.Assignment = assign([2]string{"w1d1s1", "ex-press"})

	result := Validate(in)

	assert.True(t, result.Pass)
	warnings := 0
	for _, is := range result.Issues {
		if is.Category == domain.CategoryMissingMovementPattern {
			warnings++
		}
	}
	// pull, squat and hinge are all absent
	assert.Equal(t, 3, warnings)
}

func TestValidatePushPullImbalance(t *testing.T) {
	slots := []domain.Slot{
		slotAt(1, 1, 1, domain.MovementPush),
		slotAt(1, 1, 2, domain.MovementPush),
		slotAt(1, 1, 3, domain.MovementPush),
		slotAt(1, 1, 4, domain.MovementPull),
	}
	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(slots...)
	in.Assignment = assign(
		[2]string{"w1d1s1", "ex-press"},
		[2]string{"w1d1s2", "ex-pushup"},
		[2]string{"w1d1s3", "ex-planche"},
		[2]string{"w1d1s4", "ex-row"},
	)
	in.ClientTier = domain.DifficultyElite

	result := Validate(in)

	found := false
	for _, is := range result.Issues {
		if is.Category == domain.CategoryPushPullImbalance {
			found = true
			assert.Equal(t, domain.IssueWarning, is.Type)
		}
	}
	assert.True(t, found, "3:1 push/pull over 4+ exercises should warn")
}

func TestValidateExcessiveExercises(t *testing.T) {
	var slots []domain.Slot
	var pairs [][2]string
	exercises := testLibrary()
	for i := 1; i <= 13; i++ {
		slots = append(slots, slotAt(1, 1, i, domain.MovementPush))
		pairs = append(pairs, [2]string{domain.SlotID(1, 1, i), exercises[i%len(exercises)].ID})
	}

	in := cleanInput()
	in.Skeleton = oneWeekSkeleton(slots...)
	in.Assignment = assign(pairs...)
	in.ClientTier = domain.DifficultyElite

	result := Validate(in)

	require.False(t, result.Pass)
	found := false
	for _, is := range result.Issues {
		if is.Category == domain.CategoryExcessiveExercises {
			found = true
			assert.Equal(t, domain.IssueError, is.Type)
		}
	}
	assert.True(t, found)

	// 11 slots is a warning, not an error.
	in.Skeleton = oneWeekSkeleton(slots[:11]...)
	in.Assignment = assign(pairs[:11]...)
	result = Validate(in)
	for _, is := range result.Issues {
		if is.Category == domain.CategoryExcessiveExercises {
			assert.Equal(t, domain.IssueWarning, is.Type)
		}
	}
}

func TestSummarizeCountsAndSorts(t *testing.T) {
	in := cleanInput()
	in.AvailableEquipment = []string{"dumbbell", "bench"}

	result := Validate(in)

	assert.Contains(t, result.Summary, "2 errors")
	assert.Contains(t, result.Summary, "equipment_violation: 2")
}

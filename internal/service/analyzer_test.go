package service

import (
	"alcyxob/coach-ai/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noviceProfile() domain.NormalizedProfile {
	return domain.NormalizedProfile{
		Goals:            []string{"hypertrophy"},
		Equipment:        []string{"dumbbell"},
		TrainingAge:      domain.DifficultyNovice,
		SessionsPerWeek:  2,
		SessionLengthMin: 60,
		DurationWeeks:    8,
	}
}

func analyzeWith(t *testing.T, response string, profile domain.NormalizedProfile, req domain.GenerationRequest) *domain.ProfileAnalysis {
	t.Helper()
	analyzer := NewProfileAnalyzer(&fakeCompleter{responses: []string{response}})
	analysis, usage, err := analyzer.Analyze(context.Background(), profile, req, "")
	require.NoError(t, err)
	require.Equal(t, 10, usage.TotalTokens)
	return analysis
}

func TestAnalyzeClampsIllegalSplit(t *testing.T) {
	// push_pull_legs is not a legal split for 2 sessions/week.
	analysis := analyzeWith(t, `{"splitType":"push_pull_legs","periodization":"linear","trainingAge":"novice"}`,
		noviceProfile(), domain.GenerationRequest{})

	assert.Equal(t, domain.SplitFullBody, analysis.SplitType)
}

func TestAnalyzeSplitOverrideWins(t *testing.T) {
	analysis := analyzeWith(t, `{"splitType":"full_body","periodization":"linear","trainingAge":"novice"}`,
		noviceProfile(), domain.GenerationRequest{SplitOverride: domain.SplitUpperLower})

	assert.Equal(t, domain.SplitUpperLower, analysis.SplitType)
}

func TestAnalyzeClampsPeriodizationForNovice(t *testing.T) {
	analysis := analyzeWith(t, `{"splitType":"full_body","periodization":"block","trainingAge":"novice"}`,
		noviceProfile(), domain.GenerationRequest{})

	assert.Equal(t, domain.PeriodizationLinear, analysis.Periodization)
}

func TestAnalyzeClampsVolumeToTrainingAgeBand(t *testing.T) {
	analysis := analyzeWith(t,
		`{"splitType":"full_body","periodization":"linear","trainingAge":"novice",
		  "volumeTargets":[{"muscleGroup":"chest","weeklySets":30,"priority":1},{"muscleGroup":"back","weeklySets":2,"priority":2}]}`,
		noviceProfile(), domain.GenerationRequest{})

	require.Len(t, analysis.VolumeTargets, 2)
	assert.Equal(t, 14, analysis.VolumeTargets[0].WeeklySets) // novice band is 10-14
	assert.Equal(t, 10, analysis.VolumeTargets[1].WeeklySets)
}

func TestAnalyzeWeeklyMinutesCapScalesVolume(t *testing.T) {
	profile := noviceProfile()
	profile.SessionsPerWeek = 2
	profile.SessionLengthMin = 40 // 80 weekly minutes -> cap at 20 total sets

	analysis := analyzeWith(t,
		`{"splitType":"full_body","periodization":"linear","trainingAge":"novice",
		  "volumeTargets":[{"muscleGroup":"chest","weeklySets":14,"priority":1},{"muscleGroup":"back","weeklySets":14,"priority":2}]}`,
		profile, domain.GenerationRequest{})

	total := 0
	for _, vt := range analysis.VolumeTargets {
		total += vt.WeeklySets
	}
	assert.LessOrEqual(t, total, 20)
}

func TestAnalyzeShortSessionShape(t *testing.T) {
	profile := noviceProfile()
	profile.SessionLengthMin = 30

	analysis := analyzeWith(t,
		`{"splitType":"full_body","periodization":"linear","trainingAge":"novice",
		  "session":{"warmupMin":5,"mainMin":20,"cooldownMin":5,"minExercises":8,"maxExercises":10}}`,
		profile, domain.GenerationRequest{})

	assert.Equal(t, 4, analysis.Session.MinExercises)
	assert.Equal(t, 5, analysis.Session.MaxExercises)
	assert.Equal(t, 0, analysis.Session.CooldownMin, "30-minute sessions get no dedicated cool-down")
}

func TestAnalyzeUncoveredInjuryGetsConstraint(t *testing.T) {
	profile := noviceProfile()
	profile.Injuries = []string{"knee pain"}

	analysis := analyzeWith(t, `{"splitType":"full_body","periodization":"linear","trainingAge":"novice"}`,
		profile, domain.GenerationRequest{})

	require.Len(t, analysis.Constraints, 1)
	assert.Equal(t, domain.ConstraintLimitLoad, analysis.Constraints[0].Type)
	assert.Equal(t, "knee pain", analysis.Constraints[0].Value)
}

func TestAnalyzeCoveredInjuryNotDuplicated(t *testing.T) {
	profile := noviceProfile()
	profile.Injuries = []string{"knee pain"}

	analysis := analyzeWith(t,
		`{"splitType":"full_body","periodization":"linear","trainingAge":"novice",
		  "constraints":[{"type":"avoid_movement","value":"lunge","reason":"client reports knee pain"}]}`,
		profile, domain.GenerationRequest{})

	require.Len(t, analysis.Constraints, 1)
	assert.Equal(t, domain.ConstraintAvoidMovement, analysis.Constraints[0].Type)
}

func TestAnalyzeMissingTrainingAgeFallsBackToProfile(t *testing.T) {
	analysis := analyzeWith(t, `{"splitType":"full_body","periodization":"linear"}`,
		noviceProfile(), domain.GenerationRequest{})

	assert.Equal(t, domain.DifficultyNovice, analysis.TrainingAge)
}

func TestAnalyzePropagatesCompleterError(t *testing.T) {
	analyzer := NewProfileAnalyzer(&fakeCompleter{err: assert.AnError})
	_, _, err := analyzer.Analyze(context.Background(), noviceProfile(), domain.GenerationRequest{}, "")
	assert.Error(t, err)
}

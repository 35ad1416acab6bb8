package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/llm"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// volumeBand is the allowed weekly-sets-per-muscle-group range for a
// training age.
type volumeBand struct{ min, max int }

var volumeBands = map[domain.Difficulty]volumeBand{
	domain.DifficultyBeginner:     {10, 14},
	domain.DifficultyNovice:       {10, 14},
	domain.DifficultyIntermediate: {14, 20},
	domain.DifficultyAdvanced:     {16, 24},
	domain.DifficultyElite:        {20, 30},
}

// allowedSplits maps sessions/week to the acceptable splits, first entry is
// the preferred fallback.
var allowedSplits = map[int][]domain.SplitType{
	1: {domain.SplitFullBody},
	2: {domain.SplitFullBody},
	3: {domain.SplitFullBody, domain.SplitPushPullLegs},
	4: {domain.SplitUpperLower, domain.SplitPushPull},
	5: {domain.SplitPushPullLegs, domain.SplitBodyPart},
	6: {domain.SplitPushPullLegs, domain.SplitBodyPart},
	7: {domain.SplitBodyPart, domain.SplitMovementPattern},
}

// allowedPeriodizations maps training age to acceptable schemes.
var allowedPeriodizations = map[domain.Difficulty][]domain.Periodization{
	domain.DifficultyBeginner:     {domain.PeriodizationLinear, domain.PeriodizationNone},
	domain.DifficultyNovice:       {domain.PeriodizationLinear, domain.PeriodizationNone},
	domain.DifficultyIntermediate: {domain.PeriodizationLinear, domain.PeriodizationUndulating},
	domain.DifficultyAdvanced:     {domain.PeriodizationBlock, domain.PeriodizationUndulating},
	domain.DifficultyElite:        {domain.PeriodizationBlock, domain.PeriodizationUndulating},
}

// ProfileAnalyzer is generative step 1: client profile -> structured
// training analysis.
type ProfileAnalyzer interface {
	Analyze(ctx context.Context, profile domain.NormalizedProfile, req domain.GenerationRequest, corrective string) (*domain.ProfileAnalysis, domain.TokenUsage, error)
}

type profileAnalyzer struct {
	llm llm.Completer
}

// NewProfileAnalyzer creates a new profile analyzer agent.
func NewProfileAnalyzer(completer llm.Completer) ProfileAnalyzer {
	return &profileAnalyzer{llm: completer}
}

const analyzerSystemPrompt = `You are an expert strength and conditioning coach. Analyze the client profile and respond with ONLY a JSON object matching this schema:
{
  "splitType": "full_body|upper_lower|push_pull|push_pull_legs|body_part|movement_pattern",
  "periodization": "none|linear|undulating|block",
  "volumeTargets": [{"muscleGroup": string, "weeklySets": int, "priority": int}],
  "constraints": [{"type": "avoid_movement|avoid_equipment|avoid_muscle|limit_load|require_unilateral", "value": string, "reason": string}],
  "session": {"warmupMin": int, "mainMin": int, "cooldownMin": int, "minExercises": int, "maxExercises": int},
  "trainingAge": "beginner|novice|intermediate|advanced|elite",
  "notes": string
}

Rules you must follow:
- Weekly sets per muscle group by training age: novice 10-14, intermediate 14-20, advanced 16-24, elite 20-30.
- Split by sessions/week: 1-2 full_body; 3 full_body or push_pull_legs; 4 upper_lower or push_pull; 5-6 push_pull_legs or body_part; 7 body_part or movement_pattern.
- Periodization by training age: novice linear or none; intermediate linear or undulating; advanced/elite block or undulating.
- Total weekly minutes (sessions x length) caps total weekly sets: under 120 min cap at 30 sets, under 90 min cap at 20 sets.
- Sessions of 30 minutes or less: 4-5 exercises, no dedicated cool-down. Sessions of 45 minutes or less: 5-6 exercises, at most one isolation exercise.
- Every injury and every piece of unavailable equipment MUST produce an explicit constraint entry with a reason. Never silently drop one.`

// Analyze runs the analyzer prompt and applies deterministic clamps so the
// design rules hold even when the model drifts.
func (a *profileAnalyzer) Analyze(ctx context.Context, profile domain.NormalizedProfile, req domain.GenerationRequest, corrective string) (*domain.ProfileAnalysis, domain.TokenUsage, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("failed to encode profile: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Client profile:\n%s\n", profileJSON)
	fmt.Fprintf(&sb, "\nRequest: %d weeks, %d sessions/week, %d minutes/session.\n",
		profile.DurationWeeks, profile.SessionsPerWeek, profile.SessionLengthMin)
	if req.AdditionalInstructions != "" {
		fmt.Fprintf(&sb, "Additional instructions: %s\n", req.AdditionalInstructions)
	}
	if corrective != "" {
		fmt.Fprintf(&sb, "\nA previous attempt failed validation. Fix these issues:\n%s\n", corrective)
	}

	var analysis domain.ProfileAnalysis
	usage, err := a.llm.CompleteJSON(ctx, analyzerSystemPrompt, sb.String(), &analysis)
	if err != nil {
		return nil, usage, fmt.Errorf("profile analysis step failed: %w", err)
	}

	clampAnalysis(&analysis, profile, req)
	return &analysis, usage, nil
}

// clampAnalysis enforces the analyzer design rules on the parsed output.
func clampAnalysis(analysis *domain.ProfileAnalysis, profile domain.NormalizedProfile, req domain.GenerationRequest) {
	if analysis.TrainingAge.TierIndex() < 0 {
		analysis.TrainingAge = profile.TrainingAge
	}

	// Split must be legal for the session count; an explicit override wins.
	splits := allowedSplits[clampInt(profile.SessionsPerWeek, 1, 7)]
	if req.SplitOverride != "" {
		analysis.SplitType = req.SplitOverride
	} else if !containsSplit(splits, analysis.SplitType) {
		analysis.SplitType = splits[0]
	}

	periodizations := allowedPeriodizations[analysis.TrainingAge]
	if periodizations == nil {
		periodizations = allowedPeriodizations[domain.DifficultyNovice]
	}
	if req.PeriodizationOverride != "" {
		analysis.Periodization = req.PeriodizationOverride
	} else if !containsPeriodization(periodizations, analysis.Periodization) {
		analysis.Periodization = periodizations[0]
	}

	// Volume targets clamp to the training-age band.
	band, ok := volumeBands[analysis.TrainingAge]
	if !ok {
		band = volumeBands[domain.DifficultyNovice]
	}
	for i := range analysis.VolumeTargets {
		analysis.VolumeTargets[i].WeeklySets = clampInt(analysis.VolumeTargets[i].WeeklySets, band.min, band.max)
	}

	// Weekly time budget caps the total set count.
	weeklyMinutes := profile.SessionsPerWeek * profile.SessionLengthMin
	setCap := 0
	switch {
	case weeklyMinutes < 90:
		setCap = 20
	case weeklyMinutes < 120:
		setCap = 30
	}
	if setCap > 0 {
		total := 0
		for _, vt := range analysis.VolumeTargets {
			total += vt.WeeklySets
		}
		if total > setCap {
			scale := float64(setCap) / float64(total)
			for i := range analysis.VolumeTargets {
				scaled := int(float64(analysis.VolumeTargets[i].WeeklySets) * scale)
				if scaled < 1 {
					scaled = 1
				}
				analysis.VolumeTargets[i].WeeklySets = scaled
			}
		}
	}

	// Short sessions shape the session structure.
	switch {
	case profile.SessionLengthMin <= 30:
		analysis.Session.MinExercises = 4
		analysis.Session.MaxExercises = 5
		analysis.Session.CooldownMin = 0
	case profile.SessionLengthMin <= 45:
		analysis.Session.MinExercises = 5
		analysis.Session.MaxExercises = 6
	}
	if analysis.Session.MaxExercises == 0 {
		analysis.Session.MinExercises = 5
		analysis.Session.MaxExercises = 8
	}

	// Injuries must never be silently dropped: any injury the model did not
	// translate into a constraint gets a conservative load limit.
	for _, injury := range profile.Injuries {
		if !injuryCovered(analysis.Constraints, injury) {
			analysis.Constraints = append(analysis.Constraints, domain.ExerciseConstraint{
				Type:   domain.ConstraintLimitLoad,
				Value:  injury,
				Reason: fmt.Sprintf("reported injury: %s", injury),
			})
		}
	}
}

func injuryCovered(constraints []domain.ExerciseConstraint, injury string) bool {
	needle := strings.ToLower(injury)
	for _, c := range constraints {
		if strings.Contains(strings.ToLower(c.Reason), needle) || strings.Contains(strings.ToLower(c.Value), needle) {
			return true
		}
	}
	return false
}

func containsSplit(list []domain.SplitType, s domain.SplitType) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPeriodization(list []domain.Periodization, p domain.Periodization) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

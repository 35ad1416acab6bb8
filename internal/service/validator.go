package service

import (
	"alcyxob/coach-ai/internal/domain"
	"fmt"
	"sort"
	"strings"
)

// Per-day slot count thresholds.
const (
	maxSlotsPerDayError   = 12
	maxSlotsPerDayWarning = 10
)

// fundamentalPatterns are the movement patterns every training week should
// touch at least once.
var fundamentalPatterns = []domain.MovementPattern{
	domain.MovementPush,
	domain.MovementPull,
	domain.MovementSquat,
	domain.MovementHinge,
}

// ValidationInput is everything the validation engine needs. All fields are
// read-only; equipment lists are expected in canonical (normalized) form.
type ValidationInput struct {
	Skeleton           *domain.ProgramSkeleton
	Assignment         *domain.ExerciseAssignment
	Analysis           *domain.ProfileAnalysis
	Library            []domain.CompressedExercise
	AvailableEquipment []string
	ClientTier         domain.Difficulty
	MaxDifficultyScore float64 // 0 = no ceiling
}

// Validate is the deterministic safety gate: it checks the fully assembled
// program against constraints, equipment, safety and balance rules in a
// single pass. Pure function, no I/O; identical inputs always yield an
// identical ValidationResult, which the repair loop relies on. Pass is true
// iff the error count is zero.
func Validate(in ValidationInput) domain.ValidationResult {
	var issues []domain.ValidationIssue
	add := func(t domain.IssueType, cat domain.IssueCategory, slotID, format string, args ...any) {
		issues = append(issues, domain.ValidationIssue{
			Type:     t,
			Category: cat,
			Message:  fmt.Sprintf(format, args...),
			SlotID:   slotID,
		})
	}

	library := make(map[string]domain.CompressedExercise, len(in.Library))
	for _, ex := range in.Library {
		library[ex.ID] = ex
	}

	available := make(map[string]bool, len(in.AvailableEquipment))
	for _, eq := range in.AvailableEquipment {
		available[eq] = true
	}

	avoidEquipment := make(map[string]string)
	avoidMovement := make(map[domain.MovementPattern]string)
	avoidMuscle := make(map[string]string)
	if in.Analysis != nil {
		for _, c := range in.Analysis.Constraints {
			switch c.Type {
			case domain.ConstraintAvoidEquipment:
				avoidEquipment[c.Value] = c.Reason
			case domain.ConstraintAvoidMovement:
				avoidMovement[domain.MovementPattern(c.Value)] = c.Reason
			case domain.ConstraintAvoidMuscle:
				avoidMuscle[c.Value] = c.Reason
			}
		}
	}

	bySlot := make(map[string]domain.SlotAssignment)
	assignedSlots := make(map[string]bool)
	if in.Assignment != nil {
		for _, as := range in.Assignment.Assignments {
			bySlot[as.SlotID] = as
			assignedSlots[as.SlotID] = true
		}
	}

	clientTierIdx := in.ClientTier.TierIndex()
	knownSlots := make(map[string]bool)

	for _, week := range in.Skeleton.Weeks {
		weekPatterns := make(map[domain.MovementPattern]bool)
		pushCount, pullCount := 0, 0

		for _, day := range week.Days {
			slotCount := len(day.Slots)
			switch {
			case slotCount > maxSlotsPerDayError:
				add(domain.IssueError, domain.CategoryExcessiveExercises, "",
					"week %d day %d has %d exercises; more than %d is unsafe", week.Number, day.DayOfWeek, slotCount, maxSlotsPerDayError)
			case slotCount > maxSlotsPerDayWarning:
				add(domain.IssueWarning, domain.CategoryExcessiveExercises, "",
					"week %d day %d has %d exercises; consider reducing volume", week.Number, day.DayOfWeek, slotCount)
			}

			seenToday := make(map[string]bool)
			for _, slot := range day.Slots {
				knownSlots[slot.ID] = true

				as, ok := bySlot[slot.ID]
				if !ok {
					add(domain.IssueError, domain.CategoryMissingExercise, slot.ID,
						"slot %s has no exercise assignment", slot.ID)
					continue
				}

				ex, ok := library[as.ExerciseID]
				if !ok {
					add(domain.IssueError, domain.CategoryMissingExercise, slot.ID,
						"exercise %q (%s) is not in the library snapshot", as.ExerciseName, as.ExerciseID)
					continue
				}

				for _, eq := range ex.Equipment {
					if eq == "bodyweight" {
						continue
					}
					if !available[eq] {
						add(domain.IssueError, domain.CategoryEquipmentViolation, slot.ID,
							"%q requires %s which is not available", ex.Name, eq)
					} else if reason, avoided := avoidEquipment[eq]; avoided {
						add(domain.IssueError, domain.CategoryEquipmentViolation, slot.ID,
							"%q requires %s which must be avoided: %s", ex.Name, eq, reason)
					}
				}

				if reason, ok := avoidMovement[ex.MovementPattern]; ok {
					add(domain.IssueError, domain.CategoryInjuryConflict, slot.ID,
						"%q uses the %s pattern which must be avoided: %s", ex.Name, ex.MovementPattern, reason)
				}
				for _, muscle := range ex.PrimaryMuscles {
					if reason, ok := avoidMuscle[muscle]; ok {
						add(domain.IssueError, domain.CategoryInjuryConflict, slot.ID,
							"%q targets %s which must be avoided: %s", ex.Name, muscle, reason)
					}
				}

				// The later slot carries the duplicate error.
				if seenToday[as.ExerciseID] {
					add(domain.IssueError, domain.CategoryDuplicateExercise, slot.ID,
						"%q is assigned twice on week %d day %d", ex.Name, week.Number, day.DayOfWeek)
				}
				seenToday[as.ExerciseID] = true

				if in.MaxDifficultyScore > 0 && ex.DifficultyScore > in.MaxDifficultyScore {
					add(domain.IssueError, domain.CategoryDifficultyCeiling, slot.ID,
						"%q difficulty score %.1f exceeds the ceiling %.1f", ex.Name, ex.DifficultyScore, in.MaxDifficultyScore)
				}

				if clientTierIdx >= 0 {
					if exIdx := ex.Difficulty.TierIndex(); exIdx > clientTierIdx+1 {
						add(domain.IssueWarning, domain.CategoryDifficultyMismatch, slot.ID,
							"%q is %s, more than one tier above the client's %s level", ex.Name, ex.Difficulty, in.ClientTier)
					}
				}

				weekPatterns[ex.MovementPattern] = true
				switch ex.MovementPattern {
				case domain.MovementPush:
					pushCount++
				case domain.MovementPull:
					pullCount++
				}
			}
		}

		for _, p := range fundamentalPatterns {
			if !weekPatterns[p] {
				add(domain.IssueWarning, domain.CategoryMissingMovementPattern, "",
					"week %d has no %s exercise", week.Number, p)
			}
		}

		if pushCount+pullCount >= 4 {
			minority, majority := pushCount, pullCount
			if minority > majority {
				minority, majority = majority, minority
			}
			if minority*2 < majority {
				add(domain.IssueWarning, domain.CategoryPushPullImbalance, "",
					"week %d push/pull ratio is %d:%d; the minority side is under half the majority", week.Number, pushCount, pullCount)
			}
		}
	}

	// Assignments pointing at slots the skeleton does not have break the
	// bijection invariant just as hard as an empty slot does.
	if in.Assignment != nil {
		for _, as := range in.Assignment.Assignments {
			if !knownSlots[as.SlotID] {
				add(domain.IssueError, domain.CategoryMissingExercise, as.SlotID,
					"assignment references slot %s which does not exist in the skeleton", as.SlotID)
			}
		}
	}

	result := domain.ValidationResult{Issues: issues}
	result.Pass = result.ErrorCount() == 0
	result.Summary = summarize(issues)
	return result
}

// summarize builds the one-line report with per-category counts in a stable
// (sorted) order.
func summarize(issues []domain.ValidationIssue) string {
	errs, warns := 0, 0
	counts := make(map[domain.IssueCategory]int)
	for _, is := range issues {
		if is.Type == domain.IssueError {
			errs++
		} else {
			warns++
		}
		counts[is.Category]++
	}

	base := fmt.Sprintf("%d errors, %d warnings", errs, warns)
	if len(counts) == 0 {
		return base
	}

	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, fmt.Sprintf("%s: %d", c, counts[domain.IssueCategory(c)]))
	}
	return base + " (" + strings.Join(parts, ", ") + ")"
}

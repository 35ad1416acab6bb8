package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/llm"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandidates means not even a substitute could be found for a slot.
var ErrNoCandidates = errors.New("no library exercise can fill the slot")

// ExerciseSelector is generative step 3: skeleton + compressed library ->
// concrete exercise assignments per slot.
type ExerciseSelector interface {
	Select(ctx context.Context, skeleton *domain.ProgramSkeleton, library []domain.CompressedExercise, analysis *domain.ProfileAnalysis, availableEquipment []string, corrective string) (*domain.ExerciseAssignment, domain.TokenUsage, error)
}

type exerciseSelector struct {
	llm llm.Completer
}

// NewExerciseSelector creates a new exercise selector agent.
func NewExerciseSelector(completer llm.Completer) ExerciseSelector {
	return &exerciseSelector{llm: completer}
}

const selectorSystemPrompt = `You are an expert coach assigning exercises to a program skeleton. Respond with ONLY a JSON object matching this schema:
{
  "assignments": [{"slotId": string, "exerciseId": string, "exerciseName": string, "note": string}],
  "substitutionNotes": string
}

Rules you must follow:
- Assign exactly one exercise to every slot id in the skeleton. Use ONLY exercise ids from the provided library; never invent ids.
- Match the slot's movement pattern and target muscles; compound slots get compound exercises, isolation slots get isolation exercises.
- Respect every constraint and only use available equipment.
- Never assign the same exercise twice within one day.
- When no ideal match exists, pick the nearest available substitute and explain it in substitutionNotes.`

// Select runs the selector prompt, then repairs the result into a strict
// bijection: unknown ids are re-resolved from the library, missing slots are
// filled with the nearest substitute, and every substitution is recorded
// rather than silently dropped.
func (s *exerciseSelector) Select(ctx context.Context, skeleton *domain.ProgramSkeleton, library []domain.CompressedExercise, analysis *domain.ProfileAnalysis, availableEquipment []string, corrective string) (*domain.ExerciseAssignment, domain.TokenUsage, error) {
	skeletonJSON, err := json.Marshal(skeleton)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("failed to encode skeleton: %w", err)
	}
	libraryJSON, err := json.Marshal(library)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("failed to encode library: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Program skeleton:\n%s\n", skeletonJSON)
	fmt.Fprintf(&sb, "\nExercise library:\n%s\n", libraryJSON)
	fmt.Fprintf(&sb, "\nAvailable equipment: %s\n", strings.Join(availableEquipment, ", "))
	if len(analysis.Constraints) > 0 {
		constraintsJSON, _ := json.Marshal(analysis.Constraints)
		fmt.Fprintf(&sb, "Constraints:\n%s\n", constraintsJSON)
	}
	if corrective != "" {
		fmt.Fprintf(&sb, "\nA previous attempt failed validation. Fix these issues:\n%s\n", corrective)
	}

	var assignment domain.ExerciseAssignment
	usage, err := s.llm.CompleteJSON(ctx, selectorSystemPrompt, sb.String(), &assignment)
	if err != nil {
		return nil, usage, fmt.Errorf("exercise selection step failed: %w", err)
	}

	repaired, err := repairAssignment(&assignment, skeleton, library, analysis, availableEquipment)
	if err != nil {
		return nil, usage, fmt.Errorf("exercise selection step failed: %w", err)
	}
	return repaired, usage, nil
}

// repairAssignment rebuilds the assignment in skeleton order so that every
// slot appears exactly once and every exercise id exists in the library.
func repairAssignment(raw *domain.ExerciseAssignment, skeleton *domain.ProgramSkeleton, library []domain.CompressedExercise, analysis *domain.ProfileAnalysis, availableEquipment []string) (*domain.ExerciseAssignment, error) {
	libByID := make(map[string]domain.CompressedExercise, len(library))
	for _, ex := range library {
		libByID[ex.ID] = ex
	}
	proposed := raw.BySlot()

	out := &domain.ExerciseAssignment{SubstitutionNotes: raw.SubstitutionNotes}
	var subs []string

	for _, week := range skeleton.Weeks {
		for _, day := range week.Days {
			usedToday := make(map[string]bool)

			for _, slot := range day.Slots {
				pick, ok := proposed[slot.ID]
				ex, known := libByID[pick.ExerciseID]

				valid := ok && known && !usedToday[pick.ExerciseID]
				if valid {
					out.Assignments = append(out.Assignments, domain.SlotAssignment{
						SlotID:       slot.ID,
						ExerciseID:   ex.ID,
						ExerciseName: ex.Name,
						Note:         pick.Note,
					})
					usedToday[ex.ID] = true
					continue
				}

				substitute, found := nearestSubstitute(slot, library, analysis, availableEquipment, usedToday)
				if !found {
					return nil, fmt.Errorf("%w: slot %s (%s)", ErrNoCandidates, slot.ID, slot.MovementPattern)
				}
				out.Assignments = append(out.Assignments, domain.SlotAssignment{
					SlotID:       slot.ID,
					ExerciseID:   substitute.ID,
					ExerciseName: substitute.Name,
					Note:         "substituted",
				})
				usedToday[substitute.ID] = true
				subs = append(subs, fmt.Sprintf("slot %s: assigned %q as nearest available substitute", slot.ID, substitute.Name))
			}
		}
	}

	if len(subs) > 0 {
		joined := strings.Join(subs, "; ")
		if out.SubstitutionNotes != "" {
			out.SubstitutionNotes += "; " + joined
		} else {
			out.SubstitutionNotes = joined
		}
	}
	return out, nil
}

// nearestSubstitute scores every unused library exercise against the slot
// and returns the best. Scoring is deterministic: library order breaks ties.
func nearestSubstitute(slot domain.Slot, library []domain.CompressedExercise, analysis *domain.ProfileAnalysis, availableEquipment []string, usedToday map[string]bool) (domain.CompressedExercise, bool) {
	available := make(map[string]bool, len(availableEquipment))
	for _, eq := range availableEquipment {
		available[eq] = true
	}

	avoidMovement := make(map[domain.MovementPattern]bool)
	avoidMuscle := make(map[string]bool)
	avoidEquipment := make(map[string]bool)
	for _, c := range analysis.Constraints {
		switch c.Type {
		case domain.ConstraintAvoidMovement:
			avoidMovement[domain.MovementPattern(c.Value)] = true
		case domain.ConstraintAvoidMuscle:
			avoidMuscle[c.Value] = true
		case domain.ConstraintAvoidEquipment:
			avoidEquipment[c.Value] = true
		}
	}

	targets := make(map[string]bool, len(slot.TargetMuscles))
	for _, m := range slot.TargetMuscles {
		targets[m] = true
	}

	wantCompound := slot.Role == domain.RolePrimaryCompound || slot.Role == domain.RoleSecondaryCompound

	best := domain.CompressedExercise{}
	bestScore := -1
	for _, ex := range library {
		if usedToday[ex.ID] || avoidMovement[ex.MovementPattern] {
			continue
		}
		if conflictsMuscles(ex.PrimaryMuscles, avoidMuscle) {
			continue
		}
		if !equipmentSatisfied(ex, available, avoidEquipment) {
			continue
		}

		score := 0
		if ex.MovementPattern == slot.MovementPattern {
			score += 4
		}
		for _, m := range ex.PrimaryMuscles {
			if targets[m] {
				score += 2
			}
		}
		for _, m := range ex.SecondaryMuscles {
			if targets[m] {
				score++
			}
		}
		if ex.IsCompound == wantCompound {
			score += 2
		}

		if score > bestScore {
			best, bestScore = ex, score
		}
	}
	return best, bestScore >= 0
}

func conflictsMuscles(muscles []string, avoid map[string]bool) bool {
	for _, m := range muscles {
		if avoid[m] {
			return true
		}
	}
	return false
}

func equipmentSatisfied(ex domain.CompressedExercise, available, avoid map[string]bool) bool {
	for _, eq := range ex.Equipment {
		if eq == "bodyweight" {
			continue
		}
		if !available[eq] || avoid[eq] {
			return false
		}
	}
	return true
}

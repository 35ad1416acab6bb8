package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/llm"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Rest-period defaults in seconds by slot role.
var restDefaults = map[domain.SlotRole]int{
	domain.RoleWarmup:            30,
	domain.RolePrimaryCompound:   150,
	domain.RoleSecondaryCompound: 120,
	domain.RoleAccessory:         75,
	domain.RoleIsolation:         45,
	domain.RoleCooldown:          0,
}

// roleOrder defines compound-before-isolation ordering within a day.
var roleOrder = map[domain.SlotRole]int{
	domain.RoleWarmup:            0,
	domain.RolePrimaryCompound:   1,
	domain.RoleSecondaryCompound: 2,
	domain.RoleAccessory:         3,
	domain.RoleIsolation:         4,
	domain.RoleCooldown:          5,
}

// advancedTechniques are never assigned to novice-or-below training ages.
var advancedTechniques = map[domain.Technique]bool{
	domain.TechniqueDropset:   true,
	domain.TechniqueRestPause: true,
	domain.TechniqueAMRAP:     true,
}

// ProgramArchitect is generative step 2: analysis -> program skeleton with
// weeks, days and slots but no concrete exercises yet.
type ProgramArchitect interface {
	Design(ctx context.Context, analysis *domain.ProfileAnalysis, profile domain.NormalizedProfile, corrective string) (*domain.ProgramSkeleton, domain.TokenUsage, error)
}

type programArchitect struct {
	llm llm.Completer
}

// NewProgramArchitect creates a new program architect agent.
func NewProgramArchitect(completer llm.Completer) ProgramArchitect {
	return &programArchitect{llm: completer}
}

const architectSystemPrompt = `You are an expert program designer. Build a program skeleton from the training analysis and respond with ONLY a JSON object matching this schema:
{
  "name": string,
  "weeks": [{
    "number": int,
    "phase": string,
    "intensityModifier": number,
    "days": [{
      "dayOfWeek": int,
      "label": string,
      "focus": string,
      "slots": [{
        "role": "warm_up|primary_compound|secondary_compound|accessory|isolation|cool_down",
        "movementPattern": "push|pull|squat|hinge|lunge|carry|rotation|core|cardio",
        "targetMuscles": [string],
        "sets": int,
        "reps": string,
        "restSec": int,
        "rpe": number,
        "tempo": string,
        "groupTag": string,
        "technique": "straight_sets|dropset|rest_pause|amrap|tempo"
      }]
    }]
  }]
}

Rules you must follow:
- Compound slots come before accessory and isolation slots within a day.
- Insert a deload week (about 40% volume reduction, phase "deload") every 3-4 weeks for intermediate or more experienced clients.
- Slots sharing a groupTag form a superset/giant-set/circuit; pair compatible roles, typically antagonist muscle groups.
- Rest by role: compounds 90-180s, accessories 60-90s, isolations 30-60s.
- Never assign dropset, rest_pause or amrap techniques to novice or beginner clients.
- Honor every constraint from the analysis; respect the session structure's exercise counts.`

// Design runs the architect prompt, then enforces the structural invariants
// deterministically: canonical unique slot ids, role ordering, rest defaults
// and the technique gate.
func (p *programArchitect) Design(ctx context.Context, analysis *domain.ProfileAnalysis, profile domain.NormalizedProfile, corrective string) (*domain.ProgramSkeleton, domain.TokenUsage, error) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("failed to encode analysis: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Training analysis:\n%s\n", analysisJSON)
	fmt.Fprintf(&sb, "\nProgram length: %d weeks, %d sessions/week, %d minutes/session.\n",
		profile.DurationWeeks, profile.SessionsPerWeek, profile.SessionLengthMin)
	if corrective != "" {
		fmt.Fprintf(&sb, "\nA previous attempt failed validation. Fix these issues:\n%s\n", corrective)
	}

	var skeleton domain.ProgramSkeleton
	usage, err := p.llm.CompleteJSON(ctx, architectSystemPrompt, sb.String(), &skeleton)
	if err != nil {
		return nil, usage, fmt.Errorf("program architecture step failed: %w", err)
	}

	if len(skeleton.Weeks) == 0 {
		return nil, usage, fmt.Errorf("program architecture step failed: %w", llm.ErrMalformedOutput)
	}

	normalizeSkeleton(&skeleton, analysis)
	return &skeleton, usage, nil
}

// normalizeSkeleton rewrites the model's skeleton into canonical form. Slot
// ids are regenerated positionally, which makes uniqueness structural rather
// than a property the model has to get right.
func normalizeSkeleton(skeleton *domain.ProgramSkeleton, analysis *domain.ProfileAnalysis) {
	noviceOrBelow := analysis.TrainingAge.TierIndex() <= domain.DifficultyNovice.TierIndex()

	for wi := range skeleton.Weeks {
		week := &skeleton.Weeks[wi]
		week.Number = wi + 1
		if week.IntensityModifier <= 0 {
			week.IntensityModifier = 1.0
		}

		for di := range week.Days {
			day := &week.Days[di]

			// Stable sort keeps the model's ordering within a role band.
			sort.SliceStable(day.Slots, func(a, b int) bool {
				return roleOrder[day.Slots[a].Role] < roleOrder[day.Slots[b].Role]
			})

			for si := range day.Slots {
				slot := &day.Slots[si]
				slot.ID = domain.SlotID(week.Number, di+1, si+1)

				if slot.Sets <= 0 {
					slot.Sets = 3
				}
				if slot.Reps == "" {
					slot.Reps = "8-12"
				}
				if slot.RestSec <= 0 {
					slot.RestSec = restDefaults[slot.Role]
				}
				if slot.Technique == "" {
					slot.Technique = domain.TechniqueStraightSets
				}
				if noviceOrBelow && advancedTechniques[slot.Technique] {
					slot.Technique = domain.TechniqueStraightSets
				}
			}
		}
	}
}

// internal/domain/analysis.go
package domain

// SplitType is the weekly training split recommended for a client.
type SplitType string

const (
	SplitFullBody        SplitType = "full_body"
	SplitUpperLower      SplitType = "upper_lower"
	SplitPushPull        SplitType = "push_pull"
	SplitPushPullLegs    SplitType = "push_pull_legs"
	SplitBodyPart        SplitType = "body_part"
	SplitMovementPattern SplitType = "movement_pattern"
)

// Periodization is the load-progression scheme across the program.
type Periodization string

const (
	PeriodizationNone       Periodization = "none"
	PeriodizationLinear     Periodization = "linear"
	PeriodizationUndulating Periodization = "undulating"
	PeriodizationBlock      Periodization = "block"
)

// ConstraintType classifies an exercise constraint derived from injuries or
// equipment availability.
type ConstraintType string

const (
	ConstraintAvoidMovement     ConstraintType = "avoid_movement"
	ConstraintAvoidEquipment    ConstraintType = "avoid_equipment"
	ConstraintAvoidMuscle       ConstraintType = "avoid_muscle"
	ConstraintLimitLoad         ConstraintType = "limit_load"
	ConstraintRequireUnilateral ConstraintType = "require_unilateral"
)

// VolumeTarget is a per-muscle-group weekly set target with priority order.
type VolumeTarget struct {
	MuscleGroup string `json:"muscleGroup"`
	WeeklySets  int    `json:"weeklySets"`
	Priority    int    `json:"priority"` // 1 = highest
}

// ExerciseConstraint is a single restriction the later steps must honor.
// Value carries the movement pattern, equipment tag or muscle being avoided.
type ExerciseConstraint struct {
	Type   ConstraintType `json:"type"`
	Value  string         `json:"value"`
	Reason string         `json:"reason"`
}

// SessionStructure summarizes how a single session should be laid out.
type SessionStructure struct {
	WarmupMin    int `json:"warmupMin"`
	MainMin      int `json:"mainMin"`
	CooldownMin  int `json:"cooldownMin"`
	MinExercises int `json:"minExercises"`
	MaxExercises int `json:"maxExercises"`
}

// ProfileAnalysis is the output of the first generative step: a structured
// training analysis the architect builds the skeleton from. Immutable once
// produced.
type ProfileAnalysis struct {
	SplitType     SplitType            `json:"splitType"`
	Periodization Periodization        `json:"periodization"`
	VolumeTargets []VolumeTarget       `json:"volumeTargets"`
	Constraints   []ExerciseConstraint `json:"constraints,omitempty"`
	Session       SessionStructure     `json:"session"`
	TrainingAge   Difficulty           `json:"trainingAge"`
	Notes         string               `json:"notes,omitempty"`
}

// ConstraintsOf returns the constraints of the given type.
func (a *ProfileAnalysis) ConstraintsOf(t ConstraintType) []ExerciseConstraint {
	var out []ExerciseConstraint
	for _, c := range a.Constraints {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

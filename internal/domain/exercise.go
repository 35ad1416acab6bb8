// internal/domain/exercise.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Difficulty tiers for exercises and clients, ordered from easiest to hardest.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyNovice       Difficulty = "novice"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyElite        Difficulty = "elite"
)

// TierIndex returns the ordinal position of a difficulty tier, or -1 if unknown.
func (d Difficulty) TierIndex() int {
	switch d {
	case DifficultyBeginner:
		return 0
	case DifficultyNovice:
		return 1
	case DifficultyIntermediate:
		return 2
	case DifficultyAdvanced:
		return 3
	case DifficultyElite:
		return 4
	}
	return -1
}

// MovementPattern classifies the fundamental movement of an exercise.
type MovementPattern string

const (
	MovementPush     MovementPattern = "push"
	MovementPull     MovementPattern = "pull"
	MovementSquat    MovementPattern = "squat"
	MovementHinge    MovementPattern = "hinge"
	MovementLunge    MovementPattern = "lunge"
	MovementCarry    MovementPattern = "carry"
	MovementRotation MovementPattern = "rotation"
	MovementCore     MovementPattern = "core"
	MovementCardio   MovementPattern = "cardio"
)

// ForceType describes the direction of force production.
type ForceType string

const (
	ForcePush   ForceType = "push"
	ForcePull   ForceType = "pull"
	ForceStatic ForceType = "static"
)

// Exercise represents a single exercise definition in the library.
type Exercise struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	Categories       []string           `bson:"categories,omitempty" json:"categories,omitempty"` // e.g., "strength", "mobility"
	Difficulty       Difficulty         `bson:"difficulty" json:"difficulty"`
	DifficultyScore  float64            `bson:"difficultyScore" json:"difficultyScore"` // 1.0 (easiest) .. 10.0
	PrimaryMuscles   []string           `bson:"primaryMuscles" json:"primaryMuscles"`
	SecondaryMuscles []string           `bson:"secondaryMuscles,omitempty" json:"secondaryMuscles,omitempty"`
	MovementPattern  MovementPattern    `bson:"movementPattern" json:"movementPattern"`
	ForceType        ForceType          `bson:"forceType,omitempty" json:"forceType,omitempty"`
	Laterality       string             `bson:"laterality,omitempty" json:"laterality,omitempty"` // "bilateral" or "unilateral"
	Equipment        []string           `bson:"equipment,omitempty" json:"equipment,omitempty"`   // free-text, normalized at compression time
	IsBodyweight     bool               `bson:"isBodyweight" json:"isBodyweight"`
	IsCompound       bool               `bson:"isCompound" json:"isCompound"`
	VideoURL         string             `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CompressedExercise is a reduced-field projection of an Exercise suitable for
// inclusion in a model prompt. It is an immutable snapshot taken at generation
// time; equipment tags are already normalized.
type CompressedExercise struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Categories       []string        `json:"categories,omitempty"`
	Difficulty       Difficulty      `json:"difficulty"`
	DifficultyScore  float64         `json:"difficultyScore"`
	PrimaryMuscles   []string        `json:"primaryMuscles"`
	SecondaryMuscles []string        `json:"secondaryMuscles,omitempty"`
	MovementPattern  MovementPattern `json:"movementPattern"`
	ForceType        ForceType       `json:"forceType,omitempty"`
	Laterality       string          `json:"laterality,omitempty"`
	Equipment        []string        `json:"equipment,omitempty"`
	IsBodyweight     bool            `json:"isBodyweight"`
	IsCompound       bool            `json:"isCompound"`
}

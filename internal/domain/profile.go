// internal/domain/profile.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientProfile is the raw client record as stored by the coaching platform.
// Only the fields the generation pipeline consumes are modeled here; the rest
// of the client CRUD lives outside this service.
type ClientProfile struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Goals              []string           `bson:"goals,omitempty" json:"goals,omitempty"`
	Injuries           []string           `bson:"injuries,omitempty" json:"injuries,omitempty"`
	Equipment          []string           `bson:"equipment,omitempty" json:"equipment,omitempty"`
	TrainingAge        Difficulty         `bson:"trainingAge,omitempty" json:"trainingAge,omitempty"`
	PreferredDays      []int              `bson:"preferredDays,omitempty" json:"preferredDays,omitempty"` // 1 (Mon) - 7 (Sun)
	SessionLengthMin   int                `bson:"sessionLengthMin,omitempty" json:"sessionLengthMin,omitempty"`
	MaxDifficultyScore float64            `bson:"maxDifficultyScore,omitempty" json:"maxDifficultyScore,omitempty"` // 0 = no ceiling
	Notes              string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NormalizedProfile is the compact profile summary fed to the generative
// steps. Produced by the context compressor; missing optional fields are
// filled with defaults. Immutable once built.
type NormalizedProfile struct {
	ClientID           string     `json:"clientId,omitempty"`
	Goals              []string   `json:"goals"`
	Injuries           []string   `json:"injuries,omitempty"`
	Equipment          []string   `json:"equipment"` // normalized canonical tags
	TrainingAge        Difficulty `json:"trainingAge"`
	SessionsPerWeek    int        `json:"sessionsPerWeek"`
	SessionLengthMin   int        `json:"sessionLengthMin"`
	DurationWeeks      int        `json:"durationWeeks"`
	MaxDifficultyScore float64    `json:"maxDifficultyScore,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

// internal/domain/message.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is one persisted conversation turn. Assistant turns carry an
// embedding so later sessions can retrieve them as prior scenarios.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"sessionId" json:"sessionId"`
	UserID    string             `bson:"userId" json:"userId"`
	Feature   string             `bson:"feature" json:"feature"` // e.g. "chat_program", "analytics"
	Role      string             `bson:"role" json:"role"`       // "user" or "assistant"
	Content   string             `bson:"content" json:"content"`
	Embedding []float32          `bson:"embedding,omitempty" json:"-"`
	Rating    *float64           `bson:"rating,omitempty" json:"rating,omitempty"` // aggregated human quality, 1-5
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// RagContext is a retrieved-and-ranked reference injected into a prompt.
// Ephemeral: recomputed per request, never persisted.
type RagContext struct {
	Content    string
	Feature    string
	Similarity float64
	Rating     *float64
}

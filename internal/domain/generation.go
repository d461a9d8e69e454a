package domain

import (
	"context"
	"time"
)

// Generation records the outcome of one child image generation request.
type Generation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ChildKey     string    `json:"childKey"`
	PredictionID string    `json:"predictionId,omitempty"`
	Outcome      string    `json:"outcome"`
	Status       string    `json:"status,omitempty"`
	FileURL      string    `json:"fileUrl,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Fallback     bool      `json:"fallback"`
	WithImages   bool      `json:"withImages"`
	PollAttempts int       `json:"pollAttempts"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GenerationRepository persists generation records.
type GenerationRepository interface {
	Create(ctx context.Context, g *Generation) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Generation, error)
}

package entities

import (
	"errors"
	"time"
)

// Exchange represents one completed user/assistant turn: the finalized
// transcript and the generated response, with timing metadata.
type Exchange struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	OwnerID    string    `json:"owner_id" bson:"owner_id"`
	SessionID  string    `json:"session_id" bson:"session_id"`
	Transcript string    `json:"transcript" bson:"transcript"`
	Confidence float64   `json:"confidence" bson:"confidence"`
	Response   string    `json:"response" bson:"response"`
	Emotion    string    `json:"emotion,omitempty" bson:"emotion,omitempty"`
	LatencyMs  int64     `json:"latency_ms" bson:"latency_ms"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Validate validates the exchange data
func (e *Exchange) Validate() error {
	if e.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if e.SessionID == "" {
		return errors.New("session_id is required")
	}
	if e.Transcript == "" {
		return errors.New("transcript is required")
	}
	return nil
}

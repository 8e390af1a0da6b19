package api

import (
	"encoding/json"
	"time"
)

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Page is the paginated listing envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// User is the authenticated account.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Call is one call record.
type Call struct {
	ID              string     `json:"id"`
	CallerID        string     `json:"caller_id"`
	ReceiverID      string     `json:"receiver_id"`
	CallType        string     `json:"call_type"` // "voice" or "video"
	ConversationID  string     `json:"conversation_id,omitempty"`
	Status          string     `json:"status,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
}

// Notification is one notification record.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Package session holds per-conversation history. The in-memory arena is
// authoritative for reads; an optional Recorder mirrors writes to durable
// storage so history survives restarts.
package session

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation, either side.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Info summarizes a session for listings.
type Info struct {
	ID        string    `json:"session_id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID mints a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn modalities.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
	ModalityImage = "image"
	ModalityMixed = "mixed"
)

// Session is one conversation between a user and the assistant.
// Title is derived from the first user turn and never changes afterwards.
// Language reflects the most recently detected input language.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Language  string    `json:"language" yaml:"language"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	TurnCount int       `json:"turn_count,omitempty" yaml:"turn_count,omitempty"`
}

// Turn is one user or assistant message within a session. Immutable once
// appended. Seq is assigned by the store in arrival order.
type Turn struct {
	ID        string    `json:"id" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Seq       int       `json:"seq" yaml:"seq"`
	Role      string    `json:"role" yaml:"role"`
	Modality  string    `json:"modality" yaml:"modality"`
	Intent    string    `json:"intent,omitempty" yaml:"intent,omitempty"`
	Content   string    `json:"content" yaml:"content"`
	MediaRef  string    `json:"media_ref,omitempty" yaml:"media_ref,omitempty"` // input image/audio file, if any
	AudioRef  string    `json:"audio_ref,omitempty" yaml:"audio_ref,omitempty"` // synthesized response audio, if any
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Stats summarizes the stored sessions for the status command.
type Stats struct {
	TotalSessions int        `json:"total_sessions"`
	TotalTurns    int        `json:"total_turns"`
	OldestSession *time.Time `json:"oldest_session,omitempty"`
	NewestSession *time.Time `json:"newest_session,omitempty"`
}

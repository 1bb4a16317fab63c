// Package speech wraps the local ASR and TTS engines. Each call is
// independent and stateless; there is no job queue.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrEngineUnavailable is returned when no speech engine answers.
	ErrEngineUnavailable = errors.New("speech engine unavailable")
	// ErrEmptyAudio is returned for zero-length audio input.
	ErrEmptyAudio = errors.New("empty audio input")
	// ErrEmptyText is returned for empty synthesis input.
	ErrEmptyText = errors.New("empty text input")
)

// Transcription is the result of an ASR call.
type Transcription struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"` // ISO 639-1 hint from the engine, may be empty
}

// Transcriber converts audio to text via a blocking call to a local model.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Transcription, error)
}

// Synthesizer converts text to speech in a given language via a blocking call.
type Synthesizer interface {
	// Name returns the engine identifier (e.g. "coqui", "espeak").
	Name() string

	// Synthesize returns WAV audio for text in the given ISO 639-1 language.
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)

	// Health reports whether the engine is usable.
	Health(ctx context.Context) error
}

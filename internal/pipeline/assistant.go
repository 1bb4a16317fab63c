// Package pipeline runs the per-request cycle: resolve the session,
// transcribe audio, detect the language, classify intent, compose the prompt,
// call the model, synthesize the reply, and persist both turns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/agrovoice/agrovoice/internal/composer"
	"github.com/agrovoice/agrovoice/internal/intent"
	"github.com/agrovoice/agrovoice/internal/language"
	"github.com/agrovoice/agrovoice/internal/ollama"
	"github.com/agrovoice/agrovoice/internal/speech"
	"github.com/agrovoice/agrovoice/internal/storage"
)

// FallbackResponse is returned verbatim whenever the model endpoint cannot be
// reached or errors out. The request still completes and both turns are stored.
const FallbackResponse = "Sorry, I cannot reach the assistant model right now. Please make sure the local model service is running and try again."

// ErrEmptyRequest is returned when a request carries no text, audio, or image.
var ErrEmptyRequest = errors.New("request has no text, audio, or image input")

// ErrBadAudio is returned when audio input is present but cannot be
// transcribed and no other input modality is available.
var ErrBadAudio = errors.New("could not process the audio input")

// Chatter is the model call the pipeline depends on.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Classifier labels the request text with a routing intent.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Label
}

// TextDetector detects the language of text input.
type TextDetector interface {
	DetectText(text string) language.Detection
}

// Store is the subset of session storage the pipeline uses.
type Store interface {
	CreateSession(id, lang string) (storage.Session, error)
	GetSession(id string) (storage.Session, error)
	UpdateSessionLanguage(id, lang string) error
	AppendTurn(t storage.Turn) (storage.Turn, error)
	RecentTurns(sessionID string, n int) ([]storage.Turn, error)
}

// Deps carries the assistant's collaborators. Transcriber, Synthesizer, and
// Media may be nil; the matching step is then skipped.
type Deps struct {
	Store       Store
	Chat        Chatter
	Model       string
	Classifier  Classifier
	Detector    TextDetector
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Media       *MediaDir
}

// Assistant orchestrates one request/response cycle at a time. Safe for
// concurrent use; all state lives in the store.
type Assistant struct {
	deps Deps
}

// New creates the Assistant from its dependencies.
func New(deps Deps) *Assistant {
	return &Assistant{deps: deps}
}

// Request is one multimodal user input.
type Request struct {
	SessionID string // empty creates a new session
	Text      string
	Audio     []byte // WAV input for transcription
	Image     []byte // field photo for diagnosis
}

// Response is the completed cycle result.
type Response struct {
	SessionID  string             `json:"session_id"`
	Reply      string             `json:"reply"`
	Intent     intent.Label       `json:"intent"`
	Language   language.Detection `json:"language"`
	Transcript string             `json:"transcript,omitempty"`
	AudioRef   string             `json:"audio_ref,omitempty"` // media file name of the spoken reply
	Fallback   bool               `json:"fallback,omitempty"`  // true when Reply is FallbackResponse
}

// Analyze runs the full cycle for one request. Model and TTS failures are
// absorbed into the response; only storage and input errors are returned.
func (a *Assistant) Analyze(ctx context.Context, req Request) (Response, error) {
	if req.Text == "" && len(req.Audio) == 0 && len(req.Image) == 0 {
		return Response{}, ErrEmptyRequest
	}

	sess, err := a.resolveSession(req.SessionID)
	if err != nil {
		return Response{}, err
	}

	transcript, hint, err := a.transcribe(ctx, req)
	if err != nil {
		return Response{}, err
	}

	det := a.detectLanguage(req.Text, transcript, hint, sess.Language)

	// Image-only requests are always a diagnosis.
	label := intent.CropAdvice
	if joined := joinText(req.Text, transcript); joined != "" {
		label = a.deps.Classifier.Classify(ctx, joined)
	}

	history, err := a.deps.Store.RecentTurns(sess.ID, 20)
	if err != nil {
		return Response{}, fmt.Errorf("loading session history: %w", err)
	}

	in := composer.Input{
		Text:         req.Text,
		Transcript:   transcript,
		Image:        req.Image,
		Intent:       label,
		LanguageName: det.Name,
	}

	reply, fellBack := a.chat(ctx, composer.Build(history, in))

	resp := Response{
		SessionID:  sess.ID,
		Reply:      reply,
		Intent:     label,
		Language:   det,
		Transcript: transcript,
		Fallback:   fellBack,
	}

	if _, err := a.deps.Store.AppendTurn(storage.Turn{
		SessionID: sess.ID,
		Role:      storage.RoleUser,
		Modality:  modality(req),
		Intent:    string(label),
		Content:   composer.UserPrompt(in),
	}); err != nil {
		return Response{}, fmt.Errorf("storing user turn: %w", err)
	}

	resp.AudioRef = a.synthesize(ctx, reply, det.Code)

	if _, err := a.deps.Store.AppendTurn(storage.Turn{
		SessionID: sess.ID,
		Role:      storage.RoleAssistant,
		Modality:  storage.ModalityText,
		Content:   reply,
		AudioRef:  resp.AudioRef,
	}); err != nil {
		return Response{}, fmt.Errorf("storing assistant turn: %w", err)
	}

	if det.Code != sess.Language {
		if err := a.deps.Store.UpdateSessionLanguage(sess.ID, det.Code); err != nil {
			slog.Warn("failed to update session language", "session", sess.ID, "error", err)
		}
	}

	return resp, nil
}

// resolveSession loads the session or creates one. A caller-supplied ID that
// does not exist yet is honored so the UI can mint its own session IDs.
func (a *Assistant) resolveSession(id string) (storage.Session, error) {
	if id == "" {
		return a.deps.Store.CreateSession(uuid.NewString(), language.Fallback)
	}

	sess, err := a.deps.Store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		return a.deps.Store.CreateSession(id, language.Fallback)
	}
	if err != nil {
		return storage.Session{}, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// transcribe runs ASR on audio input. A failed transcription is fatal only
// when audio was the sole input modality.
func (a *Assistant) transcribe(ctx context.Context, req Request) (text, langHint string, err error) {
	if len(req.Audio) == 0 {
		return "", "", nil
	}
	if a.deps.Transcriber == nil {
		if req.Text == "" && len(req.Image) == 0 {
			return "", "", ErrBadAudio
		}
		slog.Warn("audio input received but no transcriber configured")
		return "", "", nil
	}

	tr, err := a.deps.Transcriber.Transcribe(ctx, req.Audio)
	if err != nil {
		slog.Warn("transcription failed", "error", err)
		if req.Text == "" && len(req.Image) == 0 {
			return "", "", fmt.Errorf("%w: %v", ErrBadAudio, err)
		}
		return "", "", nil
	}
	return tr.Text, tr.Language, nil
}

// detectLanguage picks the request language: typed text wins, then the ASR
// hint, then detection on the transcript. Image-only requests keep the
// session's current language.
func (a *Assistant) detectLanguage(text, transcript, hint, sessionLang string) language.Detection {
	if text != "" {
		return a.deps.Detector.DetectText(text)
	}
	if hint != "" && language.IsSupported(hint) {
		return language.Validate(hint, "audio")
	}
	if transcript != "" {
		return a.deps.Detector.DetectText(transcript)
	}
	if language.IsSupported(sessionLang) {
		return language.Validate(sessionLang, "session")
	}
	return language.Validate(language.Fallback, "fallback")
}

// chat performs the single model call. Any failure yields the fixed fallback
// response; the error never escapes the request.
func (a *Assistant) chat(ctx context.Context, messages []ollama.Message) (string, bool) {
	reply, err := a.deps.Chat.Chat(ctx, a.deps.Model, messages, nil)
	if err != nil {
		slog.Warn("model call failed, returning fallback response", "error", err)
		return FallbackResponse, true
	}
	if reply == "" {
		slog.Warn("model returned empty response, returning fallback response")
		return FallbackResponse, true
	}
	return reply, false
}

// synthesize speaks the reply in the detected language and stores the WAV
// under the media directory. Failures are logged and leave AudioRef empty.
func (a *Assistant) synthesize(ctx context.Context, reply, langCode string) string {
	if a.deps.Synthesizer == nil || a.deps.Media == nil {
		return ""
	}

	audio, err := a.deps.Synthesizer.Synthesize(ctx, reply, langCode)
	if err != nil {
		slog.Warn("speech synthesis failed", "engine", a.deps.Synthesizer.Name(), "error", err)
		return ""
	}

	name, err := a.deps.Media.SaveAudio(uuid.NewString(), audio)
	if err != nil {
		slog.Warn("failed to store synthesized audio", "error", err)
		return ""
	}
	return name
}

func joinText(text, transcript string) string {
	return strings.TrimSpace(strings.Join([]string{text, transcript}, " "))
}

func modality(req Request) string {
	var kinds []string
	if req.Text != "" {
		kinds = append(kinds, storage.ModalityText)
	}
	if len(req.Audio) > 0 {
		kinds = append(kinds, storage.ModalityAudio)
	}
	if len(req.Image) > 0 {
		kinds = append(kinds, storage.ModalityImage)
	}
	if len(kinds) > 1 {
		return storage.ModalityMixed
	}
	if len(kinds) == 1 {
		return kinds[0]
	}
	return storage.ModalityText
}

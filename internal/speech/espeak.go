package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ESpeak is the fallback synthesis engine: it shells out to espeak-ng and
// reads back the generated WAV file. Quality is below the Coqui models but it
// works offline with no server process.
type ESpeak struct {
	binary string
}

// NewESpeak creates the espeak-ng fallback engine.
func NewESpeak() *ESpeak {
	return &ESpeak{binary: "espeak-ng"}
}

// Name returns the engine identifier.
func (e *ESpeak) Name() string { return "espeak" }

// Health reports whether the espeak-ng binary is on PATH.
func (e *ESpeak) Health(ctx context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

// Synthesize runs espeak-ng with the per-language voice and returns the WAV bytes.
func (e *ESpeak) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	text = PrepareText(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	tmp, err := os.CreateTemp("", "agrovoice-tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, e.binary, "-v", espeakVoice(languageCode), "-w", tmpPath, text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", e.binary, err, out)
	}

	audio, err := os.ReadFile(filepath.Clean(tmpPath))
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%s produced no audio", e.binary)
	}
	return audio, nil
}

var ttsStripRe = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:\-()]`)

const maxTTSLength = 1000

// PrepareText normalizes text for synthesis: strips characters the voice
// models choke on, pads very short inputs, and caps the length to keep audio
// files small.
func PrepareText(text string) string {
	text = ttsStripRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len(text) < 10 {
		text = "Here is the response: " + text
	}
	if len(text) > maxTTSLength {
		if r := []rune(text); len(r) > maxTTSLength {
			text = string(r[:maxTTSLength]) + "..."
		}
	}
	return text
}

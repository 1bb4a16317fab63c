// Package composer assembles the chat messages sent to the model from session
// history, intent framing, and the current multimodal input.
package composer

import (
	"fmt"
	"strings"

	"github.com/agrovoice/agrovoice/internal/intent"
	"github.com/agrovoice/agrovoice/internal/ollama"
	"github.com/agrovoice/agrovoice/internal/storage"
)

const systemPrompt = `You are a farm assistant for smallholder farmers practicing regenerative agriculture. Give practical, specific advice in plain language. Keep answers short enough to be read aloud.`

// DiagnosisTemplate is the fixed instruction attached whenever an image is
// part of the request. It is deterministic for identical input.
const DiagnosisTemplate = `Examine the attached field photograph and diagnose any visible crop disease, pest damage, or nutrient deficiency. Describe the symptoms you can see, name the most likely cause, and give treatment and prevention steps suitable for a small farm.`

// intentFraming adds a template line per routing label. FAQ and Other add
// nothing; the base system prompt already covers them.
var intentFraming = map[intent.Label]string{
	intent.CropAdvice: "The farmer is asking for crop advice: cover planting, timing, variety selection, or pest control as appropriate.",
	intent.Fertilizer: "The farmer is asking about fertilization: recommend specific nutrients, amounts, and application timing.",
	intent.SoilHealth: "The farmer is asking about soil health: assess the described condition and suggest regenerative practices to improve it.",
}

// historyLimit caps how many prior turns are replayed to the model.
const historyLimit = 20

// Input is the current request as seen by the composer.
type Input struct {
	Text         string
	Transcript   string // ASR output for audio input
	Image        []byte // raw image bytes, attached to the user message
	Intent       intent.Label
	LanguageName string // display name of the detected language, e.g. "Spanish"
}

// Build produces the full message list for the model call: a deterministic
// system message, prior turns in arrival order, and the current user message
// with any image attached.
func Build(history []storage.Turn, in Input) []ollama.Message {
	messages := []ollama.Message{
		{Role: "system", Content: buildSystem(in)},
	}

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, t := range history {
		role := "user"
		if t.Role == storage.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, ollama.Message{Role: role, Content: t.Content})
	}

	userMsg := ollama.Message{Role: "user", Content: UserPrompt(in)}
	if len(in.Image) > 0 {
		userMsg.Images = []string{ollama.EncodeImage(in.Image)}
	}
	return append(messages, userMsg)
}

// buildSystem composes the system message from the base prompt, the intent
// framing, the diagnosis template (image input only), and the response
// language instruction.
func buildSystem(in Input) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)

	if framing, ok := intentFraming[in.Intent]; ok {
		sb.WriteString("\n\n")
		sb.WriteString(framing)
	}

	if len(in.Image) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(DiagnosisTemplate)
	}

	if in.LanguageName != "" {
		fmt.Fprintf(&sb, "\n\nRespond in %s.", in.LanguageName)
	}

	return sb.String()
}

// UserPrompt renders the current input as labelled sections. At least one
// section is always present: image-only requests get a fixed request line.
func UserPrompt(in Input) string {
	var parts []string
	if in.Text != "" {
		parts = append(parts, "Text: "+in.Text)
	}
	if in.Transcript != "" {
		parts = append(parts, "Voice Transcription: "+in.Transcript)
	}
	if len(parts) == 0 && len(in.Image) > 0 {
		parts = append(parts, "Text: Please diagnose the attached field image.")
	}
	return strings.Join(parts, "\n")
}

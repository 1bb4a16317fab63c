package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/agrovoice/agrovoice/internal/ollama"
)

const classificationTimeout = 3 * time.Second

const systemPrompt = `You are an agricultural intent classifier. Analyze the user's input and classify their intent. Your output must be ONLY a single valid JSON object conforming to the provided schema.

Intent categories:
- "crop_advice": planting, growing, crop selection, timing, crop problems, pests affecting crops
- "fertilizer": fertilizers, nutrients, feeding plants, NPK, organic fertilizers
- "soil_health": soil quality, soil problems, soil improvement, soil drying, soil becoming dead
- "faq": general questions, how-to, what-is, why questions, general agricultural knowledge
- "other": input unrelated to agriculture`

// Chatter is the interface for chat completion via the local model.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Classifier combines the keyword rules with a structured model call.
type Classifier struct {
	client Chatter
	model  string
}

// NewClassifier creates a Classifier using the given model client and model name.
func NewClassifier(client Chatter, model string) *Classifier {
	return &Classifier{client: client, model: model}
}

// Classify returns the intent label for text. Unambiguous keyword hits decide
// directly without a model call. Otherwise one structured chat call is made;
// on any failure (timeout, bad JSON, unknown label) the rule fallback stands.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	label, decided := Classify(text)
	if decided || c.client == nil {
		return label
	}

	ctx, cancel := context.WithTimeout(ctx, classificationTimeout)
	defer cancel()

	messages := []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}

	raw, err := c.client.Chat(ctx, c.model, messages, labelSchema())
	if err != nil {
		slog.Warn("intent classification chat failed", "error", err)
		return label
	}

	var result struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("failed to unmarshal intent from model response", "error", err, "response", raw)
		return label
	}

	model := Label(strings.ToLower(strings.TrimSpace(result.Intent)))
	if !model.Valid() {
		slog.Warn("model returned unknown intent label", "label", result.Intent)
		return label
	}
	return model
}

// labelSchema returns the JSON schema for structured intent output.
func labelSchema() *ollama.Schema {
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"intent": {Type: "string", Description: "One of: crop_advice, fertilizer, soil_health, faq, other"},
		},
		Required: []string{"intent"},
	}
}

package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

// EnsureReady checks that Ollama is running and the chat model is available.
// A missing model is pulled automatically with progress output written to w.
// After the model is available it is warmed up so the first user request
// doesn't pay the cold-load penalty. Returns a non-nil error only if Ollama
// is unreachable or the pull fails.
func EnsureReady(ctx context.Context, c *Client, chatModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}

	if !c.HasModel(ctx, chatModel) {
		fmt.Fprintf(w, "model %s: pulling...\n", chatModel)
		err := c.PullModel(ctx, chatModel, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", chatModel, err)
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", chatModel)

	// Warm up with a trivial chat request so the model stays loaded in memory
	// for low-latency first responses.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := c.Chat(warmCtx, chatModel, []Message{
		{Role: "user", Content: "ping"},
	}, nil)
	if err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", chatModel, err)
	} else {
		fmt.Fprintf(w, "model %s: warm\n", chatModel)
	}

	return nil
}

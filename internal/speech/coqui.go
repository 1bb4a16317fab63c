package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CoquiServer synthesizes speech through a local Coqui TTS server. The voice
// model is selected per language via the VoiceModel table.
type CoquiServer struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoquiServer creates a Synthesizer targeting the given Coqui server URL.
func NewCoquiServer(baseURL string) *CoquiServer {
	return &CoquiServer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name returns the engine identifier.
func (c *CoquiServer) Name() string { return "coqui" }

// Health checks that the TTS server answers on its root endpoint.
func (c *CoquiServer) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrEngineUnavailable, resp.StatusCode)
	}
	return nil
}

// Synthesize requests WAV audio for text in the given language. Text is
// preprocessed the same way regardless of engine (see PrepareText).
func (c *CoquiServer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	text = PrepareText(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	q := url.Values{}
	q.Set("text", text)
	q.Set("language_id", languageCode)
	q.Set("model_name", VoiceModel(languageCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating tts request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tts: unexpected status %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts: empty audio response")
	}
	return audio, nil
}

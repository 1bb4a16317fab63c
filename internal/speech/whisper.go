package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// WhisperServer transcribes audio through a local whisper.cpp server.
type WhisperServer struct {
	baseURL    string
	httpClient *http.Client
}

// NewWhisperServer creates a Transcriber targeting the given whisper server URL.
func NewWhisperServer(baseURL string) *WhisperServer {
	return &WhisperServer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// inferenceResponse mirrors the JSON returned by POST /inference.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Transcribe uploads WAV audio as a multipart form and returns the transcript
// with the engine's language hint, if any.
func (w *WhisperServer) Transcribe(ctx context.Context, audio []byte) (Transcription, error) {
	if len(audio) == 0 {
		return Transcription{}, ErrEmptyAudio
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Transcription{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcription{}, fmt.Errorf("writing audio data: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return Transcription{}, fmt.Errorf("writing response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Transcription{}, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", &buf)
	if err != nil {
		return Transcription{}, fmt.Errorf("creating inference request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Transcription{}, fmt.Errorf("inference: unexpected status %d: %s", resp.StatusCode, body)
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Transcription{}, fmt.Errorf("decoding inference response: %w", err)
	}
	if result.Error != "" {
		return Transcription{}, fmt.Errorf("inference: %s", result.Error)
	}

	return Transcription{
		Text:     strings.TrimSpace(result.Text),
		Language: strings.ToLower(strings.TrimSpace(result.Language)),
	}, nil
}

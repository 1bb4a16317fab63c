// Package api exposes the assistant over HTTP: the analyze endpoint the web
// UI talks to, session management, media playback, and health.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agrovoice/agrovoice/internal/export"
	"github.com/agrovoice/agrovoice/internal/language"
	"github.com/agrovoice/agrovoice/internal/ollama"
	"github.com/agrovoice/agrovoice/internal/pipeline"
	"github.com/agrovoice/agrovoice/internal/speech"
	"github.com/agrovoice/agrovoice/internal/storage"
)

const maxUploadSize = 20 << 20 // 20MB, image plus audio

type AppDeps struct {
	Assistant *pipeline.Assistant
	Store     *storage.Store
	Media     *pipeline.MediaDir
	Ollama    *ollama.Client
	Model     string
	Synth     speech.Synthesizer // optional; nil means text-only responses
	Token     string             // required for the management routes
	UI        http.Handler       // optional; mounted at the root
}

// NewHandler builds the full router. Analyze, media, languages, health, and
// the read-only session routes are open so the local UI works without a
// token; deletion, export, and stats require the bearer token.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Post("/analyze", handleAnalyze(deps))
	r.Get("/media/{name}", handleMedia(deps))
	r.Get("/languages", handleLanguages)
	r.Get("/health", handleHealth(deps))
	r.Get("/sessions", handleListSessions(deps))
	r.Get("/sessions/{id}", handleGetSession(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Delete("/sessions/{id}", handleDeleteSession(deps))
		r.Get("/sessions/{id}/export", handleExportSession(deps))
		r.Get("/stats", handleStats(deps))
	})

	if deps.UI != nil {
		r.Handle("/*", deps.UI)
	}

	return r
}

// AnalyzeResponse is the wire shape of a completed cycle. AudioURL points at
// the media endpoint when a spoken reply was synthesized.
type AnalyzeResponse struct {
	pipeline.Response
	AudioURL string `json:"audio_url,omitempty"`
}

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		req, err := parseAnalyzeRequest(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request: %v", err)
			return
		}

		resp, err := deps.Assistant.Analyze(r.Context(), req)
		if errors.Is(err, pipeline.ErrEmptyRequest) || errors.Is(err, pipeline.ErrBadAudio) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "analyze failed: %v", err)
			return
		}

		out := AnalyzeResponse{Response: resp}
		if resp.AudioRef != "" {
			out.AudioURL = "/media/" + resp.AudioRef
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// parseAnalyzeRequest accepts either a multipart form (text, session_id,
// image file, audio file) or a plain JSON body with text and session_id.
func parseAnalyzeRequest(r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return req, fmt.Errorf("parsing multipart form: %w", err)
		}
		req.SessionID = r.FormValue("session_id")
		req.Text = r.FormValue("text")

		var err error
		if req.Image, err = readFormFile(r, "image"); err != nil {
			return req, err
		}
		if req.Audio, err = readFormFile(r, "audio"); err != nil {
			return req, err
		}
		return req, nil
	}

	var body struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return req, fmt.Errorf("parsing request body: %w", err)
	}
	req.SessionID = body.SessionID
	req.Text = body.Text
	return req, nil
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s upload: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s upload: %w", field, err)
	}
	return data, nil
}

func handleMedia(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		path := deps.Media.Path(name)
		if _, err := os.Stat(path); err != nil {
			httpError(w, http.StatusNotFound, "not_found", "media file not found")
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		http.ServeFile(w, r, path)
	}
}

func handleLanguages(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"fallback":  language.Fallback,
		"languages": language.Supported(),
	})
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := "unreachable"
		if deps.Ollama != nil && deps.Ollama.IsRunning(r.Context()) {
			model = deps.Model
		}
		tts := "none"
		if deps.Synth != nil {
			tts = deps.Synth.Name()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"model":  model,
			"tts":    tts,
		})
	}
}

func handleListSessions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		sessions, err := deps.Store.ListSessions(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessions)
	}
}

func handleGetSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sess, err := deps.Store.GetSession(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
			return
		}

		turns, err := deps.Store.ListTurns(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list turns: %v", err)
			return
		}
		if turns == nil {
			turns = []storage.Turn{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"session": sess,
			"turns":   turns,
		})
	}
}

func handleDeleteSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteSession(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete session: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleExportSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		exporter, err := export.New(r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		sess, err := deps.Store.GetSession(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
			return
		}
		turns, err := deps.Store.ListTurns(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list turns: %v", err)
			return
		}

		w.Header().Set("Content-Type", exporter.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-"+id+"."+exporter.Extension()))
		if err := exporter.Export(export.Document{Session: sess, Turns: turns}, w); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "export failed: %v", err)
		}
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats, err := deps.Store.GetStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get stats: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

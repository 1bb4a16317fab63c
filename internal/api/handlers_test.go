package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agrovoice/agrovoice/internal/intent"
	"github.com/agrovoice/agrovoice/internal/language"
	"github.com/agrovoice/agrovoice/internal/ollama"
	"github.com/agrovoice/agrovoice/internal/pipeline"
	"github.com/agrovoice/agrovoice/internal/storage"
)

const testToken = "test-token"

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Chat(context.Context, string, []ollama.Message, *ollama.Schema) (string, error) {
	return s.reply, s.err
}

func newTestHandler(t *testing.T, chat *stubChat) (http.Handler, *storage.Store) {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	media, err := pipeline.NewMediaDir(t.TempDir())
	if err != nil {
		t.Fatalf("creating media dir: %v", err)
	}

	assistant := pipeline.New(pipeline.Deps{
		Store:      store,
		Chat:       chat,
		Model:      "gemma3n:e4b",
		Classifier: intent.NewClassifier(nil, "gemma3n:e4b"),
		Detector:   language.NewDetector(),
		Media:      media,
	})

	return NewHandler(AppDeps{
		Assistant: assistant,
		Store:     store,
		Media:     media,
		Model:     "gemma3n:e4b",
		Token:     testToken,
	}), store
}

func authGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postAnalyzeText(t *testing.T, h http.Handler, sessionID, text string) AnalyzeResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"session_id": sessionID, "text": text})
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding analyze response: %v", err)
	}
	return resp
}

func TestAnalyze_JSONBody(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "Plant after the last frost."})

	resp := postAnalyzeText(t, h, "", "When should I plant maize?")
	if resp.SessionID == "" {
		t.Error("expected a session ID")
	}
	if resp.Reply != "Plant after the last frost." {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if resp.Language.Code != "en" {
		t.Errorf("Language = %q", resp.Language.Code)
	}
}

func TestAnalyze_Multipart(t *testing.T) {
	h, store := newTestHandler(t, &stubChat{reply: "Looks like leaf rust."})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("text", "What is wrong with my wheat?"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("image", "field.jpg")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte{0xFF, 0xD8, 0xFF})
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	turns, err := store.ListTurns(resp.SessionID)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Modality != storage.ModalityMixed {
		t.Errorf("Modality = %q, want mixed", turns[0].Modality)
	}
}

func TestAnalyze_EmptyRequest(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyze_ModelDownStillSucceeds(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{err: errors.New("connection refused")})

	resp := postAnalyzeText(t, h, "", "How do I compost?")
	if resp.Reply != pipeline.FallbackResponse {
		t.Errorf("Reply = %q, want fallback", resp.Reply)
	}
	if !resp.Fallback {
		t.Error("Fallback flag should be set")
	}
}

func TestSessions_ReadOpenMutationProtected(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})

	resp := postAnalyzeText(t, h, "", "a question about wheat")

	// The history panel reads without credentials.
	for _, path := range []string{"/sessions", "/sessions/" + resp.SessionID} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s without token = %d, want 200", path, rec.Code)
		}
	}

	// Deletion, export, and stats require the bearer token.
	for _, tt := range []struct {
		method, path string
	}{
		{http.MethodDelete, "/sessions/" + resp.SessionID},
		{http.MethodGet, "/sessions/" + resp.SessionID + "/export"},
		{http.MethodGet, "/stats"},
	} {
		for _, auth := range []string{"", "Bearer nope"} {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if auth != "" {
				req.Header.Set("Authorization", auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s %s with auth %q = %d, want 401", tt.method, tt.path, auth, rec.Code)
			}
		}
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})

	resp := postAnalyzeText(t, h, "", "first question about soil health")

	rec := authGet(t, h, "/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var sessions []storage.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decoding sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != resp.SessionID {
		t.Fatalf("sessions = %+v", sessions)
	}

	rec = authGet(t, h, "/sessions/"+resp.SessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var detail struct {
		Session storage.Session `json:"session"`
		Turns   []storage.Turn  `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decoding session detail: %v", err)
	}
	if len(detail.Turns) != 2 {
		t.Errorf("got %d turns, want 2", len(detail.Turns))
	}

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+resp.SessionID, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d", del.Code)
	}

	rec = authGet(t, h, "/sessions/"+resp.SessionID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestSessions_Export(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "Add organic matter."})

	resp := postAnalyzeText(t, h, "", "my soil is drying out fast")

	rec := authGet(t, h, "/sessions/"+resp.SessionID+"/export?format=md")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/markdown" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), ".md") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "Add organic matter.") {
		t.Errorf("export missing reply:\n%s", rec.Body.String())
	}

	rec = authGet(t, h, "/sessions/"+resp.SessionID+"/export?format=xml")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", rec.Code)
	}
}

func TestMedia_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/media/nope.wav", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLanguages(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/languages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Fallback  string            `json:"fallback"`
		Languages map[string]string `json:"languages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.Fallback != "en" {
		t.Errorf("fallback = %q", body.Fallback)
	}
	if len(body.Languages) != 15 {
		t.Errorf("got %d languages, want 15", len(body.Languages))
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestStats(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{reply: "ok"})
	postAnalyzeText(t, h, "", "a question about crops and planting")

	rec := authGet(t, h, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats storage.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if stats.TotalSessions != 1 || stats.TotalTurns != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

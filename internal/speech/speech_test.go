package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			f.Close()
		}
		json.NewEncoder(w).Encode(inferenceResponse{
			Text:     " There are holes in the leaves of my cabbage plants. ",
			Language: "EN",
		})
	}))
	defer srv.Close()

	ws := NewWhisperServer(srv.URL)
	tr, err := ws.Transcribe(context.Background(), []byte{0x52, 0x49, 0x46, 0x46})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "There are holes in the leaves of my cabbage plants." {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want en", tr.Language)
	}
}

func TestWhisperTranscribe_EmptyAudio(t *testing.T) {
	ws := NewWhisperServer("http://127.0.0.1:1")
	if _, err := ws.Transcribe(context.Background(), nil); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Transcribe(nil) = %v, want ErrEmptyAudio", err)
	}
}

func TestWhisperTranscribe_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ws := NewWhisperServer(srv.URL)
	_, err := ws.Transcribe(context.Background(), []byte{1})
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Transcribe = %v, want ErrEngineUnavailable", err)
	}
}

func TestCoquiSynthesize(t *testing.T) {
	wav := []byte("RIFFxxxxWAVE")
	var gotLang, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			http.NotFound(w, r)
			return
		}
		gotLang = r.URL.Query().Get("language_id")
		gotModel = r.URL.Query().Get("model_name")
		w.Write(wav)
	}))
	defer srv.Close()

	c := NewCoquiServer(srv.URL)
	audio, err := c.Synthesize(context.Background(), "Apply urea in split doses across the season.", "es")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != string(wav) {
		t.Errorf("audio mismatch")
	}
	if gotLang != "es" {
		t.Errorf("language_id = %q, want es", gotLang)
	}
	if gotModel != "tts_models/es/css10/vits" {
		t.Errorf("model_name = %q, want the Spanish voice model", gotModel)
	}
}

func TestCoquiSynthesize_EmptyText(t *testing.T) {
	c := NewCoquiServer("http://127.0.0.1:1")
	if _, err := c.Synthesize(context.Background(), "  ", "en"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Synthesize(empty) = %v, want ErrEmptyText", err)
	}
}

func TestCoquiHealth_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewCoquiServer(srv.URL)
	if err := c.Health(context.Background()); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Health = %v, want ErrEngineUnavailable", err)
	}
}

func TestVoiceModel_FallsBackToEnglish(t *testing.T) {
	if VoiceModel("xx") != coquiModels["en"] {
		t.Errorf("VoiceModel(xx) should fall back to the English model")
	}
	if VoiceModel("hi") != "tts_models/hi/css10/vits" {
		t.Errorf("VoiceModel(hi) = %q", VoiceModel("hi"))
	}
}

func TestPrepareText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want func(string) bool
	}{
		{"strips odd characters", "Use urea* & compost #now", func(s string) bool {
			return !strings.ContainsAny(s, "*&#")
		}},
		{"pads short input", "Yes.", func(s string) bool {
			return strings.HasPrefix(s, "Here is the response:")
		}},
		{"caps long input", strings.Repeat("a", 3000), func(s string) bool {
			return len([]rune(s)) <= maxTTSLength+3 && strings.HasSuffix(s, "...")
		}},
		{"symbol-only input becomes empty", "🌾🌾 ✨", func(s string) bool { return s == "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrepareText(tt.in); !tt.want(got) {
				t.Errorf("PrepareText(%.20q) = %q", tt.in, got)
			}
		})
	}
}

type stubSynth struct {
	name    string
	healthy bool
}

func (s *stubSynth) Name() string { return s.name }
func (s *stubSynth) Health(ctx context.Context) error {
	if !s.healthy {
		return ErrEngineUnavailable
	}
	return nil
}
func (s *stubSynth) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	return []byte(s.name), nil
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	preferred := &stubSynth{name: "coqui", healthy: true}
	fallback := &stubSynth{name: "espeak", healthy: true}
	if got := Select(ctx, preferred, fallback); got.Name() != "coqui" {
		t.Errorf("Select = %q, want preferred engine", got.Name())
	}

	preferred.healthy = false
	if got := Select(ctx, preferred, fallback); got.Name() != "espeak" {
		t.Errorf("Select = %q, want fallback engine", got.Name())
	}

	fallback.healthy = false
	if got := Select(ctx, preferred, fallback); got != nil {
		t.Errorf("Select = %v, want nil when nothing is healthy", got)
	}
}

func TestPrepareText_Question(t *testing.T) {
	got := PrepareText("What fertilizer for rice?")
	if got != "What fertilizer for rice?" {
		t.Errorf("PrepareText = %q", got)
	}
}

package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agrovoice/agrovoice/internal/storage"
)

func sampleDoc() Document {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return Document{
		Session: storage.Session{
			ID:        "s-1",
			Title:     "what fertilizer for rice",
			Language:  "en",
			CreatedAt: created,
			UpdatedAt: created,
			TurnCount: 2,
		},
		Turns: []storage.Turn{
			{ID: "t-1", SessionID: "s-1", Seq: 1, Role: storage.RoleUser, Modality: storage.ModalityText, Intent: "fertilizer", Content: "What fertilizer for rice?"},
			{ID: "t-2", SessionID: "s-1", Seq: 2, Role: storage.RoleAssistant, Modality: storage.ModalityText, Content: "Use urea in split doses.", AudioRef: "t-2.wav"},
		},
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "", "md", "markdown", "yaml", "yml"} {
		if _, err := New(format); err != nil {
			t.Errorf("New(%q): %v", format, err)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Error("New(xml) should fail")
	}
}

func TestJSONExport_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleDoc(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var got Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.Session.ID != "s-1" || len(got.Turns) != 2 {
		t.Errorf("round-trip lost data: %+v", got)
	}
	if got.Turns[0].Seq != 1 || got.Turns[1].Seq != 2 {
		t.Errorf("turn order lost: %+v", got.Turns)
	}
}

func TestYAMLExport_Valid(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(sampleDoc(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if _, ok := got["turns"]; !ok {
		t.Errorf("yaml output missing turns: %v", got)
	}

	// Key names match the JSON export's snake_case.
	out := buf.String()
	for _, want := range []string{"session_id:", "created_at:", "audio_ref:", "turn_count:"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing key %q:\n%s", want, out)
		}
	}
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleDoc(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# what fertilizer for rice",
		"**Farmer** (text) · fertilizer",
		"**Assistant** (text)",
		"Use urea in split doses.",
		"_audio: t-2.wav_",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestExtensionsAndContentTypes(t *testing.T) {
	tests := []struct {
		e        Exporter
		ext, typ string
	}{
		{&JSONExporter{}, "json", "application/json"},
		{&MarkdownExporter{}, "md", "text/markdown"},
		{&YAMLExporter{}, "yaml", "application/yaml"},
	}
	for _, tt := range tests {
		if tt.e.Extension() != tt.ext {
			t.Errorf("Extension = %q, want %q", tt.e.Extension(), tt.ext)
		}
		if tt.e.ContentType() != tt.typ {
			t.Errorf("ContentType = %q, want %q", tt.e.ContentType(), tt.typ)
		}
	}
}

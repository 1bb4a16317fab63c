package language

import "testing"

func TestDetectText_English(t *testing.T) {
	d := NewDetector()

	det := d.DetectText("What fertilizer should I use for my rice field this season?")
	if det.Code != "en" {
		t.Errorf("Code = %q, want en", det.Code)
	}
	if det.Method != "text" {
		t.Errorf("Method = %q, want text", det.Method)
	}
}

func TestDetectText_Spanish(t *testing.T) {
	d := NewDetector()

	det := d.DetectText("¿Qué fertilizante debo usar para mi campo de arroz esta temporada?")
	if det.Code != "es" {
		t.Errorf("Code = %q, want es", det.Code)
	}
}

func TestDetectText_EmptyFallsBack(t *testing.T) {
	d := NewDetector()

	det := d.DetectText("   ")
	if det.Code != Fallback {
		t.Errorf("Code = %q, want %q", det.Code, Fallback)
	}
	if det.Method != "fallback" {
		t.Errorf("Method = %q, want fallback", det.Method)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		code       string
		wantCode   string
		wantMethod string
	}{
		{"hi", "hi", "audio"},
		{"HI", "hi", "audio"},
		{"xx", "en", "fallback"},
		{"", "en", "fallback"},
	}
	for _, tt := range tests {
		det := Validate(tt.code, "audio")
		if det.Code != tt.wantCode {
			t.Errorf("Validate(%q).Code = %q, want %q", tt.code, det.Code, tt.wantCode)
		}
		if det.Method != tt.wantMethod {
			t.Errorf("Validate(%q).Method = %q, want %q", tt.code, det.Method, tt.wantMethod)
		}
	}
}

func TestSupportedSet(t *testing.T) {
	if !IsSupported("en") || !IsSupported("PA") {
		t.Error("expected en and pa to be supported")
	}
	if IsSupported("sv") {
		t.Error("sv should not be supported")
	}

	langs := Supported()
	if len(langs) != 15 {
		t.Errorf("got %d supported languages, want 15", len(langs))
	}
	if Name("bn") != "Bengali" {
		t.Errorf("Name(bn) = %q, want Bengali", Name("bn"))
	}
}

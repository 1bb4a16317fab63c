// Package language detects the language of user input and validates it
// against the assistant's supported set.
package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Fallback is used whenever detection fails or yields an unsupported language.
const Fallback = "en"

// supported maps ISO 639-1 codes to display names. The voice tables in the
// speech package carry an entry for every code listed here.
var supported = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
	"ur": "Urdu",
	"bn": "Bengali",
	"pa": "Punjabi",
}

var linguaLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Urdu,
	lingua.Bengali,
	lingua.Punjabi,
}

// Detection is the outcome of a language detection call.
type Detection struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Method string `json:"method"` // "text", "audio", "session" or "fallback"
}

// Detector wraps a lingua language detector restricted to the supported set.
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a Detector over the supported language set.
func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(linguaLanguages...).
			Build(),
	}
}

// DetectText detects the language of text input. Empty or undetectable text
// yields the English fallback rather than an error.
func (d *Detector) DetectText(text string) Detection {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackDetection()
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return fallbackDetection()
	}

	code := strings.ToLower(lang.IsoCode639_1().String())
	name, ok := supported[code]
	if !ok {
		return fallbackDetection()
	}
	return Detection{Code: code, Name: name, Method: "text"}
}

// Validate returns the detection for a language code reported by an external
// source (e.g. the ASR engine), falling back to English when unsupported.
func Validate(code, method string) Detection {
	code = strings.ToLower(strings.TrimSpace(code))
	name, ok := supported[code]
	if !ok {
		return fallbackDetection()
	}
	return Detection{Code: code, Name: name, Method: method}
}

// IsSupported reports whether the given ISO 639-1 code is in the support set.
func IsSupported(code string) bool {
	_, ok := supported[strings.ToLower(code)]
	return ok
}

// Name returns the display name for a supported code, or "" if unsupported.
func Name(code string) string {
	return supported[strings.ToLower(code)]
}

// Supported returns a copy of the code→name support table.
func Supported() map[string]string {
	out := make(map[string]string, len(supported))
	for k, v := range supported {
		out[k] = v
	}
	return out
}

func fallbackDetection() Detection {
	return Detection{Code: Fallback, Name: supported[Fallback], Method: "fallback"}
}

package speech

// coquiModels maps supported language codes to Coqui TTS model names. The
// table mirrors the language support set in the language package.
var coquiModels = map[string]string{
	"en": "tts_models/en/ljspeech/fast_pitch",
	"es": "tts_models/es/css10/vits",
	"fr": "tts_models/fr/css10/vits",
	"de": "tts_models/de/css10/vits",
	"it": "tts_models/it/css10/vits",
	"pt": "tts_models/pt/css10/vits",
	"ru": "tts_models/ru/css10/vits",
	"zh": "tts_models/zh-CN/baker/tacotron2-DDC",
	"ja": "tts_models/ja/css10/vits",
	"ko": "tts_models/ko/css10/vits",
	"ar": "tts_models/ar/css10/vits",
	"hi": "tts_models/hi/css10/vits",
	"ur": "tts_models/ur/css10/vits",
	"bn": "tts_models/bn/css10/vits",
	"pa": "tts_models/pa/css10/vits",
}

// espeakVoices maps supported language codes to espeak-ng voice names.
var espeakVoices = map[string]string{
	"en": "en",
	"es": "es",
	"fr": "fr",
	"de": "de",
	"it": "it",
	"pt": "pt",
	"ru": "ru",
	"zh": "cmn",
	"ja": "ja",
	"ko": "ko",
	"ar": "ar",
	"hi": "hi",
	"ur": "ur",
	"bn": "bn",
	"pa": "pa",
}

// VoiceModel returns the Coqui model for a language code, falling back to the
// English model for unknown codes.
func VoiceModel(languageCode string) string {
	if m, ok := coquiModels[languageCode]; ok {
		return m
	}
	return coquiModels["en"]
}

func espeakVoice(languageCode string) string {
	if v, ok := espeakVoices[languageCode]; ok {
		return v
	}
	return espeakVoices["en"]
}

// Package transcribe converts recorded WAV audio to text.
//
// The only backend is whisper.cpp, consumed through the whisper-cli
// binary so the model stays outside the process.
package transcribe

import (
	"errors"

	"golang.org/x/text/language"
)

var (
	// ErrModelNotLoaded is returned when Transcribe runs before the
	// one-time model load has completed.
	ErrModelNotLoaded = errors.New("transcribe: model not loaded")

	// ErrTranscription is returned when the backend fails.
	ErrTranscription = errors.New("transcribe: transcription failed")
)

// Result is the outcome of one transcription. Lang is the raw language
// code reported by the backend; empty means nothing was detected.
type Result struct {
	Text string
	Lang string
}

// Transcriber converts a WAV file to text.
type Transcriber interface {
	// Load performs the one-time model setup. Idempotent; safe to run
	// on a background goroutine.
	Load() error
	// Ready reports whether Load has completed successfully.
	Ready() bool
	// Transcribe runs the model over the WAV file at path.
	Transcribe(path string) (Result, error)
}

var (
	supportedTags  = []language.Tag{language.English, language.Chinese}
	supportedCodes = []string{"en", "zh"}
	matcher        = language.NewMatcher(supportedTags)
)

// Normalize maps a detected language code onto the supported set,
// reporting false for an empty, unparseable, or unsupported code.
// Regional variants collapse onto their base language ("en-US" -> "en").
func Normalize(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	return supportedCodes[idx], true
}

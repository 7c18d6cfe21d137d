package transcribe

import (
	"errors"
	"testing"
)

func TestTranscribeBeforeLoad(t *testing.T) {
	w := NewWhisper("base", t.TempDir())

	_, err := w.Transcribe("whatever.wav")
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Transcribe() error = %v, want ErrModelNotLoaded", err)
	}
	if w.Ready() {
		t.Error("Ready() = true before Load")
	}
}

func TestParseWhisperOutput(t *testing.T) {
	data := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"text": " hello"},
			{"text": " world "}
		]
	}`)

	res, err := parseWhisperOutput(data)
	if err != nil {
		t.Fatalf("parseWhisperOutput() error = %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "hello world")
	}
	if res.Lang != "en" {
		t.Errorf("Lang = %q, want %q", res.Lang, "en")
	}
}

func TestParseWhisperOutputEmpty(t *testing.T) {
	res, err := parseWhisperOutput([]byte(`{"result":{"language":""},"transcription":[]}`))
	if err != nil {
		t.Fatalf("parseWhisperOutput() error = %v", err)
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
	if res.Lang != "" {
		t.Errorf("Lang = %q, want empty", res.Lang)
	}
}

func TestParseWhisperOutputBadJSON(t *testing.T) {
	_, err := parseWhisperOutput([]byte("not json"))
	if !errors.Is(err, ErrTranscription) {
		t.Errorf("parseWhisperOutput() error = %v, want ErrTranscription", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		code   string
		want   string
		wantOK bool
	}{
		{"en", "en", true},
		{"zh", "zh", true},
		{"en-US", "en", true},
		{"fr", "", false},
		{"ja", "", false},
		{"", "", false},
		{"not a code", "", false},
	}

	for _, tt := range tests {
		got, ok := Normalize(tt.code)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.code, got, ok, tt.want, tt.wantOK)
		}
	}
}

package transcribe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kwanm/voxchat/internal/models"
)

// Whisper transcribes audio by invoking the whisper-cli binary with
// JSON output. Language detection is left to the model (-l auto).
type Whisper struct {
	modelName string
	modelDir  string

	once    sync.Once
	loadErr error

	mu        sync.RWMutex
	ready     bool
	modelPath string
	binPath   string
}

// NewWhisper creates a Whisper backend for the named ggml model.
// Nothing is loaded until Load runs.
func NewWhisper(modelName, modelDir string) *Whisper {
	return &Whisper{modelName: modelName, modelDir: modelDir}
}

// Load resolves the whisper-cli binary and ensures the model file
// exists, downloading it on first use. Idempotent: concurrent and
// repeated calls share one attempt and its outcome.
func (w *Whisper) Load() error {
	w.once.Do(func() { w.loadErr = w.load() })
	return w.loadErr
}

func (w *Whisper) load() error {
	binPath := findWhisperBinary()
	if binPath == "" {
		return fmt.Errorf("whisper-cli binary not found in PATH; install whisper.cpp")
	}

	modelPath, err := models.EnsureWhisper(w.modelName, w.modelDir)
	if err != nil {
		return fmt.Errorf("preparing model %q: %w", w.modelName, err)
	}

	w.mu.Lock()
	w.binPath = binPath
	w.modelPath = modelPath
	w.ready = true
	w.mu.Unlock()
	return nil
}

// Ready reports whether the model is loaded.
func (w *Whisper) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

// Transcribe runs whisper-cli over the WAV file at path and returns the
// joined segment text plus the detected language code.
func (w *Whisper) Transcribe(path string) (Result, error) {
	w.mu.RLock()
	ready, binPath, modelPath := w.ready, w.binPath, w.modelPath
	w.mu.RUnlock()

	if !ready {
		return Result{}, ErrModelNotLoaded
	}

	args := []string{
		"-m", modelPath,
		"-f", path,
		"-oj", // write <path>.json
		"-l", "auto",
		"--no-prints",
	}

	cmd := exec.Command(binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("%w: whisper-cli: %v (%s)", ErrTranscription, err, strings.TrimSpace(stderr.String()))
	}

	jsonPath := path + ".json"
	defer os.Remove(jsonPath)

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading output: %v", ErrTranscription, err)
	}

	return parseWhisperOutput(data)
}

// parseWhisperOutput decodes whisper-cli's -oj JSON into a Result.
func parseWhisperOutput(data []byte) (Result, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("%w: parsing output: %v", ErrTranscription, err)
	}

	var b strings.Builder
	for _, seg := range out.Transcription {
		b.WriteString(seg.Text)
	}

	return Result{
		Text: strings.TrimSpace(b.String()),
		Lang: out.Result.Language,
	}, nil
}

// whisperOutput mirrors the JSON written by whisper-cli -oj.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

// findWhisperBinary locates the whisper.cpp CLI. whisper-cli is the
// current name; older installs ship whisper-cpp or main.
func findWhisperBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(home, ".local", "bin"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// Package translate converts English text to Chinese through a locally
// installed argos-translate language pair.
package translate

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ErrUnavailable is returned when the en->zh language pair is not
// installed or the argos-translate binary is missing.
var ErrUnavailable = errors.New("translate: language pair not available")

// Argos shells out to argos-translate for offline translation. The
// language pair is installed once via Setup; translation stays
// unavailable for the session if that fails.
type Argos struct {
	from string
	to   string

	once     sync.Once
	setupErr error

	mu      sync.RWMutex
	ready   bool
	binPath string
}

// NewArgos creates a translator for the given language pair.
// Nothing is installed until Setup runs.
func NewArgos(from, to string) *Argos {
	return &Argos{from: from, to: to}
}

// Setup resolves the argos binaries and installs the language pair.
// Idempotent: repeated calls share one attempt and its outcome.
func (a *Argos) Setup() error {
	a.once.Do(func() { a.setupErr = a.setup() })
	return a.setupErr
}

func (a *Argos) setup() error {
	binPath, err := exec.LookPath("argos-translate")
	if err != nil {
		return fmt.Errorf("argos-translate not found in PATH: %w", err)
	}

	pmPath, err := exec.LookPath("argospm")
	if err != nil {
		return fmt.Errorf("argospm not found in PATH: %w", err)
	}

	if out, err := exec.Command(pmPath, "update").CombinedOutput(); err != nil {
		return fmt.Errorf("updating package index: %v (%s)", err, strings.TrimSpace(string(out)))
	}

	pkg := fmt.Sprintf("translate-%s_%s", a.from, a.to)
	if out, err := exec.Command(pmPath, "install", pkg).CombinedOutput(); err != nil {
		return fmt.Errorf("installing %s: %v (%s)", pkg, err, strings.TrimSpace(string(out)))
	}

	a.mu.Lock()
	a.binPath = binPath
	a.ready = true
	a.mu.Unlock()
	return nil
}

// Ready reports whether the language pair is installed.
func (a *Argos) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Translate converts text from the source to the target language.
// Returns ErrUnavailable when Setup has not succeeded.
func (a *Argos) Translate(text string) (string, error) {
	a.mu.RLock()
	ready, binPath := a.ready, a.binPath
	a.mu.RUnlock()

	if !ready {
		return "", ErrUnavailable
	}

	cmd := exec.Command(binPath, "--from", a.from, "--to", a.to, text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("translate: argos-translate: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("translate: empty result")
	}
	return out, nil
}

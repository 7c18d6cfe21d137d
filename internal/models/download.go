// Package models fetches whisper ggml model files from HuggingFace.
package models

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const ggmlBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// modelFiles maps a configured model name to its ggml file name.
// "large" resolves to the current large-v3 weights.
var modelFiles = map[string]string{
	"tiny":      "ggml-tiny.bin",
	"tiny.en":   "ggml-tiny.en.bin",
	"base":      "ggml-base.bin",
	"base.en":   "ggml-base.en.bin",
	"small":     "ggml-small.bin",
	"small.en":  "ggml-small.en.bin",
	"medium":    "ggml-medium.bin",
	"medium.en": "ggml-medium.en.bin",
	"large":     "ggml-large-v3.bin",
}

// EnsureWhisper returns the local path of the named whisper model,
// downloading it into dir first if it is not already present.
func EnsureWhisper(name, dir string) (string, error) {
	fileName, ok := modelFiles[name]
	if !ok {
		return "", fmt.Errorf("unknown model name %q", name)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	destPath := filepath.Join(dir, fileName)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		return destPath, nil
	}

	if err := download(ggmlBaseURL+fileName, destPath, fileName); err != nil {
		return "", err
	}
	return destPath, nil
}

// download fetches url into destPath, writing to a temp file first and
// renaming so a partial download never looks like a valid model.
func download(url, destPath, label string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("downloading model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		total:  resp.ContentLength,
		label:  label,
	}

	_, err = io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing model file: %w", err)
	}
	fmt.Println()

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving model file: %w", err)
	}

	return nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Printf("\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Printf("\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}

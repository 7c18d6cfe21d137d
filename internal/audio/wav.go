package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// WriteTemp writes the buffer to a uuid-named 16-bit PCM WAV file in
// the OS temp directory and returns its path. The caller is
// responsible for removing it with Remove.
func WriteTemp(buf *Buffer) (string, error) {
	path := filepath.Join(os.TempDir(), "voxchat-"+uuid.NewString()+".wav")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating temp wav: %w", err)
	}

	enc := wav.NewEncoder(f, buf.SampleRate(), 16, buf.Channels(), 1)

	raw := buf.Bytes()
	data := make([]int, len(raw)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}

	intBuf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: buf.Channels(),
			SampleRate:  buf.SampleRate(),
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(intBuf); err != nil {
		enc.Close()
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing wav data: %w", err)
	}

	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("finalizing wav: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing temp wav: %w", err)
	}

	return path, nil
}

// Remove deletes a temp WAV artifact. A file that is already gone is
// not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing temp wav: %w", err)
	}
	return nil
}

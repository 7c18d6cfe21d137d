// Package audio captures microphone input in fixed-size chunks and
// packages finished recordings as temporary WAV files.
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrDeviceUnavailable is returned when the configured capture device
// cannot be found or opened.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// SessionConfig describes how a single recording session opens the device.
type SessionConfig struct {
	DeviceIndex int // -1 means the system default capture device
	SampleRate  int
	Channels    int
	ChunkFrames int // frames per capture period
}

// Device identifies one capture device for selection by index.
type Device struct {
	Index int
	Name  string
}

// Capture owns the audio backend context. One Capture serves the whole
// process; each recording opens its own device through Start.
type Capture struct {
	ctx *malgo.AllocatedContext
}

// New initializes the audio backend. Call Close when done.
func New() (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &Capture{ctx: ctx}, nil
}

// Devices enumerates the available capture devices.
func (c *Capture) Devices() ([]Device, error) {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, Device{Index: i, Name: info.Name()})
	}
	return devices, nil
}

// Start opens the configured device and begins capturing. The returned
// session accumulates fixed-size chunks until Stop is called or the
// device stops on its own (Ended is closed in that case).
func (c *Capture) Start(cfg SessionConfig) (*Session, error) {
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = uint32(cfg.Channels)
	deviceCfg.SampleRate = uint32(cfg.SampleRate)
	deviceCfg.PeriodSizeInFrames = uint32(cfg.ChunkFrames)

	if cfg.DeviceIndex >= 0 {
		infos, err := c.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		if cfg.DeviceIndex >= len(infos) {
			return nil, fmt.Errorf("%w: no capture device at index %d", ErrDeviceUnavailable, cfg.DeviceIndex)
		}
		deviceCfg.Capture.DeviceID = infos[cfg.DeviceIndex].ID.Pointer()
	}

	s := &Session{
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		ended:      make(chan struct{}),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.device = device
	return s, nil
}

// Close releases the audio backend.
func (c *Capture) Close() error {
	if c.ctx == nil {
		return nil
	}
	if err := c.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	c.ctx.Free()
	c.ctx = nil
	return nil
}

// Session is one active recording. Chunks are appended by the device
// callback until Stop releases the device.
type Session struct {
	device     *malgo.Device
	sampleRate int
	channels   int

	mu      sync.Mutex
	chunks  [][]byte
	stopped bool

	ended     chan struct{}
	endedOnce sync.Once
}

// Ended is closed if the device stops delivering data on its own, e.g.
// after a disconnect. The recording loop treats that as an early stop
// and keeps whatever was buffered.
func (s *Session) Ended() <-chan struct{} {
	return s.ended
}

// Stop releases the device and returns the captured audio. The device
// handle is always released, even when nothing was captured. Safe to
// call once per session.
func (s *Session) Stop() *Buffer {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device != nil {
		device.Uninit()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &Buffer{
		chunks:     s.chunks,
		sampleRate: s.sampleRate,
		channels:   s.channels,
	}
}

func (s *Session) onData(_, pSample []byte, frameCount uint32) {
	if frameCount == 0 || len(pSample) == 0 {
		return
	}
	chunk := make([]byte, len(pSample))
	copy(chunk, pSample)

	s.mu.Lock()
	if !s.stopped {
		s.chunks = append(s.chunks, chunk)
	}
	s.mu.Unlock()
}

func (s *Session) onStop() {
	s.endedOnce.Do(func() { close(s.ended) })
}

// Buffer is a finished recording: an ordered sequence of S16LE chunks.
// It is immutable once returned by Stop.
type Buffer struct {
	chunks     [][]byte
	sampleRate int
	channels   int
}

// NewBuffer builds a Buffer from raw S16LE chunks. Used by WriteTemp
// callers that produce audio outside a capture session, and by tests.
func NewBuffer(chunks [][]byte, sampleRate, channels int) *Buffer {
	return &Buffer{chunks: chunks, sampleRate: sampleRate, channels: channels}
}

// SampleRate returns the recording sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channels returns the recording channel count.
func (b *Buffer) Channels() int { return b.channels }

// Empty reports whether no audio was captured.
func (b *Buffer) Empty() bool {
	for _, c := range b.chunks {
		if len(c) > 0 {
			return false
		}
	}
	return true
}

// Bytes concatenates all chunks into one S16LE byte slice.
func (b *Buffer) Bytes() []byte {
	n := 0
	for _, c := range b.chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Duration returns the length of the recording.
func (b *Buffer) Duration() time.Duration {
	n := 0
	for _, c := range b.chunks {
		n += len(c)
	}
	frames := n / (2 * b.channels)
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(b.sampleRate)
}

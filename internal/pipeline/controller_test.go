package pipeline

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kwanm/voxchat/internal/audio"
	"github.com/kwanm/voxchat/internal/config"
	"github.com/kwanm/voxchat/internal/dispatch"
	"github.com/kwanm/voxchat/internal/transcribe"
)

// The tests below drive the controller by calling drain directly, so
// the test goroutine plays the role of the control goroutine. Workers
// still run on their own goroutines; drainUntil polls until their
// posted events have been applied.

type fakeSession struct {
	buf   *audio.Buffer
	ended chan struct{}

	mu      sync.Mutex
	stopped bool
}

func (s *fakeSession) Stop() *audio.Buffer {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return s.buf
}

func (s *fakeSession) Ended() <-chan struct{} { return s.ended }

type fakeRecorder struct {
	mu       sync.Mutex
	err      error
	buf      *audio.Buffer
	sessions []*fakeSession
}

func (r *fakeRecorder) Start(cfg audio.SessionConfig) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeSession{buf: r.buf, ended: make(chan struct{})}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *fakeRecorder) started() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeRecorder) lastSession() *fakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[len(r.sessions)-1]
}

type fakeTranscriber struct {
	mu    sync.Mutex
	ready bool
	res   transcribe.Result
	err   error
	block chan struct{} // when non-nil, Transcribe waits for it

	paths       []string
	pathExisted []bool
}

func (f *fakeTranscriber) Load() error {
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTranscriber) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeTranscriber) Transcribe(path string) (transcribe.Result, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	_, statErr := os.Stat(path)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.pathExisted = append(f.pathExisted, statErr == nil)
	return f.res, f.err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func (f *fakeTranscriber) lastPath() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		return "", false
	}
	return f.paths[len(f.paths)-1], f.pathExisted[len(f.paths)-1]
}

type fakeTranslator struct {
	mu       sync.Mutex
	setupErr error
	ready    bool
	out      string
	err      error
	inputs   []string
}

func (f *fakeTranslator) Setup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setupErr != nil {
		return f.setupErr
	}
	f.ready = true
	return nil
}

func (f *fakeTranslator) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeTranslator) Translate(text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func (f *fakeTranslator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type dispatchCall struct {
	text   string
	window string
}

type fakeDispatcher struct {
	mu      sync.Mutex
	outcome dispatch.Outcome
	err     error
	sent    []dispatchCall
}

func (f *fakeDispatcher) Dispatch(text, windowFragment string) (dispatch.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, dispatchCall{text: text, window: windowFragment})
	return f.outcome, f.err
}

func (f *fakeDispatcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeDispatcher) last() dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// recordingSink collects published events. Publish only ever runs on
// the test goroutine (inside drain), so no locking is needed.
type recordingSink struct {
	events []Event
}

func (s *recordingSink) Publish(ev Event) {
	s.events = append(s.events, ev)
}

func (s *recordingSink) has(kind EventKind, substr string) bool {
	for _, ev := range s.events {
		if ev.Kind == kind && strings.Contains(ev.Text, substr) {
			return true
		}
	}
	return false
}

func (s *recordingSink) count(kind EventKind) int {
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (s *recordingSink) modeChanges() []bool {
	var out []bool
	for _, ev := range s.events {
		if ev.Kind == EventTranslationModeChanged {
			out = append(out, ev.Flag)
		}
	}
	return out
}

type env struct {
	cfg   config.Config
	rec   *fakeRecorder
	tr    *fakeTranscriber
	trans *fakeTranslator
	disp  *fakeDispatcher
	sink  *recordingSink
	ctrl  *Controller
}

func newEnv() *env {
	e := &env{
		cfg:   *config.Default(),
		rec:   &fakeRecorder{buf: testBuffer()},
		tr:    &fakeTranscriber{ready: true},
		trans: &fakeTranslator{ready: true, out: "你好世界"},
		disp:  &fakeDispatcher{outcome: dispatch.Outcome{Delivered: true, Destination: dispatch.TargetWindow}},
		sink:  &recordingSink{},
	}
	e.ctrl = NewController(func() config.Config { return e.cfg }, e.rec, e.tr, e.trans, e.disp, e.sink)
	return e
}

func testBuffer() *audio.Buffer {
	return audio.NewBuffer([][]byte{make([]byte, 3200)}, 48000, 1)
}

// drainUntil repeatedly drains the queue until cond holds.
func drainUntil(t *testing.T, c *Controller, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.drain()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

// waitFor polls cond without draining, for conditions that settle on
// worker goroutines after their last event is posted.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

// runSession toggles recording on and off and waits for the controller
// to come back to Idle.
func runSession(t *testing.T, e *env) {
	t.Helper()
	e.ctrl.Toggle()
	e.ctrl.drain()
	if e.ctrl.state != StateRecording {
		t.Fatalf("state after first toggle = %v, want StateRecording", e.ctrl.state)
	}
	e.ctrl.Toggle()
	drainUntil(t, e.ctrl, func() bool { return e.ctrl.state == StateIdle }, "controller back to idle")
}

func TestToggleWithoutModel(t *testing.T) {
	e := newEnv()
	e.tr.ready = false

	e.ctrl.Toggle()
	e.ctrl.drain()

	if e.ctrl.state != StateIdle {
		t.Errorf("state = %v, want StateIdle", e.ctrl.state)
	}
	if e.rec.started() != 0 {
		t.Error("recorder started despite missing model")
	}
	if !e.sink.has(EventError, "Model not loaded yet!") {
		t.Errorf("missing model-not-loaded error, events = %+v", e.sink.events)
	}
}

func TestToggleDeviceUnavailable(t *testing.T) {
	e := newEnv()
	e.rec.err = audio.ErrDeviceUnavailable

	e.ctrl.Toggle()
	e.ctrl.drain()

	if e.ctrl.state != StateIdle {
		t.Errorf("state = %v, want StateIdle", e.ctrl.state)
	}
	if !e.sink.has(EventError, "Failed to open audio device") {
		t.Errorf("missing device error, events = %+v", e.sink.events)
	}
}

func TestRecordTranscribeDispatch(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "  hello world ", Lang: "en"}

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")

	path, existed := e.tr.lastPath()
	if !existed {
		t.Error("temp wav did not exist when Transcribe was called")
	}
	waitFor(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, "temp wav removal")

	got := e.disp.last()
	if got.text != "hello world" {
		t.Errorf("dispatched text = %q, want %q", got.text, "hello world")
	}
	if got.window != "Roblox" {
		t.Errorf("dispatched window = %q, want %q", got.window, "Roblox")
	}
	if e.trans.calls() != 0 {
		t.Error("translator called outside translation mode")
	}

	e.ctrl.drain()
	if !e.sink.has(EventAudioProcessed, "hello world") {
		t.Error("missing AudioProcessed event")
	}
	if !e.sink.has(EventLog, "Message sent to Roblox") {
		t.Errorf("missing delivery log, events = %+v", e.sink.events)
	}
	if !e.sink.has(EventStatus, "Ready") {
		t.Error("missing Ready status after session")
	}
}

func TestTriggerActivatesTranslation(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "start translation", Lang: "en"}

	runSession(t, e)

	if !e.ctrl.translationActive {
		t.Error("translationActive = false after trigger")
	}
	if e.disp.calls() != 0 {
		t.Error("trigger utterance was dispatched")
	}
	if changes := e.sink.modeChanges(); len(changes) != 1 || !changes[0] {
		t.Errorf("mode changes = %v, want [true]", changes)
	}
}

func TestStopPhraseDeactivates(t *testing.T) {
	e := newEnv()
	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()
	e.tr.res = transcribe.Result{Text: "stop translation", Lang: "en"}

	runSession(t, e)

	if e.ctrl.translationActive {
		t.Error("translationActive = true after stop phrase")
	}
	if e.disp.calls() != 0 {
		t.Error("stop utterance was dispatched")
	}
	if changes := e.sink.modeChanges(); len(changes) != 2 || changes[1] {
		t.Errorf("mode changes = %v, want [true false]", changes)
	}
}

func TestTriggerWhileActiveConsumed(t *testing.T) {
	e := newEnv()
	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()
	e.tr.res = transcribe.Result{Text: "start translation", Lang: "en"}

	runSession(t, e)

	if !e.ctrl.translationActive {
		t.Error("translationActive flipped off by repeated trigger")
	}
	if e.disp.calls() != 0 {
		t.Error("repeated trigger was dispatched")
	}
	if !e.sink.has(EventLog, "Translation mode already active") {
		t.Errorf("missing already-active log, events = %+v", e.sink.events)
	}
	// No second mode-changed event for a no-op.
	if changes := e.sink.modeChanges(); len(changes) != 1 {
		t.Errorf("mode changes = %v, want exactly one", changes)
	}
}

func TestTranslationRoute(t *testing.T) {
	e := newEnv()
	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()
	e.tr.res = transcribe.Result{Text: "hello world", Lang: "en"}

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")

	if e.trans.calls() != 1 {
		t.Fatalf("translator calls = %d, want 1", e.trans.calls())
	}
	if got := e.disp.last().text; got != "你好世界" {
		t.Errorf("dispatched text = %q, want translated %q", got, "你好世界")
	}
}

func TestChineseBypassesTranslation(t *testing.T) {
	e := newEnv()
	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()
	e.tr.res = transcribe.Result{Text: "你好", Lang: "zh"}

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")

	if e.trans.calls() != 0 {
		t.Error("translator called for Chinese input")
	}
	if got := e.disp.last().text; got != "你好" {
		t.Errorf("dispatched text = %q, want %q", got, "你好")
	}
}

func TestTranslationFailureFallsBack(t *testing.T) {
	e := newEnv()
	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()
	e.tr.res = transcribe.Result{Text: "hello world", Lang: "en"}
	e.trans.err = errors.New("pair gone")

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")

	if got := e.disp.last().text; got != "hello world" {
		t.Errorf("dispatched text = %q, want original %q", got, "hello world")
	}
	e.ctrl.drain()
	if !e.sink.has(EventError, "Translation failed, sending original text") {
		t.Errorf("missing fallback error, events = %+v", e.sink.events)
	}
}

func TestUnsupportedLanguage(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "bonjour", Lang: "fr"}

	runSession(t, e)

	if e.disp.calls() != 0 {
		t.Error("unsupported-language utterance was dispatched")
	}
	if e.sink.count(EventAudioProcessed) != 0 {
		t.Error("AudioProcessed published for unsupported language")
	}
	if !e.sink.has(EventLog, `Unsupported language "fr"`) {
		t.Errorf("missing unsupported-language log, events = %+v", e.sink.events)
	}
}

func TestNoLanguageDetected(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "", Lang: ""}

	runSession(t, e)

	if !e.sink.has(EventLog, "No language detected") {
		t.Errorf("missing no-language log, events = %+v", e.sink.events)
	}
	if e.disp.calls() != 0 {
		t.Error("dispatched despite missing language")
	}
}

func TestEmptyBufferSkipsTranscription(t *testing.T) {
	e := newEnv()
	e.rec.buf = audio.NewBuffer(nil, 48000, 1)

	runSession(t, e)

	if e.tr.calls() != 0 {
		t.Error("Transcribe called for empty recording")
	}
	if !e.sink.has(EventLog, "No audio captured") {
		t.Errorf("missing no-audio log, events = %+v", e.sink.events)
	}
}

func TestTranscriptionFailureRemovesArtifact(t *testing.T) {
	e := newEnv()
	e.tr.err = transcribe.ErrTranscription

	runSession(t, e)

	path, existed := e.tr.lastPath()
	if !existed {
		t.Error("temp wav did not exist when Transcribe was called")
	}
	waitFor(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, "temp wav removal after failure")

	e.ctrl.drain()
	if !e.sink.has(EventError, "Transcription failed") {
		t.Errorf("missing transcription error, events = %+v", e.sink.events)
	}
}

func TestToggleWhileProcessing(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "hello", Lang: "en"}
	e.tr.block = make(chan struct{})

	e.ctrl.Toggle()
	e.ctrl.drain()
	e.ctrl.Toggle()
	e.ctrl.drain()
	if e.ctrl.state != StateProcessing {
		t.Fatalf("state = %v, want StateProcessing", e.ctrl.state)
	}

	// A toggle while the previous recording is still in flight is
	// rejected with a log line, not queued.
	e.ctrl.Toggle()
	e.ctrl.drain()
	if !e.sink.has(EventLog, "Still processing the previous recording") {
		t.Errorf("missing still-processing log, events = %+v", e.sink.events)
	}
	if e.rec.started() != 1 {
		t.Errorf("sessions started = %d, want 1", e.rec.started())
	}

	close(e.tr.block)
	drainUntil(t, e.ctrl, func() bool { return e.ctrl.state == StateIdle }, "processing to finish")
}

func TestDeviceEndedEarlyKeepsAudio(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "partial words", Lang: "en"}

	e.ctrl.Toggle()
	e.ctrl.drain()

	// Simulate the device dying mid-recording.
	close(e.rec.lastSession().ended)

	drainUntil(t, e.ctrl, func() bool { return e.ctrl.state == StateIdle }, "session to finish")
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch of partial audio")

	if got := e.disp.last().text; got != "partial words" {
		t.Errorf("dispatched text = %q, want %q", got, "partial words")
	}
	if !e.sink.has(EventError, "Audio device stopped") {
		t.Errorf("missing device-stopped error, events = %+v", e.sink.events)
	}
}

func TestUnfocusedDispatchLogsClipboard(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "hello", Lang: "en"}
	e.disp.outcome = dispatch.Outcome{Delivered: false, Destination: dispatch.Clipboard}

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")
	e.ctrl.drain()

	if !e.sink.has(EventLog, "Roblox not focused. Message copied to clipboard.") {
		t.Errorf("missing clipboard log, events = %+v", e.sink.events)
	}
}

func TestDispatchFailure(t *testing.T) {
	e := newEnv()
	e.tr.res = transcribe.Result{Text: "hello", Lang: "en"}
	e.disp.outcome = dispatch.Outcome{Delivered: false, Destination: dispatch.Clipboard}
	e.disp.err = errors.New("injection failed")

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")
	e.ctrl.drain()

	if !e.sink.has(EventError, "Failed to send to Roblox") {
		t.Errorf("missing dispatch error, events = %+v", e.sink.events)
	}
	if !e.sink.has(EventLog, "Message copied to clipboard instead") {
		t.Errorf("missing fallback log, events = %+v", e.sink.events)
	}
	if e.ctrl.state != StateIdle {
		t.Errorf("state = %v, want StateIdle", e.ctrl.state)
	}
}

func TestChineseAutocorrect(t *testing.T) {
	e := newEnv()
	e.cfg.ChineseAutocorrect = true
	e.tr.res = transcribe.Result{Text: "我的帐号被盗了", Lang: "zh"}

	runSession(t, e)
	waitFor(t, func() bool { return e.disp.calls() == 1 }, "dispatch")

	if got := e.disp.last().text; got != "我的账号被盗了" {
		t.Errorf("dispatched text = %q, want corrected %q", got, "我的账号被盗了")
	}
	if !e.sink.has(EventLog, "Corrected") {
		t.Errorf("missing correction log, events = %+v", e.sink.events)
	}
	if !e.sink.has(EventAudioProcessed, "我的账号被盗了") {
		t.Error("AudioProcessed does not carry corrected text")
	}
}

func TestSetTranslationModeIdempotent(t *testing.T) {
	e := newEnv()

	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()
	e.ctrl.SetTranslationMode(true)
	e.ctrl.drain()

	if changes := e.sink.modeChanges(); len(changes) != 1 || !changes[0] {
		t.Errorf("mode changes = %v, want [true]", changes)
	}
}

func TestLoadModel(t *testing.T) {
	e := newEnv()
	e.tr.ready = false

	e.ctrl.LoadModel()
	drainUntil(t, e.ctrl, func() bool { return e.sink.count(EventEnableControls) == 1 }, "controls enabled")

	if !e.tr.Ready() {
		t.Error("transcriber not ready after LoadModel")
	}
	if !e.sink.has(EventStatus, "Model loaded successfully") {
		t.Errorf("missing load status, events = %+v", e.sink.events)
	}
}

func TestSetupTranslatorFailure(t *testing.T) {
	e := newEnv()
	e.trans.ready = false
	e.trans.setupErr = errors.New("no argospm")

	e.ctrl.SetupTranslator()
	drainUntil(t, e.ctrl, func() bool { return e.sink.has(EventLog, "Translation setup failed") }, "setup failure log")

	if e.trans.Ready() {
		t.Error("translator ready after failed setup")
	}
}

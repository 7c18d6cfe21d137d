// Package pipeline coordinates recording, transcription, text
// post-processing, translation, and dispatch behind a single control
// goroutine. Workers never mutate shared state; they post events to a
// bounded queue that the control goroutine drains on a fixed tick.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kwanm/voxchat/internal/audio"
	"github.com/kwanm/voxchat/internal/config"
	"github.com/kwanm/voxchat/internal/dispatch"
	"github.com/kwanm/voxchat/internal/textproc"
	"github.com/kwanm/voxchat/internal/transcribe"
)

// State is the controller's position in the recording cycle.
type State int

const (
	// StateIdle means the controller is waiting for a toggle.
	StateIdle State = iota
	// StateRecording means a capture session is running.
	StateRecording
	// StateProcessing means captured audio is being transcribed,
	// routed, and dispatched.
	StateProcessing
)

// Recorder starts capture sessions.
type Recorder interface {
	Start(cfg audio.SessionConfig) (Session, error)
}

// Session is one active recording owned by its worker goroutine.
type Session interface {
	// Stop releases the device and returns the captured audio.
	Stop() *audio.Buffer
	// Ended is closed if the device stops on its own.
	Ended() <-chan struct{}
}

// Translator converts English text to Chinese.
type Translator interface {
	// Setup performs the one-time language-pair install. Idempotent.
	Setup() error
	Ready() bool
	Translate(text string) (string, error)
}

// Dispatcher delivers final text to the target application.
type Dispatcher interface {
	Dispatch(text, windowFragment string) (dispatch.Outcome, error)
}

// ConfigSource returns the current configuration. Called at the start
// of each operation so edits take effect on the next recording.
type ConfigSource func() config.Config

const (
	queueSize   = 64
	defaultTick = 50 * time.Millisecond
)

// Controller is the pipeline state machine. All fields below the queue
// are owned by the control goroutine; workers reach them only by
// posting events.
type Controller struct {
	cfg   ConfigSource
	rec   Recorder
	tr    transcribe.Transcriber
	trans Translator
	disp  Dispatcher
	corr  *textproc.Corrector
	sink  Sink

	queue chan Event
	tick  time.Duration

	state             State
	translationActive bool
	stop              chan struct{} // active session's stop signal
}

// NewController wires the pipeline collaborators together.
func NewController(cfg ConfigSource, rec Recorder, tr transcribe.Transcriber, trans Translator, disp Dispatcher, sink Sink) *Controller {
	return &Controller{
		cfg:   cfg,
		rec:   rec,
		tr:    tr,
		trans: trans,
		disp:  disp,
		corr:  textproc.NewCorrector(),
		sink:  sink,
		queue: make(chan Event, queueSize),
		tick:  defaultTick,
	}
}

// Run drains the event queue on a fixed tick and applies state
// transitions until ctx is canceled. All state mutation happens here.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-ticker.C:
			c.drain()
		}
	}
}

// Toggle flips the recording state. Safe to call from any goroutine;
// the transition itself runs on the control goroutine.
func (c *Controller) Toggle() {
	c.post(Event{Kind: eventToggle})
}

// SetTranslationMode explicitly switches translation mode, independent
// of the trigger phrases.
func (c *Controller) SetTranslationMode(on bool) {
	c.post(Event{Kind: eventSetTranslation, Flag: on})
}

// LoadModel starts the one-time asynchronous model load.
func (c *Controller) LoadModel() {
	go func() {
		c.post(statusEvent("Loading whisper model..."))
		if err := c.tr.Load(); err != nil {
			c.post(errorEvent(fmt.Sprintf("Failed to load model: %v", err)))
			return
		}
		c.post(statusEvent("Model loaded successfully"))
		c.post(Event{Kind: EventEnableControls, Flag: true})
	}()
}

// SetupTranslator starts the one-time asynchronous language-pair
// install. Failure disables translation for the session but is not
// fatal.
func (c *Controller) SetupTranslator() {
	go func() {
		c.post(statusEvent("Setting up translation..."))
		if err := c.trans.Setup(); err != nil {
			c.post(logEvent(fmt.Sprintf("Translation setup failed: %v", err)))
			return
		}
		c.post(logEvent("Translation setup complete"))
	}()
}

// post enqueues an event without blocking the caller. A full queue
// drops the event; the queue is sized so that only a wedged control
// goroutine gets there.
func (c *Controller) post(ev Event) {
	select {
	case c.queue <- ev:
	default:
	}
}

func (c *Controller) publish(ev Event) {
	if c.sink != nil {
		c.sink.Publish(ev)
	}
}

// drain applies every queued event, in order, on the control goroutine.
func (c *Controller) drain() {
	for {
		select {
		case ev := <-c.queue:
			c.apply(ev)
		default:
			return
		}
	}
}

func (c *Controller) apply(ev Event) {
	switch ev.Kind {
	case EventStatus, EventLog, EventError, EventEnableControls:
		c.publish(ev)
	case EventAudioProcessed:
		c.handleProcessed(ev)
	case eventToggle:
		c.handleToggle()
	case eventSetTranslation:
		c.applyTranslationMode(ev.Flag)
	case eventRecordingEnded:
		// Normally the toggle already moved us to Processing; this
		// only fires the transition when the device ended the session.
		if c.state == StateRecording {
			c.state = StateProcessing
			c.stop = nil
		}
	case eventSessionDone, eventDispatchDone:
		c.finishSession()
	}
}

func (c *Controller) handleToggle() {
	switch c.state {
	case StateRecording:
		if c.stop != nil {
			close(c.stop)
			c.stop = nil
		}
		c.state = StateProcessing

	case StateProcessing:
		c.publish(logEvent("Still processing the previous recording"))

	case StateIdle:
		if !c.tr.Ready() {
			c.publish(errorEvent("Model not loaded yet!"))
			return
		}

		snap := c.cfg()
		sess, err := c.rec.Start(audio.SessionConfig{
			DeviceIndex: snap.MicIndex,
			SampleRate:  snap.Rate,
			Channels:    snap.Channels,
			ChunkFrames: snap.Chunk,
		})
		if err != nil {
			c.publish(errorEvent(fmt.Sprintf("Failed to open audio device: %v", err)))
			return
		}

		stop := make(chan struct{})
		c.stop = stop
		c.state = StateRecording
		c.publish(logEvent(fmt.Sprintf("Recording... (press %s to stop)", snap.Hotkey)))

		go c.record(sess, stop)
	}
}

// record is the per-session worker: wait for the stop signal, package
// the audio, transcribe, and hand the result back to the control
// goroutine. The temp WAV never outlives this function.
func (c *Controller) record(sess Session, stop <-chan struct{}) {
	select {
	case <-stop:
	case <-sess.Ended():
		c.post(errorEvent("Audio device stopped; keeping what was captured"))
	}
	c.post(Event{Kind: eventRecordingEnded})

	buf := sess.Stop()
	if buf == nil || buf.Empty() {
		c.post(logEvent("No audio captured"))
		c.post(Event{Kind: eventSessionDone})
		return
	}

	wavPath, err := audio.WriteTemp(buf)
	if err != nil {
		c.post(errorEvent(fmt.Sprintf("Failed to save recording: %v", err)))
		c.post(Event{Kind: eventSessionDone})
		return
	}
	defer audio.Remove(wavPath)

	c.post(logEvent("Transcribing..."))
	res, err := c.tr.Transcribe(wavPath)
	if err != nil {
		c.post(errorEvent(fmt.Sprintf("Transcription failed: %v", err)))
		c.post(Event{Kind: eventSessionDone})
		return
	}

	lang, ok := transcribe.Normalize(res.Lang)
	if !ok {
		if res.Lang == "" {
			c.post(logEvent("No language detected. Please speak English or Chinese."))
		} else {
			c.post(logEvent(fmt.Sprintf("Unsupported language %q detected. Please speak English or Chinese.", res.Lang)))
		}
		c.post(Event{Kind: eventSessionDone})
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		c.post(logEvent("No speech detected"))
		c.post(Event{Kind: eventSessionDone})
		return
	}

	c.post(Event{Kind: EventAudioProcessed, Text: text, Lang: lang})
}

// handleProcessed runs correction, trigger detection, and routing on
// the control goroutine. Trigger matches consume the utterance; only
// unmatched text goes on to delivery.
func (c *Controller) handleProcessed(ev Event) {
	snap := c.cfg()

	text, corrections := c.corr.Correct(ev.Text, ev.Lang, snap.ChineseAutocorrect)
	for _, corr := range corrections {
		c.publish(logEvent(fmt.Sprintf("Corrected %q -> %q at position %d", corr.Original, corr.Replacement, corr.Position)))
	}
	c.publish(Event{Kind: EventAudioProcessed, Text: text, Lang: ev.Lang})

	switch textproc.CheckTriggers(text, ev.Lang, snap.Trigger, snap.StopPhrase, c.translationActive) {
	case textproc.ActionActivate:
		c.translationActive = true
		c.publish(logEvent(fmt.Sprintf("Translation mode activated by phrase: %s", snap.Trigger)))
		c.publish(Event{Kind: EventTranslationModeChanged, Flag: true})
		c.finishSession()

	case textproc.ActionDeactivate:
		c.translationActive = false
		c.publish(logEvent(fmt.Sprintf("Translation mode deactivated by phrase: %s", snap.StopPhrase)))
		c.publish(Event{Kind: EventTranslationModeChanged, Flag: false})
		c.finishSession()

	case textproc.ActionNoChange:
		c.publish(logEvent("Translation mode already active"))
		c.finishSession()

	default:
		translateFirst := c.translationActive && ev.Lang == "en"
		go c.deliver(text, translateFirst, snap.RobloxWindowTitle)
	}
}

// deliver is the per-utterance delivery worker: translate when asked,
// falling back to the original text on failure, then dispatch.
func (c *Controller) deliver(text string, translateFirst bool, windowFragment string) {
	if translateFirst {
		out, err := c.trans.Translate(text)
		if err != nil {
			c.post(errorEvent(fmt.Sprintf("Translation failed, sending original text: %v", err)))
		} else {
			text = out
		}
	}

	outcome, err := c.disp.Dispatch(text, windowFragment)
	switch {
	case err != nil:
		c.post(errorEvent(fmt.Sprintf("Failed to send to Roblox: %v", err)))
		c.post(logEvent("Message copied to clipboard instead"))
	case outcome.Delivered:
		c.post(logEvent("Message sent to Roblox"))
	default:
		c.post(logEvent("Roblox not focused. Message copied to clipboard."))
	}

	c.post(Event{Kind: eventDispatchDone})
}

func (c *Controller) applyTranslationMode(on bool) {
	if c.translationActive == on {
		return
	}
	c.translationActive = on
	status := "deactivated"
	if on {
		status = "activated"
	}
	c.publish(logEvent("Translation mode " + status))
	c.publish(Event{Kind: EventTranslationModeChanged, Flag: on})
}

func (c *Controller) finishSession() {
	c.state = StateIdle
	c.publish(statusEvent("Ready"))
}

// shutdown signals an in-flight recording to stop. The session worker
// finishes on its own goroutine; it is not waited for.
func (c *Controller) shutdown() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

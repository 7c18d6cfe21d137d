package pipeline

// EventKind tags events flowing from workers through the control
// goroutine to the UI/logging sink.
type EventKind int

const (
	// EventStatus is a coarse state announcement (model loading, ready).
	EventStatus EventKind = iota
	// EventLog is a human-readable progress line.
	EventLog
	// EventError reports a failure. Every failure produces exactly one.
	EventError
	// EventEnableControls fires once the model load succeeds.
	EventEnableControls
	// EventTranslationModeChanged reports a translation-mode transition.
	EventTranslationModeChanged
	// EventAudioProcessed carries the corrected transcript and its language.
	EventAudioProcessed

	// Internal control messages; never forwarded to the sink.
	eventToggle
	eventSetTranslation
	eventRecordingEnded
	eventSessionDone
	eventDispatchDone
)

// Event is one tagged message. Which fields are meaningful depends on
// Kind: Text for Status/Log/Error/AudioProcessed, Lang for
// AudioProcessed, Flag for EnableControls/TranslationModeChanged.
type Event struct {
	Kind EventKind
	Text string
	Lang string
	Flag bool
}

// Sink consumes the ordered event stream. Publish is always called
// from the control goroutine, so implementations need no locking of
// their own to preserve order.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(ev Event) { f(ev) }

func statusEvent(text string) Event { return Event{Kind: EventStatus, Text: text} }
func logEvent(text string) Event    { return Event{Kind: EventLog, Text: text} }
func errorEvent(text string) Event  { return Event{Kind: EventError, Text: text} }

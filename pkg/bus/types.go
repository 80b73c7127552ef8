// Package bus implements the central event bus and module lifecycle controller (C1).
package bus

import "time"

// EventType identifies the exhaustive set of events the core defines (spec §6).
type EventType string

const (
	SystemStart    EventType = "SYSTEM_START"
	SystemStop     EventType = "SYSTEM_STOP"
	AudioFrameReady EventType = "AUDIO_FRAME_READY"
	AudioDeviceChanged EventType = "AUDIO_DEVICE_CHANGED"

	WakewordDetected EventType = "WAKEWORD_DETECTED"
	WakewordReset    EventType = "WAKEWORD_RESET"
	WakewordTimeout  EventType = "WAKEWORD_TIMEOUT"

	VADSpeechStart EventType = "VAD_SPEECH_START"
	VADSpeechEnd   EventType = "VAD_SPEECH_END"

	ASRRecognitionStart   EventType = "ASR_RECOGNITION_START"
	ASRRecognitionSuccess EventType = "ASR_RECOGNITION_SUCCESS"
	ASRRecognitionFailed  EventType = "ASR_RECOGNITION_FAILED"

	StateChanged EventType = "STATE_CHANGED"

	GUIUpdateText EventType = "GUI_UPDATE_TEXT"

	AgentDispatchRequest EventType = "AGENT_DISPATCH_REQUEST"

	TTSSpeakRequest EventType = "TTS_SPEAK_REQUEST"
	TTSSpeakStart   EventType = "TTS_SPEAK_START"
	TTSSpeakEnd     EventType = "TTS_SPEAK_END"
	TTSSpeakError   EventType = "TTS_SPEAK_ERROR"
)

// SessionAction tags whether an event's session should be newly created or resumed.
type SessionAction string

const (
	SessionActionNew    SessionAction = "new"
	SessionActionResume SessionAction = "resume"
)

// AudioFramePayload is the payload carried by AUDIO_FRAME_READY.
type AudioFramePayload struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// WakewordPayload is the payload carried by WAKEWORD_DETECTED.
type WakewordPayload struct {
	Keyword    string
	Confidence float64
}

// VADPayload is the payload carried by VAD_SPEECH_START / VAD_SPEECH_END.
type VADPayload struct {
	IsSpeech   bool
	DurationMs int64
	Audio      []byte
}

// ASRPayload is the payload carried by ASR_RECOGNITION_* events.
type ASRPayload struct {
	Text       string
	Confidence float64
	LatencyMs  int64
	IsPartial  bool
	Err        error
}

// StateChangePayload is the payload carried by STATE_CHANGED.
type StateChangePayload struct {
	From   string
	To     string
	Reason string
}

// AgentRequestPayload is the payload carried by AGENT_DISPATCH_REQUEST.
type AgentRequestPayload struct {
	AgentName string
	Query     string
	Context   map[string]interface{}
	Decision  interface{}
}

// TTSRequestPayload is the payload carried by TTS_SPEAK_REQUEST.
type TTSRequestPayload struct {
	Text     string
	Priority int
}

// Event is an immutable record published on the bus. Events are values; once
// published they must never be mutated.
type Event struct {
	ID            string
	Type          EventType
	Source        string
	Timestamp     time.Time
	MsgID         string
	SessionID     string
	SessionAction SessionAction
	Payload       interface{}
}

// Module is the lifecycle/event interface every worker and adapter implements
// (spec §6).
type Module interface {
	Name() string
	Initialize() bool
	Start() bool
	Stop()
	Cleanup()
	HandleEvent(e Event)
	IsRunning() bool
}

// Subscriber is the callback shape passed to Subscribe.
type Subscriber func(e Event)

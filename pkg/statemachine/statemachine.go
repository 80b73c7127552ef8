// Package statemachine implements the voice-processing state machine (C2): a
// pure (state, event) -> (new state, side-effect flags) function guarded by a
// single mutex, grounded on the wake-word/VAD/ASR coordination rules in
// spec.md §4.2.
package statemachine

import (
	"sync"
	"time"
)

// State is one of the voice pipeline's states.
type State string

const (
	Idle              State = "idle"
	WakewordDetected  State = "wakeword_detected"
	Listening         State = "listening"
	SpeechDetected    State = "speech_detected"
	Recognizing       State = "recognizing"
	Timeout           State = "timeout"
)

// Event is one of the events the machine accepts.
type Event string

const (
	WakewordTriggered Event = "WAKEWORD_TRIGGERED"
	WakewordReset     Event = "WAKEWORD_RESET"
	WakewordTimeout   Event = "WAKEWORD_TIMEOUT"
	SpeechStart       Event = "SPEECH_START"
	SpeechEnd         Event = "SPEECH_END"
	SilenceDetected   Event = "SILENCE_DETECTED"
	RecognitionStart  Event = "RECOGNITION_START"
	RecognitionSuccess Event = "RECOGNITION_SUCCESS"
	RecognitionFailed Event = "RECOGNITION_FAILED"
	Reset             Event = "RESET"
	ForceIdle         Event = "FORCE_IDLE"
)

// Config mirrors the Python StateConfig: the tunables the transition table
// consults.
type Config struct {
	EnableWakeword  bool
	WakewordTimeout time.Duration
	MaxVADEndCount  int
	EnableVAD       bool
	EnableASR       bool
	Debug           bool
}

// DefaultConfig matches the original's defaults (enable_wakeword=True,
// wakeword_timeout=10.0, max_vad_end_count=1).
func DefaultConfig() Config {
	return Config{
		EnableWakeword:  true,
		WakewordTimeout: 10 * time.Second,
		MaxVADEndCount:  1,
		EnableVAD:       true,
		EnableASR:       true,
	}
}

// Info is the current VoiceStateInfo snapshot (spec.md §3).
type Info struct {
	CurrentState     State
	WakewordActive   bool
	WakewordDeadline time.Time
	VADEndCount      int
	EnterTime        time.Time
}

// IsTimeoutActive reports whether a deadline is currently armed.
func (i Info) IsTimeoutActive() bool {
	return !i.WakewordDeadline.IsZero()
}

// IsTimeoutExpired reports whether the armed deadline has passed now.
func (i Info) IsTimeoutExpired(now time.Time) bool {
	return i.IsTimeoutActive() && !now.Before(i.WakewordDeadline)
}

// Result is the outcome of handling one event: the new state plus the
// side-effect flags consumers must act on.
type Result struct {
	Success             bool
	PreviousState       State
	CurrentState        State
	Event               Event
	Message             string
	ShouldResetWakeword bool
	ShouldStartTimeout  bool
	ShouldTriggerASR    bool
}

// Transition is one entry of the bounded transition history.
type Transition struct {
	From      State
	To        State
	Event     Event
	Timestamp time.Time
}

const transitionHistoryLimit = 100

// Callback is invoked after a successful transition, outside the lock.
type Callback func(Result)

// Machine is the mutex-guarded voice state machine.
type Machine struct {
	mu     sync.Mutex
	cfg    Config
	info   Info
	vadEndCount int

	history   []Transition
	callbacks []Callback
}

// New constructs a Machine starting in Idle with the given configuration.
func New(cfg Config) *Machine {
	return &Machine{
		cfg: cfg,
		info: Info{
			CurrentState: Idle,
			EnterTime:    time.Now(),
		},
	}
}

// RegisterCallback adds a callback invoked after every successful transition.
func (m *Machine) RegisterCallback(cb Callback) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.mu.Unlock()
}

// GetStateInfo returns a snapshot of the current state.
func (m *Machine) GetStateInfo() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// GetTransitionHistory returns up to limit most recent transitions, newest last.
func (m *Machine) GetTransitionHistory(limit int) []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]Transition, limit)
	copy(out, m.history[len(m.history)-limit:])
	return out
}

// HandleEvent processes one event and returns the result. Callbacks fire
// after the lock is released, so they may safely re-enter the machine.
func (m *Machine) HandleEvent(event Event, now time.Time) Result {
	m.mu.Lock()
	prevState := m.info.CurrentState
	result := m.process(event, now)
	result.PreviousState = prevState
	if result.Success && result.CurrentState != prevState {
		m.recordTransition(prevState, result.CurrentState, event, now)
	}
	m.mu.Unlock()

	if result.Success {
		m.notifyCallbacks(result)
	}
	return result
}

// CheckTimeout evaluates the wake-word deadline; if expired it synthesizes a
// WAKEWORD_TIMEOUT transition exactly as HandleEvent would.
func (m *Machine) CheckTimeout(now time.Time) (Result, bool) {
	m.mu.Lock()
	expired := m.info.IsTimeoutExpired(now)
	m.mu.Unlock()
	if !expired {
		return Result{}, false
	}
	return m.HandleEvent(WakewordTimeout, now), true
}

// Reset forces the machine back to Idle, as RESET would.
func (m *Machine) Reset() Result {
	return m.HandleEvent(Reset, time.Now())
}

func (m *Machine) recordTransition(from, to State, event Event, now time.Time) {
	m.history = append(m.history, Transition{From: from, To: to, Event: event, Timestamp: now})
	if len(m.history) > transitionHistoryLimit {
		m.history = m.history[len(m.history)-transitionHistoryLimit:]
	}
}

func (m *Machine) notifyCallbacks(result Result) {
	m.mu.Lock()
	cbs := make([]Callback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.Unlock()
	for _, cb := range cbs {
		safeInvoke(cb, result)
	}
}

func safeInvoke(cb Callback, result Result) {
	defer func() { recover() }()
	cb(result)
}

// process implements the transition table in spec.md §4.2. Caller must hold m.mu.
func (m *Machine) process(event Event, now time.Time) Result {
	cur := m.info.CurrentState
	switch event {
	case WakewordTriggered:
		if !m.cfg.EnableWakeword {
			return m.reject(event, "wakeword disabled")
		}
		if m.info.CurrentState == WakewordDetected {
			return m.reject(event, "already detected")
		}
		return m.transition(WakewordDetected, event, false, false, false, now)

	case WakewordReset:
		m.info.WakewordActive = false
		m.info.WakewordDeadline = time.Time{}
		return m.stay(event)

	case WakewordTimeout:
		if !m.info.WakewordActive {
			return m.reject(event, "no active deadline")
		}
		res := m.transition(Idle, event, true, false, false, now)
		m.info.WakewordActive = false
		m.info.WakewordDeadline = time.Time{}
		return res

	case SpeechStart:
		if m.cfg.EnableWakeword && cur != WakewordDetected {
			return m.reject(event, "wakeword not yet detected")
		}
		return m.transition(SpeechDetected, event, false, false, false, now)

	case SpeechEnd:
		if cur != SpeechDetected {
			return m.reject(event, "not in speech_detected")
		}
		if m.cfg.EnableWakeword {
			m.vadEndCount++
			m.info.VADEndCount = m.vadEndCount
			if m.vadEndCount >= m.cfg.MaxVADEndCount {
				res := m.transition(Idle, event, true, false, true, now)
				m.vadEndCount = 0
				m.info.VADEndCount = 0
				m.info.WakewordActive = false
				m.info.WakewordDeadline = time.Time{}
				return res
			}
			startTimeout := m.vadEndCount == 1
			if startTimeout {
				m.info.WakewordActive = true
				m.info.WakewordDeadline = now.Add(m.cfg.WakewordTimeout)
			}
			return m.transition(Listening, event, false, startTimeout, true, now)
		}
		return m.transition(Listening, event, false, false, true, now)

	case SilenceDetected:
		return m.stay(event)

	case RecognitionStart:
		return m.transition(Recognizing, event, false, false, false, now)

	case RecognitionSuccess, RecognitionFailed:
		if cur != Recognizing {
			return m.reject(event, "not recognizing")
		}
		if m.cfg.EnableWakeword {
			return m.transition(Listening, event, false, false, false, now)
		}
		return m.transition(Idle, event, false, false, false, now)

	case Reset, ForceIdle:
		res := m.transition(Idle, event, true, false, false, now)
		m.vadEndCount = 0
		m.info.VADEndCount = 0
		m.info.WakewordActive = false
		m.info.WakewordDeadline = time.Time{}
		return res
	}
	return m.reject(event, "unknown event")
}

func (m *Machine) transition(to State, event Event, resetWake, startTimeout, triggerASR bool, now time.Time) Result {
	m.info.CurrentState = to
	m.info.EnterTime = now
	return Result{
		Success:             true,
		CurrentState:        to,
		Event:               event,
		ShouldResetWakeword: resetWake,
		ShouldStartTimeout:  startTimeout,
		ShouldTriggerASR:    triggerASR,
	}
}

func (m *Machine) stay(event Event) Result {
	return Result{
		Success:      true,
		CurrentState: m.info.CurrentState,
		Event:        event,
	}
}

func (m *Machine) reject(event Event, reason string) Result {
	return Result{
		Success:       false,
		CurrentState:  m.info.CurrentState,
		PreviousState: m.info.CurrentState,
		Event:         event,
		Message:       reason,
	}
}

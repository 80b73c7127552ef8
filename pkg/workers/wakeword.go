package workers

import (
	"sync"
	"time"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/statemachine"
	"github.com/carline-ai/carline/pkg/tracker"
)

// Wakeword subscribes to AUDIO_FRAME_READY and runs the wake-word engine
// only while the state machine is in idle/wakeword_detected (spec.md §4.5:
// "so an active conversation cannot self-trigger").
type Wakeword struct {
	engine  engines.WakewordEngine
	bus     *bus.Controller
	tracker *tracker.Tracker
	logger  logging.Logger

	mu      sync.Mutex
	running bool
}

func NewWakeword(engine engines.WakewordEngine, b *bus.Controller, trk *tracker.Tracker, logger logging.Logger) *Wakeword {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Wakeword{engine: engine, bus: b, tracker: trk, logger: logger}
}

func (w *Wakeword) Name() string { return "wakeword_worker" }

func (w *Wakeword) Initialize() bool {
	w.bus.Subscribe(bus.AudioFrameReady, w.onAudioFrame)
	w.bus.Subscribe(bus.WakewordReset, w.onWakewordReset)
	return true
}

func (w *Wakeword) Start() bool { w.mu.Lock(); w.running = true; w.mu.Unlock(); return true }
func (w *Wakeword) Stop()       { w.mu.Lock(); w.running = false; w.mu.Unlock() }
func (w *Wakeword) Cleanup()    {}
func (w *Wakeword) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
func (w *Wakeword) HandleEvent(bus.Event) {}

func (w *Wakeword) onWakewordReset(bus.Event) {
	w.engine.Reset()
}

func (w *Wakeword) onAudioFrame(e bus.Event) {
	state := w.bus.StateMachine().GetStateInfo().CurrentState
	if state != statemachine.Idle && state != statemachine.WakewordDetected {
		return
	}
	payload, ok := e.Payload.(bus.AudioFramePayload)
	if !ok {
		return
	}
	samples := engines.BytesToInt16(payload.PCM)
	floats := make([]float32, len(samples))
	for i, s := range samples {
		floats[i] = float32(s) / 32768.0
	}

	result := w.engine.Detect(floats)
	if !result.Detected {
		return
	}

	msgID := ""
	if w.tracker != nil {
		msgID = w.tracker.CreateMessageID("voice", nil)
	}

	w.bus.Publish(bus.Event{
		Type:   bus.WakewordDetected,
		Source: w.Name(),
		MsgID:  msgID,
		Payload: bus.WakewordPayload{
			Keyword:    result.Keyword,
			Confidence: result.Confidence,
		},
	})
	w.bus.StateMachine().HandleEvent(statemachine.WakewordTriggered, time.Now())
}

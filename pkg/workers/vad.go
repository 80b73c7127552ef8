package workers

import (
	"sync"
	"time"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/statemachine"
)

// VADConfig names the tunables spec.md §4.5 calls out by example.
type VADConfig struct {
	FrameSamples        int // e.g. 480 samples @ 30ms
	WakeDelay            time.Duration
	MinSpeechDurationMs  int64
}

func DefaultVADConfig() VADConfig {
	return VADConfig{FrameSamples: 480, WakeDelay: 500 * time.Millisecond, MinSpeechDurationMs: 200}
}

// VAD subscribes to AUDIO_FRAME_READY, buffers into fixed-size frames, and
// emits VAD_SPEECH_START/VAD_SPEECH_END. Only processes while the state
// machine is in an active-conversation state (spec.md §4.5).
type VAD struct {
	engine engines.VADEngine
	cfg    VADConfig
	bus    *bus.Controller
	logger logging.Logger

	mu           sync.Mutex
	running      bool
	buffer       []int16
	wakeArmedAt  time.Time
	currentMsgID string
}

func NewVAD(engine engines.VADEngine, cfg VADConfig, b *bus.Controller, logger logging.Logger) *VAD {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &VAD{engine: engine, cfg: cfg, bus: b, logger: logger}
}

func (v *VAD) Name() string { return "vad_worker" }

func (v *VAD) Initialize() bool {
	v.bus.Subscribe(bus.AudioFrameReady, v.onAudioFrame)
	v.bus.Subscribe(bus.WakewordDetected, v.onWakewordDetected)
	return true
}

func (v *VAD) Start() bool { v.mu.Lock(); v.running = true; v.mu.Unlock(); return true }
func (v *VAD) Stop()       { v.mu.Lock(); v.running = false; v.mu.Unlock() }
func (v *VAD) Cleanup()    {}
func (v *VAD) IsRunning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}
func (v *VAD) HandleEvent(bus.Event) {}

func (v *VAD) onWakewordDetected(e bus.Event) {
	v.mu.Lock()
	v.wakeArmedAt = time.Now()
	v.currentMsgID = e.MsgID
	v.mu.Unlock()
	v.engine.OnWakewordDetected()
}

func activeForVAD(s statemachine.State) bool {
	switch s {
	case statemachine.WakewordDetected, statemachine.Listening, statemachine.SpeechDetected, statemachine.Recognizing:
		return true
	default:
		return false
	}
}

func (v *VAD) onAudioFrame(e bus.Event) {
	if !activeForVAD(v.bus.StateMachine().GetStateInfo().CurrentState) {
		return
	}
	payload, ok := e.Payload.(bus.AudioFramePayload)
	if !ok {
		return
	}

	v.mu.Lock()
	suppressed := !v.wakeArmedAt.IsZero() && time.Since(v.wakeArmedAt) < v.cfg.WakeDelay
	msgID := v.currentMsgID
	v.buffer = append(v.buffer, engines.BytesToInt16(payload.PCM)...)
	var frame []int16
	if len(v.buffer) >= v.cfg.FrameSamples {
		frame = v.buffer[:v.cfg.FrameSamples]
		v.buffer = v.buffer[v.cfg.FrameSamples:]
	}
	v.mu.Unlock()

	if suppressed || frame == nil {
		return
	}

	result := v.engine.ProcessFrame(frame)
	switch result.Event {
	case "speech_start":
		v.bus.Publish(bus.Event{
			Type:   bus.VADSpeechStart,
			Source: v.Name(),
			MsgID:  msgID,
			Payload: bus.VADPayload{
				IsSpeech: true,
			},
		})
		v.bus.StateMachine().HandleEvent(statemachine.SpeechStart, time.Now())
	case "speech_end":
		if result.DurationMs < v.cfg.MinSpeechDurationMs {
			v.logger.Debug("vad: dropping short segment", "duration_ms", result.DurationMs)
			return
		}
		v.bus.Publish(bus.Event{
			Type:   bus.VADSpeechEnd,
			Source: v.Name(),
			MsgID:  msgID,
			Payload: bus.VADPayload{
				IsSpeech:   false,
				DurationMs: result.DurationMs,
				Audio:      result.AssembledPCM,
			},
		})
		v.bus.StateMachine().HandleEvent(statemachine.SpeechEnd, time.Now())
	}
}

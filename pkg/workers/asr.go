package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/statemachine"
	"github.com/carline-ai/carline/pkg/tracker"
)

// ASR subscribes to VAD_SPEECH_END and enforces at-most-one concurrent
// recognition (spec.md §4.5: "if a job is in flight, the new request is
// dropped with a log line").
type ASR struct {
	engine     engines.ASREngine
	bus        *bus.Controller
	tracker    *tracker.Tracker
	logger     logging.Logger
	sampleRate int

	mu      sync.Mutex
	running bool
	inFlight int32
}

func NewASR(engine engines.ASREngine, sampleRate int, b *bus.Controller, trk *tracker.Tracker, logger logging.Logger) *ASR {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &ASR{engine: engine, bus: b, tracker: trk, logger: logger, sampleRate: sampleRate}
}

func (a *ASR) Name() string { return "asr_worker" }

func (a *ASR) Initialize() bool {
	a.bus.Subscribe(bus.VADSpeechEnd, a.onSpeechEnd)
	return true
}

func (a *ASR) Start() bool { a.mu.Lock(); a.running = true; a.mu.Unlock(); return true }
func (a *ASR) Stop()       { a.mu.Lock(); a.running = false; a.mu.Unlock() }
func (a *ASR) Cleanup()    {}
func (a *ASR) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
func (a *ASR) HandleEvent(bus.Event) {}

func (a *ASR) onSpeechEnd(e bus.Event) {
	payload, ok := e.Payload.(bus.VADPayload)
	if !ok {
		return
	}
	if !atomic.CompareAndSwapInt32(&a.inFlight, 0, 1) {
		a.logger.Warn("asr: dropping request, recognition already in flight", "msg_id", e.MsgID)
		return
	}

	a.bus.StateMachine().HandleEvent(statemachine.RecognitionStart, time.Now())
	if a.tracker != nil && e.MsgID != "" {
		_ = a.tracker.AddTrace(e.MsgID, a.Name(), "recognition_start", nil, nil, nil)
	}

	go a.recognize(e.MsgID, payload.Audio)
}

func (a *ASR) recognize(msgID string, audio []byte) {
	defer atomic.StoreInt32(&a.inFlight, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pcm := engines.BytesToInt16(audio)
	result, err := a.engine.Recognize(ctx, pcm, a.sampleRate)
	if err != nil {
		a.logger.Error("asr: recognition failed", "msg_id", msgID, "error", err)
		a.bus.Publish(bus.Event{
			Type:   bus.ASRRecognitionFailed,
			Source: a.Name(),
			MsgID:  msgID,
			Payload: bus.ASRPayload{
				Err: err,
			},
		})
		a.bus.StateMachine().HandleEvent(statemachine.RecognitionFailed, time.Now())
		return
	}

	if a.tracker != nil && msgID != "" {
		a.tracker.UpdateQuery(msgID, result.Text)
		_ = a.tracker.AddTrace(msgID, a.Name(), "recognition_success", nil, result.Text, nil)
	}

	a.bus.Publish(bus.Event{
		Type:   bus.ASRRecognitionSuccess,
		Source: a.Name(),
		MsgID:  msgID,
		Payload: bus.ASRPayload{
			Text:       result.Text,
			Confidence: result.Confidence,
			LatencyMs:  result.LatencyMs,
		},
	})
	a.bus.StateMachine().HandleEvent(statemachine.RecognitionSuccess, time.Now())
}

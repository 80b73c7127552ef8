package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/statemachine"
)

type blockingASR struct {
	mu       sync.Mutex
	started  int
	release  chan struct{}
	text     string
}

func (b *blockingASR) Recognize(ctx context.Context, pcm []int16, sampleRate int) (engines.ASRResult, error) {
	b.mu.Lock()
	b.started++
	b.mu.Unlock()
	<-b.release
	return engines.ASRResult{Text: b.text, Confidence: 1.0}, nil
}
func (b *blockingASR) Name() string { return "blocking-asr" }

func (b *blockingASR) startedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func TestASRDropsConcurrentRequestWhileInFlight(t *testing.T) {
	bc := bus.New(nil)
	bc.InitializeAll(statemachine.DefaultConfig())
	engine := &blockingASR{release: make(chan struct{}), text: "打开空调"}
	a := NewASR(engine, 16000, bc, nil, nil)
	a.Initialize()

	bc.Publish(bus.Event{Type: bus.VADSpeechEnd, MsgID: "m1", Payload: bus.VADPayload{Audio: make([]byte, 320)}})
	deadline := time.Now().Add(time.Second)
	for engine.startedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if engine.startedCount() != 1 {
		t.Fatal("expected first recognition to start")
	}

	bc.Publish(bus.Event{Type: bus.VADSpeechEnd, MsgID: "m2", Payload: bus.VADPayload{Audio: make([]byte, 320)}})
	time.Sleep(50 * time.Millisecond)
	if engine.startedCount() != 1 {
		t.Fatal("expected second concurrent request to be dropped")
	}

	close(engine.release)
}

func TestASRPublishesSuccessAndDrivesStateMachine(t *testing.T) {
	bc := bus.New(nil)
	bc.InitializeAll(statemachine.DefaultConfig())
	engine := &blockingASR{release: make(chan struct{}), text: "打开空调"}
	close(engine.release) // don't block this time
	a := NewASR(engine, 16000, bc, nil, nil)
	a.Initialize()

	var gotText string
	done := make(chan struct{})
	bc.Subscribe(bus.ASRRecognitionSuccess, func(e bus.Event) {
		p := e.Payload.(bus.ASRPayload)
		gotText = p.Text
		close(done)
	})

	bc.Publish(bus.Event{Type: bus.VADSpeechEnd, MsgID: "m1", Payload: bus.VADPayload{Audio: make([]byte, 320)}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ASR_RECOGNITION_SUCCESS")
	}
	if gotText != "打开空调" {
		t.Fatalf("expected transcript to round-trip, got %q", gotText)
	}
}

package workers

import (
	"testing"
	"time"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines/mock"
	"github.com/carline-ai/carline/pkg/statemachine"
	"github.com/carline-ai/carline/pkg/tracker"
)

func TestWakewordPublishesOnDetectionAndDrivesStateMachine(t *testing.T) {
	b := bus.New(nil)
	b.InitializeAll(statemachine.DefaultConfig())
	engine := &mock.Wakeword{Keyword: "hey-car", Confidence: 0.9}
	trk := tracker.New(tracker.WithFileLogging(false))
	w := NewWakeword(engine, b, trk, nil)
	w.Initialize()

	var seen bool
	b.Subscribe(bus.WakewordDetected, func(bus.Event) { seen = true })

	b.Publish(bus.Event{
		Type:    bus.AudioFrameReady,
		Payload: bus.AudioFramePayload{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1},
	})

	if !seen {
		t.Fatal("expected WAKEWORD_DETECTED to be published")
	}
	if b.StateMachine().GetStateInfo().CurrentState != statemachine.WakewordDetected {
		t.Fatalf("expected state machine to have transitioned, got %v", b.StateMachine().GetStateInfo().CurrentState)
	}
}

func TestWakewordDropsFramesOutsideIdleStates(t *testing.T) {
	b := bus.New(nil)
	b.InitializeAll(statemachine.DefaultConfig())
	b.StateMachine().HandleEvent(statemachine.WakewordTriggered, time.Now())
	b.StateMachine().HandleEvent(statemachine.SpeechStart, time.Now())

	engine := &mock.Wakeword{Keyword: "hey-car", Confidence: 0.9}
	w := NewWakeword(engine, b, nil, nil)
	w.Initialize()

	var seen bool
	b.Subscribe(bus.WakewordDetected, func(bus.Event) { seen = true })

	b.Publish(bus.Event{
		Type:    bus.AudioFrameReady,
		Payload: bus.AudioFramePayload{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1},
	})

	if seen {
		t.Fatal("expected frames to be dropped while a conversation is active")
	}
}

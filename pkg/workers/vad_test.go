package workers

import (
	"testing"
	"time"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines/providers/vad"
	"github.com/carline-ai/carline/pkg/statemachine"
)

func loudPCMBytes(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		pcm[i*2] = 0
		pcm[i*2+1] = 0x50 // high byte, loud sample
	}
	return pcm
}

func TestVADEmitsSpeechStartAndEndWhenActive(t *testing.T) {
	b := bus.New(nil)
	b.InitializeAll(statemachine.DefaultConfig())
	b.StateMachine().HandleEvent(statemachine.WakewordTriggered, time.Now())

	engine := vad.NewRMS(0.02, 20*time.Millisecond, 16000)
	cfg := VADConfig{FrameSamples: 160, WakeDelay: 0, MinSpeechDurationMs: 0}
	v := NewVAD(engine, cfg, b, nil)
	v.Initialize()

	var gotStart, gotEnd bool
	b.Subscribe(bus.VADSpeechStart, func(bus.Event) { gotStart = true })
	b.Subscribe(bus.VADSpeechEnd, func(bus.Event) { gotEnd = true })

	for i := 0; i < 10; i++ {
		b.Publish(bus.Event{
			Type:    bus.AudioFrameReady,
			Payload: bus.AudioFramePayload{PCM: loudPCMBytes(160), SampleRate: 16000, Channels: 1},
		})
	}
	if !gotStart {
		t.Fatal("expected VAD_SPEECH_START to be published")
	}

	time.Sleep(25 * time.Millisecond)
	b.Publish(bus.Event{
		Type:    bus.AudioFrameReady,
		Payload: bus.AudioFramePayload{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1},
	})
	if !gotEnd {
		t.Fatal("expected VAD_SPEECH_END to be published after silence")
	}
	if b.StateMachine().GetStateInfo().CurrentState != statemachine.Idle && b.StateMachine().GetStateInfo().CurrentState != statemachine.Listening {
		t.Fatalf("unexpected post-speech-end state: %v", b.StateMachine().GetStateInfo().CurrentState)
	}
}

func TestVADIgnoresFramesWhileIdle(t *testing.T) {
	b := bus.New(nil)
	b.InitializeAll(statemachine.DefaultConfig())

	engine := vad.NewRMS(0.02, 20*time.Millisecond, 16000)
	v := NewVAD(engine, DefaultVADConfig(), b, nil)
	v.Initialize()

	var gotStart bool
	b.Subscribe(bus.VADSpeechStart, func(bus.Event) { gotStart = true })

	for i := 0; i < 10; i++ {
		b.Publish(bus.Event{
			Type:    bus.AudioFrameReady,
			Payload: bus.AudioFramePayload{PCM: loudPCMBytes(160), SampleRate: 16000, Channels: 1},
		})
	}
	if gotStart {
		t.Fatal("expected VAD to stay dormant while state machine is idle")
	}
}

package statemachine

import (
	"testing"
	"time"
)

func TestWakeAndSingleCommand(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	r := m.HandleEvent(WakewordTriggered, now)
	if !r.Success || r.CurrentState != WakewordDetected {
		t.Fatalf("expected wakeword_detected, got %+v", r)
	}

	r = m.HandleEvent(SpeechStart, now)
	if !r.Success || r.CurrentState != SpeechDetected {
		t.Fatalf("expected speech_detected, got %+v", r)
	}

	r = m.HandleEvent(SpeechEnd, now)
	if !r.Success || r.CurrentState != Idle {
		t.Fatalf("max_vad_end_count=1 should return to idle, got %+v", r)
	}
	if !r.ShouldResetWakeword || !r.ShouldTriggerASR {
		t.Fatalf("expected reset+asr flags, got %+v", r)
	}
}

func TestWakeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxVADEndCount = 3
	cfg.WakewordTimeout = 10 * time.Millisecond
	m := New(cfg)
	now := time.Now()

	m.HandleEvent(WakewordTriggered, now)
	m.HandleEvent(SpeechStart, now)
	r := m.HandleEvent(SpeechEnd, now)
	if r.CurrentState != Listening || !r.ShouldStartTimeout {
		t.Fatalf("expected listening+should_start_timeout, got %+v", r)
	}

	later := now.Add(11 * time.Millisecond)
	res, fired := m.CheckTimeout(later)
	if !fired {
		t.Fatalf("expected timeout to fire")
	}
	if res.CurrentState != Idle || !res.ShouldResetWakeword {
		t.Fatalf("expected idle+reset_wakeword, got %+v", res)
	}
}

func TestMaxVadEndCountBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxVADEndCount = 1
	m := New(cfg)
	now := time.Now()
	m.HandleEvent(WakewordTriggered, now)
	m.HandleEvent(SpeechStart, now)
	r := m.HandleEvent(SpeechEnd, now)
	if r.CurrentState != Idle {
		t.Fatalf("max_vad_end_count=1 must return to idle on first SPEECH_END, got %v", r.CurrentState)
	}
}

func TestWakewordDisabledAcceptsSpeechStartAlways(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableWakeword = false
	m := New(cfg)
	now := time.Now()

	r := m.HandleEvent(WakewordTriggered, now)
	if r.Success {
		t.Fatalf("WAKEWORD_TRIGGERED must be rejected when wakeword disabled")
	}

	r = m.HandleEvent(SpeechStart, now)
	if !r.Success || r.CurrentState != SpeechDetected {
		t.Fatalf("SPEECH_START must always be accepted when wakeword disabled, got %+v", r)
	}

	r = m.HandleEvent(SpeechEnd, now)
	if !r.Success || r.CurrentState != Listening || !r.ShouldTriggerASR {
		t.Fatalf("expected listening+trigger_asr without wakeword, got %+v", r)
	}
}

func TestResetAlwaysGoesToIdle(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()
	m.HandleEvent(WakewordTriggered, now)
	m.HandleEvent(SpeechStart, now)

	r := m.HandleEvent(Reset, now)
	if !r.Success || r.CurrentState != Idle || !r.ShouldResetWakeword {
		t.Fatalf("RESET must transition to idle with reset_wakeword, got %+v", r)
	}
	info := m.GetStateInfo()
	if info.WakewordActive || info.IsTimeoutActive() {
		t.Fatalf("RESET must clear wakeword_active and deadline, got %+v", info)
	}
}

func TestTransitionHistoryBounded(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()
	for i := 0; i < 150; i++ {
		m.HandleEvent(Reset, now)
		m.HandleEvent(WakewordTriggered, now)
	}
	hist := m.GetTransitionHistory(0)
	if len(hist) > transitionHistoryLimit {
		t.Fatalf("history must be bounded to %d, got %d", transitionHistoryLimit, len(hist))
	}
}

func TestCallbackFiresAfterUnlock(t *testing.T) {
	m := New(DefaultConfig())
	done := make(chan struct{}, 1)
	m.RegisterCallback(func(r Result) {
		// Reentrant call from within the callback must not deadlock.
		m.GetStateInfo()
		done <- struct{}{}
	})
	m.HandleEvent(WakewordTriggered, time.Now())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire or deadlocked")
	}
}

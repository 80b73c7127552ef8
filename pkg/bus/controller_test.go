package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carline-ai/carline/pkg/statemachine"
)

type fakeModule struct {
	name      string
	initOK    bool
	started   int32
	stopped   int32
	events    int32
	panicOn   EventType
}

func (f *fakeModule) Name() string    { return f.name }
func (f *fakeModule) Initialize() bool { return f.initOK }
func (f *fakeModule) Start() bool      { atomic.AddInt32(&f.started, 1); return true }
func (f *fakeModule) Stop()            { atomic.AddInt32(&f.stopped, 1) }
func (f *fakeModule) Cleanup()         {}
func (f *fakeModule) IsRunning() bool  { return atomic.LoadInt32(&f.started) > 0 }
func (f *fakeModule) HandleEvent(e Event) {
	atomic.AddInt32(&f.events, 1)
	if e.Type == f.panicOn {
		panic("boom")
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	c := New(nil)
	m := &fakeModule{name: "wake", initOK: true}
	if err := c.Register(m); err != nil {
		t.Fatal(err)
	}
	if err := c.Register(m); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestStartStopOrder(t *testing.T) {
	c := New(nil)
	var order []string
	var mu sync.Mutex
	names := []string{"audio", "wake", "vad", "asr"}
	for _, n := range names {
		n := n
		c.Register(&recordingModule{name: n, onStop: func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}})
	}
	c.InitializeAll(statemachine.DefaultConfig())
	c.StartAll()
	c.StopAll()
	want := []string{"asr", "vad", "wake", "audio"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected reverse stop order %v, got %v", want, order)
		}
	}
}

type recordingModule struct {
	name   string
	onStop func()
}

func (r *recordingModule) Name() string      { return r.name }
func (r *recordingModule) Initialize() bool  { return true }
func (r *recordingModule) Start() bool       { return true }
func (r *recordingModule) Stop()             { r.onStop() }
func (r *recordingModule) Cleanup()          {}
func (r *recordingModule) IsRunning() bool   { return true }
func (r *recordingModule) HandleEvent(e Event) {}

func TestStopAllIdempotent(t *testing.T) {
	c := New(nil)
	c.Register(&fakeModule{name: "wake", initOK: true})
	c.InitializeAll(statemachine.DefaultConfig())
	c.StartAll()
	c.StopAll()
	c.StopAll() // must not panic
}

func TestModulePanicIsolated(t *testing.T) {
	c := New(nil)
	bad := &fakeModule{name: "bad", initOK: true, panicOn: WakewordDetected}
	good := &fakeModule{name: "good", initOK: true}
	c.Register(bad)
	c.Register(good)
	c.InitializeAll(statemachine.DefaultConfig())
	c.StartAll()

	c.Publish(Event{Type: WakewordDetected})

	if atomic.LoadInt32(&good.events) == 0 {
		t.Fatal("a panicking module must not stop delivery to others")
	}
	if c.Statistics().ModuleErrors == 0 {
		t.Fatal("expected module error to be counted")
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	c := New(nil)
	var calls int32
	c.Subscribe(WakewordDetected, func(e Event) { panic("boom") })
	c.Subscribe(WakewordDetected, func(e Event) { atomic.AddInt32(&calls, 1) })

	c.Publish(Event{Type: WakewordDetected})

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("a panicking subscriber must not block delivery to others")
	}
	if c.Statistics().SubscriberErrors == 0 {
		t.Fatal("expected subscriber error to be counted")
	}
}

func TestRingBufferDropsOldestOnOverflow(t *testing.T) {
	c := New(nil)
	for i := 0; i < ringCapacity+10; i++ {
		c.Publish(Event{Type: AudioFrameReady})
	}
	if c.Statistics().EventsDropped != 10 {
		t.Fatalf("expected 10 drops past capacity, got %d", c.Statistics().EventsDropped)
	}
	if len(c.RecentEvents()) != ringCapacity {
		t.Fatalf("ring must stay at capacity %d, got %d", ringCapacity, len(c.RecentEvents()))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := New(nil)
	var calls int32
	id := c.Subscribe(WakewordDetected, func(e Event) { atomic.AddInt32(&calls, 1) })

	c.Publish(Event{Type: WakewordDetected})
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call before unsubscribe, got %d", calls)
	}

	c.Unsubscribe(WakewordDetected, id)
	c.Publish(Event{Type: WakewordDetected})
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected no further calls after unsubscribe, got %d", calls)
	}
}

func TestDuplicateSubscriptionIsSuppressed(t *testing.T) {
	c := New(nil)
	var calls int32
	handler := func(e Event) { atomic.AddInt32(&calls, 1) }

	firstID := c.Subscribe(WakewordDetected, handler)
	secondID := c.Subscribe(WakewordDetected, handler)
	if firstID != secondID {
		t.Fatalf("expected re-subscribing the same callback to return the same id, got %d and %d", firstID, secondID)
	}

	c.Publish(Event{Type: WakewordDetected})
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected the duplicate registration to fire only once per publish, got %d", calls)
	}
}

func TestWakewordTimeoutPublishedOnCheck(t *testing.T) {
	c := New(nil)
	cfg := statemachine.DefaultConfig()
	cfg.MaxVADEndCount = 5
	cfg.WakewordTimeout = 0
	c.InitializeAll(cfg)

	var gotTimeout int32
	c.Subscribe(WakewordTimeout, func(e Event) { atomic.AddInt32(&gotTimeout, 1) })

	c.StateMachine().HandleEvent(statemachine.WakewordTriggered, time.Now())
	c.StateMachine().HandleEvent(statemachine.SpeechStart, time.Now())
	c.StateMachine().HandleEvent(statemachine.SpeechEnd, time.Now())

	c.CheckTimeout()
	if atomic.LoadInt32(&gotTimeout) == 0 {
		t.Fatal("expected WAKEWORD_TIMEOUT to be published")
	}
}

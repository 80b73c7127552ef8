package bus

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/statemachine"
)

// ErrWorkerExists is returned by Register when the name is already taken.
var ErrWorkerExists = errors.New("bus: worker already registered")

const ringCapacity = 1000

// Stats is the point-in-time counters controller.py's get_statistics/
// print_status exposes.
type Stats struct {
	EventsPublished  uint64
	EventsDropped    uint64
	SubscriberErrors uint64
	ModuleErrors     uint64
}

// Controller is the event bus and module lifecycle controller (C1).
type Controller struct {
	logger logging.Logger

	regMu   sync.Mutex
	order   []string
	modules map[string]Module

	subMu  sync.Mutex
	subs   map[EventType][]subscription
	subSeq uint64

	ring   []Event
	ringAt int
	ringMu sync.Mutex

	stats   Stats
	metrics *Metrics

	sm *statemachine.Machine
}

// New constructs an empty Controller.
func New(logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Controller{
		logger:  logger,
		modules: make(map[string]Module),
		subs:    make(map[EventType][]subscription),
		ring:    make([]Event, 0, ringCapacity),
	}
}

// Register adds a named worker to the registry.
func (c *Controller) Register(m Module) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	name := m.Name()
	if _, exists := c.modules[name]; exists {
		return fmt.Errorf("%w: %s", ErrWorkerExists, name)
	}
	c.modules[name] = m
	c.order = append(c.order, name)
	return nil
}

// GetModule returns a registered module by name.
func (c *Controller) GetModule(name string) (Module, bool) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	m, ok := c.modules[name]
	return m, ok
}

// ListModules returns the names of every registered worker, insertion order.
func (c *Controller) ListModules() []string {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// InitializeAll builds the voice state machine and initializes every worker
// in insertion order, aborting on the first failure.
func (c *Controller) InitializeAll(cfg statemachine.Config) bool {
	c.sm = statemachine.New(cfg)
	c.sm.RegisterCallback(c.onStateTransition)

	c.regMu.Lock()
	order := append([]string(nil), c.order...)
	c.regMu.Unlock()

	for _, name := range order {
		m, ok := c.GetModule(name)
		if !ok {
			continue
		}
		if !m.Initialize() {
			c.logger.Error("module initialize failed", "module", name)
			return false
		}
	}
	return true
}

// StartAll starts every worker in insertion order and publishes SYSTEM_START.
func (c *Controller) StartAll() bool {
	c.regMu.Lock()
	order := append([]string(nil), c.order...)
	c.regMu.Unlock()

	for _, name := range order {
		m, ok := c.GetModule(name)
		if !ok {
			continue
		}
		if !m.Start() {
			c.logger.Error("module start failed", "module", name)
			return false
		}
	}
	c.Publish(Event{Type: SystemStart, Source: "controller", Timestamp: time.Now()})
	return true
}

// StopAll stops every worker in reverse order; idempotent and non-throwing.
func (c *Controller) StopAll() {
	c.Publish(Event{Type: SystemStop, Source: "controller", Timestamp: time.Now()})

	c.regMu.Lock()
	order := append([]string(nil), c.order...)
	c.regMu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		m, ok := c.GetModule(order[i])
		if !ok {
			continue
		}
		safeStop(m, c.logger)
	}
}

func safeStop(m Module, logger logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic stopping module", "module", m.Name(), "recover", r)
		}
	}()
	m.Stop()
}

// CleanupAll calls Cleanup on every worker, isolating panics.
func (c *Controller) CleanupAll() {
	c.regMu.Lock()
	order := append([]string(nil), c.order...)
	c.regMu.Unlock()
	for _, name := range order {
		if m, ok := c.GetModule(name); ok {
			func() {
				defer func() { recover() }()
				m.Cleanup()
			}()
		}
	}
}

// SubscriptionID is the stable handle Subscribe returns; pass it to
// Unsubscribe to remove that registration later (spec.md §4.1's
// subscribe(type, callback)/unsubscribe(type, callback) pair). Go func
// values have no general equality, so rather than compare callbacks by
// value this bus hands back an explicit token — the same idiom the pack's
// channel-based event buses use a channel's identity for (see
// other_examples' internal/events bus.go Subscribe/Unsubscribe).
type SubscriptionID uint64

type subscription struct {
	id  SubscriptionID
	ptr uintptr
	cb  Subscriber
}

// Subscribe registers cb for eventType and returns a token for Unsubscribe.
// Repeat-subscribing the same underlying function for the same eventType is
// suppressed (spec.md §4.1: "duplicate subscriptions are suppressed") —
// identity is the function's code pointer, so a worker that calls Initialize
// twice does not end up invoked twice per event.
func (c *Controller) Subscribe(eventType EventType, cb Subscriber) SubscriptionID {
	ptr := reflect.ValueOf(cb).Pointer()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, s := range c.subs[eventType] {
		if s.ptr == ptr {
			return s.id
		}
	}
	id := SubscriptionID(atomic.AddUint64(&c.subSeq, 1))
	c.subs[eventType] = append(c.subs[eventType], subscription{id: id, ptr: ptr, cb: cb})
	return id
}

// Unsubscribe removes the registration identified by id from eventType. A
// stale or unknown id is a no-op.
func (c *Controller) Unsubscribe(eventType EventType, id SubscriptionID) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	subs := c.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			c.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish synchronously enqueues the event for audit, invokes every matching
// subscriber, then dispatches to every module's HandleEvent. Subscriber or
// module panics/failures are isolated and counted, never propagated.
func (c *Controller) Publish(e Event) {
	if e.ID == "" {
		e.ID = newEventID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	c.enqueueAudit(e)
	c.stats.EventsPublished++
	if c.metrics != nil {
		c.metrics.EventsPublished.Inc()
	}

	c.subMu.Lock()
	subs := append([]subscription(nil), c.subs[e.Type]...)
	c.subMu.Unlock()
	for _, sub := range subs {
		c.invokeSubscriber(sub.cb, e)
	}

	c.regMu.Lock()
	order := append([]string(nil), c.order...)
	c.regMu.Unlock()
	for _, name := range order {
		if m, ok := c.GetModule(name); ok {
			c.invokeModule(m, e)
		}
	}
}

func (c *Controller) invokeSubscriber(sub Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.SubscriberErrors++
			if c.metrics != nil {
				c.metrics.SubscriberErrors.Inc()
			}
			c.logger.Error("subscriber panic", "event", e.Type, "recover", r)
		}
	}()
	sub(e)
}

func (c *Controller) invokeModule(m Module, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.ModuleErrors++
			if c.metrics != nil {
				c.metrics.ModuleErrors.Inc()
			}
			c.logger.Error("module handle_event panic", "module", m.Name(), "event", e.Type, "recover", r)
		}
	}()
	m.HandleEvent(e)
}

func (c *Controller) enqueueAudit(e Event) {
	c.ringMu.Lock()
	defer c.ringMu.Unlock()
	if len(c.ring) < ringCapacity {
		c.ring = append(c.ring, e)
		return
	}
	c.ring[c.ringAt] = e
	c.ringAt = (c.ringAt + 1) % ringCapacity
	c.stats.EventsDropped++
	if c.metrics != nil {
		c.metrics.EventsDropped.Inc()
	}
}

// RecentEvents returns a snapshot of the audit ring, oldest first.
func (c *Controller) RecentEvents() []Event {
	c.ringMu.Lock()
	defer c.ringMu.Unlock()
	out := make([]Event, len(c.ring))
	copy(out, c.ring)
	return out
}

// StateMachine exposes the controller's voice state machine (set by
// InitializeAll).
func (c *Controller) StateMachine() *statemachine.Machine {
	return c.sm
}

// CheckTimeout asks the state machine to evaluate its deadline and publishes
// WAKEWORD_TIMEOUT if expired.
func (c *Controller) CheckTimeout() {
	if c.sm == nil {
		return
	}
	if _, fired := c.sm.CheckTimeout(time.Now()); fired {
		c.Publish(Event{Type: WakewordTimeout, Source: "controller"})
	}
}

// onStateTransition republishes every successful machine transition as a
// STATE_CHANGED event and, when flagged, a WAKEWORD_RESET, mirroring
// controller.py's handle_state_event.
func (c *Controller) onStateTransition(r statemachine.Result) {
	if r.PreviousState != r.CurrentState {
		c.Publish(Event{
			Type:   StateChanged,
			Source: "state_machine",
			Payload: StateChangePayload{
				From:   string(r.PreviousState),
				To:     string(r.CurrentState),
				Reason: string(r.Event),
			},
		})
	}
	if r.ShouldResetWakeword {
		c.Publish(Event{Type: WakewordReset, Source: "state_machine"})
	}
}

// Statistics returns the current counters.
func (c *Controller) Statistics() Stats {
	return c.stats
}

func newEventID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

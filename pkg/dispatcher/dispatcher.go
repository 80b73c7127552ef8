// Package dispatcher implements the agent dispatcher (C7): spec.md §4.7's
// AGENT_DISPATCH_REQUEST handler, grounded on the teacher's worker-goroutine
// pattern in cmd/agent/main.go and streaming.ManagedStream's offload of
// blocking provider calls off the hot path.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/carline-ai/carline/pkg/agents"
	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/session"
	"github.com/carline-ai/carline/pkg/tracker"
)

// debounceWindow is spec.md §4.7's "debounced within a 1-second window
// against the exact same text".
const debounceWindow = time.Second

// TTSEnabled toggles whether TTS_SPEAK_REQUEST is published at all (spec.md
// §4.7: "unless TTS is disabled, e.g., in evaluation mode").
type Config struct {
	TTSEnabled bool
}

func DefaultConfig() Config { return Config{TTSEnabled: true} }

// Dispatcher subscribes to AGENT_DISPATCH_REQUEST and runs the resolved agent
// on its own goroutine so the bus thread never blocks on agent work.
type Dispatcher struct {
	bus      *bus.Controller
	sessions *session.Manager
	registry *agents.Registry
	tracker  *tracker.Tracker
	cfg      Config
	logger   logging.Logger

	mu           sync.Mutex
	lastSpoken   string
	lastSpokenAt time.Time

	running bool
}

// New constructs a Dispatcher. Call Start to subscribe to the bus.
func New(b *bus.Controller, sessions *session.Manager, registry *agents.Registry, trk *tracker.Tracker, cfg Config, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Dispatcher{bus: b, sessions: sessions, registry: registry, tracker: trk, cfg: cfg, logger: logger}
}

func (d *Dispatcher) Name() string { return "agent_dispatcher" }

func (d *Dispatcher) Initialize() bool {
	d.bus.Subscribe(bus.AgentDispatchRequest, d.onDispatchRequest)
	return true
}

func (d *Dispatcher) Start() bool { d.running = true; return true }
func (d *Dispatcher) Stop()       { d.running = false }
func (d *Dispatcher) Cleanup()    {}
func (d *Dispatcher) IsRunning() bool { return d.running }

// HandleEvent is a no-op; dispatch is driven entirely by the Subscribe
// callback registered in Initialize, matching spec.md §6's module/subscriber
// distinction (a module may also be a subscriber, but doesn't have to act on
// every event it's broadcast).
func (d *Dispatcher) HandleEvent(bus.Event) {}

func (d *Dispatcher) onDispatchRequest(e bus.Event) {
	payload, ok := e.Payload.(bus.AgentRequestPayload)
	if !ok {
		d.logger.Error("agent dispatch request with unexpected payload type")
		return
	}
	// Run on its own goroutine: spec.md §4.7 step 1, "do not block the bus".
	go d.runAgent(e.MsgID, e.SessionID, payload)
}

func (d *Dispatcher) runAgent(msgID, sessionID string, payload bus.AgentRequestPayload) {
	agent, ok := d.registry.Get(payload.AgentName)
	if !ok {
		d.logger.Error("unknown agent in dispatch request", "agent", payload.AgentName)
		if sessionID != "" {
			_ = d.sessions.ErrorSession(sessionID, userIDFrom(payload.Context))
		}
		return
	}

	if msgID != "" && d.tracker != nil {
		d.tracker.UpdateQuery(msgID, payload.Query)
		_ = d.tracker.AddTrace(msgID, d.Name(), "dispatch_start", payload.Query, nil, nil)
	}

	ctx := context.Background()
	resp := agent.Run(ctx, payload.Query, payload.Context)

	userID := userIDFrom(payload.Context)
	switch resp.Status {
	case agents.WaitingInput:
		if sessionID != "" {
			if err := d.sessions.WaitForInput(sessionID, resp.Message, ""); err != nil {
				d.logger.Error("wait_for_input failed", "session_id", sessionID, "error", err)
			}
		}
	case agents.Error:
		if sessionID != "" {
			if err := d.sessions.ErrorSession(sessionID, userID); err != nil {
				d.logger.Error("error_session failed", "session_id", sessionID, "error", err)
			}
		}
	default: // Completed
		if sessionID != "" {
			if err := d.sessions.CompleteSession(sessionID, userID); err != nil {
				d.logger.Error("complete_session failed", "session_id", sessionID, "error", err)
			}
		}
	}

	if msgID != "" && d.tracker != nil {
		d.tracker.UpdateResponse(msgID, resp.Message)
		_ = d.tracker.AddTrace(msgID, d.Name(), "dispatch_end", nil, resp.Message, map[string]interface{}{"status": string(resp.Status)})
		_ = d.tracker.CompleteTrace(msgID)
	}

	d.bus.Publish(bus.Event{
		Type:      bus.GUIUpdateText,
		MsgID:     msgID,
		SessionID: sessionID,
		Payload:   resp,
	})

	if d.cfg.TTSEnabled && resp.Message != "" && d.shouldSpeak(resp.Message) {
		d.bus.Publish(bus.Event{
			Type:      bus.TTSSpeakRequest,
			MsgID:     msgID,
			SessionID: sessionID,
			Payload:   bus.TTSRequestPayload{Text: resp.Message},
		})
	}
}

// shouldSpeak enforces the one-second debounce against the exact same text
// (spec.md §4.7: "debounced within a 1-second window against the exact same
// text").
func (d *Dispatcher) shouldSpeak(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if text == d.lastSpoken && now.Sub(d.lastSpokenAt) < debounceWindow {
		return false
	}
	d.lastSpoken = text
	d.lastSpokenAt = now
	return true
}

func userIDFrom(ctx map[string]interface{}) string {
	if v, ok := ctx["user_id"].(string); ok {
		return v
	}
	return ""
}

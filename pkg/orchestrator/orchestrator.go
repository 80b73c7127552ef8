// Package orchestrator implements the utterance router (C6): spec.md §4.6's
// process_query algorithm, grounded on original_source/src/core/orchestrator.py
// and adapted from the teacher's provider-holding orchestrator struct
// (pkg/orchestrator/orchestrator.go), generalized from a fixed STT/LLM/TTS
// pipeline to a pluggable DecisionMaker. Orchestrator is not a bus.Module;
// HandleDecision publishes its dispatch requests on the bus directly.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/carline-ai/carline/pkg/agents"
	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/memory"
	"github.com/carline-ai/carline/pkg/session"
)

// DefaultAgentName is the configurable fallback used by the tie-break rule
// (spec.md §4.6: "fall back to a configurable default agent").
const DefaultAgentName = "chat_agent"

// SystemAgentName handles session-conflict refusals (spec.md §4.6 step 4).
const SystemAgentName = "system_agent"

// Params is everything process_query needs for one turn.
type Params struct {
	UserID   string
	Text     string
	Type     string // e.g. "voice", "text"
	MsgID    string
	Metadata map[string]interface{}
}

// Result is the Decision spec.md §4.6 names, expanded with the fields
// HandleDecision needs to publish AGENT_DISPATCH_REQUEST.
type Result struct {
	SelectedAgent string
	Confidence    float64
	Reasoning     string
	SessionID     string
	SessionAction bus.SessionAction
	Dispatch      bool // false when refused by priority (system_agent reply only)
}

// Orchestrator wires the session manager, memory store, agent registry and a
// DecisionMaker together behind process_query (spec.md §4.6).
type Orchestrator struct {
	sessions *session.Manager
	memory   *memory.Store
	registry *agents.Registry
	decider  DecisionMaker
	ruleback *RuleBasedDecisionMaker // tie-break / LLM-failure fallback
	interrupt InterruptClassifier
	logger   logging.Logger
	bus      *bus.Controller
}

// InterruptClassifier decides, for a waiting_input session, whether the new
// utterance answers the pending prompt or starts a new intent (spec.md §4.6
// step 1).
type InterruptClassifier interface {
	Classify(ctx context.Context, pending *session.AgentSession, text string) (answer bool, err error)
}

// New constructs an Orchestrator. decider is the primary DecisionMaker (LLM-
// backed or rule-based); a RuleBasedDecisionMaker is always built internally
// as the fallback path spec.md §4.6's tie-break rules require.
func New(b *bus.Controller, sessions *session.Manager, mem *memory.Store, registry *agents.Registry, decider DecisionMaker, interrupt InterruptClassifier, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if interrupt == nil {
		interrupt = KeywordInterruptClassifier{}
	}
	return &Orchestrator{
		sessions:  sessions,
		memory:    mem,
		registry:  registry,
		decider:   decider,
		ruleback:  NewRuleBasedDecisionMaker(DefaultAgentName),
		interrupt: interrupt,
		logger:    logger,
		bus:       b,
	}
}

// ProcessQuery implements spec.md §4.6's five-step algorithm.
func (o *Orchestrator) ProcessQuery(ctx context.Context, p Params) (Result, error) {
	// Step 1: interrupt classification against a waiting_input session.
	if active := o.sessions.GetActiveSession(p.UserID); active != nil && active.State == session.WaitingInput {
		answer, err := o.interrupt.Classify(ctx, active, p.Text)
		if err != nil {
			o.logger.Warn("interrupt classification failed, treating as new intent", "error", err)
		} else if answer {
			if err := o.sessions.ResumeSession(active.SessionID, p.Text); err != nil {
				return Result{}, fmt.Errorf("orchestrator: resume failed: %w", err)
			}
			return Result{
				SelectedAgent: active.AgentName,
				Confidence:    1.0,
				Reasoning:     "continuation of pending prompt",
				SessionID:     active.SessionID,
				SessionAction: bus.SessionActionResume,
				Dispatch:      true,
			}, nil
		}
	}

	// Step 2: context gathering.
	history := o.recentHistory()
	roster := o.registry.List()

	// Step 3: decision, with the spec's fallback chain.
	decision, err := o.decide(ctx, p.Text, roster, history)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: decision failed: %w", err)
	}

	info, ok := o.registry.Get(decision.Agent)
	if !ok {
		decision = Decision{Agent: DefaultAgentName, Confidence: 0.2, Reason: "unknown agent, defaulted"}
		info, _ = o.registry.Get(DefaultAgentName)
	}

	// Step 4: session creation, honoring priority preemption.
	sess := o.sessions.CreateSession(decision.Agent, p.UserID, info.Info().Priority)
	if sess == nil {
		o.logger.Info("session creation refused by priority", "user_id", p.UserID, "agent", decision.Agent)
		return Result{
			SelectedAgent: SystemAgentName,
			Confidence:    1.0,
			Reasoning:     "higher priority session active",
			Dispatch:      false,
		}, nil
	}

	o.memory.AddShortTerm(memory.Turn{Role: "user", Content: p.Text})

	// Step 5: dispatch.
	return Result{
		SelectedAgent: decision.Agent,
		Confidence:    decision.Confidence,
		Reasoning:     decision.Reason,
		SessionID:     sess.SessionID,
		SessionAction: bus.SessionActionNew,
		Dispatch:      true,
	}, nil
}

// decide implements spec.md §4.6's tie-break rules: low confidence or an LLM
// failure falls through to the rule-based decider, which itself always
// succeeds (its own zero value is the default agent).
func (o *Orchestrator) decide(ctx context.Context, text string, roster []agents.Info, history []engines.Message) (Decision, error) {
	if o.decider != nil {
		d, err := o.decider.Decide(ctx, text, roster, history)
		if err == nil && d.Confidence >= 0.5 {
			return d, nil
		}
		if err != nil {
			o.logger.Warn("decision maker failed, falling back to rules", "error", err)
		}
	}
	return o.ruleback.Decide(ctx, text, roster, history)
}

func (o *Orchestrator) recentHistory() []engines.Message {
	turns := o.memory.RecentShortTerm()
	out := make([]engines.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, engines.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// HandleDecision publishes AGENT_DISPATCH_REQUEST for a dispatchable Result.
// A refused one is also published as AGENT_DISPATCH_REQUEST, addressed to
// system_agent and carrying no session id (the system_agent reply path,
// spec.md §4.6 step 4 / §7.4).
func (o *Orchestrator) HandleDecision(msgID string, p Params, r Result) {
	if !r.Dispatch {
		sa, _ := o.registry.Get(SystemAgentName)
		_ = sa // presence is assumed; refusal always routes here
		o.bus.Publish(bus.Event{
			Type:  bus.AgentDispatchRequest,
			MsgID: msgID,
			Payload: bus.AgentRequestPayload{
				AgentName: SystemAgentName,
				Query:     p.Text,
				Context:   map[string]interface{}{"user_id": p.UserID},
			},
		})
		return
	}
	o.bus.Publish(bus.Event{
		Type:          bus.AgentDispatchRequest,
		MsgID:         msgID,
		SessionID:     r.SessionID,
		SessionAction: r.SessionAction,
		Payload: bus.AgentRequestPayload{
			AgentName: r.SelectedAgent,
			Query:     p.Text,
			Context:   map[string]interface{}{"user_id": p.UserID},
			Decision:  r,
		},
	})
}

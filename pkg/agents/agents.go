// Package agents defines the small domain-agent surface the dispatcher (C7)
// runs, plus a representative roster (SPEC_FULL.md §12 — not the excluded
// ~170 vehicle-control tools, just enough agents to exercise C6/C7
// end-to-end).
package agents

import "context"

// Status is the outcome of running an agent for one turn.
type Status string

const (
	Completed    Status = "COMPLETED"
	WaitingInput Status = "WAITING_INPUT"
	Error        Status = "ERROR"
)

// Response is what an Agent returns for one invocation (spec.md §4.7).
type Response struct {
	Agent   string
	Query   string
	Message string
	Status  Status
	Data    map[string]interface{}
}

// Info is the static description of an agent (spec.md §3 "Tool / AgentInfo").
type Info struct {
	Name         string
	Description  string
	Capabilities []string
	Priority     int
	Enabled      bool
}

// Agent is the interface the dispatcher (C7) runs. Agents are potentially
// long-running (spec.md §4.7: "do not block the bus"); Run must honor ctx
// cancellation where practical.
type Agent interface {
	Info() Info
	Run(ctx context.Context, query string, context_ map[string]interface{}) Response
}

// Registry is a read-only, load-once roster of agents, keyed by name.
type Registry struct {
	agents map[string]Agent
}

// NewRegistry builds a Registry from a fixed list of agents.
func NewRegistry(list []Agent) *Registry {
	m := make(map[string]Agent, len(list))
	for _, a := range list {
		m[a.Info().Name] = a
	}
	return &Registry{agents: m}
}

// Get returns the agent by name.
func (r *Registry) Get(name string) (Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// List returns every enabled agent's Info, for the orchestrator's roster
// step (spec.md §4.6 step 2 "available-agent roster").
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.agents))
	for _, a := range r.agents {
		info := a.Info()
		if info.Enabled {
			out = append(out, info)
		}
	}
	return out
}

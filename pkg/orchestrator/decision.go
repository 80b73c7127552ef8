package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carline-ai/carline/pkg/agents"
	"github.com/carline-ai/carline/pkg/engines"
)

// Decision is the output of the routing step (spec.md §4.6 step 3): which
// agent should handle the turn, and with how much confidence.
type Decision struct {
	Agent      string
	Confidence float64
	Reason     string
}

// DecisionMaker picks an agent for a query given the current roster and
// conversational context. Two implementations are provided: an LLM-backed one
// that asks for strict JSON, and a deterministic keyword-rule one that needs
// no network access (SPEC_FULL.md §12, grounded on the Python original's
// MockLLMDecisionMaker.decision_rules).
type DecisionMaker interface {
	Decide(ctx context.Context, query string, roster []agents.Info, history []engines.Message) (Decision, error)
}

// keywordRule is one entry of the ordered keyword->agent table.
type keywordRule struct {
	keyword string
	agent   string
}

// keywordRules is MockLLMDecisionMaker.decision_rules ported verbatim,
// keyword and insertion order preserved, so the first match always wins
// deterministically the way the Python dict (insertion-ordered since 3.7)
// plus its "break on first match" loop did. A plain map here would make
// multi-keyword queries route randomly between runs.
var keywordRules = []keywordRule{
	{"音乐", "music_agent"},
	{"歌", "music_agent"},
	{"播放", "music_agent"},
	{"导航", "navigation_agent"},
	{"路线", "navigation_agent"},
	{"去", "navigation_agent"},
	{"天气", "weather_agent"},
	{"温度", "weather_agent"},
	{"车窗", "vehicle_control_agent"},
	{"空调", "vehicle_control_agent"},
	{"座椅", "vehicle_control_agent"},
	{"车门", "vehicle_control_agent"},
	{"打电话", "phone_agent"},
	{"拨打", "phone_agent"},
	{"呼叫", "phone_agent"},
	{"联系", "phone_agent"},
	{"电话", "phone_agent"},
	{"发消息", "phone_agent"},
	{"发短信", "phone_agent"},
}

// RuleBasedDecisionMaker implements DecisionMaker without any model call,
// ported from the Python original's MockLLMDecisionMaker: the keyword table
// is scanned first in fixed order and the first match wins; only when
// nothing matches does query length decide between a short-query chat
// default and the configured fallback.
type RuleBasedDecisionMaker struct {
	fallback string
}

// NewRuleBasedDecisionMaker constructs a RuleBasedDecisionMaker. fallback is
// the agent name used when no keyword matches ("chat_agent" if empty).
func NewRuleBasedDecisionMaker(fallback string) *RuleBasedDecisionMaker {
	if fallback == "" {
		fallback = "chat_agent"
	}
	return &RuleBasedDecisionMaker{fallback: fallback}
}

func (r *RuleBasedDecisionMaker) Decide(_ context.Context, query string, roster []agents.Info, _ []engines.Message) (Decision, error) {
	trimmed := strings.TrimSpace(query)
	for _, rule := range keywordRules {
		if strings.Contains(trimmed, rule.keyword) && rosterHas(roster, rule.agent) {
			return Decision{Agent: rule.agent, Confidence: 0.9, Reason: "keyword:" + rule.keyword}, nil
		}
	}
	if len([]rune(trimmed)) < 10 {
		return Decision{Agent: "chat_agent", Confidence: 0.6, Reason: "short query"}, nil
	}
	return Decision{Agent: r.fallback, Confidence: 0.3, Reason: "no keyword match"}, nil
}

func rosterHas(roster []agents.Info, name string) bool {
	for _, a := range roster {
		if a.Name == name {
			return true
		}
	}
	return false
}

// llmDecisionJSON is the strict schema asked of the LLM decision maker.
type llmDecisionJSON struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// LLMDecisionMaker routes by asking an engines.LLMProvider to pick from the
// roster and return strict JSON, mirroring how the original program prompts
// its decision-maker model.
type LLMDecisionMaker struct {
	llm      engines.LLMProvider
	fallback string
}

// NewLLMDecisionMaker constructs an LLMDecisionMaker.
func NewLLMDecisionMaker(llm engines.LLMProvider, fallback string) *LLMDecisionMaker {
	if fallback == "" {
		fallback = "chat_agent"
	}
	return &LLMDecisionMaker{llm: llm, fallback: fallback}
}

func (l *LLMDecisionMaker) Decide(ctx context.Context, query string, roster []agents.Info, history []engines.Message) (Decision, error) {
	if l.llm == nil {
		return Decision{}, engines.ErrNilProvider
	}

	var b strings.Builder
	b.WriteString("You are a routing function for an in-car assistant. ")
	b.WriteString("Choose exactly one agent from this roster and reply with strict JSON ")
	b.WriteString(`{"agent": string, "confidence": number 0-1, "reason": string}. Roster:\n`)
	for _, a := range roster {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
	}

	messages := append([]engines.Message{}, history...)
	messages = append(messages,
		engines.Message{Role: "system", Content: b.String()},
		engines.Message{Role: "user", Content: query},
	)

	raw, err := l.llm.Complete(ctx, messages)
	if err != nil {
		return Decision{}, fmt.Errorf("decision llm call failed: %w", err)
	}

	var parsed llmDecisionJSON
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil || !rosterHas(roster, parsed.Agent) {
		return Decision{Agent: l.fallback, Confidence: 0.2, Reason: "llm response unparsable, fell back"}, nil
	}
	return Decision{Agent: parsed.Agent, Confidence: parsed.Confidence, Reason: parsed.Reason}, nil
}

// extractJSON trims leading/trailing prose some models wrap the JSON in.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

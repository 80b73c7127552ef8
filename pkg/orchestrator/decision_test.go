package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/carline-ai/carline/pkg/agents"
	"github.com/carline-ai/carline/pkg/engines/mock"
)

func TestRuleBasedDecisionMakerShortQuery(t *testing.T) {
	d := NewRuleBasedDecisionMaker("")
	r, err := d.Decide(context.Background(), "你好", testRegistry().List(), nil)
	if err != nil || r.Agent != "chat_agent" {
		t.Fatalf("got %+v, err %v", r, err)
	}
}

func TestRuleBasedDecisionMakerKeywordMatch(t *testing.T) {
	d := NewRuleBasedDecisionMaker("")
	r, err := d.Decide(context.Background(), "请帮我播放一首轻音乐吧谢谢你", testRegistry().List(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Agent != "music_agent" {
		t.Fatalf("expected music_agent, got %s", r.Agent)
	}
}

func TestRuleBasedDecisionMakerIsDeterministicOnMultipleMatches(t *testing.T) {
	d := NewRuleBasedDecisionMaker("")
	// "打开车窗播放音乐" matches both a music_agent keyword ("音乐"/"播放") and a
	// vehicle_control_agent keyword ("车窗"). The music rules sort earlier in
	// keywordRules, so music_agent must win on every run, not flip randomly
	// the way a bare map range would.
	roster := testRegistry().List()
	for i := 0; i < 20; i++ {
		r, err := d.Decide(context.Background(), "打开车窗播放音乐", roster, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Agent != "music_agent" {
			t.Fatalf("run %d: expected stable music_agent priority, got %s", i, r.Agent)
		}
	}
}

func TestLLMDecisionMakerParsesStrictJSON(t *testing.T) {
	llm := &mock.LLM{Reply: `{"agent": "music_agent", "confidence": 0.9, "reason": "play request"}`}
	d := NewLLMDecisionMaker(llm, "")
	r, err := d.Decide(context.Background(), "play something", []agents.Info{{Name: "music_agent", Enabled: true}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Agent != "music_agent" || r.Confidence != 0.9 {
		t.Fatalf("got %+v", r)
	}
}

func TestLLMDecisionMakerFallsBackOnUnparsableReply(t *testing.T) {
	llm := &mock.LLM{Reply: "not json at all"}
	d := NewLLMDecisionMaker(llm, "chat_agent")
	r, err := d.Decide(context.Background(), "play something", []agents.Info{{Name: "music_agent", Enabled: true}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Agent != "chat_agent" {
		t.Fatalf("expected fallback to chat_agent, got %s", r.Agent)
	}
}

func TestLLMDecisionMakerPropagatesLLMError(t *testing.T) {
	llm := &mock.LLM{Err: errors.New("boom")}
	d := NewLLMDecisionMaker(llm, "")
	_, err := d.Decide(context.Background(), "play something", []agents.Info{{Name: "music_agent", Enabled: true}}, nil)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

package orchestrator

import (
	"context"
	"testing"

	"github.com/carline-ai/carline/pkg/session"
)

func TestKeywordInterruptClassifierAnswersShortOverlap(t *testing.T) {
	pending := &session.AgentSession{PendingPrompt: "哪个城市？"}
	c := KeywordInterruptClassifier{}
	answer, err := c.Classify(context.Background(), pending, "北京")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !answer {
		t.Fatal("expected short reply to be classified as an answer")
	}
}

func TestKeywordInterruptClassifierNewIntentKeyword(t *testing.T) {
	pending := &session.AgentSession{PendingPrompt: "哪个城市？"}
	c := KeywordInterruptClassifier{}
	answer, err := c.Classify(context.Background(), pending, "帮我打开空调")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer {
		t.Fatal("expected a new-intent keyword to break out of waiting_input")
	}
}

func TestLLMInterruptClassifierFallsBackWithoutLLM(t *testing.T) {
	pending := &session.AgentSession{PendingPrompt: "哪个城市？"}
	c := LLMInterruptClassifier{}
	answer, err := c.Classify(context.Background(), pending, "北京")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !answer {
		t.Fatal("expected fallback classifier to treat short reply as an answer")
	}
}

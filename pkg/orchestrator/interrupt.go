package orchestrator

import (
	"context"
	"strings"

	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/session"
)

// KeywordInterruptClassifier implements spec.md §4.6 step 1's no-LLM
// fallback: "a rule that inspects keyword overlap and length". A reply that
// contains one of the routing keywords in keywordRules, or is longer than 40
// runes, is treated as a new intent. Otherwise a reply that shares a word
// with the pending prompt, or is at most 20 runes long, is an answer; a
// 21-40 rune reply with no shared word is a new intent.
type KeywordInterruptClassifier struct{}

func (KeywordInterruptClassifier) Classify(_ context.Context, pending *session.AgentSession, text string) (bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, nil
	}
	for _, rule := range keywordRules {
		if strings.Contains(trimmed, rule.keyword) {
			return false, nil
		}
	}
	if len([]rune(trimmed)) > 40 {
		return false, nil
	}
	if overlapsWords(pending.PendingPrompt, trimmed) {
		return true, nil
	}
	// Short replies with no overlapping words and no new-intent keyword are
	// still treated as answers (e.g. "beijing" answering "which city?").
	return len([]rune(trimmed)) <= 20, nil
}

func overlapsWords(prompt, reply string) bool {
	promptWords := strings.Fields(prompt)
	if len(promptWords) == 0 {
		return false
	}
	for _, w := range promptWords {
		if len([]rune(w)) > 1 && strings.Contains(reply, w) {
			return true
		}
	}
	return false
}

// LLMInterruptClassifier asks an engines.LLMProvider whether text continues
// the pending prompt, per spec.md §4.6 step 1's primary path.
type LLMInterruptClassifier struct {
	LLM engines.LLMProvider
}

func (c LLMInterruptClassifier) Classify(ctx context.Context, pending *session.AgentSession, text string) (bool, error) {
	if c.LLM == nil {
		return KeywordInterruptClassifier{}.Classify(ctx, pending, text)
	}
	messages := []engines.Message{
		{Role: "system", Content: "Reply with exactly one word: ANSWER if the user's message continues the pending prompt, or NEW if it starts an unrelated request."},
		{Role: "user", Content: "Pending prompt: " + pending.PendingPrompt + "\nUser message: " + text},
	}
	reply, err := c.LLM.Complete(ctx, messages)
	if err != nil {
		return KeywordInterruptClassifier{}.Classify(ctx, pending, text)
	}
	return strings.Contains(strings.ToUpper(reply), "ANSWER"), nil
}

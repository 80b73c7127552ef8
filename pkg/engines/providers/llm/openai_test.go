package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carline-ai/carline/pkg/engines"
)

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Model    string           `json:"model"`
			Messages []engines.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "打开空调已完成"}},
			},
		})
	}))
	defer server.Close()

	l := &OpenAI{apiKey: "test-key", url: server.URL, model: "gpt-4o"}
	resp, err := l.Complete(context.Background(), []engines.Message{{Role: "user", Content: "打开空调"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "打开空调已完成" {
		t.Errorf("unexpected response: %s", resp)
	}
	if l.Name() != "openai-llm" {
		t.Errorf("unexpected name: %s", l.Name())
	}
}

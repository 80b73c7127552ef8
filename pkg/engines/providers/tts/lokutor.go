// Package tts adapts the teacher's streaming WebSocket TTS client
// (pkg/providers/tts/lokutor.go) to the engines.TTSEngine interface. The wire
// protocol (JSON request, binary/text response frames, EOS/ERR: sentinels)
// is unchanged; only the Voice/Language types are generalized.
package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/carline-ai/carline/pkg/engines"
)

// Lokutor streams synthesized speech over a persistent WebSocket connection.
type Lokutor struct {
	apiKey string
	host   string
	mu     sync.Mutex
	conn   *websocket.Conn
}

// NewLokutor constructs a Lokutor TTS client.
func NewLokutor(apiKey string) *Lokutor {
	return &Lokutor{apiKey: apiKey, host: "api.lokutor.com"}
}

func (t *Lokutor) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	u := url.URL{Scheme: "wss", Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// Speak sends text for synthesis and streams the resulting audio chunks to
// onChunk as they arrive.
func (t *Lokutor) Speak(ctx context.Context, text string, voice engines.Voice, lang engines.Language, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]interface{}{
		"text":    text,
		"voice":   string(voice),
		"lang":    string(lang),
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}
		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *Lokutor) Name() string { return "lokutor-tts" }

// Close releases the underlying connection, if any.
func (t *Lokutor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}

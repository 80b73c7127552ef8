// Package tracker implements the message tracker (C3): it mints a per-turn
// id, appends ordered stage traces under that id, and persists completed
// turns as JSONL, grounded on original_source/src/core/message_tracker.py.
package tracker

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/carline-ai/carline/pkg/logging"
)

// ErrUnknownMessageID is returned (and logged) when a trace op names an id
// the tracker never minted.
var ErrUnknownMessageID = errors.New("tracker: unknown message id")

// ModuleTrace is one stage entry within a MessageTrace.
type ModuleTrace struct {
	Module    string                 `json:"module"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Input     interface{}            `json:"input,omitempty"`
	Output    interface{}            `json:"output,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MessageTrace is the full audit record of one turn.
type MessageTrace struct {
	MsgID       string                 `json:"msg_id"`
	SessionType string                 `json:"session_type"`
	StartTime   time.Time              `json:"start_time"`
	Query       string                 `json:"query"`
	Response    string                 `json:"response"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	Stages      []ModuleTrace          `json:"stages"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// DurationMs is end_time - start_time in milliseconds; zero until completed.
func (t *MessageTrace) DurationMs() int64 {
	if t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(t.StartTime).Milliseconds()
}

// Tracker is the mutex-guarded, optionally file-backed message tracker.
type Tracker struct {
	mu      sync.Mutex
	traces  map[string]*MessageTrace
	order   []string
	logDir  string
	logging bool
	logger  logging.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogDir overrides the default logs/message_traces directory.
func WithLogDir(dir string) Option {
	return func(t *Tracker) { t.logDir = dir }
}

// WithFileLogging toggles JSONL persistence (on by default).
func WithFileLogging(enabled bool) Option {
	return func(t *Tracker) { t.logging = enabled }
}

// WithLogger overrides the logger used for dropped/failed operations.
func WithLogger(l logging.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New constructs a Tracker. By default file logging is enabled and traces
// are written under logs/message_traces.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		traces:  make(map[string]*MessageTrace),
		logDir:  filepath.Join("logs", "message_traces"),
		logging: true,
		logger:  logging.NoOp{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logging {
		if err := os.MkdirAll(t.logDir, 0o755); err != nil {
			t.logger.Warn("failed to create trace log dir", "dir", t.logDir, "error", err)
			t.logging = false
		}
	}
	return t
}

// CreateMessageID mints a new id of the form msg_<ms-epoch>_<8-hex> and opens
// a MessageTrace under it.
func (t *Tracker) CreateMessageID(sessionType string, metadata map[string]interface{}) string {
	id := newMsgID()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traces[id] = &MessageTrace{
		MsgID:       id,
		SessionType: sessionType,
		StartTime:   time.Now(),
		Metadata:    metadata,
	}
	t.order = append(t.order, id)
	return id
}

func newMsgID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// AddTrace appends an ordered stage entry. Unknown ids are logged and dropped.
func (t *Tracker) AddTrace(msgID, module, eventType string, input, output interface{}, metadata map[string]interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	trace, ok := t.traces[msgID]
	if !ok {
		t.logger.Warn("add_trace dropped: unknown msg_id", "msg_id", msgID, "module", module)
		return ErrUnknownMessageID
	}
	trace.Stages = append(trace.Stages, ModuleTrace{
		Module:    module,
		Timestamp: time.Now(),
		EventType: eventType,
		Input:     input,
		Output:    output,
		Metadata:  metadata,
	})
	return nil
}

// UpdateQuery sets the trace's query text (last write wins).
func (t *Tracker) UpdateQuery(msgID, query string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace, ok := t.traces[msgID]; ok {
		trace.Query = query
	}
}

// UpdateResponse sets the trace's response text (last write wins).
func (t *Tracker) UpdateResponse(msgID, response string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace, ok := t.traces[msgID]; ok {
		trace.Response = response
	}
}

// CompleteTrace closes a trace, setting end_time exactly once and appending
// it to the day's JSONL file. Write failures are logged, never raised.
func (t *Tracker) CompleteTrace(msgID string) error {
	t.mu.Lock()
	trace, ok := t.traces[msgID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("complete_trace dropped: unknown msg_id", "msg_id", msgID)
		return ErrUnknownMessageID
	}
	if trace.EndTime == nil {
		now := time.Now()
		trace.EndTime = &now
	}
	snapshot := *trace
	snapshot.Stages = append([]ModuleTrace(nil), trace.Stages...)
	logging := t.logging
	dir := t.logDir
	t.mu.Unlock()

	if logging {
		if err := writeJSONLine(dir, &snapshot); err != nil {
			t.logger.Warn("failed to persist trace", "msg_id", msgID, "error", err)
		}
	}
	return nil
}

func writeJSONLine(dir string, trace *MessageTrace) error {
	name := fmt.Sprintf("traces_%s.jsonl", time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(trace)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}

// GetTrace returns the trace for msgID, if any.
func (t *Tracker) GetTrace(msgID string) (*MessageTrace, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	trace, ok := t.traces[msgID]
	return trace, ok
}

// GetRecentTraces returns up to n traces ordered by start_time descending.
func (t *Tracker) GetRecentTraces(n int) []*MessageTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	all := make([]*MessageTrace, 0, len(t.traces))
	for _, id := range t.order {
		if trace, ok := t.traces[id]; ok {
			all = append(all, trace)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// CleanupOldTraces drops in-memory traces older than maxAge.
func (t *Tracker) CleanupOldTraces(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	kept := t.order[:0]
	for _, id := range t.order {
		trace := t.traces[id]
		if trace != nil && trace.StartTime.Before(cutoff) {
			delete(t.traces, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return removed
}

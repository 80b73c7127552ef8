// Package memory implements the short/long-term memory store the
// orchestrator's context-gathering step reads (spec.md §4.6 step 2, §6
// "data/long_term_memory.json"). This supplements the distilled spec per
// SPEC_FULL.md §12, grounded on original_source/src/memory's shape and the
// configuration keys spec.md §6 already names (memory: {trigger_count,
// max_history_rounds}).
package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Turn is one short-term memory entry.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LongTerm is the persisted long-term memory summary (spec.md §6).
type LongTerm struct {
	Summary     string                 `json:"summary"`
	Profile     map[string]interface{} `json:"profile"`
	Preferences map[string]interface{} `json:"preferences"`
	Metadata    LongTermMetadata       `json:"metadata"`
}

// LongTermMetadata tracks update bookkeeping for the trigger-count rule.
type LongTermMetadata struct {
	LastUpdate  time.Time `json:"last_update"`
	UpdateCount int       `json:"update_count"`
}

// Config is the memory configuration surface named in spec.md §6.
type Config struct {
	TriggerCount     int // regenerate long-term summary every N new short-term entries
	MaxHistoryRounds int // bound on the short-term ring
	Path             string
}

// DefaultConfig matches the shape spec.md §6 implies without naming exact
// numbers; chosen to keep a handful of recent turns and regenerate
// infrequently.
func DefaultConfig() Config {
	return Config{
		TriggerCount:     10,
		MaxHistoryRounds: 20,
		Path:             filepath.Join("data", "long_term_memory.json"),
	}
}

// Store holds the short-term ring in memory and persists the long-term
// summary as JSON; a single writer per spec.md §5 ("Vector store / long-term
// memory file: single-writer").
type Store struct {
	mu        sync.Mutex
	cfg       Config
	shortTerm []Turn
	sinceSync int
	longTerm  LongTerm
}

// New constructs a Store, loading any existing long-term file.
func New(cfg Config) *Store {
	s := &Store{cfg: cfg}
	s.longTerm, _ = loadLongTerm(cfg.Path)
	return s
}

func loadLongTerm(path string) (LongTerm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LongTerm{Profile: map[string]interface{}{}, Preferences: map[string]interface{}{}}, err
	}
	var lt LongTerm
	if err := json.Unmarshal(data, &lt); err != nil {
		return LongTerm{Profile: map[string]interface{}{}, Preferences: map[string]interface{}{}}, err
	}
	return lt, nil
}

// AddShortTerm records a turn and bounds the ring to MaxHistoryRounds.
// RegenerateSummary is the caller's responsibility (the summarization LLM
// prompt itself is out of scope per spec.md §1); this only tracks when a
// regeneration is due.
func (s *Store) AddShortTerm(turn Turn) (dueForRegeneration bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortTerm = append(s.shortTerm, turn)
	if len(s.shortTerm) > s.cfg.MaxHistoryRounds {
		s.shortTerm = s.shortTerm[len(s.shortTerm)-s.cfg.MaxHistoryRounds:]
	}
	s.sinceSync++
	if s.sinceSync >= s.cfg.TriggerCount {
		s.sinceSync = 0
		return true
	}
	return false
}

// RecentShortTerm returns a copy of the bounded short-term ring, oldest first.
func (s *Store) RecentShortTerm() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.shortTerm))
	copy(out, s.shortTerm)
	return out
}

// LongTermSummary returns the currently loaded long-term snapshot.
func (s *Store) LongTermSummary() LongTerm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.longTerm
}

// UpdateLongTerm overwrites the long-term summary and persists it to disk.
func (s *Store) UpdateLongTerm(summary string, profile, preferences map[string]interface{}) error {
	s.mu.Lock()
	s.longTerm = LongTerm{
		Summary:     summary,
		Profile:     profile,
		Preferences: preferences,
		Metadata: LongTermMetadata{
			LastUpdate:  time.Now(),
			UpdateCount: s.longTerm.Metadata.UpdateCount + 1,
		},
	}
	snapshot := s.longTerm
	path := s.cfg.Path
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Package engines defines the small interfaces the core consumes from the
// out-of-scope wake-word/VAD/ASR/TTS/LLM/embedding engines (spec.md §6).
// Concrete implementations live in engines/providers and are adapted from
// the teacher's pkg/providers/{llm,stt,tts} packages.
package engines

import (
	"context"
	"errors"
)

// Voice selects a TTS voice, kept from the teacher's orchestrator.Voice enum.
type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
)

// Language selects a spoken language, kept from the teacher's
// orchestrator.Language enum, extended with zh (spec.md's examples are in
// Chinese).
type Language string

const (
	LanguageEn Language = "en"
	LanguageZh Language = "zh"
)

// Message is one turn of LLM chat context.
type Message struct {
	Role    string
	Content string
}

var (
	// ErrNilProvider mirrors the teacher's orchestrator.ErrNilProvider.
	ErrNilProvider = errors.New("engines: required provider is nil")
	// ErrEmptyTranscription mirrors orchestrator.ErrEmptyTranscription.
	ErrEmptyTranscription = errors.New("engines: transcription returned empty text")
)

// WakewordResult is the outcome of one detect() call.
type WakewordResult struct {
	Detected   bool
	Keyword    string
	Confidence float64
}

// WakewordEngine is the out-of-scope wake-word detector interface.
type WakewordEngine interface {
	Detect(pcm []float32) WakewordResult
	Reset()
	Name() string
}

// VADState is the engine-reported state returned alongside each ProcessFrame
// call (spec.md §6: "process_frame(int16 pcm) -> {is_speech, event?,
// assembled_pcm?, duration_ms, state}").
type VADState string

const (
	VADStateSilence VADState = "silence"
	VADStateSpeech  VADState = "speech"
)

// VADFrameResult is the outcome of one ProcessFrame call.
type VADFrameResult struct {
	IsSpeech     bool
	Event        string // "" | "speech_start" | "speech_end"
	AssembledPCM []byte
	DurationMs   int64
	State        VADState
}

// VADEngine is the out-of-scope voice-activity-detection interface.
type VADEngine interface {
	ProcessFrame(pcm []int16) VADFrameResult
	Reset()
	OnWakewordDetected()
	Name() string
}

// ASRResult is the outcome of one recognize() call.
type ASRResult struct {
	Text       string
	Confidence float64
	LatencyMs  int64
}

// ASREngine is the out-of-scope automatic-speech-recognition interface.
type ASREngine interface {
	Recognize(ctx context.Context, pcm []int16, sampleRate int) (ASRResult, error)
	Name() string
}

// TTSEngine is the out-of-scope text-to-speech interface. Speak blocks until
// synthesis finishes, passing each audio chunk to onChunk; a failure is
// returned as the error. There are no separate start/end callbacks.
type TTSEngine interface {
	Speak(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error
	Name() string
}

// LLMProvider is the out-of-scope chat-completion interface.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// EmbeddingProvider is the out-of-scope embedding interface, used only by
// the (out-of-scope) long-term-memory summarizer; the core never calls Embed
// itself, but the interface is declared here so a memory.Store can be wired
// against a real provider in the future without another interface existing
// in two places.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

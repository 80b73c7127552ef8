// Package mock provides small deterministic engine fakes, grounded on the
// Python original's MockLLMDecisionMaker, for testing the pipeline without
// network calls.
package mock

import (
	"context"

	"github.com/carline-ai/carline/pkg/engines"
)

// Wakeword reports Detected=true with the configured Keyword and Confidence
// on every call, whatever audio it is given.
type Wakeword struct {
	Keyword    string
	Confidence float64
}

func (w *Wakeword) Detect(pcm []float32) engines.WakewordResult {
	return engines.WakewordResult{Detected: true, Keyword: w.Keyword, Confidence: w.Confidence}
}
func (w *Wakeword) Reset()       {}
func (w *Wakeword) Name() string { return "mock-wakeword" }

// ASR returns a scripted transcript regardless of the audio given.
type ASR struct {
	Text       string
	Confidence float64
	Err        error
}

func (a *ASR) Recognize(ctx context.Context, pcm []int16, sampleRate int) (engines.ASRResult, error) {
	if a.Err != nil {
		return engines.ASRResult{}, a.Err
	}
	return engines.ASRResult{Text: a.Text, Confidence: a.Confidence}, nil
}
func (a *ASR) Name() string { return "mock-asr" }

// TTS records every Speak call instead of producing audio.
type TTS struct {
	Spoken []string
}

func (t *TTS) Speak(ctx context.Context, text string, voice engines.Voice, lang engines.Language, onChunk func([]byte) error) error {
	t.Spoken = append(t.Spoken, text)
	return nil
}
func (t *TTS) Name() string { return "mock-tts" }

// LLM returns a fixed reply, mirroring MockLLMDecisionMaker's deterministic
// stand-in for a real chat model.
type LLM struct {
	Reply string
	Err   error
}

func (l *LLM) Complete(ctx context.Context, messages []engines.Message) (string, error) {
	if l.Err != nil {
		return "", l.Err
	}
	return l.Reply, nil
}
func (l *LLM) Name() string { return "mock-llm" }

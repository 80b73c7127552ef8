// Package vad provides a lightweight, dependency-free default
// engines.VADEngine implementation, adapted from the teacher's
// pkg/orchestrator/vad.go RMSVAD (frame-level RMS with hysteresis) and
// generalized from its byte-chunk/time.Duration-gated interface to
// spec.md §6's process_frame(int16) -> {is_speech, event, assembled_pcm,
// duration_ms, state} contract.
package vad

import (
	"math"
	"time"

	"github.com/carline-ai/carline/pkg/engines"
)

// RMS is a Root-Mean-Square voice activity detector: speech starts once
// minConfirmed consecutive frames exceed threshold, and ends on the first
// below-threshold frame arriving silenceLimit or more after the last
// above-threshold frame.
type RMS struct {
	threshold      float64
	echoThreshold  float64
	silenceLimit   time.Duration
	minConfirmed   int
	sampleRate     int

	speaking          bool
	consecutiveLoud   int
	silenceSince      time.Time
	wakewordActive    bool
	assembled         []int16
	speechStartedAt   time.Time
}

// NewRMS constructs an RMS VAD. threshold is the speech-trigger RMS level
// (0-1); echoThreshold is the higher, less sensitive level used briefly
// after a wake-word fires, mirroring the teacher main.go's "effective
// threshold" bump while the bot is likely to be hearing its own playback.
func NewRMS(threshold float64, silenceLimit time.Duration, sampleRate int) *RMS {
	return &RMS{
		threshold:     threshold,
		echoThreshold: threshold * 7.5, // matches the teacher's 0.02 -> 0.15 bump ratio
		silenceLimit:  silenceLimit,
		minConfirmed:  7,
		sampleRate:    sampleRate,
	}
}

func (r *RMS) Name() string { return "rms-vad" }

// OnWakewordDetected arms the echo-resistant threshold for the next
// utterance, mirroring the teacher's self-trigger avoidance after TTS.
func (r *RMS) OnWakewordDetected() {
	r.wakewordActive = true
}

func (r *RMS) Reset() {
	r.speaking = false
	r.consecutiveLoud = 0
	r.silenceSince = time.Time{}
	r.wakewordActive = false
	r.assembled = nil
}

func (r *RMS) ProcessFrame(pcm []int16) engines.VADFrameResult {
	rms := calculateRMS(pcm)
	now := time.Now()

	threshold := r.threshold
	if r.wakewordActive {
		threshold = r.echoThreshold
	}

	if rms > threshold {
		r.consecutiveLoud++
		// Trailing silence is measured from the end of the last loud frame.
		r.silenceSince = now
		if !r.speaking {
			if r.consecutiveLoud < r.minConfirmed {
				return engines.VADFrameResult{IsSpeech: false, State: engines.VADStateSilence}
			}
			r.speaking = true
			r.speechStartedAt = now
			r.assembled = append([]int16(nil), pcm...)
			return engines.VADFrameResult{IsSpeech: true, Event: "speech_start", State: engines.VADStateSpeech}
		}
		r.assembled = append(r.assembled, pcm...)
		return engines.VADFrameResult{IsSpeech: true, State: engines.VADStateSpeech}
	}

	r.consecutiveLoud = 0
	if !r.speaking {
		return engines.VADFrameResult{IsSpeech: false, State: engines.VADStateSilence}
	}

	r.assembled = append(r.assembled, pcm...)
	if r.silenceSince.IsZero() {
		r.silenceSince = now
	}
	if now.Sub(r.silenceSince) < r.silenceLimit {
		return engines.VADFrameResult{IsSpeech: true, State: engines.VADStateSpeech}
	}

	duration := now.Sub(r.speechStartedAt).Milliseconds()
	assembled := r.assembled
	r.speaking = false
	r.silenceSince = time.Time{}
	r.wakewordActive = false
	r.assembled = nil

	return engines.VADFrameResult{
		IsSpeech:     false,
		Event:        "speech_end",
		AssembledPCM: engines.Int16ToBytes(assembled),
		DurationMs:   duration,
		State:        engines.VADStateSilence,
	}
}

func calculateRMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

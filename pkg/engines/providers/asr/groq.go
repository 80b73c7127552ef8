// Package asr adapts the teacher's HTTP-based speech-to-text clients
// (pkg/providers/stt/*.go) to the engines.ASREngine interface. The Groq and
// OpenAI clients wrap PCM int16 frames into WAV with pkg/audio.NewWavBuffer;
// the Deepgram and AssemblyAI clients upload the raw PCM bytes.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/carline-ai/carline/pkg/audio"
	"github.com/carline-ai/carline/pkg/engines"
)

// Groq recognizes speech via Groq's Whisper-compatible endpoint, adapted
// one-for-one from the teacher's stt.GroqSTT.
type Groq struct {
	apiKey string
	url    string
	model  string
	lang   engines.Language
}

// NewGroq constructs a Groq Whisper client.
func NewGroq(apiKey, model string, lang engines.Language) *Groq {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &Groq{
		apiKey: apiKey,
		url:    "https://api.groq.com/openai/v1/audio/transcriptions",
		model:  model,
		lang:   lang,
	}
}

func (s *Groq) Recognize(ctx context.Context, pcm []int16, sampleRate int) (engines.ASRResult, error) {
	start := time.Now()
	wavData := audio.NewWavBuffer(engines.Int16ToBytes(pcm), sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("model", s.model); err != nil {
		return engines.ASRResult{}, err
	}
	if s.lang != "" {
		if err := writer.WriteField("language", string(s.lang)); err != nil {
			return engines.ASRResult{}, err
		}
	}
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return engines.ASRResult{}, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return engines.ASRResult{}, err
	}
	if err := writer.Close(); err != nil {
		return engines.ASRResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return engines.ASRResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return engines.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return engines.ASRResult{}, fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engines.ASRResult{}, err
	}
	return engines.ASRResult{
		Text:       result.Text,
		Confidence: 1.0,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (s *Groq) Name() string { return "groq-asr" }

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

// OpenAI recognizes speech via the Whisper transcriptions endpoint, adapted
// one-for-one from the teacher's stt.OpenAISTT.
type OpenAI struct {
	apiKey string
	url    string
	model  string
	lang   engines.Language
}

// NewOpenAI constructs a Whisper client.
func NewOpenAI(apiKey, model string, lang engines.Language) *OpenAI {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAI{
		apiKey: apiKey,
		url:    "https://api.openai.com/v1/audio/transcriptions",
		model:  model,
		lang:   lang,
	}
}

func (s *OpenAI) Name() string { return "openai-asr" }

func (s *OpenAI) Recognize(ctx context.Context, pcm []int16, sampleRate int) (engines.ASRResult, error) {
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
	if _, err := part.Write(wavData); err != nil {
		return engines.ASRResult{}, err
	}
	writer.Close()

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
		respBody, _ := io.ReadAll(resp.Body)
		return engines.ASRResult{}, fmt.Errorf("openai error: %s (status %d)", string(respBody), resp.StatusCode)
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

package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carline-ai/carline/pkg/engines"
)

// AssemblyAI recognizes speech via AssemblyAI's upload/submit/poll flow,
// adapted one-for-one from the teacher's stt.AssemblyAISTT.
type AssemblyAI struct {
	apiKey string
	lang   engines.Language
}

// NewAssemblyAI constructs an AssemblyAI client.
func NewAssemblyAI(apiKey string, lang engines.Language) *AssemblyAI {
	return &AssemblyAI{apiKey: apiKey, lang: lang}
}

func (s *AssemblyAI) Name() string { return "assemblyai-asr" }

func (s *AssemblyAI) Recognize(ctx context.Context, pcm []int16, sampleRate int) (engines.ASRResult, error) {
	start := time.Now()

	uploadURL, err := s.upload(ctx, engines.Int16ToBytes(pcm))
	if err != nil {
		return engines.ASRResult{}, err
	}
	transcriptID, err := s.submit(ctx, uploadURL)
	if err != nil {
		return engines.ASRResult{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return engines.ASRResult{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, status, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return engines.ASRResult{}, err
			}
			if status == "completed" {
				return engines.ASRResult{Text: text, Confidence: 1.0, LatencyMs: time.Since(start).Milliseconds()}, nil
			}
			if status == "error" {
				return engines.ASRResult{}, fmt.Errorf("assemblyai transcription failed")
			}
		}
	}
}

func (s *AssemblyAI) upload(ctx context.Context, audioPCM []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.assemblyai.com/v2/upload", bytes.NewReader(audioPCM))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.UploadURL, nil
}

func (s *AssemblyAI) submit(ctx context.Context, uploadURL string) (string, error) {
	payload := map[string]interface{}{"audio_url": uploadURL}
	if s.lang != "" {
		payload["language_code"] = string(s.lang)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.assemblyai.com/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *AssemblyAI) getTranscript(ctx context.Context, id string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.assemblyai.com/v2/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Text, result.Status, nil
}

package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/carline-ai/carline/pkg/engines"
)

// Deepgram recognizes speech via Deepgram's raw-PCM listen endpoint, adapted
// one-for-one from the teacher's stt.DeepgramSTT.
type Deepgram struct {
	apiKey     string
	url        string
	sampleRate int
	lang       engines.Language
}

// NewDeepgram constructs a Deepgram client.
func NewDeepgram(apiKey string, lang engines.Language) *Deepgram {
	return &Deepgram{apiKey: apiKey, url: "https://api.deepgram.com/v1/listen", lang: lang}
}

func (s *Deepgram) Name() string { return "deepgram-asr" }

func (s *Deepgram) Recognize(ctx context.Context, pcm []int16, sampleRate int) (engines.ASRResult, error) {
	start := time.Now()

	u, err := url.Parse(s.url)
	if err != nil {
		return engines.ASRResult{}, err
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if s.lang != "" {
		params.Set("language", string(s.lang))
	}
	u.RawQuery = params.Encode()

	audioBytes := engines.Int16ToBytes(pcm)
	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(audioBytes))
	if err != nil {
		return engines.ASRResult{}, err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", sampleRate))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return engines.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return engines.ASRResult{}, fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engines.ASRResult{}, err
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return engines.ASRResult{LatencyMs: time.Since(start).Milliseconds()}, nil
	}

	return engines.ASRResult{
		Text:       result.Results.Channels[0].Alternatives[0].Transcript,
		Confidence: 1.0,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

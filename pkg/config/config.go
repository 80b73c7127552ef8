// Package config implements the ambient configuration surface (SPEC_FULL.md
// §10): plain Go structs populated from environment variables, with
// godotenv.Load() for local development, matching the teacher's
// cmd/agent/main.go pattern. YAML config loading is an explicit spec.md
// Non-goal; this never reaches for a config-file format.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full set of environment-driven knobs main.go reads.
type Config struct {
	SampleRate int
	Channels   int

	STTProvider string // groq | openai | deepgram | assemblyai
	LLMProvider string // groq | openai | anthropic | google
	Language    string // en | zh

	GroqAPIKey       string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	DeepgramAPIKey   string
	AssemblyAIAPIKey string
	LokutorAPIKey    string

	GroqSTTModel      string
	OpenAILLMModel    string
	AnthropicLLMModel string
	GoogleLLMModel    string

	MetricsEnabled bool
	MetricsAddr    string

	TTSEnabled bool
}

// Load reads .env (if present) then environment variables, matching
// cmd/agent/main.go's "Note: No .env file found" non-fatal behavior.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		SampleRate:        16000,
		Channels:          1,
		STTProvider:       envOr("STT_PROVIDER", "groq"),
		LLMProvider:       envOr("LLM_PROVIDER", "groq"),
		Language:          envOr("AGENT_LANGUAGE", "zh"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		AssemblyAIAPIKey:  os.Getenv("ASSEMBLYAI_API_KEY"),
		LokutorAPIKey:     os.Getenv("LOKUTOR_API_KEY"),
		GroqSTTModel:      envOr("GROQ_STT_MODEL", "whisper-large-v3-turbo"),
		OpenAILLMModel:    envOr("OPENAI_LLM_MODEL", "gpt-4o"),
		AnthropicLLMModel: envOr("ANTHROPIC_LLM_MODEL", "claude-3-5-sonnet-20241022"),
		GoogleLLMModel:    envOr("GOOGLE_LLM_MODEL", "gemini-1.5-flash"),
		MetricsEnabled:    envBool("METRICS_ENABLED", false),
		MetricsAddr:       envOr("METRICS_ADDR", ":9090"),
		TTSEnabled:        envBool("TTS_ENABLED", true),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

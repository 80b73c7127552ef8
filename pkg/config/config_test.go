package config

import "testing"

func TestLoadDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv("STT_PROVIDER", "")
	t.Setenv("LLM_PROVIDER", "")
	cfg := Load()
	if cfg.STTProvider != "groq" || cfg.LLMProvider != "groq" {
		t.Fatalf("expected groq defaults, got %+v", cfg)
	}
	if cfg.SampleRate != 16000 || cfg.Channels != 1 {
		t.Fatalf("expected 16kHz mono defaults, got %+v", cfg)
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("STT_PROVIDER", "deepgram")
	t.Setenv("METRICS_ENABLED", "true")
	cfg := Load()
	if cfg.STTProvider != "deepgram" {
		t.Fatalf("expected deepgram override, got %s", cfg.STTProvider)
	}
	if !cfg.MetricsEnabled {
		t.Fatal("expected METRICS_ENABLED=true to be honored")
	}
}

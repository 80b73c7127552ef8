// Command carline wires the event bus, voice state machine, message
// tracker, session manager, memory store, agent roster, orchestrator,
// dispatcher and pipeline workers into one running process, grounded on
// cmd/agent/main.go's provider-selection switches and malgo device setup.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carline-ai/carline/pkg/agents"
	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/config"
	"github.com/carline-ai/carline/pkg/dispatcher"
	"github.com/carline-ai/carline/pkg/engines"
	"github.com/carline-ai/carline/pkg/engines/mock"
	asrProvider "github.com/carline-ai/carline/pkg/engines/providers/asr"
	llmProvider "github.com/carline-ai/carline/pkg/engines/providers/llm"
	ttsProvider "github.com/carline-ai/carline/pkg/engines/providers/tts"
	vadProvider "github.com/carline-ai/carline/pkg/engines/providers/vad"
	"github.com/carline-ai/carline/pkg/logging"
	"github.com/carline-ai/carline/pkg/memory"
	"github.com/carline-ai/carline/pkg/orchestrator"
	"github.com/carline-ai/carline/pkg/session"
	"github.com/carline-ai/carline/pkg/statemachine"
	"github.com/carline-ai/carline/pkg/tracker"
	"github.com/carline-ai/carline/pkg/workers"
)

func main() {
	cfg := config.Load()
	logger := logging.NewStd("carline")

	asr := selectASR(cfg)
	llm := selectLLM(cfg)
	tts := selectTTS(cfg)

	b := bus.New(logger)
	if cfg.MetricsEnabled {
		b.AttachMetrics(bus.NewMetrics(prometheus.DefaultRegisterer))
	}

	trk := tracker.New()
	sessions := session.New(logger)
	mem := memory.New(memory.DefaultConfig())
	registry := agents.NewRegistry([]agents.Agent{
		agents.System{},
		agents.Chat{},
		agents.VehicleControl{},
		agents.Music{},
		agents.Weather{},
		agents.Workflow{},
	})

	decider := orchestrator.NewRuleBasedDecisionMaker(orchestrator.DefaultAgentName)
	var dm orchestrator.DecisionMaker = decider
	if llm != nil {
		dm = orchestrator.NewLLMDecisionMaker(llm, orchestrator.DefaultAgentName)
	}
	orch := orchestrator.New(b, sessions, mem, registry, dm, nil, logger)

	dispatchCfg := dispatcher.DefaultConfig()
	dispatchCfg.TTSEnabled = cfg.TTSEnabled
	disp := dispatcher.New(b, sessions, registry, trk, dispatchCfg, logger)
	if err := b.Register(disp); err != nil {
		log.Fatalf("carline: %v", err)
	}

	// Wake-word detection is an out-of-scope external collaborator (spec.md
	// §6); the mock engine is the documented extension point a deployment
	// swaps for a real detector.
	wakewordEngine := &mock.Wakeword{Keyword: "xiaoling", Confidence: 0.9}

	audioCapture := workers.NewAudioCapture(b, workers.DefaultAudioConfig(), logger)
	wakewordWorker := workers.NewWakeword(wakewordEngine, b, trk, logger)
	vadWorker := workers.NewVAD(vadProvider.NewRMS(0.02, workers.DefaultVADConfig().WakeDelay, cfg.SampleRate), workers.DefaultVADConfig(), b, logger)
	asrWorker := workers.NewASR(asr, cfg.SampleRate, b, trk, logger)
	for _, m := range []bus.Module{audioCapture, wakewordWorker, vadWorker, asrWorker} {
		if err := b.Register(m); err != nil {
			log.Fatalf("carline: %v", err)
		}
	}
	if !b.InitializeAll(statemachine.DefaultConfig()) {
		log.Fatal("carline: failed to initialize state machine and modules")
	}

	b.Subscribe(bus.ASRRecognitionSuccess, func(e bus.Event) {
		payload, ok := e.Payload.(bus.ASRPayload)
		if !ok || payload.Text == "" {
			return
		}
		result, err := orch.ProcessQuery(context.Background(), orchestrator.Params{
			UserID: "default_user",
			Text:   payload.Text,
			Type:   "voice",
			MsgID:  e.MsgID,
		})
		if err != nil {
			logger.Error("orchestrator: process_query failed", "error", err)
			return
		}
		orch.HandleDecision(e.MsgID, orchestrator.Params{UserID: "default_user", Text: payload.Text}, result)
	})

	if !b.StartAll() {
		log.Fatal("carline: failed to start workers")
	}
	defer b.StopAll()
	defer b.CleanupAll()

	if tts != nil {
		b.Subscribe(bus.TTSSpeakRequest, func(e bus.Event) {
			payload, ok := e.Payload.(bus.TTSRequestPayload)
			if !ok {
				return
			}
			go func() {
				err := tts.Speak(context.Background(), payload.Text, engines.VoiceF1, engines.Language(cfg.Language), func([]byte) error { return nil })
				if err != nil {
					logger.Error("tts: speak failed", "error", err)
				}
			}()
		})
	}

	if cfg.MetricsEnabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("carline started", "stt", cfg.STTProvider, "llm", cfg.LLMProvider, "language", cfg.Language)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("carline shutting down")
}

func selectASR(cfg config.Config) engines.ASREngine {
	lang := engines.Language(cfg.Language)
	switch cfg.STTProvider {
	case "openai":
		return asrProvider.NewOpenAI(cfg.OpenAIAPIKey, "whisper-1", lang)
	case "deepgram":
		return asrProvider.NewDeepgram(cfg.DeepgramAPIKey, lang)
	case "assemblyai":
		return asrProvider.NewAssemblyAI(cfg.AssemblyAIAPIKey, lang)
	case "groq":
		fallthrough
	default:
		return asrProvider.NewGroq(cfg.GroqAPIKey, cfg.GroqSTTModel, lang)
	}
}

func selectLLM(cfg config.Config) engines.LLMProvider {
	switch cfg.LLMProvider {
	case "openai":
		return llmProvider.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAILLMModel)
	case "anthropic":
		return llmProvider.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicLLMModel)
	case "google":
		return llmProvider.NewGoogle(cfg.GoogleAPIKey, cfg.GoogleLLMModel)
	default:
		// No bundled Groq chat-completions client (the teacher's own
		// pkg/providers/llm never shipped one either); fall back to the
		// rule-based decider rather than fabricating a provider.
		return nil
	}
}

func selectTTS(cfg config.Config) engines.TTSEngine {
	if cfg.LokutorAPIKey == "" {
		return nil
	}
	return ttsProvider.NewLokutor(cfg.LokutorAPIKey)
}

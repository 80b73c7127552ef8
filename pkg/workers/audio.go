// Package workers implements the pipeline workers (C5): audio capture,
// wake-word detection, VAD and ASR, each a bus.Module driven purely by
// events, grounded on cmd/agent/main.go's malgo duplex capture callback and
// streaming.ManagedStream's worker-thread offload for blocking engine calls.
package workers

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/carline-ai/carline/pkg/bus"
	"github.com/carline-ai/carline/pkg/logging"
)

// AudioConfig describes the capture device shape (spec.md §4.5: "16 kHz
// mono, signed 16-bit").
type AudioConfig struct {
	SampleRate      int
	Channels        int
	CheckTimeoutEvery int // call bus.CheckTimeout every N frames (spec.md: "≥ every 10 frames")
}

func DefaultAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 16000, Channels: 1, CheckTimeoutEvery: 10}
}

// AudioCapture opens the configured input device and republishes every
// captured chunk as AUDIO_FRAME_READY.
type AudioCapture struct {
	cfg    AudioConfig
	bus    *bus.Controller
	logger logging.Logger

	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	mu      sync.Mutex
	running bool
	frames  int
}

// NewAudioCapture constructs an AudioCapture module.
func NewAudioCapture(b *bus.Controller, cfg AudioConfig, logger logging.Logger) *AudioCapture {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &AudioCapture{cfg: cfg, bus: b, logger: logger}
}

func (a *AudioCapture) Name() string { return "audio_capture" }

func (a *AudioCapture) Initialize() bool {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		a.logger.Error("audio capture: failed to init malgo context", "error", err)
		return false
	}
	a.mctx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(a.cfg.Channels)
	deviceConfig.SampleRate = uint32(a.cfg.SampleRate)

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: a.onSamples,
	})
	if err != nil {
		a.logger.Error("audio capture: failed to init device", "error", err)
		mctx.Uninit()
		return false
	}
	a.device = device
	return true
}

func (a *AudioCapture) onSamples(_, pInput []byte, _ uint32) {
	if len(pInput) == 0 {
		return
	}
	frame := make([]byte, len(pInput))
	copy(frame, pInput)

	a.bus.Publish(bus.Event{
		Type:   bus.AudioFrameReady,
		Source: a.Name(),
		Payload: bus.AudioFramePayload{
			PCM:        frame,
			SampleRate: a.cfg.SampleRate,
			Channels:   a.cfg.Channels,
		},
	})

	a.mu.Lock()
	a.frames++
	due := a.cfg.CheckTimeoutEvery > 0 && a.frames%a.cfg.CheckTimeoutEvery == 0
	a.mu.Unlock()
	if due {
		a.bus.CheckTimeout()
	}
}

func (a *AudioCapture) Start() bool {
	if a.device == nil {
		return false
	}
	if err := a.device.Start(); err != nil {
		a.logger.Error("audio capture: failed to start device", "error", err)
		a.publishDeviceLost(err)
		return false
	}
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()
	return true
}

func (a *AudioCapture) publishDeviceLost(err error) {
	a.bus.Publish(bus.Event{
		Type:    bus.AudioDeviceChanged,
		Source:  a.Name(),
		Payload: fmt.Sprintf("device lost: %v", err),
	})
}

func (a *AudioCapture) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	if a.device != nil {
		a.device.Stop()
	}
}

func (a *AudioCapture) Cleanup() {
	if a.device != nil {
		a.device.Uninit()
		a.device = nil
	}
	if a.mctx != nil {
		a.mctx.Uninit()
		a.mctx = nil
	}
}

func (a *AudioCapture) HandleEvent(bus.Event) {}

func (a *AudioCapture) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

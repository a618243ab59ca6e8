package vad

import (
	"context"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
)

// VADResult represents the result of voice activity detection
type VADResult struct {
	HasVoice   bool    `json:"hasVoice"`
	Confidence float32 `json:"confidence"`
}

// VAD interface for voice activity detection
type VAD interface {
	DetectVoice(ctx context.Context, audio audioring.AudioInput) (VADResult, error)
	Close() error
}

// VADConfig contains configuration for VAD
type VADConfig struct {
	SampleRate   int32   `json:"sampleRate" mapstructure:"sample_rate"`
	Threshold    float32 `json:"threshold" mapstructure:"threshold"` // mean-square energy, 0-1
	MinSpeechMs  int     `json:"minSpeechMs" mapstructure:"min_speech_ms"`
	MinSilenceMs int     `json:"minSilenceMs" mapstructure:"min_silence_ms"`
	ServiceURL   string  `json:"serviceUrl,omitempty" mapstructure:"service_url"` // optional Silero endpoint
}

func DefaultVADConfig() VADConfig {
	return VADConfig{
		SampleRate:   16000,
		Threshold:    0.0005,
		MinSpeechMs:  250,
		MinSilenceMs: 700,
	}
}

// New returns a Silero-backed detector when a service URL is configured and
// a local energy detector otherwise.
func New(cfg VADConfig, logger *Logger.Logger) VAD {
	energy := NewEnergyVAD(cfg)
	if cfg.ServiceURL == "" {
		return energy
	}
	return NewSileroVAD(cfg, energy, logger)
}

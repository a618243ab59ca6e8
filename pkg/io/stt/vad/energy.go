package vad

import (
	"context"

	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
)

// EnergyVAD flags a block as speech when its normalized mean-square energy
// exceeds the configured threshold.
type EnergyVAD struct {
	config VADConfig
}

func NewEnergyVAD(config VADConfig) *EnergyVAD {
	if config.Threshold <= 0 {
		config.Threshold = DefaultVADConfig().Threshold
	}
	return &EnergyVAD{config: config}
}

func (e *EnergyVAD) DetectVoice(_ context.Context, audio audioring.AudioInput) (VADResult, error) {
	return EnergyOf(audio.Data, e.config.Threshold), nil
}

func (e *EnergyVAD) Close() error { return nil }

// EnergyOf scores PCM16 LE data against threshold.
func EnergyOf(pcm []byte, threshold float32) VADResult {
	samples := len(pcm) / 2
	if samples == 0 {
		return VADResult{}
	}

	var sum int64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int64(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		sum += s * s
	}
	energy := float32(float64(sum) / float64(samples) / (32768.0 * 32768.0))

	confidence := energy / threshold
	if confidence > 1 {
		confidence = 1
	}
	return VADResult{
		HasVoice:   energy > threshold,
		Confidence: confidence,
	}
}

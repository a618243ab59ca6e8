package vad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
)

func block(level float32, n int) audioring.AudioInput {
	samples := make([]float32, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = level
		} else {
			samples[i] = -level
		}
	}
	return audioring.AudioInput{Data: codec.FloatToPCM16(samples), SampleRate: 16000, Channels: 1}
}

func TestEnergyVAD(t *testing.T) {
	v := NewEnergyVAD(DefaultVADConfig())

	silent, _ := v.DetectVoice(context.Background(), block(0.001, 1600))
	if silent.HasVoice {
		t.Error("near-silence detected as voice")
	}
	loud, _ := v.DetectVoice(context.Background(), block(0.3, 1600))
	if !loud.HasVoice || loud.Confidence != 1 {
		t.Errorf("loud block not detected: %+v", loud)
	}
	empty, _ := v.DetectVoice(context.Background(), audioring.AudioInput{})
	if empty.HasVoice {
		t.Error("empty block detected as voice")
	}
}

func TestSileroFallsBackOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultVADConfig()
	cfg.ServiceURL = srv.URL
	v := New(cfg, Logger.NewNop())

	res, err := v.DetectVoice(context.Background(), block(0.3, 3200))
	if err != nil {
		t.Fatalf("fallback should hide service errors: %v", err)
	}
	if !res.HasVoice {
		t.Error("energy fallback should detect the loud block")
	}
}

func TestSileroUsesServiceVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vad" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SileroAPIResponse{HasVoice: false, Confidence: 0.1})
	}))
	defer srv.Close()

	cfg := DefaultVADConfig()
	cfg.ServiceURL = srv.URL
	v := New(cfg, Logger.NewNop())

	res, _ := v.DetectVoice(context.Background(), block(0.3, 3200))
	if res.HasVoice {
		t.Error("service verdict should win over local energy")
	}

	v.Close()
	if _, err := v.DetectVoice(context.Background(), block(0.3, 3200)); err == nil {
		t.Error("closed detector should error")
	}
}

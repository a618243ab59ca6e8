package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
)

// SileroAPIResponse represents the response from Silero VAD service
type SileroAPIResponse struct {
	HasVoice         bool    `json:"has_voice"`
	Confidence       float32 `json:"confidence"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// SileroVAD asks a Silero VAD HTTP service and falls back to the energy
// detector whenever the service fails or the block is too short to score.
type SileroVAD struct {
	config     VADConfig
	fallback   VAD
	logger     *Logger.Logger
	httpClient *http.Client

	mutex  sync.Mutex
	closed bool
}

func NewSileroVAD(config VADConfig, fallback VAD, logger *Logger.Logger) *SileroVAD {
	return &SileroVAD{
		config:     config,
		fallback:   fallback,
		logger:     logger,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

func (s *SileroVAD) DetectVoice(ctx context.Context, audio audioring.AudioInput) (VADResult, error) {
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()
	if closed {
		return VADResult{}, fmt.Errorf("VAD is closed")
	}

	// under 100ms the service is unreliable
	minSamples := int(s.config.SampleRate) / 10
	if len(audio.Data)/2 < minSamples {
		return s.fallback.DetectVoice(ctx, audio)
	}

	result, err := s.callService(ctx, audio)
	if err != nil {
		s.logger.Warnf("silero VAD failed, using energy detector: %v", err)
		return s.fallback.DetectVoice(ctx, audio)
	}
	return result, nil
}

func (s *SileroVAD) callService(ctx context.Context, audio audioring.AudioInput) (VADResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return VADResult{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(codec.EncodeWAV(audio.Data, int(audio.SampleRate), int(audio.Channels))); err != nil {
		return VADResult{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	writer.WriteField("threshold", fmt.Sprintf("%.3f", s.config.Threshold))
	writer.WriteField("min_speech_duration_ms", strconv.Itoa(s.config.MinSpeechMs))
	writer.WriteField("min_silence_duration_ms", strconv.Itoa(s.config.MinSilenceMs))
	writer.WriteField("sampling_rate", strconv.Itoa(int(audio.SampleRate)))
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.ServiceURL+"/vad", body)
	if err != nil {
		return VADResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return VADResult{}, fmt.Errorf("failed to call VAD service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return VADResult{}, fmt.Errorf("VAD service returned status %d: %s", resp.StatusCode, string(b))
	}

	var sr SileroAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return VADResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return VADResult{HasVoice: sr.HasVoice, Confidence: sr.Confidence}, nil
}

func (s *SileroVAD) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}

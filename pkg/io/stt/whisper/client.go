package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
)

// TranscriptionResponse represents the response from Whisper STT service
type TranscriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// WhisperClient handles communication with a whisper-asr-webservice instance
type WhisperClient struct {
	baseURL    string
	prompt     string
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewWhisperClient(baseURL, initialPrompt string, logger *Logger.Logger) *WhisperClient {
	return &WhisperClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		prompt:  initialPrompt,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// TranscribeAudio uploads the frames as one WAV file and returns the text.
func (w *WhisperClient) TranscribeAudio(ctx context.Context, frames []audioring.AudioInput, language string) (*TranscriptionResponse, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no audio frames provided")
	}

	sampleRate := int(frames[0].SampleRate)
	if sampleRate == 0 {
		sampleRate = codec.TransportRate
	}
	var pcm []byte
	for _, f := range frames {
		pcm = append(pcm, f.Data...)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(codec.EncodeWAV(pcm, sampleRate, 1)); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	q := url.Values{}
	q.Set("encode", "true")
	q.Set("task", "transcribe")
	q.Set("language", language)
	q.Set("output", "json")
	if w.prompt != "" {
		q.Set("initial_prompt", w.prompt)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/asr?"+q.Encode(), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper service returned status %d: %s", resp.StatusCode, string(raw))
	}

	var transcription TranscriptionResponse
	if err := json.Unmarshal(raw, &transcription); err != nil {
		// some deployments answer output=json with plain text
		w.logger.Debugf("whisper returned non-JSON body, treating as text")
		return &TranscriptionResponse{Text: strings.TrimSpace(string(raw)), Language: language}, nil
	}
	transcription.Text = strings.TrimSpace(transcription.Text)
	return &transcription, nil
}

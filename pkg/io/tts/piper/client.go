package piper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"github.com/xpanvictor/civicguru/pkg/io/tts/piper/stream"
)

type Config struct {
	BaseURL string            `mapstructure:"base_url"`
	Voices  map[string]string `mapstructure:"voices"` // language -> piper voice
	Timeout time.Duration     `mapstructure:"timeout"`
}

type Piper struct {
	BaseURL string       // e.g. "http://tts:5000"
	Client  *http.Client // inject; default if nil
	Voice   string       // default voice (override per-call)
	Voices  map[string]string
	Timeout time.Duration // request timeout per chunk

	segmenter stream.Segmenter
}

func New(cfg Config) *Piper {
	return &Piper{
		BaseURL:   cfg.BaseURL,
		Voices:    cfg.Voices,
		Timeout:   cfg.Timeout,
		segmenter: stream.New(),
	}
}

func (p *Piper) Pack(name string) gateway.Pack {
	return gateway.Pack{Name: name, Speech: p}
}

func (p *Piper) DoTTS(ctx context.Context, text string, optVoice string) (io.ReadCloser, string, error) {
	if text == "" {
		return nil, "", fmt.Errorf("empty text")
	}
	voice := p.Voice
	if optVoice != "" {
		voice = optVoice
	}

	// rhasspy/wyoming-piper HTTP: GET /api/text-to-speech?text=...&voice=...
	// This API streams a WAV body on success.
	u, err := url.Parse(p.BaseURL + "/api/text-to-speech")
	if err != nil {
		return nil, "", err
	}
	q := u.Query()
	q.Set("text", text)
	if voice != "" {
		q.Set("voice", voice)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "audio/wav")

	hc := p.Client
	if hc == nil {
		hc = &http.Client{}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tts http request failed: %w (url=%s)", err, u.String())
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, "", fmt.Errorf("tts http %d: %s (url=%s, dur=%s)", resp.StatusCode, string(b), u.String(), time.Since(start))
	}
	// caller must Close the body
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// SynthesizeSpeech renders the text chunk by chunk and joins the PCM.
// Chunks must agree on sample rate and channel count.
func (p *Piper) SynthesizeSpeech(ctx context.Context, req gateway.SpeechRequest) (*gateway.Speech, error) {
	voice := p.Voices[req.Language]
	var (
		pcm    bytes.Buffer
		speech *gateway.Speech
	)
	for _, chunk := range p.segmenter.Split(req.Text) {
		info, err := p.chunk(ctx, chunk, voice)
		if err != nil {
			return nil, err
		}
		if speech == nil {
			speech = &gateway.Speech{SampleRate: info.SampleRate, Channels: info.Channels}
		} else if info.SampleRate != speech.SampleRate || info.Channels != speech.Channels {
			return nil, fmt.Errorf("piper: chunk format changed to %d Hz x%d", info.SampleRate, info.Channels)
		}
		pcm.Write(info.PCM)
	}
	if speech == nil || pcm.Len() == 0 {
		return nil, nil
	}
	speech.PCM = pcm.Bytes()
	return speech, nil
}

func (p *Piper) chunk(ctx context.Context, text, voice string) (*codec.WAVInfo, error) {
	ctxChunk, cancel := context.WithTimeout(ctx, ifZero(p.Timeout, 30*time.Second))
	defer cancel()

	rc, _, err := p.DoTTS(ctxChunk, text, voice)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("piper: read body: %w", err)
	}
	return codec.ParseWAV(body)
}

func ifZero(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

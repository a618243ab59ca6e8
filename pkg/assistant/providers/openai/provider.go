// Package openai serves text turns and PCM speech synthesis through
// openai-go.
package openai

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
)

type Config struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	QuickModel  string `mapstructure:"quick_model"`
	DeepModel   string `mapstructure:"deep_model"`
	SpeechModel string `mapstructure:"speech_model"`
	SpeechVoice string `mapstructure:"speech_voice"`
}

type Provider struct {
	client openai.Client
	cfg    Config
}

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key", gateway.ErrNotConfigured)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.QuickModel == "" {
		cfg.QuickModel = openai.ChatModelGPT4oMini
	}
	if cfg.DeepModel == "" {
		cfg.DeepModel = openai.ChatModelGPT4o
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = openai.SpeechModelGPT4oMiniTTS
	}
	if cfg.SpeechVoice == "" {
		cfg.SpeechVoice = "alloy"
	}
	return &Provider{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (p *Provider) Pack(name string) gateway.Pack {
	return gateway.Pack{Name: name, Text: p, Speech: p}
}

func (p *Provider) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	model := p.cfg.QuickModel
	if req.ExtendedThinking {
		model = p.cfg.DeepModel
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    model,
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", model, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai %s: no choices", model)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai %s: empty response", model)
	}
	return text, nil
}

// SynthesizeSpeech requests raw PCM, which the API returns as 24 kHz mono
// signed 16-bit little-endian.
func (p *Provider) SynthesizeSpeech(ctx context.Context, req gateway.SpeechRequest) (*gateway.Speech, error) {
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          p.cfg.SpeechModel,
		Voice:          openai.AudioSpeechNewParamsVoice(p.cfg.SpeechVoice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai speech body: %w", err)
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	return &gateway.Speech{PCM: pcm, SampleRate: codec.OutputRate, Channels: 1}, nil
}

// Package genai talks to Gemini through google.golang.org/genai. It is the
// only provider offering live audio sessions.
package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"google.golang.org/genai"
)

type Config struct {
	APIKey         string `mapstructure:"api_key"`
	LiveModel      string `mapstructure:"live_model"`
	QuickModel     string `mapstructure:"quick_model"`
	DeepModel      string `mapstructure:"deep_model"`
	SpeechModel    string `mapstructure:"speech_model"`
	SpeechVoice    string `mapstructure:"speech_voice"`
	ThinkingBudget int32  `mapstructure:"thinking_budget"`
}

func DefaultConfig() Config {
	return Config{
		LiveModel:      "gemini-2.5-flash-native-audio-preview-09-2025",
		QuickModel:     "gemini-flash-lite-latest",
		DeepModel:      "gemini-2.5-pro",
		SpeechModel:    "gemini-2.5-flash-preview-tts",
		ThinkingBudget: 32768,
	}
}

type Provider struct {
	client *genai.Client
	config Config
	logger *Logger.Logger
}

func New(ctx context.Context, cfg Config, logger *Logger.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key", gateway.ErrNotConfigured)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client, config: cfg, logger: logger}, nil
}

// Pack registers every capability under name.
func (p *Provider) Pack(name string) gateway.Pack {
	return gateway.Pack{Name: name, Live: p, Text: p, Speech: p}
}

func (p *Provider) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	model := p.config.QuickModel
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.ExtendedThinking {
		model = p.config.DeepModel
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(p.config.ThinkingBudget)}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", gateway.ErrGenerationFailed, model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", gateway.ErrGenerationFailed, model)
	}
	return text, nil
}

func (p *Provider) SynthesizeSpeech(ctx context.Context, req gateway.SpeechRequest) (*gateway.Speech, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
	}
	if p.config.SpeechVoice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: p.config.SpeechVoice},
			},
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.SpeechModel, genai.Text(req.Text), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrSynthesisFailed, err)
	}
	return speechFromResponse(resp), nil
}

// speechFromResponse pulls the first inline audio part, nil when absent.
func speechFromResponse(resp *genai.GenerateContentResponse) *gateway.Speech {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &gateway.Speech{
			PCM:        part.InlineData.Data,
			SampleRate: codec.RateFromMIME(part.InlineData.MIMEType, codec.OutputRate),
			Channels:   1,
		}
	}
	return nil
}

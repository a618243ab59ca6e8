package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"google.golang.org/api/option"
)

// GeminiProvider serves text turns through the generative-ai-go client.
// It has no live or speech support and is registered as a text fallback.
type GeminiProvider struct {
	client     *genai.Client
	quickModel string
	deepModel  string
}

type Config struct {
	APIKey     string `mapstructure:"api_key"`
	QuickModel string `mapstructure:"quick_model"`
	DeepModel  string `mapstructure:"deep_model"`
}

func New(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key", gateway.ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GeminiProvider{
		client:     client,
		quickModel: ifEmpty(cfg.QuickModel, "gemini-1.5-flash-latest"),
		deepModel:  ifEmpty(cfg.DeepModel, "gemini-1.5-pro-latest"),
	}, nil
}

func (gp *GeminiProvider) Pack(name string) gateway.Pack {
	return gateway.Pack{Name: name, Text: gp}
}

func (gp *GeminiProvider) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	name := gp.quickModel
	if req.ExtendedThinking {
		name = gp.deepModel
	}
	model := gp.client.GenerativeModel(name)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", name, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini %s: empty response", name)
	}
	return text, nil
}

func (gp *GeminiProvider) Close() error {
	return gp.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

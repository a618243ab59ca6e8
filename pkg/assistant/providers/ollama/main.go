package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
)

// Supports different models
// hence created as necessary

type Server struct {
	URL   string `mapstructure:"url"`
	Group string `mapstructure:"group"`
}

type Config struct {
	Servers    []Server `mapstructure:"servers"`
	QuickModel string   `mapstructure:"quick_model"`
	DeepModel  string   `mapstructure:"deep_model"`
}

type OllamaProvider struct {
	ollamafarm *ollamafarm.Farm
	quickModel string
	deepModel  string
	logger     *Logger.Logger
}

func New(cfg Config, logger *Logger.Logger) (*OllamaProvider, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("%w: no ollama servers", gateway.ErrNotConfigured)
	}
	farm := ollamafarm.New()

	registered := 0
	for _, srv := range cfg.Servers {
		var props *ollamafarm.Properties
		if srv.Group != "" {
			props = &ollamafarm.Properties{Group: srv.Group}
		}
		if err := farm.RegisterURL(srv.URL, props); err != nil {
			logger.Warnf("ollama server %s not registered: %v", srv.URL, err)
			continue
		}
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("%w: no reachable ollama servers", gateway.ErrNotConfigured)
	}

	return &OllamaProvider{
		ollamafarm: farm,
		quickModel: ifEmpty(cfg.QuickModel, "llama3.2"),
		deepModel:  ifEmpty(cfg.DeepModel, ifEmpty(cfg.QuickModel, "llama3.2")),
		logger:     logger,
	}, nil
}

func (o *OllamaProvider) Pack(name string) gateway.Pack {
	return gateway.Pack{Name: name, Text: o}
}

func (o *OllamaProvider) Chat(
	ctx context.Context,
	req api.ChatRequest,
	fn api.ChatResponseFunc,
) error {
	// pick first available client
	ollama := o.ollamafarm.First(&ollamafarm.Where{Offline: false})
	if ollama != nil {
		return ollama.Client().Chat(ctx, &req, fn)
	}
	return fmt.Errorf("no online ollama server for %v", req.Model)
}

func (o *OllamaProvider) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	model := o.quickModel
	if req.ExtendedThinking {
		model = o.deepModel
	}
	stream := false
	chat := buildChatRequest(model, req)
	chat.Stream = &stream

	var sb strings.Builder
	err := o.Chat(ctx, chat, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("ollama %s: empty response", model)
	}
	return text, nil
}

func buildChatRequest(model string, req gateway.TextRequest) api.ChatRequest {
	msgs := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: req.Prompt})
	return api.ChatRequest{Model: model, Messages: msgs}
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

package app

import (
	"context"
	"errors"
	"io"

	"github.com/xpanvictor/civicguru/internal/config"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/assistant/providers/gemini"
	genaiProvider "github.com/xpanvictor/civicguru/pkg/assistant/providers/genai"
	"github.com/xpanvictor/civicguru/pkg/assistant/providers/ollama"
	openaiProvider "github.com/xpanvictor/civicguru/pkg/assistant/providers/openai"
	"github.com/xpanvictor/civicguru/pkg/io/tts/piper"
)

// Provider names used in ai.routes.
const (
	ProviderGenai  = "genai"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderPiper  = "piper"
)

// GatewayFactory builds the AI gateway from whichever providers are
// configured. Unconfigured providers are skipped, not fatal.
type GatewayFactory struct {
	config config.AIConfig
	logger *Logger.Logger
}

func NewGatewayFactory(cfg config.AIConfig, logger *Logger.Logger) *GatewayFactory {
	return &GatewayFactory{config: cfg, logger: logger.Named("gateway")}
}

// Gateway is the built router plus what must be released on shutdown.
type Gateway struct {
	*gateway.Router
	// ConfigMissing is set when no provider can generate text.
	ConfigMissing bool
	closers       []io.Closer
}

func (g *Gateway) Close() error {
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (f *GatewayFactory) Create(ctx context.Context) (*Gateway, error) {
	var (
		packs   []gateway.Pack
		closers []io.Closer
		text    bool
	)
	add := func(p gateway.Pack) {
		packs = append(packs, p)
		text = text || p.Text != nil
		f.logger.Infof("provider %s registered (live=%t text=%t speech=%t)", p.Name, p.Live != nil, p.Text != nil, p.Speech != nil)
	}
	skip := func(name string, err error) {
		if errors.Is(err, gateway.ErrNotConfigured) {
			f.logger.Debugf("provider %s skipped: %v", name, err)
			return
		}
		f.logger.Warnf("provider %s unavailable: %v", name, err)
	}

	if p, err := genaiProvider.New(ctx, f.config.Genai, f.logger.Named(ProviderGenai)); err == nil {
		add(p.Pack(ProviderGenai))
	} else {
		skip(ProviderGenai, err)
	}

	if p, err := gemini.New(ctx, f.config.Gemini); err == nil {
		add(p.Pack(ProviderGemini))
		closers = append(closers, p)
	} else {
		skip(ProviderGemini, err)
	}

	if p, err := openaiProvider.New(f.config.OpenAI); err == nil {
		add(p.Pack(ProviderOpenAI))
	} else {
		skip(ProviderOpenAI, err)
	}

	if p, err := ollama.New(f.config.Ollama, f.logger.Named(ProviderOllama)); err == nil {
		add(p.Pack(ProviderOllama))
	} else {
		skip(ProviderOllama, err)
	}

	if f.config.Piper.BaseURL != "" {
		add(piper.New(f.config.Piper).Pack(ProviderPiper))
	}

	routes := f.config.Routes.Gateway()
	router := gateway.NewRouter(packs, routes, f.logger)
	if !text {
		f.logger.Warn("no text provider configured, sessions will refuse to start")
	}
	return &Gateway{Router: router, ConfigMissing: !text, closers: closers}, nil
}

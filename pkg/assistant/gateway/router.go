package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xpanvictor/civicguru/pkg/Logger"
)

// Pack is one registered provider. Any of the capabilities may be nil.
type Pack struct {
	Name   string
	Live   LiveProvider
	Text   TextProvider
	Speech SpeechProvider
}

// Routes names the provider used for each concern. Text falls through
// TextFallbacks in order when the primary fails.
type Routes struct {
	Live          string
	Text          string
	TextFallbacks []string
	Speech        string
}

// Router implements Gateway by dispatching to registered packs.
type Router struct {
	packs  map[string]Pack
	routes Routes
	logger *Logger.Logger
}

func NewRouter(packs []Pack, routes Routes, logger *Logger.Logger) *Router {
	m := make(map[string]Pack, len(packs))
	for _, p := range packs {
		m[p.Name] = p
	}
	return &Router{packs: m, routes: routes, logger: logger}
}

// Providers lists the registered pack names.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.packs))
	for n := range r.packs {
		names = append(names, n)
	}
	return names
}

func (r *Router) OpenLiveSession(ctx context.Context, cfg LiveConfig) (LiveSession, error) {
	p, ok := r.packs[r.routes.Live]
	if !ok || p.Live == nil {
		return nil, &SessionError{Op: "open", Err: fmt.Errorf("%w: live provider %q", ErrNotConfigured, r.routes.Live)}
	}
	s, err := p.Live.OpenLiveSession(ctx, cfg)
	if err != nil {
		var se *SessionError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &SessionError{Op: "open", Err: err}
	}
	return s, nil
}

func (r *Router) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	chain := append([]string{r.routes.Text}, r.routes.TextFallbacks...)
	var failures []string
	for _, name := range chain {
		p, ok := r.packs[name]
		if !ok || p.Text == nil {
			continue
		}
		text, err := p.Text.GenerateText(ctx, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, ctx.Err())
		}
		r.logger.Warnf("text provider %s failed: %v", name, err)
		failures = append(failures, fmt.Sprintf("%s: %v", name, err))
	}
	if len(failures) == 0 {
		return "", fmt.Errorf("%w: %w: text provider %q", ErrGenerationFailed, ErrNotConfigured, r.routes.Text)
	}
	return "", fmt.Errorf("%w: %s", ErrGenerationFailed, strings.Join(failures, "; "))
}

func (r *Router) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*Speech, error) {
	p, ok := r.packs[r.routes.Speech]
	if !ok || p.Speech == nil {
		return nil, fmt.Errorf("%w: %w: speech provider %q", ErrSynthesisFailed, ErrNotConfigured, r.routes.Speech)
	}
	speech, err := p.Speech.SynthesizeSpeech(ctx, req)
	if err != nil {
		if errors.Is(err, ErrSynthesisFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if speech == nil || len(speech.PCM) == 0 {
		return nil, nil
	}
	return speech, nil
}

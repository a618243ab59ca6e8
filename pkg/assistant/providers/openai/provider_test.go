package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := New(Config{APIKey: "test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestGenerateTextPicksModel(t *testing.T) {
	var models []string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		models = append(models, body.Model)
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"`+body.Model+`",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" Use dustbins. "}}]}`)
	})

	text, err := p.GenerateText(context.Background(), gateway.TextRequest{Prompt: "hygiene", SystemPrompt: "guide"})
	if err != nil || text != "Use dustbins." {
		t.Fatalf("unexpected result %q %v", text, err)
	}
	if _, err := p.GenerateText(context.Background(), gateway.TextRequest{Prompt: "hygiene", SystemPrompt: "guide", ExtendedThinking: true}); err != nil {
		t.Fatal(err)
	}
	if models[0] != p.cfg.QuickModel || models[1] != p.cfg.DeepModel {
		t.Errorf("unexpected models %v", models)
	}
}

func TestSynthesizeSpeechReturnsPCM(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/pcm")
		w.Write([]byte{1, 0, 2, 0})
	})

	speech, err := p.SynthesizeSpeech(context.Background(), gateway.SpeechRequest{Text: "namaste"})
	if err != nil {
		t.Fatal(err)
	}
	if speech == nil || speech.SampleRate != 24000 || len(speech.PCM) != 4 {
		t.Errorf("unexpected speech %+v", speech)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, gateway.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(" Keep "), genai.Text("left. ")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("second candidate")}}},
		},
	}
	if got := responseText(resp); got != "Keep left." {
		t.Errorf("unexpected text %q", got)
	}
	if responseText(nil) != "" {
		t.Error("nil response should be empty")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, gateway.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

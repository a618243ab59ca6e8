package prompts

import (
	"strings"
	"testing"

	"github.com/xpanvictor/civicguru/internal/types"
)

func TestSystemInstructionPerLanguage(t *testing.T) {
	en := SystemInstruction(types.ENGLISH, types.LIVE)
	hi := SystemInstruction(types.HINDI, types.LIVE)
	if !strings.Contains(en, "Civic Mitra") || !strings.Contains(hi, "Civic Mitra") {
		t.Error("live prompts should introduce Civic Mitra")
	}
	if en == hi {
		t.Error("languages should differ")
	}
	if SystemInstruction("fr", types.DEEP) != SystemInstruction(types.ENGLISH, types.DEEP) {
		t.Error("unknown language should fall back to English")
	}
}

func TestStatus(t *testing.T) {
	cases := []struct {
		lang      types.Language
		state     string
		turnBased bool
		thinking  bool
		want      string
	}{
		{types.ENGLISH, "capturing", false, false, "Listening..."},
		{types.ENGLISH, "capturing", true, false, "Recording..."},
		{types.ENGLISH, "processing", true, true, "Thinking..."},
		{types.ENGLISH, "processing", true, false, "Analyzing..."},
		{types.HINDI, "idle", false, false, "शुरू करने के लिए टैप करें"},
		{types.HINDI, "awaitingConfirmation", true, false, "भेजने के लिए तैयार..."},
	}
	for _, c := range cases {
		if got := Status(c.lang, c.state, c.turnBased, c.thinking); got != c.want {
			t.Errorf("Status(%s, %s) = %q, want %q", c.lang, c.state, got, c.want)
		}
	}
}

func TestTopicPrompt(t *testing.T) {
	got, ok := TopicPrompt(types.ENGLISH, TopicTraffic)
	if !ok || got != "Tell me about Traffic Rules" {
		t.Errorf("unexpected prompt %q", got)
	}
	got, _ = TopicPrompt(types.HINDI, TopicWaste)
	if got != "मुझे कचरा प्रबंधन के बारे में बताएं" {
		t.Errorf("unexpected hindi prompt %q", got)
	}
	if _, ok := TopicPrompt(types.ENGLISH, "weather"); ok {
		t.Error("unknown topic should be rejected")
	}
}

func TestSuggestionsAreCopies(t *testing.T) {
	s := Suggestions(types.ENGLISH)
	s[0] = "changed"
	if Suggestions(types.ENGLISH)[0] != "Tell me more" {
		t.Error("callers must not mutate the catalog")
	}
}

package prompts

import (
	"github.com/xpanvictor/civicguru/internal/types"
)

type PromptDefinition struct {
	Content string
	Version float32
}

type SYS_PROMPT struct {
	Intent         string
	CurrentVersion float32
	Items          map[float32]PromptDefinition // version-content
}

func (sp *SYS_PROMPT) GetVersion(version float32) (PromptDefinition, bool) {
	i, ok := sp.Items[version]
	return i, ok
}

func (sp *SYS_PROMPT) GetCurrentPrompt() PromptDefinition {
	return sp.Items[sp.CurrentVersion]
}

type promptKey struct {
	lang types.Language
	mode types.Mode
}

// SystemInstruction returns the current system prompt for a language and
// mode, falling back to English.
func SystemInstruction(lang types.Language, mode types.Mode) string {
	if sp, ok := systemPrompts[promptKey{lang, mode}]; ok {
		return sp.GetCurrentPrompt().Content
	}
	sp := systemPrompts[promptKey{types.ENGLISH, mode}]
	return sp.GetCurrentPrompt().Content
}

func single(intent, content string) *SYS_PROMPT {
	return &SYS_PROMPT{
		Intent:         intent,
		CurrentVersion: 0.1,
		Items: map[float32]PromptDefinition{
			0.1: {Version: 0.1, Content: content},
		},
	}
}

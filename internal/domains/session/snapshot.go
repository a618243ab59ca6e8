package session

import (
	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
)

// Snapshot is the observable state of a controller.
type Snapshot struct {
	State          State           `json:"state"`
	Status         string          `json:"status"`
	Mode           types.Mode      `json:"mode"`
	Language       types.Language  `json:"language"`
	Thinking       bool            `json:"thinking"`
	ConversationID uuid.UUID       `json:"conversationId"`
	Title          string          `json:"title"`
	Topic          string          `json:"topic,omitempty"`
	Transcript     []types.Message `json:"transcript"`
	Suggestions    []string        `json:"suggestions"`
	Error          *UserError      `json:"error,omitempty"`
	CanRetry       bool            `json:"canRetry"`
	StartDisabled  bool            `json:"startDisabled"`
}

// Conversation builds the persistable form of the snapshot.
func (s Snapshot) Conversation(owner uuid.UUID) types.Conversation {
	return types.Conversation{
		ID:       s.ConversationID,
		OwnerID:  owner,
		Title:    s.Title,
		Topic:    s.Topic,
		Mode:     s.Mode,
		Language: s.Language,
		Messages: s.Transcript,
	}
}

type Change uint8

const (
	ChangedState Change = 1 << iota
	ChangedTranscript
	ChangedSuggestions
	ChangedError
	ChangedConversation
	ChangedSettings
)

func (c Change) Has(f Change) bool { return c&f != 0 }

// Update is delivered to listeners after every processed command or event
// that changed something. Listeners run on the controller goroutine and
// must not call back into the controller.
type Update struct {
	Changes  Change
	Snapshot Snapshot
}

type Listener func(Update)

package websocket

import (
	sessionctl "github.com/xpanvictor/civicguru/internal/domains/session"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

// StateBridge forwards controller updates to the client. It runs on the
// controller goroutine, so each send is bounded by the write deadline.
type StateBridge struct {
	session *Session
	logger  *Logger.Logger
}

func NewStateBridge(session *Session, logger *Logger.Logger) *StateBridge {
	return &StateBridge{session: session, logger: logger}
}

// Listen is a session.Listener.
func (b *StateBridge) Listen(u sessionctl.Update) {
	snap := u.Snapshot
	if u.Changes.Has(sessionctl.ChangedState | sessionctl.ChangedSettings | sessionctl.ChangedConversation | sessionctl.ChangedError) {
		b.send(MessageTypeState, StateMessage{
			State:          string(snap.State),
			Status:         snap.Status,
			Mode:           snap.Mode,
			Language:       snap.Language,
			Thinking:       snap.Thinking,
			ConversationID: snap.ConversationID,
			Title:          snap.Title,
			Topic:          snap.Topic,
			CanRetry:       snap.CanRetry,
			StartDisabled:  snap.StartDisabled,
		})
	}
	if u.Changes.Has(sessionctl.ChangedTranscript) {
		msgs := snap.Transcript
		if msgs == nil {
			msgs = []types.Message{}
		}
		b.send(MessageTypeTranscript, TranscriptMessage{ConversationID: snap.ConversationID, Messages: msgs})
	}
	if u.Changes.Has(sessionctl.ChangedSuggestions) {
		items := snap.Suggestions
		if items == nil {
			items = []string{}
		}
		b.send(MessageTypeSuggestions, SuggestionsMessage{Items: items})
	}
	if u.Changes.Has(sessionctl.ChangedError) && snap.Error != nil {
		b.send(MessageTypeError, ErrorMessage{Code: snap.Error.Code, Message: snap.Error.Message})
	}
}

func (b *StateBridge) send(t MessageType, data interface{}) {
	if !b.session.IsAlive() {
		return
	}
	if err := b.session.SendWebSocketMessage(t, data); err != nil {
		b.logger.Warnf("failed to send %s to session %s: %v", t, b.session.SessionID, err)
	}
}

package types

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Language string

const (
	ENGLISH Language = "en"
	HINDI   Language = "hi"
)

func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case ENGLISH:
		return ENGLISH, nil
	case HINDI:
		return HINDI, nil
	}
	return "", errors.New("unknown language: " + s)
}

type Mode string

const (
	LIVE  Mode = "live"
	QUICK Mode = "quick"
	DEEP  Mode = "deep"
)

// ParseMode accepts "standard" as the live mode alias.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live", "standard":
		return LIVE, nil
	case "quick":
		return QUICK, nil
	case "deep":
		return DEEP, nil
	}
	return "", errors.New("unknown mode: " + s)
}

// TurnBased reports whether the mode goes through recognizer + confirmation.
func (m Mode) TurnBased() bool { return m == QUICK || m == DEEP }

type Speaker string

const (
	USER      Speaker = "user"
	ASSISTANT Speaker = "assistant"
)

// Message is one utterance. Text may change while IsFinal is false.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Speaker   Speaker   `json:"speaker" enums:"user,assistant"`
	Text      string    `json:"text"`
	IsFinal   bool      `json:"is_final"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Topic     string    `json:"topic,omitempty"`
	Mode      Mode      `json:"mode"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

const (
	DefaultTitle  = "New Chat"
	titleMaxRunes = 40
)

// DeriveTitle is the first user message cut to 40 runes plus "...", or
// "New Chat" when nobody has spoken yet.
func DeriveTitle(msgs []Message) string {
	for _, m := range msgs {
		if m.Speaker != USER {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > titleMaxRunes {
			text = string([]rune(text)[:titleMaxRunes])
		}
		return text + "..."
	}
	return DefaultTitle
}

// PinnedMessage is a saved message; identity is the message timestamp.
type PinnedMessage struct {
	Message
	ConversationID uuid.UUID `json:"conversation_id"`
	PinnedAt       time.Time `json:"pinned_at"`
}

// VoicePreference is the stored form of playback settings.
type VoicePreference struct {
	Rate   float64 `json:"rate" example:"1.0"`
	Pitch  float64 `json:"pitch" example:"1.0"`
	Volume float64 `json:"volume" example:"0.8"`
}

// CreatePin request body
// @Description Pin a transcript message
type CreatePin struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
	Speaker        Speaker   `json:"speaker" binding:"required" enums:"user,assistant"`
	Text           string    `json:"text" binding:"required" example:"Always use the zebra crossing."`
	Timestamp      time.Time `json:"timestamp" binding:"required" example:"2025-01-26T09:00:00Z"`
}

func (cp *CreatePin) ToPinned(at time.Time) PinnedMessage {
	return PinnedMessage{
		Message: Message{
			ID:        uuid.New(),
			Speaker:   cp.Speaker,
			Text:      cp.Text,
			IsFinal:   true,
			Timestamp: cp.Timestamp,
		},
		ConversationID: cp.ConversationID,
		PinnedAt:       at,
	}
}

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository stores conversations per owner.
type ConversationRepository interface {
	Save(ctx context.Context, c Conversation) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Conversation, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]Conversation, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	Clear(ctx context.Context, ownerID uuid.UUID) error
}

// PreferenceRepository stores pins and voice settings per owner.
type PreferenceRepository interface {
	GetVoice(ctx context.Context, ownerID uuid.UUID) (*VoicePreference, error)
	SetVoice(ctx context.Context, ownerID uuid.UUID, v VoicePreference) error
	GetPins(ctx context.Context, ownerID uuid.UUID) ([]PinnedMessage, error)
	SetPins(ctx context.Context, ownerID uuid.UUID, pins []PinnedMessage) error
}

package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/io/device"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server.
const (
	MessageTypeInit          MessageType = "init"
	MessageTypeControl       MessageType = "control"
	MessageTypeMode          MessageType = "mode"
	MessageTypeLanguage      MessageType = "language"
	MessageTypeText          MessageType = "text"
	MessageTypeTopic         MessageType = "topic"
	MessageTypeLoad          MessageType = "load"
	MessageTypeTranscript    MessageType = "transcript"
	MessageTypeUtteranceEnd  MessageType = "utterance_end"
	MessageTypePlaybackEnded MessageType = "playback_ended"
)

// Server to client. transcript is shared with the client direction.
const (
	MessageTypeState       MessageType = "state"
	MessageTypeError       MessageType = "error"
	MessageTypeSuggestions MessageType = "suggestions"
	MessageTypeCapture     MessageType = "capture"
	MessageTypeRecognizer  MessageType = "recognizer"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeAudioStop   MessageType = "audio_stop"
)

// Control actions.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionConfirm = "confirm"
	ActionRetry   = "retry"
	ActionFinish  = "finish"
	ActionNewChat = "new_chat"
)

// WSMessage represents the structure of outgoing WebSocket messages
type WSMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Sequence  int         `json:"sequence,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// inboundMessage keeps Data raw until the type is known.
type inboundMessage struct {
	Type     MessageType     `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	Sequence int             `json:"sequence,omitempty"`
}

// InitMessage contains initialization data
type InitMessage struct {
	Capabilities device.Capabilities `json:"capabilities"`
	Language     string              `json:"language,omitempty"`
	Mode         string              `json:"mode,omitempty"`
}

type ControlMessage struct {
	Action string `json:"action"`
}

type ModeMessage struct {
	Mode string `json:"mode"`
}

type LanguageMessage struct {
	Language string `json:"language"`
}

// TextMessage contains text input payload
type TextMessage struct {
	Content string `json:"content"`
}

type TopicMessage struct {
	Topic string `json:"topic"`
}

type LoadMessage struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// TranscriptInput is a recognizer hypothesis from a client-side recognizer.
type TranscriptInput struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type UtteranceEndMessage struct {
	Text string `json:"text"`
}

type PlaybackEndedMessage struct {
	VoiceID uint64 `json:"voiceId"`
}

// StateMessage is the controller snapshot without the transcript.
type StateMessage struct {
	State          string         `json:"state"`
	Status         string         `json:"status"`
	Mode           types.Mode     `json:"mode"`
	Language       types.Language `json:"language"`
	Thinking       bool           `json:"thinking"`
	ConversationID uuid.UUID      `json:"conversationId"`
	Title          string         `json:"title"`
	Topic          string         `json:"topic,omitempty"`
	CanRetry       bool           `json:"canRetry"`
	StartDisabled  bool           `json:"startDisabled"`
}

type TranscriptMessage struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Messages       []types.Message `json:"messages"`
}

// ErrorMessage contains error information
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SuggestionsMessage struct {
	Items []string `json:"items"`
}

type CaptureMessage struct {
	Action     string `json:"action"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

type RecognizerMessage struct {
	Action   string `json:"action"`
	Language string `json:"language,omitempty"`
}

// AudioMessage carries one voice. StartIn is the delay from receipt,
// StartAt the server timeline position; Data is PCM16 LE mono, base64
// encoded by encoding/json.
type AudioMessage struct {
	VoiceID    uint64  `json:"voiceId"`
	StartAt    float64 `json:"startAt"`
	StartIn    float64 `json:"startIn"`
	SampleRate int     `json:"sampleRate"`
	// Rate is the playback rate with pitch already folded in.
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Data   []byte  `json:"data"`
}

type AudioStopMessage struct {
	VoiceID uint64 `json:"voiceId,omitempty"`
}

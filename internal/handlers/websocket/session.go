package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
	"github.com/xpanvictor/civicguru/pkg/io/device"
)

const writeWait = 10 * time.Second

// Session represents one WebSocket connection of a paired device
type Session struct {
	OwnerID      uuid.UUID
	SessionID    uuid.UUID
	DeviceName   string
	Conn         *websocket.Conn
	Capabilities device.Capabilities

	// State
	ConnectedAt time.Time
	lastActive  time.Time
	IsActive    bool
	sequence    int
	mutex       sync.RWMutex
}

// NewSession creates a new WebSocket session
func NewSession(ownerID uuid.UUID, deviceName string, conn *websocket.Conn) *Session {
	return &Session{
		OwnerID:     ownerID,
		SessionID:   uuid.New(),
		DeviceName:  deviceName,
		Conn:        conn,
		ConnectedAt: time.Now(),
		lastActive:  time.Now(),
		IsActive:    true,
	}
}

// SendWebSocketMessage sends a message to the WebSocket client
func (s *Session) SendWebSocketMessage(msgType MessageType, data interface{}) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.IsActive {
		return fmt.Errorf("session not active")
	}

	s.sequence++
	msg := WSMessage{
		Type:      msgType,
		Data:      data,
		SessionID: s.SessionID.String(),
		Sequence:  s.sequence,
		Timestamp: time.Now(),
	}

	s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.Conn.WriteJSON(msg)
}

// SendError sends an error message to the client
func (s *Session) SendError(code, message string) error {
	return s.SendWebSocketMessage(MessageTypeError, ErrorMessage{
		Code:    code,
		Message: message,
	})
}

func (s *Session) setCapabilities(caps device.Capabilities) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Capabilities = caps
}

// PlayVoice implements playback.Remote.
func (s *Session) PlayVoice(v *playback.Voice, startIn time.Duration) error {
	if !s.Caps().AudioSink {
		return nil
	}
	return s.SendWebSocketMessage(MessageTypeAudio, AudioMessage{
		VoiceID:    v.ID,
		StartAt:    v.StartAt,
		StartIn:    startIn.Seconds(),
		SampleRate: v.Buffer.SampleRate,
		Rate:       v.Settings.PlaybackRate(),
		Pitch:      v.Settings.Pitch,
		Volume:     v.Settings.Volume,
		Data:       codec.FloatToPCM16(v.Buffer.Mono()),
	})
}

// StopVoice implements playback.Remote.
func (s *Session) StopVoice(id uint64) error {
	if !s.Caps().AudioSink {
		return nil
	}
	return s.SendWebSocketMessage(MessageTypeAudioStop, AudioStopMessage{VoiceID: id})
}

// UpdateLastActive updates the last activity timestamp
func (s *Session) UpdateLastActive() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

// Close closes the session and the connection
func (s *Session) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.IsActive {
		return nil
	}
	s.IsActive = false
	return s.Conn.Close()
}

// IsExpired checks if the session has expired based on inactivity
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.lastActive) > timeout
}

// Implement device.Endpoint interface

func (s *Session) ID() device.EndpointID {
	return device.EndpointID(s.SessionID)
}

func (s *Session) Caps() device.Capabilities {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Capabilities
}

func (s *Session) Transport() device.Transport {
	return device.TransportWS
}

func (s *Session) Touch() {
	s.UpdateLastActive()
}

func (s *Session) IsAlive() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.IsActive
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

var (
	_ device.Endpoint = (*Session)(nil)
	_ playback.Remote = (*Session)(nil)
)

// Package device describes what a connected client can do for a session.
package device

import (
	"time"

	"github.com/google/uuid"
)

type Transport string

const (
	TransportWS       Transport = "ws"
	TransportTerminal Transport = "terminal"
)

// Capabilities are declared by the client in its init message.
type Capabilities struct {
	AudioSink   bool `json:"audioSink"`   // plays audio messages
	AudioSource bool `json:"audioSource"` // streams microphone frames
	Recognizer  bool `json:"recognizer"`  // runs its own speech recognizer
}

type EndpointID uuid.UUID

func (id EndpointID) String() string { return uuid.UUID(id).String() }

// Endpoint is one live client connection.
type Endpoint interface {
	ID() EndpointID
	Caps() Capabilities
	Transport() Transport
	Touch()
	IsAlive() bool
	Close() error
	LastActive() time.Time
}

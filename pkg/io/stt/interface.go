package stt

import (
	"context"
	"errors"

	"github.com/xpanvictor/civicguru/pkg/io/mic"
)

var ErrUnsupportedPlatform = errors.New("stt: speech recognition is not supported on this platform")

type EventKind int

const (
	// Interim is a hypothesis that replaces the previous one for the same utterance.
	Interim EventKind = iota
	// Final is the settled text of the utterance.
	Final
	// UtteranceEnded closes the utterance and carries the last known text.
	UtteranceEnded
)

func (k EventKind) String() string {
	switch k {
	case Interim:
		return "interim"
	case Final:
		return "final"
	case UtteranceEnded:
		return "utterance_ended"
	}
	return "unknown"
}

type Event struct {
	Kind EventKind
	Text string
}

// Recognition is one utterance being recognized. Events closes after the
// UtteranceEnded event, or without it when the recognition is cancelled.
type Recognition interface {
	Events() <-chan Event
	// Stop ends the utterance now with whatever has been heard. Idempotent.
	Stop()
	// Cancel abandons the utterance without further events and returns once
	// the recognition holds no resources. Idempotent.
	Cancel()
}

// Recognizer turns a frame stream into one utterance. frames may be nil for
// recognizers that listen on a remote device.
type Recognizer interface {
	Start(ctx context.Context, language string, frames <-chan mic.Frame) (Recognition, error)
}

// Locale maps a UI language code to the recognizer locale.
func Locale(language string) string {
	if language == "hi" {
		return "hi-IN"
	}
	return "en-US"
}

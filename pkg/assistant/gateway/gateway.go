// Package gateway is the boundary to the remote AI service: live audio
// sessions, one-shot text and one-shot speech synthesis.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/xpanvictor/civicguru/pkg/audio/codec"
)

var (
	ErrServiceUnavailable = errors.New("gateway: service unavailable")
	ErrGenerationFailed   = errors.New("gateway: text generation failed")
	ErrSynthesisFailed    = errors.New("gateway: speech synthesis failed")
	ErrNotConfigured      = errors.New("gateway: provider not configured")
)

// SessionError reports a live session failure, at open or mid-session.
// It matches ErrServiceUnavailable under errors.Is.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("live session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func (e *SessionError) Is(target error) bool { return target == ErrServiceUnavailable }

type LiveConfig struct {
	SystemPrompt string
	Language     string
	// Transcribe asks the service for input and output transcriptions.
	Transcribe bool
}

type LiveEventKind int

const (
	LiveAudio LiveEventKind = iota
	LiveInputTranscript
	LiveOutputTranscript
	LiveTurnComplete
	LiveInterrupted
	LiveError
)

type LiveEvent struct {
	Kind       LiveEventKind
	Audio      []byte // PCM16 LE mono
	SampleRate int
	Text       string
	Err        error
}

// LiveSession is a bidirectional audio session. Events closes when the
// session ends for any reason. Close is safe to call more than once; only
// the first call releases the connection.
type LiveSession interface {
	SendAudio(ctx context.Context, blob codec.Blob) error
	Events() <-chan LiveEvent
	Close() error
}

type TextRequest struct {
	Prompt           string
	SystemPrompt     string
	ExtendedThinking bool
	Language         string
}

type SpeechRequest struct {
	Text     string
	Language string
}

// Speech is synthesized PCM16 LE audio.
type Speech struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

type LiveProvider interface {
	OpenLiveSession(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

type TextProvider interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// SpeechProvider returns nil Speech without error when there is nothing to play.
type SpeechProvider interface {
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*Speech, error)
}

type Gateway interface {
	LiveProvider
	TextProvider
	SpeechProvider
}

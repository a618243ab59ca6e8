package whisper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
	"github.com/xpanvictor/civicguru/pkg/io/stt/vad"
)

// Transcriber is the subset of WhisperClient the recognizer needs.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, frames []audioring.AudioInput, language string) (*TranscriptionResponse, error)
}

type RecognizerConfig struct {
	BufferBytes     int           `mapstructure:"buffer_bytes"`
	InterimEvery    time.Duration `mapstructure:"interim_every"`
	EndSilence      time.Duration `mapstructure:"end_silence"`
	NoSpeechTimeout time.Duration `mapstructure:"no_speech_timeout"`
	MaxUtterance    time.Duration `mapstructure:"max_utterance"`
	PreRoll         time.Duration `mapstructure:"pre_roll"`
}

func DefaultRecognizerConfig() RecognizerConfig {
	return RecognizerConfig{
		BufferBytes:     2 << 20,
		InterimEvery:    1500 * time.Millisecond,
		EndSilence:      700 * time.Millisecond,
		NoSpeechTimeout: 8 * time.Second,
		MaxUtterance:    45 * time.Second,
		PreRoll:         500 * time.Millisecond,
	}
}

// Recognizer turns mic frames into one utterance using VAD for endpointing
// and the Whisper service for text.
type Recognizer struct {
	transcriber Transcriber
	vad         vad.VAD
	config      RecognizerConfig
	logger      *Logger.Logger
}

func NewRecognizer(t Transcriber, detector vad.VAD, config RecognizerConfig, logger *Logger.Logger) *Recognizer {
	return &Recognizer{transcriber: t, vad: detector, config: config, logger: logger}
}

var errNoAudioSource = errors.New("whisper: recognizer needs a frame source")

func (r *Recognizer) Start(ctx context.Context, language string, frames <-chan mic.Frame) (stt.Recognition, error) {
	if frames == nil {
		return nil, errNoAudioSource
	}
	ctx, cancel := context.WithCancel(ctx)
	rc := &recognition{
		Recognizer: r,
		language:   language,
		events:     make(chan stt.Event, 16),
		stop:       make(chan struct{}),
		cancel:     cancel,
		done:       make(chan struct{}),
		ring:       audioring.New(r.config.BufferBytes),
	}
	go func() {
		defer close(rc.done)
		rc.run(ctx, frames)
	}()
	return rc, nil
}

type recognition struct {
	*Recognizer
	language string
	events   chan stt.Event
	stop     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
	ring     audioring.AudioRingBuffer

	heard    bool
	lastText string
}

func (rc *recognition) Events() <-chan stt.Event { return rc.events }

func (rc *recognition) Stop() {
	rc.stopOnce.Do(func() { close(rc.stop) })
}

// Cancel aborts any transcription in flight and waits for the run loop to exit.
func (rc *recognition) Cancel() {
	rc.cancel()
	<-rc.done
}

func (rc *recognition) run(ctx context.Context, frames <-chan mic.Frame) {
	defer close(rc.events)

	ticker := time.NewTicker(rc.config.InterimEvery)
	defer ticker.Stop()

	var (
		started   time.Time
		lastVoice time.Time
		preRoll   []audioring.AudioInput
		dirty     bool
	)

	for {
		select {
		case <-ctx.Done():
			return

		case <-rc.stop:
			rc.finish(ctx)
			return

		case f, ok := <-frames:
			if !ok {
				rc.finish(ctx)
				return
			}
			if started.IsZero() {
				started = f.At
			}
			in := audioring.FromFrame(f)
			res, err := rc.vad.DetectVoice(ctx, in)
			if err != nil {
				rc.logger.Debugf("vad error: %v", err)
			}

			if !rc.heard {
				preRoll = append(preRoll, in)
				for len(preRoll) > 1 && blocksDuration(preRoll[1:]) >= rc.config.PreRoll {
					preRoll = preRoll[1:]
				}
				if res.HasVoice {
					rc.heard = true
					for _, p := range preRoll {
						rc.ring.Enqueue(p)
					}
					preRoll = nil
					lastVoice = f.At
					dirty = true
				} else if f.At.Sub(started) >= rc.config.NoSpeechTimeout {
					rc.emit(ctx, stt.Event{Kind: stt.UtteranceEnded})
					return
				}
				continue
			}

			if err := rc.ring.Enqueue(in); err != nil {
				rc.logger.Warnf("utterance buffer rejected frame: %v", err)
			}
			dirty = true
			if res.HasVoice {
				lastVoice = f.At
			}
			if f.At.Sub(lastVoice) >= rc.config.EndSilence || f.At.Sub(started) >= rc.config.MaxUtterance {
				rc.finish(ctx)
				return
			}

		case <-ticker.C:
			if !rc.heard || !dirty {
				continue
			}
			dirty = false
			if text := rc.transcribe(ctx, rc.ring.PeekAll()); text != "" && text != rc.lastText {
				rc.lastText = text
				rc.emit(ctx, stt.Event{Kind: stt.Interim, Text: text})
			}
		}
	}
}

func (rc *recognition) finish(ctx context.Context) {
	if !rc.heard {
		rc.emit(ctx, stt.Event{Kind: stt.UtteranceEnded})
		return
	}
	text := rc.transcribe(ctx, rc.ring.Drain())
	if text == "" {
		text = rc.lastText
	}
	if text != "" {
		rc.emit(ctx, stt.Event{Kind: stt.Final, Text: text})
	}
	rc.emit(ctx, stt.Event{Kind: stt.UtteranceEnded, Text: text})
}

func (rc *recognition) transcribe(ctx context.Context, frames []audioring.AudioInput) string {
	if len(frames) == 0 {
		return ""
	}
	resp, err := rc.transcriber.TranscribeAudio(ctx, frames, rc.language)
	if err != nil {
		rc.logger.Warnf("whisper transcription failed: %v", err)
		return ""
	}
	return resp.Text
}

func (rc *recognition) emit(ctx context.Context, ev stt.Event) {
	select {
	case rc.events <- ev:
	case <-ctx.Done():
	}
}

func blocksDuration(blocks []audioring.AudioInput) time.Duration {
	var d time.Duration
	for _, b := range blocks {
		d += b.Duration()
	}
	return d
}

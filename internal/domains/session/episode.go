package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

// episode owns every handle opened between a start and the matching
// teardown. Only the Run goroutine touches it; pump goroutines read the
// immutable gen and ctx.
type episode struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	capture     mic.Capture
	recognition stt.Recognition
	live        gateway.LiveSession
	voices      map[uint64]struct{}

	pending     uuid.UUID
	pendingText string
}

type event interface{ generation() uint64 }

type evLiveOpened struct {
	gen     uint64
	session gateway.LiveSession
	err     error
}

type evLive struct {
	gen uint64
	ev  gateway.LiveEvent
}

type evLiveClosed struct{ gen uint64 }

type evSendFailed struct {
	gen uint64
	err error
}

type evCaptureEnded struct{ gen uint64 }

type evRecognition struct {
	gen uint64
	ev  stt.Event
}

type evRecognitionClosed struct{ gen uint64 }

type evGenerated struct {
	gen  uint64
	text string
	err  error
}

type evSynthesized struct {
	gen    uint64
	speech *gateway.Speech
	err    error
}

// evVoiceEnded is matched by voice id, not generation.
type evVoiceEnded struct{ id uint64 }

func (e evLiveOpened) generation() uint64        { return e.gen }
func (e evLive) generation() uint64              { return e.gen }
func (e evLiveClosed) generation() uint64        { return e.gen }
func (e evSendFailed) generation() uint64        { return e.gen }
func (e evCaptureEnded) generation() uint64      { return e.gen }
func (e evRecognition) generation() uint64       { return e.gen }
func (e evRecognitionClosed) generation() uint64 { return e.gen }
func (e evGenerated) generation() uint64         { return e.gen }
func (e evSynthesized) generation() uint64       { return e.gen }
func (e evVoiceEnded) generation() uint64        { return 0 }

// begin tears down any previous episode and opens a fresh one.
func (c *Controller) begin() *episode {
	c.teardown()
	c.gen++
	ctx, cancel := context.WithCancel(c.base)
	c.ep = &episode{
		gen:    c.gen,
		ctx:    ctx,
		cancel: cancel,
		voices: make(map[uint64]struct{}),
	}
	return c.ep
}

// teardown releases every handle of the active episode. Idempotent.
func (c *Controller) teardown() {
	ep := c.ep
	if ep == nil {
		return
	}
	c.ep = nil
	c.gen++
	ep.cancel()
	if ep.recognition != nil {
		ep.recognition.Cancel()
		ep.recognition = nil
	}
	if ep.live != nil {
		if err := ep.live.Close(); err != nil {
			c.logger.Warnf("closing live session: %v", err)
		}
	}
	if ep.capture != nil {
		if err := ep.capture.Close(); err != nil {
			c.logger.Warnf("closing mic: %v", err)
		}
	}
	c.deps.Scheduler.StopAll()
	if c.thinking {
		c.thinking = false
		c.mark(ChangedState)
	}
}

func (c *Controller) current(gen uint64) bool {
	return c.ep != nil && c.ep.gen == gen
}

func (c *Controller) handle(e event) {
	if v, ok := e.(evVoiceEnded); ok {
		c.onVoiceEnded(v.id)
		return
	}
	if !c.current(e.generation()) {
		if opened, ok := e.(evLiveOpened); ok && opened.session != nil {
			c.logger.Debugf("closing live session from a finished episode")
			opened.session.Close()
		}
		return
	}

	switch ev := e.(type) {
	case evLiveOpened:
		c.onLiveOpened(ev)
	case evLive:
		c.onLive(ev.ev)
	case evLiveClosed:
		c.fail(&gateway.SessionError{Op: "receive", Err: errors.New("session ended by server")})
	case evSendFailed:
		c.fail(ev.err)
	case evCaptureEnded:
		c.fail(mic.ErrDeviceUnavailable)
	case evRecognition:
		c.onRecognition(ev.ev)
	case evRecognitionClosed:
		if c.state() == CAPTURING {
			c.endUtterance("")
		}
	case evGenerated:
		c.onGenerated(ev)
	case evSynthesized:
		c.onSynthesized(ev)
	}
}

func (c *Controller) onLiveOpened(ev evLiveOpened) {
	if ev.err != nil {
		if ev.session != nil {
			ev.session.Close()
		}
		c.fail(ev.err)
		return
	}
	ep := c.ep
	ep.live = ev.session
	c.fire(OPENED)
	c.logger.Infof("live session open for conversation %s", c.convID)
	go c.streamMic(ep, ep.capture, ev.session)
	go c.pumpLive(ep, ev.session)
}

func (c *Controller) streamMic(ep *episode, capture mic.Capture, s gateway.LiveSession) {
	for frame := range capture.Frames() {
		blob, err := codec.EncodeForTransport(frame.Samples, frame.SampleRate)
		if err != nil {
			c.logger.Debugf("dropping mic frame: %v", err)
			continue
		}
		if err := s.SendAudio(ep.ctx, blob); err != nil {
			if ep.ctx.Err() == nil {
				c.post(evSendFailed{gen: ep.gen, err: err})
			}
			return
		}
	}
	if ep.ctx.Err() == nil {
		c.post(evCaptureEnded{gen: ep.gen})
	}
}

func (c *Controller) pumpLive(ep *episode, s gateway.LiveSession) {
	for ev := range s.Events() {
		c.post(evLive{gen: ep.gen, ev: ev})
	}
	if ep.ctx.Err() == nil {
		c.post(evLiveClosed{gen: ep.gen})
	}
}

func (c *Controller) pumpRecognition(ep *episode, rec stt.Recognition) {
	for ev := range rec.Events() {
		c.post(evRecognition{gen: ep.gen, ev: ev})
	}
	c.post(evRecognitionClosed{gen: ep.gen})
}

func (c *Controller) onLive(ev gateway.LiveEvent) {
	ep := c.ep
	switch ev.Kind {
	case gateway.LiveAudio:
		rate := ev.SampleRate
		if rate <= 0 {
			rate = codec.OutputRate
		}
		buf, err := codec.DecodeFromTransport(ev.Audio, rate, 1)
		if err != nil {
			c.logger.Warnf("dropping live audio chunk: %v", err)
			return
		}
		if buf.Frames() == 0 {
			return
		}
		if c.transcript.FinalizeInterim(types.USER) {
			c.mark(ChangedTranscript)
		}
		v, err := c.deps.Scheduler.Enqueue(buf, c.deps.Voice(), playback.Gapless)
		if err != nil {
			c.logger.Warnf("enqueue live audio: %v", err)
			return
		}
		ep.voices[v.ID] = struct{}{}
		if c.state() == CAPTURING {
			c.fire(SPEAK)
		}

	case gateway.LiveInputTranscript:
		c.transcript.AppendInterim(types.USER, ev.Text)
		c.mark(ChangedTranscript)

	case gateway.LiveOutputTranscript:
		c.transcript.FinalizeInterim(types.USER)
		c.transcript.AppendInterim(types.ASSISTANT, ev.Text)
		c.mark(ChangedTranscript)

	case gateway.LiveTurnComplete:
		c.transcript.FinalizeInterim(types.USER)
		c.transcript.FinalizeInterim(types.ASSISTANT)
		c.mark(ChangedTranscript)
		if len(ep.voices) == 0 && c.state() == SPEAKING {
			c.fire(RESUME)
		}

	case gateway.LiveInterrupted:
		c.logger.Debugf("barge-in, stopping %d voices", len(ep.voices))
		c.deps.Scheduler.StopAll()
		ep.voices = make(map[uint64]struct{})
		c.transcript.FinalizeInterim(types.ASSISTANT)
		c.mark(ChangedTranscript)
		if c.state() == SPEAKING {
			c.fire(RESUME)
		}

	case gateway.LiveError:
		err := ev.Err
		if err == nil {
			err = &gateway.SessionError{Op: "receive", Err: errors.New("unknown error")}
		}
		c.fail(err)
	}
}

func (c *Controller) onVoiceEnded(id uint64) {
	ep := c.ep
	if ep == nil {
		return
	}
	if _, ok := ep.voices[id]; !ok {
		return
	}
	delete(ep.voices, id)
	if len(ep.voices) > 0 || c.state() != SPEAKING {
		return
	}
	if ep.live != nil {
		c.fire(RESUME)
		return
	}
	c.finishTurn()
}

func (c *Controller) onRecognition(ev stt.Event) {
	if c.state() != CAPTURING {
		return
	}
	switch ev.Kind {
	case stt.Interim, stt.Final:
		if strings.TrimSpace(ev.Text) == "" {
			return
		}
		c.transcript.SetInterim(types.USER, ev.Text)
		c.mark(ChangedTranscript)
	case stt.UtteranceEnded:
		c.endUtterance(ev.Text)
	}
}

func (c *Controller) endUtterance(text string) {
	text = strings.TrimSpace(text)
	ep := c.ep
	if text == "" {
		c.transcript.DiscardInterim(types.USER)
		c.mark(ChangedTranscript)
		c.teardown()
		c.fire(STOP)
		return
	}

	msg := c.transcript.Append(types.USER, text)
	c.mark(ChangedTranscript)
	ep.pending = msg.ID
	ep.pendingText = text
	ep.recognition = nil
	if ep.capture != nil {
		if err := ep.capture.Close(); err != nil {
			c.logger.Warnf("closing mic: %v", err)
		}
		ep.capture = nil
	}
	c.fire(UTTERANCE_ENDED)
}

func (c *Controller) onGenerated(ev evGenerated) {
	if c.state() != PROCESSING {
		return
	}
	c.thinking = false
	c.mark(ChangedState)
	if ev.err != nil {
		c.canRetry = true
		c.fail(ev.err)
		return
	}

	c.transcript.Append(types.ASSISTANT, ev.text)
	c.mark(ChangedTranscript)
	c.fire(REPLY)

	ep := c.ep
	req := gateway.SpeechRequest{Text: ev.text, Language: string(c.lang)}
	go func() {
		speech, err := c.deps.Gateway.SynthesizeSpeech(ep.ctx, req)
		c.post(evSynthesized{gen: ep.gen, speech: speech, err: err})
	}()
}

func (c *Controller) onSynthesized(ev evSynthesized) {
	if c.state() != SPEAKING {
		return
	}
	if ev.err != nil {
		c.logger.Warnf("speech synthesis failed, reply stays text only: %v", ev.err)
		c.finishTurn()
		return
	}
	if ev.speech == nil || len(ev.speech.PCM) == 0 {
		c.finishTurn()
		return
	}
	channels := ev.speech.Channels
	if channels <= 0 {
		channels = 1
	}
	buf, err := codec.DecodeFromTransport(ev.speech.PCM, ev.speech.SampleRate, channels)
	if err != nil || buf.Frames() == 0 {
		c.logger.Warnf("synthesized audio unusable: %v", err)
		c.finishTurn()
		return
	}
	v, err := c.deps.Scheduler.Enqueue(buf, c.deps.Voice(), playback.ASAP)
	if err != nil {
		c.logger.Warnf("enqueue reply audio: %v", err)
		c.finishTurn()
		return
	}
	c.ep.voices[v.ID] = struct{}{}
}

package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

// remoteMic is a mic.Device whose samples arrive as binary frames from the
// client. Opening it asks the client to start streaming.
type remoteMic struct {
	session *Session
	rate    int
	block   int
	logger  *Logger.Logger

	mu     sync.Mutex
	active *remoteCapture
}

func newRemoteMic(session *Session, rate, block int, logger *Logger.Logger) *remoteMic {
	if block <= 0 {
		block = mic.DefaultBlockSize
	}
	return &remoteMic{session: session, rate: rate, block: block, logger: logger}
}

func (m *remoteMic) Open(ctx context.Context) (mic.Capture, error) {
	if !m.session.IsAlive() {
		return nil, mic.ErrDeviceUnavailable
	}
	c := &remoteCapture{mic: m, frames: make(chan mic.Frame, 32)}

	m.mu.Lock()
	prev := m.active
	m.active = c
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	if err := m.session.SendWebSocketMessage(MessageTypeCapture, CaptureMessage{Action: ActionStart, SampleRate: m.rate}); err != nil {
		c.Close()
		return nil, mic.ErrDeviceUnavailable
	}
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return c, nil
}

// Push decodes one binary frame into the open capture, if any.
func (m *remoteMic) Push(pcm []byte) {
	m.mu.Lock()
	c := m.active
	m.mu.Unlock()
	if c == nil {
		return
	}
	buf, err := codec.DecodeFromTransport(pcm, m.rate, 1)
	if err != nil {
		m.logger.Debugf("dropping audio frame: %v", err)
		return
	}
	c.push(buf.Mono(), m.rate, m.block)
}

func (m *remoteMic) detach(c *remoteCapture) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != c {
		return false
	}
	m.active = nil
	return true
}

type remoteCapture struct {
	mic    *remoteMic
	frames chan mic.Frame

	mu      sync.Mutex
	pending []float32
	closed  bool
}

func (c *remoteCapture) push(samples []float32, rate, block int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = append(c.pending, samples...)
	for len(c.pending) >= block {
		out := make([]float32, block)
		copy(out, c.pending[:block])
		c.pending = c.pending[block:]

		select {
		case c.frames <- mic.Frame{Samples: out, SampleRate: rate, At: time.Now()}:
		default:
			c.mic.logger.Debugf("capture consumer behind, dropping %d samples", block)
		}
	}
}

func (c *remoteCapture) Frames() <-chan mic.Frame { return c.frames }

func (c *remoteCapture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.frames)
	c.mu.Unlock()

	if c.mic.detach(c) && c.mic.session.IsAlive() {
		c.mic.session.SendWebSocketMessage(MessageTypeCapture, CaptureMessage{Action: ActionStop})
	}
	return nil
}

// clientRecognizer is an stt.Recognizer that runs on the client. The server
// asks it to start and stop; hypotheses come back as transcript and
// utterance_end messages.
type clientRecognizer struct {
	session *Session
	logger  *Logger.Logger

	mu     sync.Mutex
	active *clientRecognition
}

func newClientRecognizer(session *Session, logger *Logger.Logger) *clientRecognizer {
	return &clientRecognizer{session: session, logger: logger}
}

func (r *clientRecognizer) Start(ctx context.Context, language string, _ <-chan mic.Frame) (stt.Recognition, error) {
	rc := &clientRecognition{recognizer: r, events: make(chan stt.Event, 64)}

	r.mu.Lock()
	prev := r.active
	r.active = rc
	r.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	if err := r.session.SendWebSocketMessage(MessageTypeRecognizer, RecognizerMessage{
		Action:   ActionStart,
		Language: stt.Locale(language),
	}); err != nil {
		rc.Cancel()
		return nil, stt.ErrUnsupportedPlatform
	}
	go func() {
		<-ctx.Done()
		rc.Cancel()
	}()
	return rc, nil
}

// Hypothesis forwards a client transcript to the running recognition.
func (r *clientRecognizer) Hypothesis(text string, final bool) {
	if rc := r.current(); rc != nil {
		kind := stt.Interim
		if final {
			kind = stt.Final
		}
		rc.emit(stt.Event{Kind: kind, Text: text})
	}
}

// UtteranceEnded closes the running recognition with text, or with the last
// hypothesis when text is empty.
func (r *clientRecognizer) UtteranceEnded(text string) {
	if rc := r.current(); rc != nil {
		rc.end(text, false)
	}
}

func (r *clientRecognizer) current() *clientRecognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *clientRecognizer) detach(rc *clientRecognition) {
	r.mu.Lock()
	if r.active == rc {
		r.active = nil
	}
	r.mu.Unlock()
}

type clientRecognition struct {
	recognizer *clientRecognizer
	events     chan stt.Event

	mu     sync.Mutex
	last   string
	closed bool
}

func (rc *clientRecognition) Events() <-chan stt.Event { return rc.events }

// Stop ends the utterance with the last hypothesis and tells the client to
// stop listening.
func (rc *clientRecognition) Stop() { rc.end("", true) }

func (rc *clientRecognition) emit(ev stt.Event) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.last = ev.Text
	select {
	case rc.events <- ev:
	default:
		rc.recognizer.logger.Debugf("recognition consumer behind, dropping %s", ev.Kind)
	}
}

func (rc *clientRecognition) end(text string, notify bool) {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return
	}
	if text == "" {
		text = rc.last
	}
	rc.closed = true
	// the buffer is drained by the controller; ending must not block
	select {
	case rc.events <- stt.Event{Kind: stt.UtteranceEnded, Text: text}:
	default:
	}
	close(rc.events)
	rc.mu.Unlock()

	rc.recognizer.detach(rc)
	if notify {
		rc.recognizer.session.SendWebSocketMessage(MessageTypeRecognizer, RecognizerMessage{Action: ActionStop})
	}
}

// Cancel drops the recognition without an UtteranceEnded event and tells the
// client to stop listening.
func (rc *clientRecognition) Cancel() {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return
	}
	rc.closed = true
	close(rc.events)
	rc.mu.Unlock()

	rc.recognizer.detach(rc)
	if rc.recognizer.session.IsAlive() {
		rc.recognizer.session.SendWebSocketMessage(MessageTypeRecognizer, RecognizerMessage{Action: ActionStop})
	}
}

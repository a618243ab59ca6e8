package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

// mic

type fakeCapture struct {
	frames chan mic.Frame
	once   sync.Once
	dev    *fakeMic
}

func (f *fakeCapture) Frames() <-chan mic.Frame { return f.frames }

func (f *fakeCapture) Close() error {
	f.once.Do(func() {
		f.dev.open.Add(-1)
		close(f.frames)
	})
	return nil
}

type fakeMic struct {
	err    error
	open   atomic.Int32
	opened atomic.Int32
	mu     sync.Mutex
	last   *fakeCapture
}

func (m *fakeMic) Open(context.Context) (mic.Capture, error) {
	if m.err != nil {
		return nil, m.err
	}
	c := &fakeCapture{frames: make(chan mic.Frame, 8), dev: m}
	m.open.Add(1)
	m.opened.Add(1)
	m.mu.Lock()
	m.last = c
	m.mu.Unlock()
	return c, nil
}

func (m *fakeMic) capture() *fakeCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// recognizer

type fakeRecognition struct {
	events chan stt.Event
	mu     sync.Mutex
	last   string
	closed bool
	r      *fakeRecognizer
}

func (f *fakeRecognition) Events() <-chan stt.Event { return f.events }

func (f *fakeRecognition) emit(ev stt.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if ev.Kind != stt.UtteranceEnded {
		f.last = ev.Text
	}
	f.events <- ev
	if ev.Kind == stt.UtteranceEnded {
		f.closeLocked()
	}
}

func (f *fakeRecognition) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- stt.Event{Kind: stt.UtteranceEnded, Text: f.last}
	f.closeLocked()
}

func (f *fakeRecognition) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closeLocked()
	}
}

func (f *fakeRecognition) closeLocked() {
	f.closed = true
	close(f.events)
	f.r.active.Add(-1)
}

type fakeRecognizer struct {
	active    atomic.Int32
	mu        sync.Mutex
	last      *fakeRecognition
	languages []string
}

func (r *fakeRecognizer) Start(ctx context.Context, language string, _ <-chan mic.Frame) (stt.Recognition, error) {
	rec := &fakeRecognition{events: make(chan stt.Event, 16), r: r}
	r.active.Add(1)
	r.mu.Lock()
	r.last = rec
	r.languages = append(r.languages, language)
	r.mu.Unlock()
	go func() {
		<-ctx.Done()
		rec.mu.Lock()
		if !rec.closed {
			rec.closeLocked()
		}
		rec.mu.Unlock()
	}()
	return rec, nil
}

func (r *fakeRecognizer) recognition() *fakeRecognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// gateway

type fakeLive struct {
	events chan gateway.LiveEvent
	sent   atomic.Int32
	once   sync.Once
	closed atomic.Bool
	gw     *fakeGateway
}

func (l *fakeLive) SendAudio(_ context.Context, blob codec.Blob) error {
	if l.closed.Load() {
		return errors.New("closed")
	}
	if blob.MIMEType != codec.TransportMIME {
		return errors.New("unexpected mime " + blob.MIMEType)
	}
	l.sent.Add(1)
	return nil
}

func (l *fakeLive) Events() <-chan gateway.LiveEvent { return l.events }

func (l *fakeLive) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		l.gw.openSessions.Add(-1)
		close(l.events)
	})
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	reply     string
	genErr    error
	speech    *gateway.Speech
	speechErr error
	requests  []gateway.TextRequest
	liveCfgs  []gateway.LiveConfig
	live      *fakeLive

	// genGate blocks GenerateText until closed; ignoreCtx keeps it blocked
	// after cancellation, like a transport that cannot abort.
	genGate   chan struct{}
	ignoreCtx bool
	liveGate  chan struct{}
	liveErr   error

	inflight     atomic.Int32
	openSessions atomic.Int32
}

func (g *fakeGateway) OpenLiveSession(ctx context.Context, cfg gateway.LiveConfig) (gateway.LiveSession, error) {
	g.mu.Lock()
	g.liveCfgs = append(g.liveCfgs, cfg)
	gate, err := g.liveGate, g.liveErr
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	l := &fakeLive{events: make(chan gateway.LiveEvent, 64), gw: g}
	g.openSessions.Add(1)
	g.mu.Lock()
	g.live = l
	g.mu.Unlock()
	return l, nil
}

func (g *fakeGateway) session() *fakeLive {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live
}

func (g *fakeGateway) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	g.inflight.Add(1)
	defer g.inflight.Add(-1)
	g.mu.Lock()
	g.requests = append(g.requests, req)
	gate := g.genGate
	g.mu.Unlock()
	if gate != nil {
		if g.ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reply, g.genErr
}

func (g *fakeGateway) SynthesizeSpeech(context.Context, gateway.SpeechRequest) (*gateway.Speech, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speech, g.speechErr
}

func (g *fakeGateway) textRequests() []gateway.TextRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.TextRequest(nil), g.requests...)
}

// sink

type manualSink struct {
	mu     sync.Mutex
	now    float64
	voices map[uint64]*playback.Voice
	ended  map[uint64]func()
	order  []*playback.Voice
}

func newManualSink() *manualSink {
	return &manualSink{voices: map[uint64]*playback.Voice{}, ended: map[uint64]func(){}}
}

func (s *manualSink) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualSink) Start(v *playback.Voice, onEnded func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices[v.ID] = v
	s.ended[v.ID] = onEnded
	s.order = append(s.order, v)
}

func (s *manualSink) Stop(v *playback.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.voices, v.ID)
	delete(s.ended, v.ID)
}

func (s *manualSink) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

func (s *manualSink) started() []*playback.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*playback.Voice(nil), s.order...)
}

// endAll plays every active voice out.
func (s *manualSink) endAll() {
	s.mu.Lock()
	var fns []func()
	for id, fn := range s.ended {
		fns = append(fns, fn)
		delete(s.ended, id)
		delete(s.voices, id)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// harness

type harness struct {
	c    *Controller
	mic  *fakeMic
	rec  *fakeRecognizer
	gw   *fakeGateway
	sink *manualSink
}

func newHarness(t *testing.T, opts Options, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		mic:  &fakeMic{},
		rec:  &fakeRecognizer{},
		gw:   &fakeGateway{reply: "Always use the zebra crossing.", speech: pcmSpeech(2400)},
		sink: newManualSink(),
	}
	deps := Deps{
		Gateway:    h.gw,
		Mic:        h.mic,
		Recognizer: h.rec,
		Scheduler:  playback.NewScheduler(h.sink),
		Logger:     Logger.NewNop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	c, err := New(deps, opts)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	h.c = c

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return h
}

func pcmSpeech(samples int) *gateway.Speech {
	return &gateway.Speech{PCM: make([]byte, samples*2), SampleRate: 24000, Channels: 1}
}

func waitFor(t *testing.T, c *Controller, desc string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Snapshot()
		if pred(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot state=%s transcript=%+v error=%+v", desc, s.State, s.Transcript, s.Error)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func inState(st State) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.State == st }
}

func quickEN() Options { return Options{Mode: types.QUICK, Language: types.ENGLISH} }

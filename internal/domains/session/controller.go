// Package session drives one conversation: microphone, recognizer, AI
// gateway and playback, through a single state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/xpanvictor/civicguru/internal/constants/prompts"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

var ErrUnknownTopic = errors.New("session: unknown topic")

type Deps struct {
	Gateway gateway.Gateway
	// Mic may be nil when the recognizer listens on its own device.
	// Live mode requires it.
	Mic mic.Device
	// Recognizer may be nil; turn-based capture then reports
	// stt.ErrUnsupportedPlatform.
	Recognizer stt.Recognizer
	// RecognizerListens marks a recognizer that captures on its own device.
	// Turn-based capture then opens no mic.
	RecognizerListens bool
	Scheduler         *playback.Scheduler
	// Voice is read every time a voice is enqueued.
	Voice  func() playback.VoiceSettings
	Logger *Logger.Logger
	Now    func() time.Time
}

type Options struct {
	Mode          types.Mode
	Language      types.Language
	ConfigMissing bool
}

func DefaultOptions() Options {
	return Options{Mode: types.LIVE, Language: types.HINDI}
}

type command struct {
	fn    func() error
	reply chan error
}

// Controller is an actor: Run owns all state and processes intents and
// async results one at a time. Intent methods block until processed.
type Controller struct {
	deps   Deps
	logger *Logger.Logger
	cmds   chan command
	events chan event
	done   chan struct{}

	// owned by Run
	base          context.Context
	machine       *fsm.FSM
	mode          types.Mode
	lang          types.Language
	configMissing bool
	transcript    *Transcript
	convID        uuid.UUID
	topic         string
	titleOverride string
	suggestions   []string
	err           *UserError
	lastUserText  string
	canRetry      bool
	thinking      bool
	gen           uint64
	ep            *episode
	dirty         Change

	snapMu sync.RWMutex
	snap   Snapshot

	listenersMu sync.Mutex
	listeners   []Listener
}

func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Gateway == nil || deps.Scheduler == nil {
		return nil, fmt.Errorf("session: gateway and scheduler are required")
	}
	if deps.Logger == nil {
		deps.Logger = Logger.NewNop()
	}
	if deps.Voice == nil {
		deps.Voice = playback.DefaultVoiceSettings
	}
	def := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = def.Mode
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}

	c := &Controller{
		deps:          deps,
		logger:        deps.Logger.Named("session"),
		cmds:          make(chan command),
		events:        make(chan event, 256),
		done:          make(chan struct{}),
		base:          context.Background(),
		mode:          opts.Mode,
		lang:          opts.Language,
		configMissing: opts.ConfigMissing,
		transcript:    NewTranscript(deps.Now),
		convID:        uuid.New(),
		dirty:         ChangedState | ChangedTranscript | ChangedConversation | ChangedSettings,
	}
	c.machine = newMachine(c.onEnter)
	if c.configMissing {
		c.setError(ErrConfigMissing)
	}
	deps.Scheduler.OnVoiceEnded(func(v *playback.Voice) {
		c.post(evVoiceEnded{id: v.ID})
	})
	c.publish()
	return c, nil
}

// AddListener registers l for every subsequent update.
func (c *Controller) AddListener(l Listener) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenersMu.Unlock()
}

func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Done closes once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run processes intents and events until ctx is cancelled, then tears the
// active episode down. It must be called exactly once.
func (c *Controller) Run(ctx context.Context) {
	c.base = ctx
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.halt()
			c.publish()
			return
		case cmd := <-c.cmds:
			cmd.reply <- cmd.fn()
			c.publish()
		case ev := <-c.events:
			c.handle(ev)
			c.publish()
		}
	}
}

func (c *Controller) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Start opens a live session or begins a recognizer turn, depending on mode.
func (c *Controller) Start(ctx context.Context) error { return c.do(ctx, c.start) }

// Stop tears everything down and returns to idle. Always accepted.
func (c *Controller) Stop(ctx context.Context) error {
	return c.do(ctx, func() error { c.halt(); return nil })
}

// FinishUtterance ends a recognizer turn now with whatever was heard.
func (c *Controller) FinishUtterance(ctx context.Context) error {
	return c.do(ctx, c.finishUtterance)
}

// Confirm sends the captured utterance.
func (c *Controller) Confirm(ctx context.Context) error { return c.do(ctx, c.confirm) }

// Retry re-sends the last user message after a failed reply.
func (c *Controller) Retry(ctx context.Context) error { return c.do(ctx, c.retry) }

// SendText sends typed text, e.g. a follow-up suggestion.
func (c *Controller) SendText(ctx context.Context, text string) error {
	return c.do(ctx, func() error { return c.sendText(text) })
}

func (c *Controller) SelectMode(ctx context.Context, m types.Mode) error {
	return c.do(ctx, func() error {
		if m == c.mode {
			return nil
		}
		c.halt()
		c.mode = m
		c.resetConversation()
		c.mark(ChangedSettings)
		c.logger.Infof("mode switched to %s", m)
		return nil
	})
}

func (c *Controller) SelectLanguage(ctx context.Context, l types.Language) error {
	return c.do(ctx, func() error {
		if l == c.lang {
			return nil
		}
		c.halt()
		c.lang = l
		c.resetConversation()
		c.mark(ChangedSettings)
		c.logger.Infof("language switched to %s", l)
		return nil
	})
}

func (c *Controller) NewConversation(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.halt()
		c.resetConversation()
		return nil
	})
}

// LoadConversation replaces the transcript with a stored conversation.
func (c *Controller) LoadConversation(ctx context.Context, conv types.Conversation) error {
	return c.do(ctx, func() error {
		c.halt()
		c.resetConversation()
		c.transcript.Reset(conv.Messages)
		c.convID = conv.ID
		c.topic = conv.Topic
		if conv.Topic != "" {
			c.titleOverride = conv.Title
		}
		c.lastUserText = c.transcript.LastUserText()
		return nil
	})
}

// StartTopic opens a new conversation about topic and asks about it.
func (c *Controller) StartTopic(ctx context.Context, topic prompts.Topic) error {
	return c.do(ctx, func() error {
		label, ok := prompts.TopicLabel(c.lang, topic)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
		}
		prompt, _ := prompts.TopicPrompt(c.lang, topic)
		c.halt()
		c.resetConversation()
		c.topic = string(topic)
		c.titleOverride = label
		return c.sendText(prompt)
	})
}

func (c *Controller) start() error {
	if c.configMissing {
		c.setError(ErrConfigMissing)
		return ErrConfigMissing
	}
	if c.state() != IDLE {
		return ErrInvalidState
	}
	c.clearError()
	c.setSuggestions(nil)
	if c.mode == types.LIVE {
		return c.startLive()
	}
	return c.startTurn()
}

func (c *Controller) startLive() error {
	if c.deps.Mic == nil {
		c.fail(mic.ErrDeviceUnavailable)
		return mic.ErrDeviceUnavailable
	}
	ep := c.begin()
	capture, err := c.deps.Mic.Open(ep.ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	ep.capture = capture
	c.fire(CONNECT)

	cfg := gateway.LiveConfig{
		SystemPrompt: prompts.SystemInstruction(c.lang, c.mode),
		Language:     string(c.lang),
		Transcribe:   true,
	}
	go func() {
		s, err := c.deps.Gateway.OpenLiveSession(ep.ctx, cfg)
		c.post(evLiveOpened{gen: ep.gen, session: s, err: err})
	}()
	return nil
}

func (c *Controller) startTurn() error {
	if c.deps.Recognizer == nil {
		c.setError(stt.ErrUnsupportedPlatform)
		return stt.ErrUnsupportedPlatform
	}
	ep := c.begin()
	var frames <-chan mic.Frame
	if c.deps.Mic != nil && !c.deps.RecognizerListens {
		capture, err := c.deps.Mic.Open(ep.ctx)
		if err != nil {
			c.fail(err)
			return err
		}
		ep.capture = capture
		frames = capture.Frames()
	}
	rec, err := c.deps.Recognizer.Start(ep.ctx, string(c.lang), frames)
	if err != nil {
		c.fail(err)
		return err
	}
	ep.recognition = rec
	c.fire(LISTEN)
	go c.pumpRecognition(ep, rec)
	return nil
}

func (c *Controller) finishUtterance() error {
	if c.state() != CAPTURING || c.ep == nil || c.ep.recognition == nil {
		return ErrInvalidState
	}
	c.ep.recognition.Stop()
	return nil
}

func (c *Controller) confirm() error {
	if c.state() != AWAITING_CONFIRMATION || c.ep == nil {
		return ErrInvalidState
	}
	ep := c.ep
	c.lastUserText = ep.pendingText
	c.canRetry = false
	ep.pending = uuid.Nil
	c.fire(CONFIRM)
	c.generate(ep, c.lastUserText)
	return nil
}

func (c *Controller) retry() error {
	if c.configMissing {
		return ErrConfigMissing
	}
	if c.state() != IDLE || !c.canRetry || c.lastUserText == "" {
		return ErrInvalidState
	}
	if c.transcript.TrimAfterLastUser() > 0 {
		c.mark(ChangedTranscript)
	}
	c.clearError()
	c.canRetry = false
	ep := c.begin()
	c.fire(SEND)
	c.generate(ep, c.lastUserText)
	return nil
}

func (c *Controller) sendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNothingToSend
	}
	if c.configMissing {
		c.setError(ErrConfigMissing)
		return ErrConfigMissing
	}
	if c.state() != IDLE {
		return ErrInvalidState
	}
	c.clearError()
	c.setSuggestions(nil)
	c.transcript.Append(types.USER, text)
	c.mark(ChangedTranscript)
	c.lastUserText = text
	c.canRetry = false

	ep := c.begin()
	c.fire(SEND)
	c.generate(ep, text)
	return nil
}

func (c *Controller) generate(ep *episode, text string) {
	c.thinking = c.mode == types.DEEP
	c.mark(ChangedState)
	req := gateway.TextRequest{
		Prompt:           text,
		SystemPrompt:     prompts.SystemInstruction(c.lang, c.mode),
		ExtendedThinking: c.mode == types.DEEP,
		Language:         string(c.lang),
	}
	go func() {
		reply, err := c.deps.Gateway.GenerateText(ep.ctx, req)
		c.post(evGenerated{gen: ep.gen, text: reply, err: err})
	}()
}

// halt is the stop intent: keep what was said, drop what was pending.
func (c *Controller) halt() {
	st := c.state()
	if c.ep != nil {
		switch {
		case st == AWAITING_CONFIRMATION && c.ep.pending != uuid.Nil:
			c.transcript.Remove(c.ep.pending)
			c.mark(ChangedTranscript)
		case st == CAPTURING && c.ep.recognition != nil:
			c.transcript.DiscardInterim(types.USER)
			c.mark(ChangedTranscript)
		case c.ep.live != nil:
			c.transcript.FinalizeInterim(types.USER)
			c.transcript.FinalizeInterim(types.ASSISTANT)
			c.mark(ChangedTranscript)
		}
	}
	c.teardown()
	if st != IDLE {
		c.fire(STOP)
	}
}

func (c *Controller) fail(err error) {
	c.logger.Errorf("episode failed in %s: %v", c.state(), err)
	c.setError(err)
	c.teardown()
	if c.state() != IDLE {
		c.fire(STOP)
	}
}

func (c *Controller) finishTurn() {
	c.teardown()
	c.fire(FINISH)
	c.setSuggestions(prompts.Suggestions(c.lang))
}

func (c *Controller) resetConversation() {
	c.transcript.Reset(nil)
	c.convID = uuid.New()
	c.topic = ""
	c.titleOverride = ""
	c.lastUserText = ""
	c.canRetry = false
	c.suggestions = nil
	if !c.configMissing {
		c.err = nil
	}
	c.mark(ChangedTranscript | ChangedConversation | ChangedSuggestions | ChangedError)
}

func (c *Controller) state() State { return State(c.machine.Current()) }

func (c *Controller) fire(e Event) {
	err := c.machine.Event(context.Background(), string(e))
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		c.logger.Warnf("transition %s from %s rejected: %v", e, c.state(), err)
	}
}

func (c *Controller) onEnter(from, to State) {
	c.mark(ChangedState)
	c.logger.Debugf("state %s -> %s", from, to)
}

func (c *Controller) mark(ch Change) { c.dirty |= ch }

func (c *Controller) setError(err error) {
	c.err = userError(c.lang, err)
	c.mark(ChangedError)
}

func (c *Controller) clearError() {
	if c.configMissing || c.err == nil {
		return
	}
	c.err = nil
	c.mark(ChangedError)
}

func (c *Controller) setSuggestions(s []string) {
	if len(s) == 0 && len(c.suggestions) == 0 {
		return
	}
	c.suggestions = s
	c.mark(ChangedSuggestions)
}

func (c *Controller) title() string {
	if c.titleOverride != "" {
		return c.titleOverride
	}
	return c.transcript.Title()
}

func (c *Controller) publish() {
	if c.dirty == 0 {
		return
	}
	st := c.state()
	snap := Snapshot{
		State:          st,
		Status:         prompts.Status(c.lang, string(st), c.mode.TurnBased(), c.thinking),
		Mode:           c.mode,
		Language:       c.lang,
		Thinking:       c.thinking,
		ConversationID: c.convID,
		Title:          c.title(),
		Topic:          c.topic,
		Transcript:     c.transcript.Messages(),
		Suggestions:    append([]string(nil), c.suggestions...),
		CanRetry:       c.canRetry && st == IDLE,
		StartDisabled:  c.configMissing || st != IDLE,
	}
	if c.err != nil {
		e := *c.err
		snap.Error = &e
	}
	changes := c.dirty
	c.dirty = 0

	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()

	c.listenersMu.Lock()
	ls := append([]Listener(nil), c.listeners...)
	c.listenersMu.Unlock()
	for _, l := range ls {
		l(Update{Changes: changes, Snapshot: snap})
	}
}

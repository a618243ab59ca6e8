package session

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xpanvictor/civicguru/internal/constants/prompts"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

var bg = context.Background()

// speakAndWait runs a recognizer turn up to awaitingConfirmation.
func speakAndWait(t *testing.T, h *harness, text string) {
	t.Helper()
	if err := h.c.Start(bg); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s := h.c.Snapshot(); s.State != CAPTURING {
		t.Fatalf("expected capturing after start, got %s", s.State)
	}
	rec := h.rec.recognition()
	rec.emit(stt.Event{Kind: stt.Interim, Text: "Tell me"})
	rec.emit(stt.Event{Kind: stt.UtteranceEnded, Text: text})
	waitFor(t, h.c, "awaiting confirmation", inState(AWAITING_CONFIRMATION))
}

func TestTurnBasedTrafficCycle(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	speakAndWait(t, h, "Tell me about traffic rules")

	s := h.c.Snapshot()
	if len(s.Transcript) != 1 || !s.Transcript[0].IsFinal || s.Transcript[0].Text != "Tell me about traffic rules" {
		t.Fatalf("expected one final user message, got %+v", s.Transcript)
	}
	if h.mic.open.Load() != 0 {
		t.Error("mic should be released while awaiting confirmation")
	}

	if err := h.c.Confirm(bg); err != nil {
		t.Fatal(err)
	}
	waitFor(t, h.c, "speaking", inState(SPEAKING))
	waitFor(t, h.c, "voice scheduled", func(Snapshot) bool { return h.sink.active() == 1 })

	h.sink.endAll()
	s = waitFor(t, h.c, "idle after playback", inState(IDLE))

	if len(s.Transcript) != 2 {
		t.Fatalf("expected user + assistant, got %+v", s.Transcript)
	}
	if a := s.Transcript[1]; a.Speaker != types.ASSISTANT || !a.IsFinal || a.Text != "Always use the zebra crossing." {
		t.Errorf("unexpected assistant message %+v", a)
	}
	if len(s.Suggestions) == 0 || s.Suggestions[0] != "Tell me more" {
		t.Errorf("expected follow-up suggestions, got %v", s.Suggestions)
	}
	reqs := h.gw.textRequests()
	if len(reqs) != 1 || reqs[0].Prompt != "Tell me about traffic rules" || reqs[0].ExtendedThinking {
		t.Errorf("unexpected text requests %+v", reqs)
	}
	if s.Title != "Tell me about traffic rules..." {
		t.Errorf("unexpected title %q", s.Title)
	}
}

func TestNoAudioGoesStraightToIdle(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.gw.speech = nil
	speakAndWait(t, h, "Tell me about traffic rules")
	h.c.Confirm(bg)

	s := waitFor(t, h.c, "idle without audio", inState(IDLE))
	if len(s.Transcript) != 2 {
		t.Errorf("expected two messages, got %+v", s.Transcript)
	}
	if h.sink.active() != 0 {
		t.Error("nothing should be playing")
	}
}

func TestSynthesisFailureKeepsText(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.gw.speechErr = gateway.ErrSynthesisFailed
	speakAndWait(t, h, "What about queues?")
	h.c.Confirm(bg)

	s := waitFor(t, h.c, "idle after failed synthesis", inState(IDLE))
	if len(s.Transcript) != 2 || s.Error != nil {
		t.Errorf("reply should stay as text without an error, got %+v %+v", s.Transcript, s.Error)
	}
}

func TestEmptyUtteranceLeavesNoEntry(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.c.Start(bg)
	rec := h.rec.recognition()
	rec.emit(stt.Event{Kind: stt.Interim, Text: "uh"})
	rec.emit(stt.Event{Kind: stt.UtteranceEnded, Text: "   "})

	s := waitFor(t, h.c, "idle", inState(IDLE))
	if len(s.Transcript) != 0 {
		t.Errorf("expected no transcript entry, got %+v", s.Transcript)
	}
	if h.mic.open.Load() != 0 || h.rec.active.Load() != 0 {
		t.Error("mic and recognizer should be released")
	}
}

func TestFinishUtteranceUsesLastHypothesis(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.c.Start(bg)
	h.rec.recognition().emit(stt.Event{Kind: stt.Interim, Text: "how do I vote"})
	waitFor(t, h.c, "interim shown", func(s Snapshot) bool { return len(s.Transcript) == 1 })

	if err := h.c.FinishUtterance(bg); err != nil {
		t.Fatal(err)
	}
	s := waitFor(t, h.c, "awaiting confirmation", inState(AWAITING_CONFIRMATION))
	if s.Transcript[0].Text != "how do I vote" || !s.Transcript[0].IsFinal {
		t.Errorf("unexpected transcript %+v", s.Transcript)
	}
}

func TestInterimReplacesNotAppends(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.c.Start(bg)
	rec := h.rec.recognition()
	rec.emit(stt.Event{Kind: stt.Interim, Text: "Tell"})
	rec.emit(stt.Event{Kind: stt.Interim, Text: "Tell me about"})

	s := waitFor(t, h.c, "second hypothesis", func(s Snapshot) bool {
		return len(s.Transcript) == 1 && s.Transcript[0].Text == "Tell me about"
	})
	if s.Transcript[0].IsFinal {
		t.Error("hypothesis must stay non-final")
	}
}

func TestRetryResendsSameText(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.gw.genErr = gateway.ErrGenerationFailed
	speakAndWait(t, h, "Tell me about traffic rules")
	h.c.Confirm(bg)

	s := waitFor(t, h.c, "idle after failure", inState(IDLE))
	if !s.CanRetry || s.Error == nil || s.Error.Code != "generation_failed" {
		t.Fatalf("expected retryable generation error, got %+v", s)
	}
	if len(s.Transcript) != 1 {
		t.Fatalf("transcript must be kept, got %+v", s.Transcript)
	}

	h.gw.mu.Lock()
	h.gw.genErr = nil
	h.gw.speech = nil
	h.gw.mu.Unlock()
	if err := h.c.Retry(bg); err != nil {
		t.Fatal(err)
	}
	s = waitFor(t, h.c, "reply after retry", func(s Snapshot) bool { return s.State == IDLE && len(s.Transcript) == 2 })

	reqs := h.gw.textRequests()
	if len(reqs) != 2 || reqs[0].Prompt != reqs[1].Prompt {
		t.Errorf("retry should resend the same text, got %+v", reqs)
	}
	users := 0
	for _, m := range s.Transcript {
		if m.Speaker == types.USER {
			users++
		}
	}
	if users != 1 {
		t.Errorf("user message duplicated: %+v", s.Transcript)
	}
	if s.Error != nil || s.CanRetry {
		t.Errorf("error should clear after a successful retry, got %+v", s.Error)
	}
}

func TestRetryNotAllowedWithoutFailure(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	if err := h.c.Retry(bg); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestStopFromEveryState(t *testing.T) {
	cases := []struct {
		name  string
		opts  Options
		setup func(t *testing.T, h *harness)
		want  State
	}{
		{"capturing turn", quickEN(), func(t *testing.T, h *harness) {
			h.c.Start(bg)
		}, CAPTURING},
		{"awaiting confirmation", quickEN(), func(t *testing.T, h *harness) {
			speakAndWait(t, h, "hello")
		}, AWAITING_CONFIRMATION},
		{"processing", quickEN(), func(t *testing.T, h *harness) {
			h.gw.genGate = make(chan struct{})
			h.c.SendText(bg, "hello")
		}, PROCESSING},
		{"speaking turn", quickEN(), func(t *testing.T, h *harness) {
			h.c.SendText(bg, "hello")
			waitFor(t, h.c, "voice", func(Snapshot) bool { return h.sink.active() == 1 })
		}, SPEAKING},
		{"connecting", Options{Mode: types.LIVE, Language: types.ENGLISH}, func(t *testing.T, h *harness) {
			h.gw.liveGate = make(chan struct{})
			h.c.Start(bg)
		}, CONNECTING},
		{"live capturing", Options{Mode: types.LIVE, Language: types.ENGLISH}, func(t *testing.T, h *harness) {
			h.c.Start(bg)
			waitFor(t, h.c, "capturing", inState(CAPTURING))
		}, CAPTURING},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.opts, nil)
			tc.setup(t, h)
			waitFor(t, h.c, string(tc.want), inState(tc.want))

			for i := 0; i < 2; i++ {
				if err := h.c.Stop(bg); err != nil {
					t.Fatalf("stop %d: %v", i, err)
				}
				s := h.c.Snapshot()
				if s.State != IDLE {
					t.Fatalf("stop %d left state %s", i, s.State)
				}
				if n := h.mic.open.Load(); n != 0 {
					t.Errorf("mic handles still open: %d", n)
				}
				if n := h.gw.openSessions.Load(); n != 0 {
					t.Errorf("live sessions still open: %d", n)
				}
				if h.sink.active() != 0 {
					t.Error("voices still playing")
				}
				if n := h.rec.active.Load(); n != 0 {
					t.Errorf("recognitions still active: %d", n)
				}
			}
		})
	}
}

func TestStopWhileAwaitingDiscardsPending(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	speakAndWait(t, h, "Tell me about traffic rules")
	h.c.Stop(bg)
	if s := h.c.Snapshot(); len(s.Transcript) != 0 {
		t.Errorf("pending message should be dropped, got %+v", s.Transcript)
	}
}

func TestStaleReplyIsIgnored(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	gate := make(chan struct{})
	h.gw.genGate = gate
	h.gw.ignoreCtx = true

	h.c.SendText(bg, "What is civic sense?")
	waitFor(t, h.c, "processing", inState(PROCESSING))
	waitFor(t, h.c, "call in flight", func(Snapshot) bool { return h.gw.inflight.Load() == 1 })
	h.c.Stop(bg)
	close(gate)
	waitFor(t, h.c, "late call returned", func(Snapshot) bool { return h.gw.inflight.Load() == 0 })

	time.Sleep(20 * time.Millisecond)
	h.c.Stop(bg)
	s := h.c.Snapshot()
	if s.State != IDLE || len(s.Transcript) != 1 {
		t.Errorf("late reply must be dropped, got state %s transcript %+v", s.State, s.Transcript)
	}
	if h.sink.active() != 0 {
		t.Error("late reply must not play")
	}
}

func TestLiveGaplessPlaybackAndResume(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.ENGLISH}, nil)
	if err := h.c.Start(bg); err != nil {
		t.Fatal(err)
	}
	waitFor(t, h.c, "capturing", inState(CAPTURING))

	cfgs := h.gw.liveCfgs
	if len(cfgs) != 1 || cfgs[0].SystemPrompt != prompts.SystemInstruction(types.ENGLISH, types.LIVE) {
		t.Errorf("unexpected live config %+v", cfgs)
	}

	h.mic.capture().frames <- mic.Frame{Samples: make([]float32, mic.DefaultBlockSize), SampleRate: 16000}
	live := h.gw.session()
	waitFor(t, h.c, "audio streamed", func(Snapshot) bool { return live.sent.Load() == 1 })

	chunk := make([]byte, 4800)
	live.events <- gateway.LiveEvent{Kind: gateway.LiveAudio, Audio: chunk, SampleRate: 24000}
	live.events <- gateway.LiveEvent{Kind: gateway.LiveAudio, Audio: chunk, SampleRate: 24000}
	waitFor(t, h.c, "speaking", inState(SPEAKING))
	waitFor(t, h.c, "two voices", func(Snapshot) bool { return len(h.sink.started()) == 2 })

	voices := h.sink.started()
	if math.Abs(voices[1].StartAt-voices[0].EndAt) > 1e-9 {
		t.Errorf("gap between voices: first ends %.6f, second starts %.6f", voices[0].EndAt, voices[1].StartAt)
	}

	h.sink.endAll()
	waitFor(t, h.c, "back to capturing", inState(CAPTURING))
	if h.mic.open.Load() != 1 || h.gw.openSessions.Load() != 1 {
		t.Error("live episode should stay open between turns")
	}
}

func TestLiveBargeInAndTranscription(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.ENGLISH}, nil)
	h.c.Start(bg)
	waitFor(t, h.c, "capturing", inState(CAPTURING))
	live := h.gw.session()

	live.events <- gateway.LiveEvent{Kind: gateway.LiveInputTranscript, Text: "Why queue"}
	live.events <- gateway.LiveEvent{Kind: gateway.LiveInputTranscript, Text: " at bus stops?"}
	live.events <- gateway.LiveEvent{Kind: gateway.LiveOutputTranscript, Text: "Queuing keeps"}
	live.events <- gateway.LiveEvent{Kind: gateway.LiveAudio, Audio: make([]byte, 4800), SampleRate: 24000}
	waitFor(t, h.c, "speaking", inState(SPEAKING))

	live.events <- gateway.LiveEvent{Kind: gateway.LiveInterrupted}
	s := waitFor(t, h.c, "barge-in back to capturing", inState(CAPTURING))
	if h.sink.active() != 0 {
		t.Error("barge-in should stop playback")
	}
	if len(s.Transcript) != 2 {
		t.Fatalf("expected user and assistant messages, got %+v", s.Transcript)
	}
	if s.Transcript[0].Text != "Why queue at bus stops?" || !s.Transcript[0].IsFinal {
		t.Errorf("unexpected user message %+v", s.Transcript[0])
	}
	if !s.Transcript[1].IsFinal {
		t.Error("interrupted assistant message should be settled")
	}
}

func TestLiveErrorSurfacesAndTearsDown(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.HINDI}, nil)
	h.c.Start(bg)
	waitFor(t, h.c, "capturing", inState(CAPTURING))
	h.gw.session().events <- gateway.LiveEvent{Kind: gateway.LiveError, Err: &gateway.SessionError{Op: "receive", Err: errors.New("reset")}}

	s := waitFor(t, h.c, "idle", inState(IDLE))
	if s.Error == nil || s.Error.Message != prompts.Message(types.HINDI, prompts.MsgSessionError) {
		t.Errorf("expected localized session error, got %+v", s.Error)
	}
	if h.mic.open.Load() != 0 || h.gw.openSessions.Load() != 0 {
		t.Error("handles leaked after session error")
	}
}

func TestLiveOpenFailureReleasesMic(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.ENGLISH}, nil)
	h.gw.liveErr = errors.New("dial tcp: refused")
	h.c.Start(bg)

	s := waitFor(t, h.c, "idle", func(s Snapshot) bool { return s.State == IDLE && s.Error != nil })
	if s.Error.Code != "session_error" {
		t.Errorf("unexpected error %+v", s.Error)
	}
	if h.mic.open.Load() != 0 {
		t.Error("mic should be released")
	}
}

func TestModeSwitchTearsDownFirst(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.ENGLISH}, nil)
	h.gw.liveGate = make(chan struct{})
	h.c.Start(bg)
	waitFor(t, h.c, "connecting", inState(CONNECTING))
	before := h.c.Snapshot().ConversationID

	if err := h.c.SelectMode(bg, types.QUICK); err != nil {
		t.Fatal(err)
	}
	s := h.c.Snapshot()
	if s.State != IDLE || s.Mode != types.QUICK {
		t.Fatalf("expected idle quick mode, got %s %s", s.State, s.Mode)
	}
	if h.mic.open.Load() != 0 || h.gw.openSessions.Load() != 0 {
		t.Error("handles open right after the switch")
	}
	if s.ConversationID == before {
		t.Error("mode switch should start a new conversation")
	}

	h.c.Start(bg)
	if h.mic.open.Load() != 1 || h.rec.active.Load() != 1 {
		t.Error("new mode should own exactly one mic and one recognition")
	}
}

func TestLanguageSwitchWhileCapturing(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.c.Start(bg)
	if err := h.c.SelectLanguage(bg, types.HINDI); err != nil {
		t.Fatal(err)
	}
	if h.mic.open.Load() != 0 {
		t.Error("mic open after language switch")
	}
	if n := h.rec.active.Load(); n != 0 {
		t.Errorf("recognition still active after language switch: %d", n)
	}
	h.c.Start(bg)
	if n := h.rec.active.Load(); n != 1 {
		t.Errorf("restart should own exactly one recognition, got %d", n)
	}
	if langs := h.rec.languages; langs[len(langs)-1] != "hi" {
		t.Errorf("recognizer should restart in hindi, got %v", langs)
	}
	if s := h.c.Snapshot(); s.Status != "रिकॉर्डिंग..." {
		t.Errorf("unexpected status %q", s.Status)
	}
}

func TestSingleMicHandleUnderRepeatedStartStop(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	for i := 0; i < 20; i++ {
		h.c.Start(bg)
		if err := h.c.Start(bg); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("second start should be rejected, got %v", err)
		}
		if n := h.mic.open.Load(); n != 1 {
			t.Fatalf("expected one mic handle, got %d", n)
		}
		h.c.Stop(bg)
	}
	if h.mic.open.Load() != 0 {
		t.Error("mic leaked")
	}
}

func TestDeepModeThinks(t *testing.T) {
	h := newHarness(t, Options{Mode: types.DEEP, Language: types.ENGLISH}, nil)
	h.gw.genGate = make(chan struct{})
	h.c.SendText(bg, "Why do people litter?")

	s := waitFor(t, h.c, "thinking", func(s Snapshot) bool { return s.Thinking })
	if s.Status != "Thinking..." {
		t.Errorf("unexpected status %q", s.Status)
	}
	waitFor(t, h.c, "text request", func(Snapshot) bool { return len(h.gw.textRequests()) == 1 })
	if reqs := h.gw.textRequests(); len(reqs) != 1 || !reqs[0].ExtendedThinking {
		t.Errorf("deep mode should request extended thinking, got %+v", reqs)
	}
	close(h.gw.genGate)
	waitFor(t, h.c, "speaking", inState(SPEAKING))
	if h.c.Snapshot().Thinking {
		t.Error("thinking should clear once the reply arrives")
	}
}

func TestConfigMissingDisablesStart(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.ENGLISH, ConfigMissing: true}, nil)
	s := h.c.Snapshot()
	if !s.StartDisabled || s.Error == nil || s.Error.Message != "API_KEY environment variable not set." {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if err := h.c.Start(bg); !errors.Is(err, ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
	if h.mic.opened.Load() != 0 {
		t.Error("mic must not open without a credential")
	}
}

func TestMissingRecognizer(t *testing.T) {
	h := newHarness(t, quickEN(), func(d *Deps) { d.Recognizer = nil })
	if err := h.c.Start(bg); !errors.Is(err, stt.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	s := h.c.Snapshot()
	if s.State != IDLE || s.Error == nil || s.Error.Code != "unsupported_platform" {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestListeningRecognizerOpensNoMic(t *testing.T) {
	h := newHarness(t, quickEN(), func(d *Deps) { d.RecognizerListens = true })
	if err := h.c.Start(bg); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n := h.mic.opened.Load(); n != 0 {
		t.Errorf("turn with a listening recognizer opened the mic %d times", n)
	}
	if n := h.rec.active.Load(); n != 1 {
		t.Errorf("expected one recognition, got %d", n)
	}
	h.c.Stop(bg)

	h.c.SelectMode(bg, types.LIVE)
	h.c.Start(bg)
	if n := h.mic.opened.Load(); n != 1 {
		t.Errorf("live mode still needs the mic, opened %d times", n)
	}
}

func TestMicPermissionDenied(t *testing.T) {
	h := newHarness(t, Options{Mode: types.LIVE, Language: types.ENGLISH}, nil)
	h.mic.err = mic.ErrPermissionDenied
	if err := h.c.Start(bg); !errors.Is(err, mic.ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	s := h.c.Snapshot()
	if s.Error == nil || s.Error.Message != "Failed to start. Check microphone permissions." {
		t.Errorf("unexpected error %+v", s.Error)
	}
	if len(h.gw.liveCfgs) != 0 {
		t.Error("no session should be opened without a mic")
	}
}

func TestStartTopic(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.gw.speech = nil
	if err := h.c.StartTopic(bg, prompts.TopicTraffic); err != nil {
		t.Fatal(err)
	}
	s := waitFor(t, h.c, "reply", func(s Snapshot) bool { return s.State == IDLE && len(s.Transcript) == 2 })
	if s.Title != "Traffic Rules" || s.Topic != "traffic" {
		t.Errorf("unexpected title/topic %q %q", s.Title, s.Topic)
	}
	if s.Transcript[0].Text != "Tell me about Traffic Rules" {
		t.Errorf("unexpected opening message %q", s.Transcript[0].Text)
	}
	if err := h.c.StartTopic(bg, "weather"); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestLoadConversationTearsDown(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	h.c.Start(bg)
	conv := types.Conversation{
		Messages: []types.Message{{Speaker: types.USER, Text: "Old question", IsFinal: true}},
	}
	if err := h.c.LoadConversation(bg, conv); err != nil {
		t.Fatal(err)
	}
	s := h.c.Snapshot()
	if s.State != IDLE || len(s.Transcript) != 1 || h.mic.open.Load() != 0 {
		t.Errorf("unexpected state after load %+v", s)
	}
}

func TestListenersSeeUpdates(t *testing.T) {
	h := newHarness(t, quickEN(), nil)
	updates := make(chan Update, 64)
	h.c.AddListener(func(u Update) { updates <- u })
	h.c.Start(bg)

	u := <-updates
	if !u.Changes.Has(ChangedState) || u.Snapshot.State != CAPTURING {
		t.Errorf("unexpected update %+v", u)
	}
}

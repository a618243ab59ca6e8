package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
	audioring "github.com/xpanvictor/civicguru/pkg/io/stt/audioRing"
	"github.com/xpanvictor/civicguru/pkg/io/stt/vad"
)

type fakeTranscriber struct {
	mu        sync.Mutex
	text      string
	calls     int
	languages []string
}

func (f *fakeTranscriber) TranscribeAudio(_ context.Context, frames []audioring.AudioInput, language string) (*TranscriptionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.languages = append(f.languages, language)
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames")
	}
	return &TranscriptionResponse{Text: f.text}, nil
}

func frame(level float32, at time.Time) mic.Frame {
	samples := make([]float32, mic.DefaultBlockSize)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = level
		} else {
			samples[i] = -level
		}
	}
	return mic.Frame{Samples: samples, SampleRate: 16000, At: at}
}

func testConfig() RecognizerConfig {
	cfg := DefaultRecognizerConfig()
	cfg.InterimEvery = time.Hour
	cfg.NoSpeechTimeout = time.Second
	return cfg
}

func collect(t *testing.T, rec stt.Recognition) []stt.Event {
	t.Helper()
	var out []stt.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-rec.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("recognition did not finish")
		}
	}
}

func TestRecognizerEndsAfterSilence(t *testing.T) {
	tr := &fakeTranscriber{text: "Tell me about traffic rules"}
	r := NewRecognizer(tr, vad.NewEnergyVAD(vad.DefaultVADConfig()), testConfig(), Logger.NewNop())

	frames := make(chan mic.Frame, 16)
	base := time.Now()
	levels := []float32{0, 0, 0.3, 0.3, 0.3, 0, 0, 0, 0}
	for i, lvl := range levels {
		frames <- frame(lvl, base.Add(time.Duration(i)*256*time.Millisecond))
	}

	rec, err := r.Start(context.Background(), "en", frames)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	events := collect(t, rec)
	if len(events) != 2 {
		t.Fatalf("expected final + ended, got %+v", events)
	}
	if events[0].Kind != stt.Final || events[0].Text != "Tell me about traffic rules" {
		t.Errorf("unexpected final event %+v", events[0])
	}
	if events[1].Kind != stt.UtteranceEnded || events[1].Text != events[0].Text {
		t.Errorf("unexpected end event %+v", events[1])
	}
	if tr.languages[0] != "en" {
		t.Errorf("language not forwarded, got %v", tr.languages)
	}
}

func TestRecognizerNoSpeechEndsEmpty(t *testing.T) {
	tr := &fakeTranscriber{text: "ignored"}
	r := NewRecognizer(tr, vad.NewEnergyVAD(vad.DefaultVADConfig()), testConfig(), Logger.NewNop())

	frames := make(chan mic.Frame, 16)
	base := time.Now()
	for i := 0; i < 8; i++ {
		frames <- frame(0, base.Add(time.Duration(i)*256*time.Millisecond))
	}
	rec, _ := r.Start(context.Background(), "hi", frames)

	events := collect(t, rec)
	if len(events) != 1 || events[0].Kind != stt.UtteranceEnded || events[0].Text != "" {
		t.Fatalf("expected a single empty utterance end, got %+v", events)
	}
	if tr.calls != 0 {
		t.Errorf("silence should never reach the transcriber, got %d calls", tr.calls)
	}
}

func TestRecognizerStopFinalizes(t *testing.T) {
	tr := &fakeTranscriber{text: "namaste"}
	r := NewRecognizer(tr, vad.NewEnergyVAD(vad.DefaultVADConfig()), testConfig(), Logger.NewNop())

	frames := make(chan mic.Frame)
	rec, _ := r.Start(context.Background(), "hi", frames)
	frames <- frame(0.3, time.Now())
	rec.Stop()
	rec.Stop()

	events := collect(t, rec)
	if len(events) != 2 || events[1].Text != "namaste" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRecognizerCancelEmitsNothing(t *testing.T) {
	r := NewRecognizer(&fakeTranscriber{text: "x"}, vad.NewEnergyVAD(vad.DefaultVADConfig()), testConfig(), Logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	rec, _ := r.Start(ctx, "en", make(chan mic.Frame))
	cancel()

	if events := collect(t, rec); len(events) != 0 {
		t.Errorf("cancelled recognition should close silently, got %+v", events)
	}
}

func TestRecognizerCancelReleasesBeforeReturning(t *testing.T) {
	r := NewRecognizer(&fakeTranscriber{text: "x"}, vad.NewEnergyVAD(vad.DefaultVADConfig()), testConfig(), Logger.NewNop())
	frames := make(chan mic.Frame)
	rec, _ := r.Start(context.Background(), "en", frames)
	rec.Cancel()
	rec.Cancel()

	select {
	case ev, ok := <-rec.Events():
		if ok {
			t.Fatalf("cancelled recognition emitted %+v", ev)
		}
	default:
		t.Fatal("events still open after Cancel returned")
	}
}

func TestRecognizerNeedsFrames(t *testing.T) {
	r := NewRecognizer(&fakeTranscriber{}, vad.NewEnergyVAD(vad.DefaultVADConfig()), testConfig(), Logger.NewNop())
	if _, err := r.Start(context.Background(), "en", nil); err == nil {
		t.Error("expected error without a frame source")
	}
}

func TestWhisperClientRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/asr" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("language"); got != "hi" {
			t.Errorf("expected language hi, got %q", got)
		}
		if _, _, err := r.FormFile("audio_file"); err != nil {
			t.Errorf("missing audio_file: %v", err)
		}
		json.NewEncoder(w).Encode(TranscriptionResponse{Text: "  namaste ", Language: "hi"})
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL+"/", "", Logger.NewNop())
	resp, err := client.TranscribeAudio(context.Background(), []audioring.AudioInput{{Data: make([]byte, 320), SampleRate: 16000, Channels: 1}}, "hi")
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if resp.Text != "namaste" {
		t.Errorf("expected trimmed text, got %q", resp.Text)
	}
}

func TestWhisperClientPlainTextAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") == "en" {
			w.Write([]byte("hello there"))
			return
		}
		http.Error(w, "bad", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL, "", Logger.NewNop())
	frames := []audioring.AudioInput{{Data: make([]byte, 32), SampleRate: 16000, Channels: 1}}

	resp, err := client.TranscribeAudio(context.Background(), frames, "en")
	if err != nil || resp.Text != "hello there" {
		t.Errorf("plain text fallback failed: %v %+v", err, resp)
	}
	if _, err := client.TranscribeAudio(context.Background(), frames, "hi"); err == nil {
		t.Error("expected error on non-200")
	}
	if _, err := client.TranscribeAudio(context.Background(), nil, "en"); err == nil {
		t.Error("expected error without frames")
	}
}

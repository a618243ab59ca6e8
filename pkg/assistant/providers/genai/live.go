package genai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"google.golang.org/genai"
)

func (p *Provider) OpenLiveSession(ctx context.Context, cfg gateway.LiveConfig) (gateway.LiveSession, error) {
	conf := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if cfg.SystemPrompt != "" {
		conf.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}
	if cfg.Transcribe {
		conf.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
		conf.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	session, err := p.client.Live.Connect(ctx, p.config.LiveModel, conf)
	if err != nil {
		return nil, &gateway.SessionError{Op: "open", Err: err}
	}

	ls := &liveSession{
		session: session,
		events:  make(chan gateway.LiveEvent, 64),
		done:    make(chan struct{}),
	}
	go ls.receive()
	p.logger.Debugf("live session opened on %s", p.config.LiveModel)
	return ls, nil
}

type liveSession struct {
	session *genai.Session
	events  chan gateway.LiveEvent
	done    chan struct{}

	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *liveSession) Events() <-chan gateway.LiveEvent { return s.events }

func (s *liveSession) SendAudio(ctx context.Context, blob codec.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return &gateway.SessionError{Op: "send", Err: errors.New("session closed")}
	default:
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: blob.Data, MIMEType: blob.MIMEType},
	})
	if err != nil {
		return &gateway.SessionError{Op: "send", Err: err}
	}
	return nil
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.session.Close()
	})
	return s.closeErr
}

func (s *liveSession) receive() {
	defer close(s.events)
	for {
		msg, err := s.session.Receive()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.emit(gateway.LiveEvent{Kind: gateway.LiveError, Err: &gateway.SessionError{Op: "receive", Err: err}})
			}
			return
		}
		for _, ev := range eventsFromMessage(msg) {
			if !s.emit(ev) {
				return
			}
		}
	}
}

func (s *liveSession) emit(ev gateway.LiveEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// eventsFromMessage flattens one server message into ordered events:
// transcripts first, then audio, then the interruption or turn end.
func eventsFromMessage(msg *genai.LiveServerMessage) []gateway.LiveEvent {
	if msg == nil {
		return nil
	}
	if msg.GoAway != nil {
		return []gateway.LiveEvent{{
			Kind: gateway.LiveError,
			Err:  &gateway.SessionError{Op: "receive", Err: fmt.Errorf("server closing in %v", msg.GoAway.TimeLeft)},
		}}
	}
	sc := msg.ServerContent
	if sc == nil {
		return nil
	}

	var out []gateway.LiveEvent
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		out = append(out, gateway.LiveEvent{Kind: gateway.LiveInputTranscript, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out = append(out, gateway.LiveEvent{Kind: gateway.LiveOutputTranscript, Text: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out = append(out, gateway.LiveEvent{
				Kind:       gateway.LiveAudio,
				Audio:      part.InlineData.Data,
				SampleRate: codec.RateFromMIME(part.InlineData.MIMEType, codec.OutputRate),
			})
		}
	}
	if sc.Interrupted {
		out = append(out, gateway.LiveEvent{Kind: gateway.LiveInterrupted})
	}
	if sc.TurnComplete {
		out = append(out, gateway.LiveEvent{Kind: gateway.LiveTurnComplete})
	}
	return out
}

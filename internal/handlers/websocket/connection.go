package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/xpanvictor/civicguru/internal/constants/prompts"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	sessionctl "github.com/xpanvictor/civicguru/internal/domains/session"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
)

const allChanges = sessionctl.ChangedState | sessionctl.ChangedTranscript | sessionctl.ChangedSuggestions |
	sessionctl.ChangedError | sessionctl.ChangedConversation | sessionctl.ChangedSettings

// connection binds one Session to its controller. Only the read loop
// touches its fields.
type connection struct {
	handler *WebSocketHandler
	session *Session
	logger  *Logger.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	ctrl       *sessionctl.Controller
	mic        *remoteMic
	recognizer *clientRecognizer
	recorded   chan struct{}
}

func newConnection(h *WebSocketHandler, session *Session) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		handler: h,
		session: session,
		logger:  h.logger.Named("conn", "session", session.SessionID.String()),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (cn *connection) handleInit(raw json.RawMessage) {
	if cn.ctrl != nil {
		cn.session.SendError("already_initialized", "Session already initialized")
		return
	}
	var im InitMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &im); err != nil {
			cn.session.SendError("invalid_request", err.Error())
			return
		}
	}

	deps := cn.handler.deps
	cfg := deps.Config
	caps := im.Capabilities
	cn.session.setCapabilities(caps)

	mode, lang := cfg.Session.Defaults()
	if m, err := types.ParseMode(im.Mode); err == nil {
		mode = m
	}
	if l, err := types.ParseLanguage(im.Language); err == nil {
		lang = l
	}

	ctlDeps := sessionctl.Deps{
		Gateway:   deps.Gateway,
		Scheduler: playback.NewScheduler(playback.NewTimerSink(cn.session)),
		Voice:     deps.PreferenceService.VoiceSource(cn.ctx, cn.session.OwnerID),
		Logger:    cn.logger,
	}
	if caps.AudioSource {
		cn.mic = newRemoteMic(cn.session, cfg.Audio.InputRate, cfg.Audio.BlockSize, cn.logger)
		ctlDeps.Mic = cn.mic
	}
	switch {
	case caps.Recognizer:
		cn.recognizer = newClientRecognizer(cn.session, cn.logger)
		ctlDeps.Recognizer = cn.recognizer
		ctlDeps.RecognizerListens = true
	case caps.AudioSource && deps.Recognizer != nil:
		ctlDeps.Recognizer = deps.Recognizer
	}

	ctrl, err := sessionctl.New(ctlDeps, sessionctl.Options{
		Mode:          mode,
		Language:      lang,
		ConfigMissing: deps.ConfigMissing,
	})
	if err != nil {
		cn.logger.Errorf("failed to create controller: %v", err)
		cn.session.SendError("session_error", err.Error())
		return
	}

	bridge := NewStateBridge(cn.session, cn.logger)
	recorder := conversation.NewRecorder(deps.ConversationService, cn.session.OwnerID, cn.logger)
	ctrl.AddListener(bridge.Listen)
	ctrl.AddListener(recorder.Listen)

	cn.logger.Infof("session initialized: mode=%s language=%s caps=%+v", mode, lang, caps)
	bridge.Listen(sessionctl.Update{Changes: allChanges, Snapshot: ctrl.Snapshot()})

	cn.ctrl = ctrl
	cn.recorded = make(chan struct{})
	go ctrl.Run(cn.ctx)
	go func() {
		recorder.Run(cn.ctx)
		close(cn.recorded)
	}()
}

func (cn *connection) dispatch(msg inboundMessage) error {
	ctx := cn.ctx
	switch msg.Type {
	case MessageTypeControl:
		var m ControlMessage
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		switch m.Action {
		case ActionStart:
			return cn.ctrl.Start(ctx)
		case ActionStop:
			return cn.ctrl.Stop(ctx)
		case ActionConfirm:
			return cn.ctrl.Confirm(ctx)
		case ActionRetry:
			return cn.ctrl.Retry(ctx)
		case ActionFinish:
			return cn.ctrl.FinishUtterance(ctx)
		case ActionNewChat:
			return cn.ctrl.NewConversation(ctx)
		}
		return errors.Join(errInvalidRequest, errors.New("unknown action "+m.Action))

	case MessageTypeMode:
		var m ModeMessage
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		mode, err := types.ParseMode(m.Mode)
		if err != nil {
			return errors.Join(errInvalidRequest, err)
		}
		return cn.ctrl.SelectMode(ctx, mode)

	case MessageTypeLanguage:
		var m LanguageMessage
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		lang, err := types.ParseLanguage(m.Language)
		if err != nil {
			return errors.Join(errInvalidRequest, err)
		}
		return cn.ctrl.SelectLanguage(ctx, lang)

	case MessageTypeText:
		var m TextMessage
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		return cn.ctrl.SendText(ctx, m.Content)

	case MessageTypeTopic:
		var m TopicMessage
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		return cn.ctrl.StartTopic(ctx, prompts.Topic(m.Topic))

	case MessageTypeLoad:
		var m LoadMessage
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		conv, err := cn.handler.deps.ConversationService.Get(ctx, cn.session.OwnerID, m.ConversationID)
		if err != nil {
			return err
		}
		return cn.ctrl.LoadConversation(ctx, *conv)

	case MessageTypeTranscript:
		var m TranscriptInput
		if err := decode(msg.Data, &m); err != nil {
			return err
		}
		if cn.recognizer != nil {
			cn.recognizer.Hypothesis(m.Text, m.IsFinal)
		}
		return nil

	case MessageTypeUtteranceEnd:
		var m UtteranceEndMessage
		if len(msg.Data) > 0 {
			if err := decode(msg.Data, &m); err != nil {
				return err
			}
		}
		if cn.recognizer != nil {
			cn.recognizer.UtteranceEnded(m.Text)
		}
		return nil

	case MessageTypePlaybackEnded:
		var m PlaybackEndedMessage
		if err := decode(msg.Data, &m); err == nil {
			cn.logger.Debugf("client finished voice %d", m.VoiceID)
		}
		return nil
	}

	cn.logger.Warnf("Unknown message type: %s", msg.Type)
	cn.session.SendError("unknown_message_type", "Unknown message type: "+string(msg.Type))
	return nil
}

func rejectionCode(err error) (string, bool) {
	switch {
	case errors.Is(err, errInvalidRequest):
		return "invalid_request", true
	case errors.Is(err, sessionctl.ErrInvalidState):
		return "invalid_state", true
	case errors.Is(err, sessionctl.ErrNothingToSend):
		return "nothing_to_send", true
	case errors.Is(err, sessionctl.ErrUnknownTopic):
		return "unknown_topic", true
	case errors.Is(err, types.ErrConversationNotFound):
		return "not_found", true
	}
	return "", false
}

// shutdown stops the controller, which tears down capture and playback,
// and waits for the final history flush.
func (cn *connection) shutdown() {
	cn.cancel()
	if cn.ctrl == nil {
		return
	}
	<-cn.ctrl.Done()
	<-cn.recorded
	cn.logger.Infof("session closed")
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xpanvictor/civicguru/internal/app"
	"github.com/xpanvictor/civicguru/internal/constants/prompts"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	sessionctl "github.com/xpanvictor/civicguru/internal/domains/session"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/speaker"
)

// localOwner owns history recorded from the terminal.
var localOwner = uuid.NewSHA1(uuid.NameSpaceURL, []byte("civicguru:terminal"))

const talkHelp = `commands:
  <text>          send a message
  /start /stop    start or stop listening
  /finish         end the utterance now
  /confirm        send what was heard
  /retry          retry the last message
  /<n>            send suggestion n
  /mode <m>       live | quick | deep
  /lang <l>       en | hi
  /topic <t>      start a topic (traffic, hygiene, waste, transport, democracy)
  /new            start a new chat
  /history        list saved conversations
  /load <id>      continue a saved conversation
  /export <id>    print a saved conversation as a transcript
  /clear          delete all saved conversations
  /quit`

func newTalkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Talk to the tutor from this terminal, with the local microphone and speaker",
		RunE:  runTalk,
	}
	cmd.Flags().String("mode", "", "Conversation mode: live, quick or deep")
	cmd.Flags().String("language", "", "Language: en or hi")
	cmd.Flags().Bool("no-audio", false, "Text only; do not open the microphone or speaker")
	return cmd
}

func runTalk(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	mode, lang := cfg.Session.Defaults()
	if s, _ := cmd.Flags().GetString("mode"); s != "" {
		if mode, err = types.ParseMode(s); err != nil {
			return err
		}
	}
	if s, _ := cmd.Flags().GetString("language"); s != "" {
		if lang, err = types.ParseLanguage(s); err != nil {
			return err
		}
	}

	deps := sessionctl.Deps{
		Gateway: a.Gateway.Router,
		Voice:   a.PreferenceService.VoiceSource(ctx, localOwner),
		Logger:  logger,
	}
	noAudio, _ := cmd.Flags().GetBool("no-audio")
	if noAudio {
		deps.Scheduler = playback.NewScheduler(playback.NewTimerSink(muted{}))
	} else {
		mixer := playback.NewMixer(cfg.Audio.OutputRate)
		out, err := speaker.Open(mixer)
		if err != nil {
			logger.Warnf("speaker unavailable, replies will be text only: %v", err)
			deps.Scheduler = playback.NewScheduler(playback.NewTimerSink(muted{}))
		} else {
			defer out.Close()
			deps.Scheduler = playback.NewScheduler(mixer)
		}
		deps.Mic = mic.NewMalgoDevice(cfg.Audio.InputRate, cfg.Audio.BlockSize, logger.Named("mic"))
		deps.Recognizer = a.Recognizer
		if a.Recognizer == nil {
			logger.Warn("stt.whisper_url not set, quick and deep modes accept typed text only")
		}
	}

	ctrl, err := sessionctl.New(deps, sessionctl.Options{
		Mode:          mode,
		Language:      lang,
		ConfigMissing: a.Gateway.ConfigMissing,
	})
	if err != nil {
		return err
	}

	term := newTerminal(cmd.OutOrStdout())
	recorder := conversation.NewRecorder(a.ConversationService, localOwner, logger)
	ctrl.AddListener(term.Listen)
	ctrl.AddListener(recorder.Listen)
	term.Listen(sessionctl.Update{Changes: sessionctl.ChangedState | sessionctl.ChangedSettings, Snapshot: ctrl.Snapshot()})

	recorded := make(chan struct{})
	go ctrl.Run(ctx)
	go func() {
		recorder.Run(ctx)
		close(recorded)
	}()
	defer func() {
		stop()
		<-ctrl.Done()
		<-recorded
	}()

	fmt.Fprintln(cmd.OutOrStdout(), talkHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sh := &shell{ctrl: ctrl, term: term, convos: a.ConversationService, out: cmd.OutOrStdout()}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ctrl.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := sh.exec(ctx, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "! %v\n", err)
			}
		}
	}
}

var errQuit = errors.New("quit")

type shell struct {
	ctrl   *sessionctl.Controller
	term   *terminal
	convos conversation.ConversationService
	out    io.Writer
}

func (s *shell) exec(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return s.ctrl.SendText(ctx, line)
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	if n, err := strconv.Atoi(name); err == nil {
		text, ok := s.term.suggestion(n)
		if !ok {
			return fmt.Errorf("no suggestion %d", n)
		}
		return s.ctrl.SendText(ctx, text)
	}

	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(s.out, talkHelp)
		return nil
	case "start":
		return s.ctrl.Start(ctx)
	case "stop":
		return s.ctrl.Stop(ctx)
	case "finish":
		return s.ctrl.FinishUtterance(ctx)
	case "confirm":
		return s.ctrl.Confirm(ctx)
	case "retry":
		return s.ctrl.Retry(ctx)
	case "new":
		return s.ctrl.NewConversation(ctx)
	case "mode":
		m, err := types.ParseMode(arg)
		if err != nil {
			return err
		}
		return s.ctrl.SelectMode(ctx, m)
	case "lang", "language":
		l, err := types.ParseLanguage(arg)
		if err != nil {
			return err
		}
		return s.ctrl.SelectLanguage(ctx, l)
	case "topic":
		return s.ctrl.StartTopic(ctx, prompts.Topic(arg))
	case "history":
		return s.history(ctx)
	case "load":
		conv, err := s.lookup(ctx, arg)
		if err != nil {
			return err
		}
		return s.ctrl.LoadConversation(ctx, *conv)
	case "export":
		conv, err := s.lookup(ctx, arg)
		if err != nil {
			return err
		}
		file, err := s.convos.Export(ctx, localOwner, conv.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "--- %s ---\n%s\n", file.Name, file.Content)
		return nil
	case "clear":
		return s.convos.Clear(ctx, localOwner)
	}
	return fmt.Errorf("unknown command /%s", name)
}

// lookup resolves a full id or a unique id prefix as printed by /history.
func (s *shell) lookup(ctx context.Context, arg string) (*types.Conversation, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return s.convos.Get(ctx, localOwner, id)
	}
	if arg == "" {
		return nil, errors.New("conversation id required")
	}
	convs, err := s.convos.List(ctx, localOwner)
	if err != nil {
		return nil, err
	}
	var found *types.Conversation
	for i := range convs {
		if strings.HasPrefix(convs[i].ID.String(), arg) {
			if found != nil {
				return nil, fmt.Errorf("%q matches more than one conversation", arg)
			}
			found = &convs[i]
		}
	}
	if found == nil {
		return nil, types.ErrConversationNotFound
	}
	return found, nil
}

func (s *shell) history(ctx context.Context) error {
	convs, err := s.convos.List(ctx, localOwner)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(s.out, "no saved conversations")
		return nil
	}
	for _, c := range convs {
		fmt.Fprintf(s.out, "%s  %s  %-5s %s\n", c.ID.String()[:8], c.UpdatedAt.Local().Format(time.DateTime), c.Mode, c.Title)
	}
	return nil
}

// muted accepts voices without playing them.
type muted struct{}

func (muted) PlayVoice(*playback.Voice, time.Duration) error { return nil }
func (muted) StopVoice(uint64) error                         { return nil }

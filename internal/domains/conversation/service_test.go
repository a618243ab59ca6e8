package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/domains/session"
	convoRepo "github.com/xpanvictor/civicguru/internal/repository/conversation"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

var t0 = time.Date(2025, 1, 26, 9, 5, 0, 0, time.UTC)

func msg(sp types.Speaker, text string, at time.Time, final bool) types.Message {
	return types.Message{ID: uuid.New(), Speaker: sp, Text: text, Timestamp: at, IsFinal: final}
}

func newService(now time.Time) *conversationService {
	s := New(convoRepo.NewMemoryConvoRepo(), Logger.NewNop(), time.UTC).(*conversationService)
	s.now = func() time.Time { return now }
	return s
}

func TestExportFormat(t *testing.T) {
	f := ExportTranscript([]types.Message{
		msg(types.USER, "Why queue?", t0, true),
		msg(types.ASSISTANT, "It is fair to everyone.", t0.Add(90*time.Second), true),
	}, t0, time.UTC)

	if f.Name != "civic-sense-chat-2025-01-26.txt" {
		t.Errorf("unexpected name %q", f.Name)
	}
	want := "[09:05] User: Why queue?\n\n[09:06] Guru: It is fair to everyone."
	if f.Content != want {
		t.Errorf("unexpected content:\n%s\nwant:\n%s", f.Content, want)
	}
}

func TestSaveKeepsFinalMessagesAndCreation(t *testing.T) {
	s := newService(t0)
	ctx, owner, id := context.Background(), uuid.New(), uuid.New()

	conv := types.Conversation{ID: id, OwnerID: owner, Messages: []types.Message{
		msg(types.USER, "What is civic sense?", t0, true),
		msg(types.ASSISTANT, "Civic", t0, false),
	}}
	saved, err := s.Save(ctx, conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Messages) != 1 || saved.Title != "What is civic sense?..." {
		t.Errorf("unexpected saved conversation %+v", saved)
	}

	s.now = func() time.Time { return t0.Add(time.Hour) }
	conv.Messages[1].IsFinal = true
	saved, err = s.Save(ctx, conv)
	if err != nil {
		t.Fatal(err)
	}
	if !saved.CreatedAt.Equal(t0) || !saved.UpdatedAt.Equal(t0.Add(time.Hour)) || len(saved.Messages) != 2 {
		t.Errorf("upsert should keep creation time, got %+v", saved)
	}

	if _, err := s.Save(ctx, types.Conversation{ID: uuid.New(), OwnerID: owner}); !errors.Is(err, ErrEmptyConversation) {
		t.Errorf("expected ErrEmptyConversation, got %v", err)
	}
}

func TestListNewestFirstAndClear(t *testing.T) {
	s := newService(t0)
	ctx, owner := context.Background(), uuid.New()
	first := uuid.New()
	s.Save(ctx, types.Conversation{ID: first, OwnerID: owner, Messages: []types.Message{msg(types.USER, "a", t0, true)}})
	s.now = func() time.Time { return t0.Add(time.Minute) }
	s.Save(ctx, types.Conversation{ID: uuid.New(), OwnerID: owner, Messages: []types.Message{msg(types.USER, "b", t0, true)}})

	list, _ := s.List(ctx, owner)
	if len(list) != 2 || list[1].ID != first {
		t.Errorf("expected newest first, got %+v", list)
	}

	if err := s.Clear(ctx, owner); err != nil {
		t.Fatal(err)
	}
	if list, _ := s.List(ctx, owner); len(list) != 0 {
		t.Errorf("history should be empty, got %d", len(list))
	}
	if _, err := s.Get(ctx, owner, first); !errors.Is(err, types.ErrConversationNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecorderSavesLatest(t *testing.T) {
	s := newService(t0)
	owner := uuid.New()
	r := NewRecorder(s, owner, Logger.NewNop())

	convID := uuid.New()
	snap := session.Snapshot{ConversationID: convID, Title: "Traffic Rules", Topic: "traffic", Mode: types.QUICK, Language: types.ENGLISH}
	r.Listen(session.Update{Changes: session.ChangedTranscript, Snapshot: snap})

	snap.Transcript = []types.Message{msg(types.USER, "Tell me about Traffic Rules", t0, true)}
	r.Listen(session.Update{Changes: session.ChangedState, Snapshot: snap})
	snap.Transcript = append(snap.Transcript, msg(types.ASSISTANT, "Stop at red lights.", t0, true))
	r.Listen(session.Update{Changes: session.ChangedTranscript, Snapshot: snap})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { r.Run(ctx); close(done) }()
	cancel()
	<-done

	got, err := s.Get(context.Background(), owner, convID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 || got.Title != "Traffic Rules" || got.Topic != "traffic" {
		t.Errorf("unexpected stored conversation %+v", got)
	}

	f, err := s.Export(context.Background(), owner, convID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(f.Content, "Guru: Stop at red lights.") {
		t.Errorf("unexpected export %q", f.Content)
	}
}

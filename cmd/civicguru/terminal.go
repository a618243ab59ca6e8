package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	sessionctl "github.com/xpanvictor/civicguru/internal/domains/session"
	"github.com/xpanvictor/civicguru/internal/types"
)

// terminal prints controller updates as a running chat log. Listen runs on
// the controller goroutine; suggestion is read from the input loop.
type terminal struct {
	out io.Writer

	status  string
	printed map[uuid.UUID]bool
	interim string

	mu          sync.Mutex
	suggestions []string
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out, printed: make(map[uuid.UUID]bool)}
}

// Listen is a session.Listener.
func (t *terminal) Listen(u sessionctl.Update) {
	snap := u.Snapshot
	if u.Changes.Has(sessionctl.ChangedConversation) {
		t.printed = make(map[uuid.UUID]bool)
		t.interim = ""
		fmt.Fprintf(t.out, "== %s (%s, %s) ==\n", snap.Title, snap.Mode, snap.Language)
	}
	if u.Changes.Has(sessionctl.ChangedTranscript) {
		t.printTranscript(snap.Transcript)
	}
	if u.Changes.Has(sessionctl.ChangedState|sessionctl.ChangedSettings) && snap.Status != t.status {
		t.status = snap.Status
		fmt.Fprintf(t.out, "[%s] %s\n", snap.State, snap.Status)
	}
	if u.Changes.Has(sessionctl.ChangedSuggestions) {
		t.mu.Lock()
		t.suggestions = append(t.suggestions[:0], snap.Suggestions...)
		t.mu.Unlock()
		for i, s := range snap.Suggestions {
			fmt.Fprintf(t.out, "  /%d %s\n", i+1, s)
		}
	}
	if u.Changes.Has(sessionctl.ChangedError) && snap.Error != nil {
		fmt.Fprintf(t.out, "! %s\n", snap.Error.Message)
	}
}

// printTranscript prints each message once it is final. The newest interim
// user hypothesis is echoed when it changes.
func (t *terminal) printTranscript(msgs []types.Message) {
	for _, m := range msgs {
		if t.printed[m.ID] {
			continue
		}
		if !m.IsFinal {
			if m.Text != t.interim {
				t.interim = m.Text
				fmt.Fprintf(t.out, "  ... %s\n", m.Text)
			}
			continue
		}
		t.printed[m.ID] = true
		t.interim = ""
		who := "you"
		if m.Speaker == types.ASSISTANT {
			who = "guru"
		}
		fmt.Fprintf(t.out, "%s> %s\n", who, m.Text)
	}
}

func (t *terminal) suggestion(n int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.suggestions) {
		return "", false
	}
	return t.suggestions[n-1], true
}

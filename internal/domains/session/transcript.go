package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
)

// Transcript is the running list of utterances for the current
// conversation. Non-final messages only ever sit at the tail, at most one
// per speaker, and timestamps never go backwards.
type Transcript struct {
	msgs []types.Message
	now  func() time.Time
	last time.Time
}

func NewTranscript(now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	return &Transcript{now: now}
}

func (t *Transcript) stamp() time.Time {
	ts := t.now()
	if ts.Before(t.last) {
		ts = t.last
	}
	t.last = ts
	return ts
}

// Messages returns a copy.
func (t *Transcript) Messages() []types.Message {
	out := make([]types.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Transcript) Len() int { return len(t.msgs) }

// interim finds the trailing non-final message of sp.
func (t *Transcript) interim(sp types.Speaker) int {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		m := t.msgs[i]
		if m.IsFinal {
			return -1
		}
		if m.Speaker == sp {
			return i
		}
	}
	return -1
}

// SetInterim replaces the speaker's current hypothesis, or opens one. Opening
// a hypothesis settles the other speaker's, so an interleaved turn never
// leaves a non-final message behind a final one.
func (t *Transcript) SetInterim(sp types.Speaker, text string) {
	if i := t.interim(sp); i >= 0 {
		t.msgs[i].Text = text
		return
	}
	t.FinalizeInterim(other(sp))
	t.msgs = append(t.msgs, types.Message{
		ID:        uuid.New(),
		Speaker:   sp,
		Text:      text,
		Timestamp: t.stamp(),
	})
}

// AppendInterim extends the speaker's hypothesis with an incremental fragment.
func (t *Transcript) AppendInterim(sp types.Speaker, fragment string) {
	if i := t.interim(sp); i >= 0 {
		t.msgs[i].Text += fragment
		return
	}
	t.SetInterim(sp, strings.TrimLeft(fragment, " "))
}

// InterimText is the speaker's current hypothesis, "" when none.
func (t *Transcript) InterimText(sp types.Speaker) string {
	if i := t.interim(sp); i >= 0 {
		return t.msgs[i].Text
	}
	return ""
}

// FinalizeInterim settles the speaker's hypothesis. Blank hypotheses are
// dropped instead. Reports whether a message was finalized.
func (t *Transcript) FinalizeInterim(sp types.Speaker) bool {
	i := t.interim(sp)
	if i < 0 {
		return false
	}
	if strings.TrimSpace(t.msgs[i].Text) == "" {
		t.removeAt(i)
		return false
	}
	t.msgs[i].Text = strings.TrimSpace(t.msgs[i].Text)
	t.msgs[i].IsFinal = true
	return true
}

// DiscardInterim drops the speaker's hypothesis.
func (t *Transcript) DiscardInterim(sp types.Speaker) {
	if i := t.interim(sp); i >= 0 {
		t.removeAt(i)
	}
}

// Append adds a final message. The speaker's own hypothesis is replaced by
// it; any other trailing hypothesis is settled first.
func (t *Transcript) Append(sp types.Speaker, text string) types.Message {
	text = strings.TrimSpace(text)
	if i := t.interim(sp); i >= 0 {
		t.msgs[i].Text = text
		t.msgs[i].IsFinal = true
		msg := t.msgs[i]
		if i != len(t.msgs)-1 {
			t.removeAt(i)
			t.settleTail()
			msg.Timestamp = t.stamp()
			t.msgs = append(t.msgs, msg)
		}
		return msg
	}
	t.settleTail()
	msg := types.Message{
		ID:        uuid.New(),
		Speaker:   sp,
		Text:      text,
		IsFinal:   true,
		Timestamp: t.stamp(),
	}
	t.msgs = append(t.msgs, msg)
	return msg
}

func other(sp types.Speaker) types.Speaker {
	if sp == types.USER {
		return types.ASSISTANT
	}
	return types.USER
}

func (t *Transcript) settleTail() {
	for _, sp := range []types.Speaker{types.USER, types.ASSISTANT} {
		t.FinalizeInterim(sp)
	}
}

func (t *Transcript) Remove(id uuid.UUID) bool {
	for i, m := range t.msgs {
		if m.ID == id {
			t.removeAt(i)
			return true
		}
	}
	return false
}

func (t *Transcript) removeAt(i int) {
	t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
}

// TrimAfterLastUser removes every assistant message after the last user
// message and returns how many were removed.
func (t *Transcript) TrimAfterLastUser() int {
	last := -1
	for i, m := range t.msgs {
		if m.Speaker == types.USER {
			last = i
		}
	}
	if last < 0 {
		return 0
	}
	removed := len(t.msgs) - last - 1
	t.msgs = t.msgs[:last+1]
	return removed
}

// LastUserText is the text of the last final user message.
func (t *Transcript) LastUserText() string {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if m := t.msgs[i]; m.Speaker == types.USER && m.IsFinal {
			return m.Text
		}
	}
	return ""
}

// Reset replaces the contents, e.g. when loading a stored conversation.
func (t *Transcript) Reset(msgs []types.Message) {
	t.msgs = make([]types.Message, len(msgs))
	copy(t.msgs, msgs)
	t.last = time.Time{}
	for _, m := range t.msgs {
		if m.Timestamp.After(t.last) {
			t.last = m.Timestamp
		}
	}
}

func (t *Transcript) Title() string {
	return types.DeriveTitle(t.msgs)
}

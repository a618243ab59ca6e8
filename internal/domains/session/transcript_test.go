package session

import (
	"strings"
	"testing"
	"time"

	"github.com/xpanvictor/civicguru/internal/types"
)

func TestTranscriptOneInterimPerSpeaker(t *testing.T) {
	tr := NewTranscript(nil)
	tr.SetInterim(types.USER, "Tell")
	tr.SetInterim(types.USER, "Tell me")
	tr.AppendInterim(types.ASSISTANT, "Sure")
	tr.AppendInterim(types.ASSISTANT, ", here")

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected two messages, got %+v", msgs)
	}
	if msgs[0].Text != "Tell me" || msgs[1].Text != "Sure, here" {
		t.Errorf("unexpected texts %+v", msgs)
	}
	if !msgs[0].IsFinal || msgs[1].IsFinal {
		t.Errorf("opening the assistant hypothesis should settle the user's, got %+v", msgs)
	}

	tr.Append(types.USER, "Tell me more")
	msgs = tr.Messages()
	nonFinal := 0
	for _, m := range msgs {
		if !m.IsFinal {
			nonFinal++
		}
	}
	if nonFinal != 0 {
		t.Errorf("appending a final message should settle the tail, got %+v", msgs)
	}
}

func TestTranscriptInterleavedLiveTurn(t *testing.T) {
	tr := NewTranscript(nil)
	// replays the live event order: output, input barge-in, output, turn complete
	tr.FinalizeInterim(types.USER)
	tr.AppendInterim(types.ASSISTANT, "Hello ")
	tr.AppendInterim(types.USER, "wait")
	tr.FinalizeInterim(types.USER)
	tr.AppendInterim(types.ASSISTANT, "there")
	tr.FinalizeInterim(types.USER)
	tr.FinalizeInterim(types.ASSISTANT)

	msgs := tr.Messages()
	want := []struct {
		sp   types.Speaker
		text string
	}{
		{types.ASSISTANT, "Hello"},
		{types.USER, "wait"},
		{types.ASSISTANT, "there"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), msgs)
	}
	for i, w := range want {
		if msgs[i].Speaker != w.sp || msgs[i].Text != w.text || !msgs[i].IsFinal {
			t.Errorf("message %d = %+v, want final %s %q", i, msgs[i], w.sp, w.text)
		}
	}
}

func TestTranscriptTimestampsNeverGoBack(t *testing.T) {
	base := time.Date(2025, 1, 26, 9, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	tr := NewTranscript(func() time.Time {
		ts := clock[i%len(clock)]
		i++
		return ts
	})
	tr.Append(types.USER, "a")
	tr.Append(types.ASSISTANT, "b")
	tr.Append(types.USER, "c")

	msgs := tr.Messages()
	for j := 1; j < len(msgs); j++ {
		if msgs[j].Timestamp.Before(msgs[j-1].Timestamp) {
			t.Errorf("timestamp %d went backwards: %v < %v", j, msgs[j].Timestamp, msgs[j-1].Timestamp)
		}
	}
}

func TestTranscriptFinalizeDropsBlank(t *testing.T) {
	tr := NewTranscript(nil)
	tr.SetInterim(types.USER, "  ")
	if tr.FinalizeInterim(types.USER) {
		t.Error("blank hypothesis should not be finalized")
	}
	if tr.Len() != 0 {
		t.Error("blank hypothesis should be dropped")
	}
}

func TestTranscriptTrimAfterLastUser(t *testing.T) {
	tr := NewTranscript(nil)
	tr.Append(types.USER, "q1")
	tr.Append(types.ASSISTANT, "a1")
	tr.Append(types.USER, "q2")
	tr.Append(types.ASSISTANT, "partial")
	if n := tr.TrimAfterLastUser(); n != 1 {
		t.Errorf("expected one removal, got %d", n)
	}
	if tr.LastUserText() != "q2" || tr.Len() != 3 {
		t.Errorf("unexpected transcript %+v", tr.Messages())
	}
}

func TestTranscriptTitle(t *testing.T) {
	tr := NewTranscript(nil)
	if tr.Title() != types.DefaultTitle {
		t.Errorf("empty transcript title %q", tr.Title())
	}
	tr.Append(types.ASSISTANT, "Namaste!")
	tr.Append(types.USER, strings.Repeat("क", 50))
	title := tr.Title()
	if !strings.HasSuffix(title, "...") || len([]rune(title)) != 43 {
		t.Errorf("unexpected title %q", title)
	}
}

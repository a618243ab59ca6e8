package playback

import (
	"sync"
	"time"
)

// Remote receives voices for playback on another device, typically a
// websocket client that schedules them against its own audio clock.
type Remote interface {
	PlayVoice(v *Voice, startIn time.Duration) error
	StopVoice(id uint64) error
}

// TimerSink keeps a wall-clock timeline for a Remote and reports voice
// completion from timers set to each voice's computed end.
type TimerSink struct {
	mu     sync.Mutex
	remote Remote
	origin time.Time
	clock  func() time.Time
	timers map[uint64]*time.Timer
}

func NewTimerSink(remote Remote) *TimerSink {
	return &TimerSink{
		remote: remote,
		origin: time.Now(),
		clock:  time.Now,
		timers: make(map[uint64]*time.Timer),
	}
}

func (t *TimerSink) Now() float64 {
	return t.clock().Sub(t.origin).Seconds()
}

func (t *TimerSink) Start(v *Voice, onEnded func()) {
	now := t.Now()
	startIn := secondsToDuration(v.StartAt - now)
	endIn := secondsToDuration(v.EndAt - now)

	t.mu.Lock()
	defer t.mu.Unlock()

	// a failed send still ends on schedule so the timeline keeps moving
	_ = t.remote.PlayVoice(v, startIn)

	t.timers[v.ID] = time.AfterFunc(endIn, func() {
		t.mu.Lock()
		_, live := t.timers[v.ID]
		delete(t.timers, v.ID)
		t.mu.Unlock()
		if live {
			onEnded()
		}
	})
}

func (t *TimerSink) Stop(v *Voice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[v.ID]; ok {
		timer.Stop()
		delete(t.timers, v.ID)
	}
	_ = t.remote.StopVoice(v.ID)
}

func secondsToDuration(s float64) time.Duration {
	if s < 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

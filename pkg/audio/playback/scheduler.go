// Package playback schedules decoded audio buffers onto an output sink,
// either back to back on a shared timeline or one at a time.
package playback

import (
	"errors"
	"sync"

	"github.com/xpanvictor/civicguru/pkg/audio/codec"
)

var ErrEmptyBuffer = errors.New("playback: empty buffer")

// StartPolicy selects where a new voice lands on the timeline.
type StartPolicy int

const (
	// Gapless starts the voice exactly where the previously scheduled audio ends.
	Gapless StartPolicy = iota
	// ASAP starts the voice at the sink's current time.
	ASAP
)

// VoiceSettings are captured per voice when it is enqueued.
type VoiceSettings struct {
	Rate   float64 `json:"rate" mapstructure:"rate"`
	Pitch  float64 `json:"pitch" mapstructure:"pitch"`
	Volume float64 `json:"volume" mapstructure:"volume"`
}

func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Rate: 1.0, Pitch: 1.0, Volume: 0.8}
}

// Normalize fills zero values with defaults and clamps to supported ranges.
func (s VoiceSettings) Normalize() VoiceSettings {
	d := DefaultVoiceSettings()
	if s.Rate <= 0 {
		s.Rate = d.Rate
	}
	if s.Pitch <= 0 {
		s.Pitch = d.Pitch
	}
	s.Rate = clamp(s.Rate, 0.5, 2)
	s.Pitch = clamp(s.Pitch, 0.5, 2)
	s.Volume = clamp(s.Volume, 0, 1)
	return s
}

// PlaybackRate is the resampling factor applied to a voice. Sinks have no
// independent pitch shifter, so pitch is folded into the rate the way a
// playbackRate change raises both together.
func (s VoiceSettings) PlaybackRate() float64 {
	return s.Rate * s.Pitch
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Voice is one scheduled buffer. Times are in sink seconds.
type Voice struct {
	ID       uint64
	Buffer   *codec.Buffer
	Settings VoiceSettings
	StartAt  float64
	EndAt    float64
}

// Duration is the wall duration after applying the playback rate.
func (v *Voice) Duration() float64 {
	return v.EndAt - v.StartAt
}

// Sink renders voices. Implementations must invoke onEnded asynchronously,
// never from inside Start or Stop, and must not invoke it for stopped voices.
type Sink interface {
	Now() float64
	Start(v *Voice, onEnded func())
	Stop(v *Voice)
}

// Scheduler tracks the active voice set and the next-start watermark.
type Scheduler struct {
	mu        sync.Mutex
	sink      Sink
	nextStart float64
	seq       uint64
	active    map[uint64]*Voice

	onVoiceEnded func(*Voice)
	onDrained    func()
}

func NewScheduler(sink Sink) *Scheduler {
	return &Scheduler{
		sink:   sink,
		active: make(map[uint64]*Voice),
	}
}

// OnVoiceEnded registers a callback fired once for every voice that plays out.
func (s *Scheduler) OnVoiceEnded(fn func(*Voice)) {
	s.mu.Lock()
	s.onVoiceEnded = fn
	s.mu.Unlock()
}

// OnDrained registers a callback fired when the last active voice plays out.
func (s *Scheduler) OnDrained(fn func()) {
	s.mu.Lock()
	s.onDrained = fn
	s.mu.Unlock()
}

// Enqueue schedules buf with a snapshot of settings.
func (s *Scheduler) Enqueue(buf *codec.Buffer, settings VoiceSettings, policy StartPolicy) (*Voice, error) {
	if buf.Frames() == 0 {
		return nil, ErrEmptyBuffer
	}
	settings = settings.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.sink.Now()
	start := now
	if policy == Gapless && s.nextStart > now {
		start = s.nextStart
	}
	end := start + buf.Duration()/settings.PlaybackRate()
	if end > s.nextStart {
		s.nextStart = end
	}

	s.seq++
	v := &Voice{
		ID:       s.seq,
		Buffer:   buf,
		Settings: settings,
		StartAt:  start,
		EndAt:    end,
	}
	s.active[v.ID] = v
	s.sink.Start(v, func() { s.voiceEnded(v) })
	return v, nil
}

func (s *Scheduler) voiceEnded(v *Voice) {
	s.mu.Lock()
	if _, ok := s.active[v.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, v.ID)
	drained := len(s.active) == 0
	onEnded, onDrained := s.onVoiceEnded, s.onDrained
	s.mu.Unlock()

	if onEnded != nil {
		onEnded(v)
	}
	if drained && onDrained != nil {
		onDrained()
	}
}

// StopAll halts every active voice and resets the timeline. Stopped voices
// never report ended.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, v := range s.active {
		s.sink.Stop(v)
		delete(s.active, id)
	}
	s.nextStart = 0
}

// Busy reports whether any voice is scheduled or playing.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

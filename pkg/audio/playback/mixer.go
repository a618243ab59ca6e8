package playback

import (
	"sync"
)

type mixVoice struct {
	voice      *Voice
	samples    []float32
	startFrame int64
	pos        float64
	step       float64
	gain       float32
	onEnded    func()
}

// Mixer is a software Sink driven by a sample clock. Output devices pull
// mono float32 frames through Render; the clock only advances as frames are
// rendered, so voice timing is exact relative to what has been played.
type Mixer struct {
	mu     sync.Mutex
	rate   int
	frames int64
	voices map[uint64]*mixVoice
}

func NewMixer(outputRate int) *Mixer {
	return &Mixer{
		rate:   outputRate,
		voices: make(map[uint64]*mixVoice),
	}
}

func (m *Mixer) SampleRate() int { return m.rate }

func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frames) / float64(m.rate)
}

func (m *Mixer) Start(v *Voice, onEnded func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.voices[v.ID] = &mixVoice{
		voice:      v,
		samples:    v.Buffer.Mono(),
		startFrame: int64(v.StartAt*float64(m.rate) + 0.5),
		step:       float64(v.Buffer.SampleRate) / float64(m.rate) * v.Settings.PlaybackRate(),
		gain:       float32(v.Settings.Volume),
		onEnded:    onEnded,
	}
}

func (m *Mixer) Stop(v *Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.voices, v.ID)
}

// Render mixes the next len(out) frames into out and advances the clock.
// Ended callbacks run on their own goroutines.
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	for i := range out {
		out[i] = 0
	}

	var finished []func()
	for id, mv := range m.voices {
		offset := mv.startFrame - m.frames
		i := 0
		if offset > 0 {
			if offset >= int64(len(out)) {
				continue
			}
			i = int(offset)
		}
		last := len(mv.samples) - 1
		for ; i < len(out); i++ {
			idx := int(mv.pos)
			if idx > last {
				break
			}
			s := mv.samples[idx]
			if idx < last {
				frac := float32(mv.pos - float64(idx))
				s += (mv.samples[idx+1] - s) * frac
			}
			out[i] += s * mv.gain
			mv.pos += mv.step
		}
		if int(mv.pos) > last {
			delete(m.voices, id)
			if mv.onEnded != nil {
				finished = append(finished, mv.onEnded)
			}
		}
	}

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}
	m.frames += int64(len(out))
	m.mu.Unlock()

	for _, fn := range finished {
		go fn()
	}
}

// Active reports the number of voices still owned by the mixer.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

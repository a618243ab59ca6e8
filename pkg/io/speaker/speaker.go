// Package speaker plays a playback.Mixer through the system output.
package speaker

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
)

// Output pulls rendered frames from a mixer into a malgo playback device.
// Silence is rendered while no voice is scheduled so the mixer clock keeps
// tracking real time.
type Output struct {
	mixer  *playback.Mixer
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	scratch []float32
	closed  bool
	once    sync.Once
}

func Open(mixer *playback.Mixer) (*Output, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("speaker: init context: %w", err)
	}
	o := &Output{mixer: mixer, ctx: mctx}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(mixer.SampleRate())
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: o.onData})
	if err != nil {
		o.release()
		return nil, fmt.Errorf("speaker: init device: %w", err)
	}
	o.device = device
	if err := device.Start(); err != nil {
		device.Uninit()
		o.release()
		return nil, fmt.Errorf("speaker: start device: %w", err)
	}
	return o, nil
}

func (o *Output) onData(output, _ []byte, framecount uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := int(framecount)
	if n*4 > len(output) {
		n = len(output) / 4
	}
	if o.closed {
		for i := range output {
			output[i] = 0
		}
		return
	}
	if cap(o.scratch) < n {
		o.scratch = make([]float32, n)
	}
	frames := o.scratch[:n]
	o.mixer.Render(frames)
	for i, s := range frames {
		binary.LittleEndian.PutUint32(output[i*4:], math.Float32bits(s))
	}
}

func (o *Output) Close() error {
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		if o.device != nil {
			o.device.Uninit()
		}
		o.release()
	})
	return nil
}

func (o *Output) release() {
	if o.ctx == nil {
		return
	}
	_ = o.ctx.Uninit()
	o.ctx.Free()
	o.ctx = nil
}

package mic

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

// MalgoDevice captures from the system default input through miniaudio.
type MalgoDevice struct {
	SampleRate int
	BlockSize  int
	logger     *Logger.Logger
}

func NewMalgoDevice(sampleRate, blockSize int, logger *Logger.Logger) *MalgoDevice {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &MalgoDevice{SampleRate: sampleRate, BlockSize: blockSize, logger: logger}
}

type malgoCapture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	frames chan Frame

	mu      sync.Mutex
	pending []float32
	closed  bool
	once    sync.Once
	rate    int
	block   int
	logger  *Logger.Logger
}

func (d *MalgoDevice) Open(ctx context.Context) (Capture, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	c := &malgoCapture{
		ctx:    mctx,
		frames: make(chan Frame, 32),
		rate:   d.SampleRate,
		block:  d.BlockSize,
		logger: d.logger,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(d.SampleRate)
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: c.onData})
	if err != nil {
		c.releaseContext()
		return nil, classify(err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		c.releaseContext()
		return nil, classify(err)
	}

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return c, nil
}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

func (c *malgoCapture) onData(_, input []byte, framecount uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for i := 0; i+4 <= len(input) && i/4 < int(framecount); i += 4 {
		c.pending = append(c.pending, math.Float32frombits(binary.LittleEndian.Uint32(input[i:])))
	}

	for len(c.pending) >= c.block {
		block := make([]float32, c.block)
		copy(block, c.pending[:c.block])
		c.pending = c.pending[c.block:]

		select {
		case c.frames <- Frame{Samples: block, SampleRate: c.rate, At: time.Now()}:
		default:
			c.logger.Debugf("mic consumer behind, dropping %d samples", c.block)
		}
	}
}

func (c *malgoCapture) Frames() <-chan Frame { return c.frames }

func (c *malgoCapture) Close() error {
	c.once.Do(func() {
		if c.device != nil {
			c.device.Uninit()
		}
		c.mu.Lock()
		c.closed = true
		close(c.frames)
		c.mu.Unlock()
		c.releaseContext()
	})
	return nil
}

func (c *malgoCapture) releaseContext() {
	if c.ctx == nil {
		return
	}
	_ = c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
}

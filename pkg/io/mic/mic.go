// Package mic opens a microphone and delivers fixed-size float32 blocks.
package mic

import (
	"context"
	"errors"
	"time"
)

// DefaultBlockSize matches the capture block used for streaming to the live session.
const DefaultBlockSize = 4096

var (
	ErrPermissionDenied  = errors.New("mic: permission denied")
	ErrDeviceUnavailable = errors.New("mic: device unavailable")
)

// Frame is one block of mono samples in [-1, 1].
type Frame struct {
	Samples    []float32
	SampleRate int
	At         time.Time
}

// Capture is an open microphone stream. Frames closes after Close or when
// the device fails.
type Capture interface {
	Frames() <-chan Frame
	Close() error
}

// Device opens captures. Only one capture per device is expected at a time.
type Device interface {
	Open(ctx context.Context) (Capture, error)
}

package audioring

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/xpanvictor/civicguru/pkg/audio/codec"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
)

// header: timestamp(8) + sampleRate(4) + channels(2) + dataLen(4)
const headerSize = 18

var errShortFrame = errors.New("audioring: frame shorter than header")

// AudioInput is one PCM16 block held in the ring.
type AudioInput struct {
	Data       []byte
	Timestamp  time.Time
	SampleRate int32
	Channels   int16
}

// FromFrame quantizes a capture frame into a ring entry.
func FromFrame(f mic.Frame) AudioInput {
	return AudioInput{
		Data:       codec.FloatToPCM16(f.Samples),
		Timestamp:  f.At,
		SampleRate: int32(f.SampleRate),
		Channels:   1,
	}
}

// Duration of the block's audio.
func (a AudioInput) Duration() time.Duration {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	samples := len(a.Data) / 2 / int(a.Channels)
	return time.Duration(samples) * time.Second / time.Duration(a.SampleRate)
}

func (a *AudioInput) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+len(a.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(a.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(a.SampleRate))
	binary.LittleEndian.PutUint16(buf[12:], uint16(a.Channels))
	binary.LittleEndian.PutUint32(buf[14:], uint32(len(a.Data)))
	copy(buf[headerSize:], a.Data)
	return buf, nil
}

func (a *AudioInput) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return errShortFrame
	}
	a.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[0:])))
	a.SampleRate = int32(binary.LittleEndian.Uint32(data[8:]))
	a.Channels = int16(binary.LittleEndian.Uint16(data[12:]))
	n := int(binary.LittleEndian.Uint32(data[14:]))
	if len(data)-headerSize < n {
		return errShortFrame
	}
	a.Data = make([]byte, n)
	copy(a.Data, data[headerSize:headerSize+n])
	return nil
}

// AudioRingBuffer keeps the most recent blocks of an utterance, evicting
// the oldest when full.
type AudioRingBuffer interface {
	Enqueue(audioSlice AudioInput) error
	Dequeue() (AudioInput, bool)
	PeekAll() []AudioInput
	Drain() []AudioInput
	Reset()
	Len() int
	Capacity() int
}

// Package codec converts between float32 capture samples and the PCM16
// payloads exchanged with the AI service.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// TransportRate is the sample rate the AI service expects for input audio.
	TransportRate = 16000
	// OutputRate is the rate of audio returned by the live and speech endpoints.
	OutputRate = 24000
)

var TransportMIME = MIMEForRate(TransportRate)

var (
	ErrEmptySamples  = errors.New("codec: empty sample buffer")
	ErrInvalidSample = errors.New("codec: sample is NaN or Inf")
	ErrInvalidRate   = errors.New("codec: sample rate must be positive")
)

// DecodeError reports a payload that cannot be interpreted as PCM16.
type DecodeError struct {
	Reason string
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %d bytes: %s", e.Length, e.Reason)
}

// Blob is an encoded audio payload ready for transport.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Buffer holds planar float32 audio in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames is the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration in seconds at the buffer's native rate.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Mono returns the average of all channels.
func (b *Buffer) Mono() []float32 {
	n := b.Frames()
	if n == 0 {
		return nil
	}
	if len(b.Channels) == 1 {
		return b.Channels[0]
	}
	out := make([]float32, n)
	for _, ch := range b.Channels {
		for i, s := range ch {
			out[i] += s
		}
	}
	scale := 1 / float32(len(b.Channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// EncodeForTransport resamples samples from sourceRate to TransportRate and
// quantizes them to 16-bit little-endian PCM. Finite samples outside [-1, 1]
// are clamped; NaN and Inf are rejected with ErrInvalidSample.
func EncodeForTransport(samples []float32, sourceRate int) (Blob, error) {
	if len(samples) == 0 {
		return Blob{}, ErrEmptySamples
	}
	if sourceRate <= 0 {
		return Blob{}, ErrInvalidRate
	}
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Blob{}, fmt.Errorf("%w at index %d", ErrInvalidSample, i)
		}
	}

	resampled := Resample(samples, sourceRate, TransportRate)
	return Blob{
		Data:     FloatToPCM16(resampled),
		MIMEType: TransportMIME,
	}, nil
}

// DecodeFromTransport interprets data as interleaved PCM16 LE produced at
// sampleRate with the given channel count. An empty payload yields a
// zero-length buffer.
func DecodeFromTransport(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, &DecodeError{Reason: "non-positive sample rate", Length: len(data)}
	}
	if channels <= 0 {
		return nil, &DecodeError{Reason: "non-positive channel count", Length: len(data)}
	}

	buf := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	if len(data) == 0 {
		for c := range buf.Channels {
			buf.Channels[c] = []float32{}
		}
		return buf, nil
	}
	if len(data)%(2*channels) != 0 {
		return nil, &DecodeError{Reason: "length is not a whole number of frames", Length: len(data)}
	}

	frames := len(data) / (2 * channels)
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Channels[c][i] = float32(v) / 32768
		}
	}
	return buf, nil
}

// DecodeBase64 is DecodeFromTransport for base64 payloads.
func DecodeBase64(payload string, sampleRate, channels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64: " + err.Error(), Length: len(payload)}
	}
	return DecodeFromTransport(raw, sampleRate, channels)
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(from) / float64(to)
	n := int(math.Round(float64(len(samples)) / ratio))
	if n < 1 {
		n = 1
	}
	out := make([]float32, n)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + (samples[idx+1]-samples[idx])*frac
	}
	return out
}

// FloatToPCM16 clamps to [-1, 1] and quantizes to little-endian int16.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int32(s * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// MIMEForRate formats a raw PCM MIME type.
func MIMEForRate(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// RateFromMIME extracts the rate parameter from values such as
// "audio/L16;codec=pcm;rate=24000", returning fallback when absent.
func RateFromMIME(mime string, fallback int) int {
	for _, part := range strings.Split(mime, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if r, err := strconv.Atoi(val); err == nil && r > 0 {
			return r
		}
	}
	return fallback
}

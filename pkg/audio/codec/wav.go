package codec

import (
	"encoding/binary"
)

const wavHeaderSize = 44

// EncodeWAV wraps PCM16 LE samples in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(wavHeaderSize-8+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	return append(out, pcm...)
}

// WAVInfo describes the PCM payload found inside a RIFF container.
type WAVInfo struct {
	SampleRate int
	Channels   int
	PCM        []byte
}

// ParseWAV walks the RIFF chunks and returns the 16-bit PCM data chunk.
// Streaming encoders sometimes write a zero or oversized data length; the
// remainder of the file is used in that case.
func ParseWAV(data []byte) (*WAVInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, &DecodeError{Reason: "not a RIFF/WAVE payload", Length: len(data)}
	}

	info := &WAVInfo{}
	var haveFmt bool
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, &DecodeError{Reason: "truncated fmt chunk", Length: len(data)}
			}
			format := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != 16 {
				return nil, &DecodeError{Reason: "only 16-bit PCM is supported", Length: len(data)}
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, &DecodeError{Reason: "data chunk before fmt chunk", Length: len(data)}
			}
			end := body + size
			if size == 0 || end > len(data) {
				end = len(data)
			}
			info.PCM = data[body:end]
			return info, nil
		}

		off = body + size + size%2
	}
	return nil, &DecodeError{Reason: "missing data chunk", Length: len(data)}
}

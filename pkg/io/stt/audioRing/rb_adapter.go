package audioring

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Entries are stored as a 4-byte little-endian length prefix followed by the
// marshalled AudioInput.
type rb_impl struct {
	mu   sync.Mutex
	size int
	rb   *ringbuffer.RingBuffer
}

func New(size int) AudioRingBuffer {
	return &rb_impl{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

func (r *rb_impl) Capacity() int {
	return r.size
}

func (r *rb_impl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length()
}

func (r *rb_impl) Enqueue(audioSlice AudioInput) error {
	data, err := audioSlice.MarshalBinary()
	if err != nil {
		return err
	}

	required := len(data) + 4
	if required > r.rb.Capacity() {
		return errors.New("audio frame too large for buffer")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.rb.Free() < required {
		if _, ok := readEntry(r.rb); !ok {
			r.rb.Reset()
			break
		}
	}

	prefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(prefix, uint32(len(data)))
	if _, err := r.rb.Write(prefix); err != nil {
		return err
	}
	_, err = r.rb.Write(data)
	return err
}

func (r *rb_impl) Dequeue() (AudioInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return readEntry(r.rb)
}

// PeekAll returns every buffered entry without consuming them.
func (r *rb_impl) PeekAll() []AudioInput {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rb.IsEmpty() {
		return nil
	}
	snapshot := ringbuffer.New(r.rb.Capacity())
	snapshot.Write(r.rb.Bytes(nil))
	return drain(snapshot)
}

// Drain consumes and returns every buffered entry.
func (r *rb_impl) Drain() []AudioInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return drain(r.rb)
}

func (r *rb_impl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rb.Reset()
}

func drain(rb *ringbuffer.RingBuffer) []AudioInput {
	var out []AudioInput
	for {
		entry, ok := readEntry(rb)
		if !ok {
			return out
		}
		out = append(out, entry)
	}
}

func readEntry(rb *ringbuffer.RingBuffer) (AudioInput, bool) {
	if rb.IsEmpty() {
		return AudioInput{}, false
	}

	prefix := make([]byte, 4)
	if n, err := rb.Read(prefix); err != nil || n != 4 {
		return AudioInput{}, false
	}
	size := int(binary.LittleEndian.Uint32(prefix))

	data := make([]byte, size)
	if n, err := rb.Read(data); err != nil || n != size {
		return AudioInput{}, false
	}

	var entry AudioInput
	if err := entry.UnmarshalBinary(data); err != nil {
		return AudioInput{}, false
	}
	return entry, true
}

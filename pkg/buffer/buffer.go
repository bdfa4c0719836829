package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrOverflow is returned when an append would exceed the buffer capacity.
	ErrOverflow = errors.New("sample buffer overflow")
	// ErrUnderflow is returned when more samples are consumed than are held.
	ErrUnderflow = errors.New("sample buffer underflow")
)

// SampleBuffer is a bounded FIFO of 16-bit samples backed by a ring.
// Consumed samples are released from the front without moving the rest,
// so appends and drains are both O(n) in the samples touched only.
//
// A SampleBuffer is not safe for concurrent use.
type SampleBuffer struct {
	data []int16
	head int
	n    int
}

// New creates a buffer that holds at most capacity samples.
func New(capacity int) *SampleBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &SampleBuffer{data: make([]int16, capacity)}
}

// Len returns the number of samples currently held.
func (b *SampleBuffer) Len() int { return b.n }

// Cap returns the fixed capacity.
func (b *SampleBuffer) Cap() int { return len(b.data) }

// Free returns how many samples can still be appended.
func (b *SampleBuffer) Free() int { return len(b.data) - b.n }

// Reset discards all held samples.
func (b *SampleBuffer) Reset() {
	b.head = 0
	b.n = 0
}

// Append adds samples to the back of the buffer. If the result would not fit
// nothing is written and ErrOverflow is returned.
func (b *SampleBuffer) Append(samples []int16) error {
	if len(samples) > b.Free() {
		return fmt.Errorf("%w: have %d of %d, appending %d", ErrOverflow, b.n, len(b.data), len(samples))
	}
	tail := (b.head + b.n) % max(len(b.data), 1)
	k := copy(b.data[tail:], samples)
	copy(b.data, samples[k:])
	b.n += len(samples)
	return nil
}

// AppendSilence appends n zero samples under the same bound as Append.
func (b *SampleBuffer) AppendSilence(n int) error {
	if n < 0 || n > b.Free() {
		return fmt.Errorf("%w: have %d of %d, appending %d", ErrOverflow, b.n, len(b.data), n)
	}
	tail := (b.head + b.n) % max(len(b.data), 1)
	for i := 0; i < n; i++ {
		b.data[(tail+i)%len(b.data)] = 0
	}
	b.n += n
	return nil
}

// Peek copies up to len(dst) of the oldest samples into dst without
// consuming them and returns the number copied.
func (b *SampleBuffer) Peek(dst []int16) int {
	want := min(len(dst), b.n)
	if want == 0 {
		return 0
	}
	end := min(b.head+want, len(b.data))
	k := copy(dst[:want], b.data[b.head:end])
	copy(dst[k:want], b.data[:want-k])
	return want
}

// ConsumeFront removes the n oldest samples.
func (b *SampleBuffer) ConsumeFront(n int) error {
	if n < 0 || n > b.n {
		return fmt.Errorf("%w: consuming %d of %d", ErrUnderflow, n, b.n)
	}
	b.n -= n
	if b.n == 0 {
		b.head = 0
	} else {
		b.head = (b.head + n) % len(b.data)
	}
	return nil
}

// Drain returns a copy of the chunk oldest samples and consumes them. When
// fewer than chunk samples are held the buffer is left untouched and false is
// returned.
func (b *SampleBuffer) Drain(chunk int) ([]int16, bool) {
	if chunk <= 0 || b.n < chunk {
		return nil, false
	}
	out := make([]int16, chunk)
	b.Peek(out)
	// cannot fail: chunk <= b.n
	_ = b.ConsumeFront(chunk)
	return out, true
}

// Package audio provides the per-connection ring buffer and the PCM
// conversion, WAV, and Opus plumbing used by the transport layer.
package audio

import "sync"

// RingBuffer accumulates mono float32 PCM at a fixed sample rate, bounded to
// a maximum duration. When an append would exceed the bound, the oldest
// samples are evicted first.
//
// TotalAdded is a monotonic sample clock: it counts every sample ever
// appended, regardless of eviction, so global stream positions can be
// computed as TotalAdded-relative offsets. The consumed offset marks the
// prefix of the retained samples that has already been dispatched for
// recognition; eviction moves it back so it keeps pointing at the same
// samples.
//
// All methods are safe for concurrent use.
type RingBuffer struct {
	mu sync.Mutex

	samples        []float32
	maxSamples     int
	sampleRate     int
	totalAdded     int64
	consumedOffset int
}

// NewRingBuffer creates a buffer holding at most maxDuration seconds of audio
// at sampleRate Hz.
func NewRingBuffer(sampleRate int, maxDuration float64) *RingBuffer {
	maxSamples := int(maxDuration * float64(sampleRate))
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &RingBuffer{
		maxSamples: maxSamples,
		sampleRate: sampleRate,
	}
}

// Append adds samples to the buffer, evicting the oldest retained samples if
// the bound would be exceeded. The global sample clock advances by
// len(samples) in all cases.
func (b *RingBuffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalAdded += int64(len(samples))

	if len(samples) >= b.maxSamples {
		// The append alone overflows the buffer; keep only its tail.
		b.samples = append(b.samples[:0], samples[len(samples)-b.maxSamples:]...)
		b.consumedOffset = 0
		return
	}

	overflow := len(b.samples) + len(samples) - b.maxSamples
	if overflow > 0 {
		b.samples = b.samples[:copy(b.samples, b.samples[overflow:])]
		b.consumedOffset -= overflow
		if b.consumedOffset < 0 {
			b.consumedOffset = 0
		}
	}
	b.samples = append(b.samples, samples...)
}

// Unconsumed returns a copy of the retained samples past the consumed offset.
// A dangling offset (pointing past the end of the buffer) is reset to 0
// before the slice is taken.
func (b *RingBuffer) Unconsumed() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumedOffset > len(b.samples) {
		b.consumedOffset = 0
	}
	out := make([]float32, len(b.samples)-b.consumedOffset)
	copy(out, b.samples[b.consumedOffset:])
	return out
}

// Snapshot returns a copy of the unconsumed samples together with the stream
// time (seconds since the first appended sample) of the first of them, taken
// under a single lock so the pair is consistent. A dangling offset is reset
// to 0 first.
func (b *RingBuffer) Snapshot() ([]float32, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumedOffset > len(b.samples) {
		b.consumedOffset = 0
	}
	out := make([]float32, len(b.samples)-b.consumedOffset)
	copy(out, b.samples[b.consumedOffset:])
	start := float64(b.totalAdded-int64(len(b.samples))+int64(b.consumedOffset)) / float64(b.sampleRate)
	return out, start
}

// Consume advances the consumed offset by n samples, clamped so the offset
// never passes the end of the buffer.
func (b *RingBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumedOffset += n
	if b.consumedOffset > len(b.samples) {
		b.consumedOffset = len(b.samples)
	}
}

// Window returns a copy of every retained sample.
func (b *RingBuffer) Window() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of retained samples.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Duration returns the retained audio duration in seconds.
func (b *RingBuffer) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(len(b.samples)) / float64(b.sampleRate)
}

// UnconsumedDuration returns the not-yet-consumed audio duration in seconds.
func (b *RingBuffer) UnconsumedDuration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := b.consumedOffset
	if off > len(b.samples) {
		off = 0
	}
	return float64(len(b.samples)-off) / float64(b.sampleRate)
}

// TotalAdded returns the global sample clock: the count of all samples ever
// appended, eviction included.
func (b *RingBuffer) TotalAdded() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalAdded
}

// ConsumedOffset returns the current consumed offset into the retained
// samples.
func (b *RingBuffer) ConsumedOffset() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumedOffset
}

// StartTime returns the stream time (seconds since the first appended
// sample) of the oldest retained sample.
func (b *RingBuffer) StartTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.totalAdded-int64(len(b.samples))) / float64(b.sampleRate)
}

// SampleRate returns the buffer's sample rate in Hz.
func (b *RingBuffer) SampleRate() int {
	return b.sampleRate
}

// Drain evicts every retained sample and resets the consumed offset. The
// global sample clock keeps counting, so stream positions computed after a
// drain stay comparable with positions from before it.
func (b *RingBuffer) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
	b.consumedOffset = 0
}

// Clear drops all retained samples, the consumed offset, and the global
// sample clock.
func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
	b.consumedOffset = 0
	b.totalAdded = 0
}

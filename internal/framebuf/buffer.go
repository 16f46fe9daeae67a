// Package framebuf holds the fixed window of recent frames the pipeline
// matches against.
package framebuf

import (
	"image"

	"github.com/banshee-data/featurebench/internal/features"
)

// Frame is one loaded image and everything computed for it.
type Frame struct {
	Index       int
	Image       *image.Gray
	Keypoints   []features.Keypoint
	Descriptors *features.Descriptors
	// Matches against the previous frame, empty for the first frame of a
	// window.
	Matches []features.Match
}

// Buffer is a fixed-capacity FIFO of frames. Pushing into a full buffer
// evicts the oldest frame in O(1).
type Buffer struct {
	frames   []*Frame
	capacity int
	head     int // next write position
	size     int
}

// NewBuffer creates a buffer holding at most capacity frames. Capacities
// below one are raised to one.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		frames:   make([]*Frame, capacity),
		capacity: capacity,
	}
}

// Push appends f and returns the evicted frame, if any.
func (b *Buffer) Push(f *Frame) *Frame {
	var evicted *Frame
	if b.size == b.capacity {
		evicted = b.frames[b.head]
	}
	b.frames[b.head] = f
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	return evicted
}

// Back returns the frame n steps back from the newest. Back(1) is the
// newest frame. Returns nil if the frame does not exist.
func (b *Buffer) Back(n int) *Frame {
	if n < 1 || n > b.size {
		return nil
	}
	return b.frames[(b.head-n+b.capacity)%b.capacity]
}

// Current returns the newest frame.
func (b *Buffer) Current() *Frame { return b.Back(1) }

// Previous returns the frame before the newest, nil when Len() < 2.
func (b *Buffer) Previous() *Frame { return b.Back(2) }

// Len returns the number of frames held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the maximum number of frames held.
func (b *Buffer) Cap() int { return b.capacity }

// Reset empties the buffer.
func (b *Buffer) Reset() {
	for i := range b.frames {
		b.frames[i] = nil
	}
	b.head = 0
	b.size = 0
}

// All returns the held frames from oldest to newest.
func (b *Buffer) All() []*Frame {
	if b.size == 0 {
		return nil
	}
	out := make([]*Frame, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.frames[(b.head-b.size+i+b.capacity)%b.capacity]
	}
	return out
}

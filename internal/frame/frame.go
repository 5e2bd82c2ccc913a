// Package frame implements the recycling pool that hands completed pixel
// snapshots from the producer to consumers without per-tick allocation.
//
// OWNERSHIP RULE: a Frame's bytes are mutated only while its ownership count
// is exactly 1 (the pool's own handle). Once a consumer holds a second
// handle, the content is immutable until that handle is released.
package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Frame is a fixed-size RGBA8 pixel buffer with a shared-ownership count.
// Frames are created once at pool construction and recycled across ticks;
// the backing storage is only dropped when the count reaches zero, which in
// steady state happens at pool teardown.
type Frame struct {
	width  int
	height int

	// refs counts outstanding handles, including the pool's own. Visible
	// across goroutines; free-slot discovery is driven purely by this.
	refs atomic.Int32

	// mu serializes CopyFrom against concurrent byte reads so a reader can
	// never observe a half-written buffer.
	mu   sync.Mutex
	data []byte
}

func newFrame(width, height int) *Frame {
	f := &Frame{
		width:  width,
		height: height,
		data:   make([]byte, width*height*4),
	}
	f.refs.Store(1) // the pool's handle
	return f
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// Len returns the byte length of the pixel buffer.
func (f *Frame) Len() int { return f.width * f.height * 4 }

// Refs returns the current ownership count. Diagnostic only.
func (f *Frame) Refs() int32 { return f.refs.Load() }

func (f *Frame) retain() {
	f.refs.Add(1)
}

func (f *Frame) release() {
	n := f.refs.Add(-1)
	if n == 0 {
		// Last owner gone: drop the backing storage.
		f.mu.Lock()
		f.data = nil
		f.mu.Unlock()
		return
	}
	if n < 0 {
		panic("frame: release without matching handle")
	}
}

// CopyFrom overwrites the frame's contents with src.
//
// Precondition: the caller must hold the only outstanding handle (ownership
// count 1, i.e. a frame just acquired from the pool). Violating either the
// count or the length contract is a programming error and panics.
func (f *Frame) CopyFrom(src []byte) {
	if n := f.refs.Load(); n != 1 {
		panic(fmt.Sprintf("frame: CopyFrom with %d outstanding handles, want exactly 1", n))
	}
	if len(src) != len(f.data) {
		panic(fmt.Sprintf("frame: CopyFrom length %d into buffer of %d", len(src), len(f.data)))
	}
	f.mu.Lock()
	copy(f.data, src)
	f.mu.Unlock()
}

// bytes returns the pixel data after any in-flight write has completed.
func (f *Frame) bytes() []byte {
	f.mu.Lock()
	b := f.data
	f.mu.Unlock()
	return b
}

// Handle is one shared owner of a Frame's storage. Handles are not safe for
// concurrent use by multiple goroutines, but distinct handles to the same
// Frame are.
type Handle struct {
	f        *Frame
	released bool
}

// Clone returns a new handle to the same storage, incrementing the ownership
// count.
func (h *Handle) Clone() *Handle {
	if h.released {
		panic("frame: Clone of released handle")
	}
	h.f.retain()
	return &Handle{f: h.f}
}

// Release gives up this handle's share of ownership. The slot becomes
// reclaimable by the pool as soon as every consumer handle is released; no
// explicit return call is needed. Release more than once panics.
func (h *Handle) Release() {
	if h.released {
		panic("frame: double Release")
	}
	h.released = true
	h.f.release()
}

// Bytes returns an immutable view of the pixel data, valid for the handle's
// lifetime. The producer cannot overwrite the buffer while this handle
// exists, because the ownership count is above 1.
func (h *Handle) Bytes() []byte {
	if h.released {
		panic("frame: Bytes on released handle")
	}
	return h.f.bytes()
}

// Width returns the frame width in pixels.
func (h *Handle) Width() int { return h.f.width }

// Height returns the frame height in pixels.
func (h *Handle) Height() int { return h.f.height }

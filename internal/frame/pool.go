package frame

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolExhausted reports that no slot had a sole owner at acquisition time:
// every frame is currently held by an outstanding consumer handle. It is
// recoverable on a later tick and should be read as a back-pressure signal
// for tuning the slot count.
var ErrPoolExhausted = errors.New("frame pool exhausted: all slots held by consumers")

// Pool owns a fixed set of Frame slots and tracks the most recently
// published one. The slot count is fixed at construction; a pool sized below
// the maximum number of simultaneously outstanding consumer handles will
// starve the producer.
//
// One producer goroutine drives AcquireFree/Publish; any number of consumer
// goroutines may call LastPublished concurrently.
type Pool struct {
	slots []*Frame

	// mu makes the published-reference swap atomic with consumer retains,
	// so a consumer can never gain a handle on a frame that has already
	// been unpublished and reclaimed for writing.
	mu        sync.Mutex
	published *Frame

	// generation counts publishes, letting pollers skip frames they have
	// already seen.
	generation atomic.Uint64
}

// NewPool creates a pool of slots frames, each width x height RGBA8.
func NewPool(slots, width, height int) *Pool {
	p := &Pool{slots: make([]*Frame, slots)}
	for i := range p.slots {
		p.slots[i] = newFrame(width, height)
	}
	return p
}

// Slots returns the fixed slot count.
func (p *Pool) Slots() int { return len(p.slots) }

// AcquireFree scans the slots in fixed order and returns the first frame
// whose ownership count is 1, meaning the pool is its only owner and the
// producer may overwrite it. The producer borrows the pool's own handle, so
// the count stays at 1 and CopyFrom's precondition holds.
//
// AcquireFree never waits: when every slot is held it fails with
// ErrPoolExhausted immediately.
func (p *Pool) AcquireFree() (*Frame, error) {
	for _, f := range p.slots {
		// A frame with count 1 cannot gain owners behind our back:
		// consumers only reach frames through the published reference,
		// and a published frame always counts at least 2.
		if f.refs.Load() == 1 {
			return f, nil
		}
	}
	return nil, ErrPoolExhausted
}

// Publish atomically replaces the pool's "last published" reference with a
// new shared handle to f, releasing the previously published one. This is a
// pointer swap with ownership-count bookkeeping, not a byte copy.
func (p *Pool) Publish(f *Frame) {
	f.retain() // the published reference's share

	p.mu.Lock()
	old := p.published
	p.published = f
	p.mu.Unlock()
	p.generation.Add(1)

	if old != nil && old != f {
		old.release()
	} else if old == f {
		// Republishing the same frame keeps a single published share.
		f.release()
	}
}

// Generation returns the number of publishes so far. A change means
// LastPublished will return a different snapshot than before.
func (p *Pool) Generation() uint64 {
	return p.generation.Load()
}

// LastPublished returns a freshly cloned handle to the current published
// frame, or nil before the first successful publish. The caller must Release
// the handle when done reading.
func (p *Pool) LastPublished() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		return nil
	}
	p.published.retain()
	return &Handle{f: p.published}
}

// Close releases the pool's own handles: the published share first, then one
// per slot. Storage for a frame is dropped as soon as its last consumer
// handle goes away.
func (p *Pool) Close() {
	p.mu.Lock()
	old := p.published
	p.published = nil
	p.mu.Unlock()
	if old != nil {
		old.release()
	}
	for _, f := range p.slots {
		f.release()
	}
	p.slots = nil
}

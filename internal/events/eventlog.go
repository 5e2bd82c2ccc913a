// Package events records the outcome of every production cycle as an
// immutable tick event. The log is the runtime's flight recorder: it backs
// the history API and the sqlite write-through.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status classifies how a tick ended.
type Status string

const (
	StatusOK            Status = "OK"
	StatusEngineFault   Status = "ENGINE_FAULT"
	StatusMemoryFault   Status = "MEMORY_FAULT"
	StatusViewFault     Status = "VIEW_FAULT"
	StatusPoolExhausted Status = "POOL_EXHAUSTED"
)

// TickEvent is an immutable record of one production cycle.
type TickEvent struct {
	ID        string        `json:"id"`
	Number    int64         `json:"number"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
	Status    Status        `json:"status"`
	Detail    string        `json:"detail,omitempty"` // error text, empty on success
	Bytes     int           `json:"bytes"`            // bytes copied into the published frame
}

// Persister defines how an event is durably stored.
type Persister interface {
	Append(event TickEvent) error
}

// Log is the in-memory append-only log of tick events. It keeps the most
// recent maxEvents entries; the persister keeps the full history.
type Log struct {
	mu        sync.RWMutex
	events    []TickEvent
	maxEvents int
	persister Persister
}

// DefaultMaxEvents bounds the in-memory history. At 30 ticks per second this
// covers roughly the last minute.
const DefaultMaxEvents = 2048

// NewLog creates a tick log with an optional persister.
func NewLog(persister Persister) *Log {
	return &Log{
		events:    make([]TickEvent, 0, DefaultMaxEvents),
		maxEvents: DefaultMaxEvents,
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
// Persistence is write-through but off the producer's goroutine so a slow
// disk never delays the next tick.
func (l *Log) Append(event TickEvent) {
	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}
	l.mu.Unlock()

	if l.persister != nil {
		go func(e TickEvent) {
			_ = l.persister.Append(e)
		}(event)
	}
}

// Recent returns up to n most recent events, newest last.
func (l *Log) Recent(n int) []TickEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]TickEvent, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Failures returns the retained events that did not end in StatusOK.
func (l *Log) Failures() []TickEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []TickEvent
	for _, e := range l.events {
		if e.Status != StatusOK {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}

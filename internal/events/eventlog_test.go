package events

import (
	"sync"
	"testing"
	"time"
)

type capturedPersister struct {
	mu     sync.Mutex
	events []TickEvent
}

func (p *capturedPersister) Append(e TickEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func tickEvent(n int64, status Status) TickEvent {
	return TickEvent{
		ID:        GenerateEventID(),
		Number:    n,
		Timestamp: time.Now(),
		Status:    status,
	}
}

func TestAppendAndRecent(t *testing.T) {
	l := NewLog(nil)
	for i := int64(1); i <= 5; i++ {
		l.Append(tickEvent(i, StatusOK))
	}

	recent := l.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) returned %d events", len(recent))
	}
	if recent[0].Number != 3 || recent[2].Number != 5 {
		t.Errorf("Recent(3) window is [%d, %d], want [3, 5]", recent[0].Number, recent[2].Number)
	}
}

func TestFailuresFilter(t *testing.T) {
	l := NewLog(nil)
	l.Append(tickEvent(1, StatusOK))
	l.Append(tickEvent(2, StatusPoolExhausted))
	l.Append(tickEvent(3, StatusOK))
	l.Append(tickEvent(4, StatusEngineFault))

	failures := l.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Status != StatusPoolExhausted || failures[1].Status != StatusEngineFault {
		t.Errorf("unexpected failure statuses: %v, %v", failures[0].Status, failures[1].Status)
	}
}

func TestLogBoundsRetention(t *testing.T) {
	l := NewLog(nil)
	for i := int64(0); i < int64(DefaultMaxEvents)+10; i++ {
		l.Append(tickEvent(i, StatusOK))
	}
	if got := l.Len(); got != DefaultMaxEvents {
		t.Errorf("retained %d events, want %d", got, DefaultMaxEvents)
	}
	recent := l.Recent(1)
	if recent[0].Number != int64(DefaultMaxEvents)+9 {
		t.Errorf("newest retained event is %d, want %d", recent[0].Number, DefaultMaxEvents+9)
	}
}

func TestWriteThroughPersister(t *testing.T) {
	p := &capturedPersister{}
	l := NewLog(p)
	l.Append(tickEvent(1, StatusOK))

	// Persistence is async; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.Lock()
		n := len(p.events)
		p.mu.Unlock()
		if n == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("persister never received the event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGenerateEventIDUnique(t *testing.T) {
	a, b := GenerateEventID(), GenerateEventID()
	if a == b {
		t.Errorf("consecutive event IDs collided: %s", a)
	}
	if a == "" {
		t.Error("empty event ID")
	}
}

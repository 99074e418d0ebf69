package analytics

import (
	"sync"
	"time"
)

// #region event-names
const (
	EventRunStarted      = "run_started"
	EventAnswerCommitted = "answer_committed"
	EventAnswerUndone    = "answer_undone"
	EventRunFinished     = "run_finished"
	EventStateRecovered  = "state_recovered"
	EventCommitRejected  = "commit_rejected"
)

// #endregion event-names

// #region sink
// Sink receives fire-and-forget analytics events. Implementations must not
// block the caller for long; wrap slow sinks in Async.
type Sink interface {
	Record(name string, props map[string]any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(string, map[string]any) {}

// #endregion sink

// #region event
// Event is one recorded analytics event.
type Event struct {
	ID        string
	RunID     string
	Name      string
	Props     map[string]any
	CreatedAt time.Time
}

// #endregion event

// #region memory
// Memory keeps events in memory. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(name string, props map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	m.events = append(m.events, Event{Name: name, Props: cp, CreatedAt: time.Now().UTC()})
}

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Names returns the recorded event names in order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Name
	}
	return out
}

// #endregion memory

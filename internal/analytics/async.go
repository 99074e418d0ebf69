package analytics

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type queued struct {
	name  string
	props map[string]any
}

// #region async
// Async forwards events to another sink from a single background goroutine.
// Record never blocks: when the buffer is full the event is dropped.
type Async struct {
	next    Sink
	logger  *zap.Logger
	ch      chan queued
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsync starts the forwarding goroutine. Call Close to drain and stop it.
func NewAsync(next Sink, buffer int, logger *zap.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{
		next:   next,
		logger: logger,
		ch:     make(chan queued, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.ch {
		a.next.Record(q.name, q.props)
	}
}

// Record queues the event, dropping it when the buffer is full or the sink is closed.
func (a *Async) Record(name string, props map[string]any) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.ch <- queued{name: name, props: props}:
	default:
		a.dropped.Add(1)
		a.logger.Debug("analytics buffer full; event dropped", zap.String("event", name))
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be forwarded.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

// #endregion async

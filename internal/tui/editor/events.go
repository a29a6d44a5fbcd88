package editor

import (
	"sync"

	"github.com/marcus/geoedit/internal/session"
)

// eventQueue carries session events from the controller to the program.
// push never blocks: the controller emits while holding its lock, and the
// program calls back into the controller from Update.
type eventQueue struct {
	mu      sync.Mutex
	pending []session.Event
	ready   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

// coalesces reports whether only the latest of a run of kind matters.
func coalesces(kind session.EventKind) bool {
	switch kind {
	case session.EventModifications, session.EventReady, session.EventCloneProgress:
		return true
	}
	return false
}

func (q *eventQueue) push(ev session.Event) {
	q.mu.Lock()
	if n := len(q.pending); n > 0 && coalesces(ev.Kind) && q.pending[n-1].Kind == ev.Kind {
		q.pending[n-1] = ev
	} else {
		q.pending = append(q.pending, ev)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (session.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return session.Event{}, false
	}
	ev := q.pending[0]
	q.pending[0] = session.Event{}
	q.pending = q.pending[1:]
	return ev, true
}

// next blocks until an event is queued.
func (q *eventQueue) next() session.Event {
	for {
		if ev, ok := q.pop(); ok {
			return ev
		}
		<-q.ready
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

package session

import (
	"fmt"

	"github.com/marcus/geoedit/internal/changes"
	"github.com/marcus/geoedit/internal/featuretable"
	"github.com/marcus/geoedit/internal/gitsync"
)

// EventKind identifies a session event.
type EventKind int

const (
	EventReady EventKind = iota
	EventModifications
	EventCloneStarted
	EventCloneProgress
	EventCloneFinished
	EventPublishFinished
	EventConnection
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventModifications:
		return "modifications"
	case EventCloneStarted:
		return "clone_started"
	case EventCloneProgress:
		return "clone_progress"
	case EventCloneFinished:
		return "clone_finished"
	case EventPublishFinished:
		return "publish_finished"
	case EventConnection:
		return "connection"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one entry of the session's status feed. Which fields are set
// depends on Kind:
//
//	Ready            Source, Columns
//	Modifications    Counts, HasChanges, Change (nil after a revert or publish)
//	CloneProgress    Progress
//	CloneFinished    Success, Message, Err
//	PublishFinished  Success, Message, Err, Outcome, Counts
//	Connection       Success, Message, Err
type Event struct {
	Kind EventKind

	Source  string
	Columns []string

	Counts     changes.Counts
	HasChanges bool
	Change     *featuretable.Change

	Progress gitsync.Progress

	Success bool
	Message string
	Err     error
	Outcome gitsync.PushOutcome
}

type listener struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every event. Events from clone and publish are
// delivered on the worker goroutine; fn must not block. The returned
// function removes the subscription.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit delivers events in order. It must be called without c.mu held so
// listeners may call back into the controller.
func (c *Controller) emit(events ...Event) {
	c.lmu.Lock()
	ls := make([]listener, len(c.listeners))
	copy(ls, c.listeners)
	c.lmu.Unlock()

	for _, ev := range events {
		for _, l := range ls {
			l.fn(ev)
		}
	}
}

func modifications(counts changes.Counts, change *featuretable.Change) Event {
	return Event{
		Kind:       EventModifications,
		Counts:     counts,
		HasChanges: counts.Total() > 0,
		Change:     change,
	}
}

package session

import (
	"fmt"
	"sync/atomic"

	"github.com/marcus/geoedit/internal/gitsync"
)

// Status is the tagged outcome of a background task.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is delivered when a task completes.
type Result struct {
	Status  Status
	Outcome gitsync.PushOutcome // publish only
	Message string
	Err     error
}

// Task is a clone or publish running on the controller's worker.
type Task struct {
	op        string
	cancelled atomic.Bool
	done      chan struct{}
	result    Result
}

func newTask(op string) *Task {
	return &Task{op: op, done: make(chan struct{})}
}

// Op returns "clone" or "publish".
func (t *Task) Op() string { return t.op }

// Cancel requests cooperative cancellation. Only clones observe it, at the
// checkpoint after the transfer.
func (t *Task) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Done is closed when the task has finished and its events were emitted.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns its result.
func (t *Task) Wait() Result {
	<-t.done
	return t.result
}

func (t *Task) finish(r Result) {
	t.result = r
	close(t.done)
}

func resultOf(err error) Result {
	switch {
	case err == nil:
		return Result{Status: StatusSucceeded}
	case gitsync.Classify(err) == gitsync.KindCancelled:
		return Result{Status: StatusCancelled, Err: err, Message: err.Error()}
	}
	return Result{Status: StatusFailed, Err: err, Message: err.Error()}
}

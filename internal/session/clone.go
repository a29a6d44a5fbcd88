package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/history"
)

// StartClone clones the configured remote into the working copy on the
// worker, emitting CloneStarted, CloneProgress and CloneFinished. Cancel the
// returned task to discard the clone once the transfer completes.
func (c *Controller) StartClone(ctx context.Context) (*Task, error) {
	c.mu.Lock()
	if c.task != nil {
		c.mu.Unlock()
		return nil, gitsync.ErrBusy
	}
	if err := c.cfg.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	opts := gitsync.CloneOptions{
		RemoteURL: c.cfg.RemoteURL,
		Username:  c.cfg.Username,
		Token:     c.cfg.AccessToken(),
		LocalPath: c.cfg.WorkingCopy(),
	}
	t := newTask("clone")
	c.task = t
	c.mu.Unlock()

	c.emit(Event{Kind: EventCloneStarted, Message: fmt.Sprintf("cloning into %s", opts.LocalPath)})

	go func() {
		onProgress := func(p gitsync.Progress) {
			c.emit(Event{Kind: EventCloneProgress, Progress: p})
		}
		h, err := c.repo.Clone(ctx, opts, onProgress, t.Cancelled)

		c.mu.Lock()
		c.task = nil
		if err == nil {
			c.handle = h
		}
		c.mu.Unlock()

		r := resultOf(err)
		if err == nil {
			r.Message = fmt.Sprintf("cloned into %s", opts.LocalPath)
			slog.Info("session: clone finished", "path", opts.LocalPath)
		} else {
			slog.Warn("session: clone did not complete", "status", r.Status, "err", err)
		}

		c.record(ctx, history.Entry{
			Op:      history.OpClone,
			Path:    opts.LocalPath,
			Result:  resultLabel(err, gitsync.OutcomeNone),
			Message: r.Message,
		})
		c.emit(Event{Kind: EventCloneFinished, Success: err == nil, Message: r.Message, Err: err})
		t.finish(r)
	}()
	return t, nil
}

// Clone runs StartClone and waits for the result.
func (c *Controller) Clone(ctx context.Context) (Result, error) {
	t, err := c.StartClone(ctx)
	if err != nil {
		return Result{}, err
	}
	return t.Wait(), nil
}

package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marcus/geoedit/internal/changes"
	"github.com/marcus/geoedit/internal/config"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/history"
)

// StartPublish writes the table to its file and starts pull, commit and push
// on the worker. With nothing to publish it returns an already finished task.
//
// On success (pushed, or nothing staged) the file is read back, since the
// pull may have merged other edits into it; the table is reloaded from it,
// it becomes the revert snapshot and the tracker is reset. On failure the table and tracker
// are left exactly as they were, so the publish can be retried.
func (c *Controller) StartPublish(ctx context.Context) (*Task, error) {
	c.mu.Lock()
	if c.task != nil {
		c.mu.Unlock()
		return nil, gitsync.ErrBusy
	}
	if c.source == nil {
		c.mu.Unlock()
		return nil, ErrNoSource
	}
	if !c.tracker.HasChanges() && !c.pendingPush {
		c.mu.Unlock()
		t := newTask("publish")
		t.finish(Result{Status: StatusSucceeded, Outcome: gitsync.OutcomeNoChanges, Message: "nothing to publish"})
		c.emit(Event{Kind: EventPublishFinished, Success: true, Message: "nothing to publish", Outcome: gitsync.OutcomeNoChanges})
		return t, nil
	}

	h, err := c.probeLocked(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !h.Cloned() {
		c.mu.Unlock()
		return nil, gitsync.ErrNotInitialized
	}

	data, err := c.table.Serialize()
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("serialize %s: %w", c.source.Name, err)
	}
	ds := *c.source
	path := c.cfg.FilePath(ds)
	if err := writeFileAtomic(path, data); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	t := newTask("publish")
	c.task = t
	c.publishing = true
	pending := c.pendingPush
	counts := c.tracker.Counts()
	c.mu.Unlock()

	slog.Info("session: publishing", "source", ds.Name, "path", ds.Path,
		"adds", counts.Adds, "deletes", counts.Deletes, "edits", counts.Edits)

	go func() {
		outcome, err := c.repo.CommitAndPush(ctx, h, ds.Path, c.commitMessage(ds.Path))
		if err == nil && outcome == gitsync.OutcomeNoChanges && pending {
			if err = c.repo.Push(ctx, h); err == nil {
				outcome = gitsync.OutcomePushed
			} else {
				outcome = gitsync.OutcomeCommitted
			}
		}
		c.finishPublish(ctx, t, ds, path, data, counts, outcome, err)
	}()
	return t, nil
}

func (c *Controller) finishPublish(ctx context.Context, t *Task, ds config.DataSource, path string, data []byte, counts changes.Counts, outcome gitsync.PushOutcome, err error) {
	name, relPath := ds.Name, ds.Path

	c.mu.Lock()
	c.task = nil
	c.publishing = false
	var columns []string
	if err == nil {
		c.snapshot = c.reloadMergedLocked(ds, path, data)
		columns = c.table.Columns()
		c.tracker.Reset()
		c.pendingPush = false
	} else if outcome == gitsync.OutcomeCommitted {
		c.pendingPush = true
	}
	after := c.tracker.Counts()
	c.mu.Unlock()

	r := resultOf(err)
	r.Outcome = outcome
	switch {
	case err != nil:
		slog.Warn("session: publish failed", "source", name, "outcome", outcome, "err", err)
	case outcome == gitsync.OutcomeNoChanges:
		r.Message = "no changes to publish"
		slog.Info("session: nothing to commit", "source", name)
	default:
		r.Message = fmt.Sprintf("published %s", relPath)
		slog.Info("session: published", "source", name)
	}

	c.record(ctx, history.Entry{
		Op:      history.OpPublish,
		Source:  name,
		Path:    relPath,
		Result:  resultLabel(err, outcome),
		Message: r.Message,
		Adds:    counts.Adds,
		Deletes: counts.Deletes,
		Edits:   counts.Edits,
	})

	events := []Event{{
		Kind:    EventPublishFinished,
		Success: err == nil,
		Message: r.Message,
		Err:     err,
		Outcome: outcome,
		Counts:  counts,
	}}
	if err == nil {
		events = append(events,
			Event{Kind: EventReady, Source: name, Columns: columns},
			modifications(after, nil))
	}
	c.emit(events...)
	t.finish(r)
}

// reloadMergedLocked loads the published file back into the table and returns
// the document now on disk. If the file cannot be read or parsed, the table
// keeps what was written and written is returned.
func (c *Controller) reloadMergedLocked(ds config.DataSource, path string, written []byte) []byte {
	merged, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("session: reread published file", "path", path, "err", err)
		return written
	}
	if bytes.Equal(merged, written) {
		return written
	}
	if err := c.table.Load(merged, ds.Columns, ds.Types); err != nil {
		slog.Warn("session: reload merged file", "path", path, "err", err)
		return written
	}
	slog.Info("session: reloaded merged file", "source", ds.Name, "rows", c.table.RowCount())
	return merged
}

// Publish runs StartPublish and waits for the result.
func (c *Controller) Publish(ctx context.Context) (Result, error) {
	t, err := c.StartPublish(ctx)
	if err != nil {
		return Result{}, err
	}
	return t.Wait(), nil
}

// writeFileAtomic replaces path with data (temp file + rename), keeping the
// existing file mode.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".geoedit-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Package session composes the feature table, the change tracker and the
// repository synchronizer into the operations of one editing session: load a
// data source, edit it, revert, publish, and clone the working copy.
//
// Mutations are expected from a single caller. Clone and publish run on a
// background worker; only one of them may be in flight at a time, and table
// mutations are refused while a publish is running.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/marcus/geoedit/internal/changes"
	"github.com/marcus/geoedit/internal/config"
	"github.com/marcus/geoedit/internal/featuretable"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/history"
)

var (
	ErrNoSource      = errors.New("no data source selected")
	ErrUnknownSource = errors.New("unknown data source")
)

// Repository is the subset of *gitsync.Syncer the controller drives.
type Repository interface {
	Probe(ctx context.Context, localPath string) (*gitsync.Handle, error)
	TestConnection(ctx context.Context, h *gitsync.Handle) error
	Clone(ctx context.Context, opts gitsync.CloneOptions, onProgress func(gitsync.Progress), cancelled func() bool) (*gitsync.Handle, error)
	CommitAndPush(ctx context.Context, h *gitsync.Handle, relPath, message string) (gitsync.PushOutcome, error)
	Push(ctx context.Context, h *gitsync.Handle) error
	SetRemote(ctx context.Context, h *gitsync.Handle, remote, username, token string) error
}

// Recorder persists clone and publish outcomes.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder appends clone and publish outcomes to r.
func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }

// WithSessionID sets the identifier stored with history entries.
func WithSessionID(id string) Option { return func(c *Controller) { c.sessionID = id } }

// WithCommitMessage replaces the commit message built for a published path.
func WithCommitMessage(fn func(path string) string) Option {
	return func(c *Controller) { c.commitMessage = fn }
}

// CommitMessage is the default message for publishing path.
func CommitMessage(path string) string {
	return fmt.Sprintf("Mise à jour de %s via l'éditeur", path)
}

// Controller owns one editing session.
type Controller struct {
	repo          Repository
	recorder      Recorder
	sessionID     string
	commitMessage func(string) string

	mu         sync.Mutex
	cfg        *config.Config
	handle     *gitsync.Handle
	table      *featuretable.Table
	tracker    *changes.Tracker
	source     *config.DataSource
	snapshot   []byte // last loaded or published document
	task       *Task
	publishing bool
	// pendingPush is set when a commit was made but its push failed; the
	// next publish pushes even if nothing new is staged.
	pendingPush bool

	lmu       sync.Mutex
	listeners []listener
	nextID    int
}

// New returns a controller for cfg. cfg is copied; use Reconfigure to
// replace it.
func New(cfg *config.Config, repo Repository, opts ...Option) *Controller {
	c := &Controller{
		repo:          repo,
		commitMessage: CommitMessage,
		cfg:           cfg.Clone(),
		table:         featuretable.New(),
		tracker:       changes.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID == "" {
		c.sessionID = history.NewSessionID()
	}
	c.table.Subscribe(c.track)
	return c
}

// track updates the tracker from table changes. Called with c.mu held.
func (c *Controller) track(ch featuretable.Change) {
	switch ch.Kind {
	case featuretable.ChangeCell:
		c.tracker.RecordEdit(ch.Row)
	case featuretable.ChangeRowsInserted:
		c.tracker.RecordAdd()
	case featuretable.ChangeRowsRemoved:
		c.tracker.RecordDelete()
	}
}

// SessionID returns the identifier stored with history entries.
func (c *Controller) SessionID() string { return c.sessionID }

// Config returns a copy of the current configuration.
func (c *Controller) Config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// Reconfigure replaces the configuration wholesale and re-probes the working
// copy. The loaded table is kept.
func (c *Controller) Reconfigure(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task != nil {
		return gitsync.ErrBusy
	}
	old := c.cfg
	c.cfg = cfg.Clone()
	c.handle = nil
	c.pendingPush = false
	h, err := c.probeLocked(ctx)
	if err != nil {
		return err
	}

	// Clone stored the remote and its credentials in origin.
	if h.Cloned() && remoteChanged(old, c.cfg) && strings.TrimSpace(c.cfg.RemoteURL) != "" {
		return c.repo.SetRemote(ctx, h, c.cfg.RemoteURL, c.cfg.Username, c.cfg.AccessToken())
	}
	return nil
}

func remoteChanged(a, b *config.Config) bool {
	return a.RemoteURL != b.RemoteURL || a.Username != b.Username || a.AccessToken() != b.AccessToken()
}

// Refresh re-probes the working copy and returns its handle.
func (c *Controller) Refresh(ctx context.Context) (*gitsync.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = nil
	return c.probeLocked(ctx)
}

func (c *Controller) probeLocked(ctx context.Context) (*gitsync.Handle, error) {
	if c.handle != nil {
		return c.handle, nil
	}
	h, err := c.repo.Probe(ctx, c.cfg.WorkingCopy())
	if err != nil {
		return nil, err
	}
	c.handle = h
	return h, nil
}

// SelectDataSource loads the named source from the working copy, resets the
// tracker and emits Ready.
func (c *Controller) SelectDataSource(ctx context.Context, name string) error {
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return gitsync.ErrBusy
	}
	ds, ok := c.cfg.Source(name)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	path := c.cfg.FilePath(ds)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if h, perr := c.probeLocked(ctx); perr == nil && !h.Cloned() {
				err = gitsync.ErrNotInitialized
			}
		}
		c.mu.Unlock()
		return fmt.Errorf("load %s: %w", name, err)
	}
	if err := c.table.Load(data, ds.Columns, ds.Types); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("load %s: %w", name, err)
	}
	c.tracker.Reset()
	c.source = &ds
	c.snapshot = data
	columns := c.table.Columns()
	c.mu.Unlock()

	slog.Info("session: source loaded", "source", name, "rows", c.RowCount(), "columns", len(columns))
	c.emit(
		Event{Kind: EventReady, Source: name, Columns: columns},
		modifications(changes.Counts{}, nil),
	)
	return nil
}

// mutate runs fn against the table with the mutation preconditions checked,
// then emits Modifications.
func (c *Controller) mutate(fn func() (*featuretable.Change, error)) error {
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return gitsync.ErrBusy
	}
	if c.source == nil {
		c.mu.Unlock()
		return ErrNoSource
	}
	change, err := fn()
	counts := c.tracker.Counts()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.emit(modifications(counts, change))
	return nil
}

// AddRow appends a blank feature and returns its row.
func (c *Controller) AddRow() (int, error) {
	row := -1
	err := c.mutate(func() (*featuretable.Change, error) {
		row = c.table.InsertRow()
		return &featuretable.Change{Kind: featuretable.ChangeRowsInserted, Row: row}, nil
	})
	return row, err
}

// DeleteRow removes row i.
func (c *Controller) DeleteRow(i int) error {
	return c.mutate(func() (*featuretable.Change, error) {
		if c.table.RemoveRows([]int{i}) == 0 {
			return nil, fmt.Errorf("%w: %d", featuretable.ErrOutOfRange, i)
		}
		return &featuretable.Change{Kind: featuretable.ChangeRowsRemoved, Row: i}, nil
	})
}

// SetCell writes raw into column on row. The returned change reports whether
// the value was coerced to the column's zero value.
func (c *Controller) SetCell(row int, column string, raw any) (featuretable.Change, error) {
	var change featuretable.Change
	err := c.mutate(func() (*featuretable.Change, error) {
		ch, err := c.table.SetCellValue(row, column, raw)
		if err != nil {
			return nil, err
		}
		change = ch
		return &ch, nil
	})
	return change, err
}

// RevertChanges reloads the last loaded or published document and resets the
// tracker.
func (c *Controller) RevertChanges() error {
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return gitsync.ErrBusy
	}
	if c.source == nil {
		c.mu.Unlock()
		return ErrNoSource
	}
	if err := c.table.Load(c.snapshot, c.source.Columns, c.source.Types); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("revert: %w", err)
	}
	c.tracker.Reset()
	name := c.source.Name
	columns := c.table.Columns()
	c.mu.Unlock()

	c.emit(
		Event{Kind: EventReady, Source: name, Columns: columns},
		modifications(changes.Counts{}, nil),
	)
	return nil
}

// TestConnection checks the remote and emits Connection.
func (c *Controller) TestConnection(ctx context.Context) error {
	c.mu.Lock()
	h, err := c.probeLocked(ctx)
	c.mu.Unlock()
	if err == nil {
		err = c.repo.TestConnection(ctx, h)
	}

	ev := Event{Kind: EventConnection, Success: err == nil, Err: err, Message: "connection ok"}
	if err != nil {
		ev.Message = err.Error()
	}
	c.emit(ev)
	return err
}

// Source returns the loaded data source.
func (c *Controller) Source() (config.DataSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return config.DataSource{}, false
	}
	return *c.source, true
}

// Columns returns the loaded table's columns.
func (c *Controller) Columns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Columns()
}

// ColumnType returns the declared type of column.
func (c *Controller) ColumnType(column string) featuretable.ColumnType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.ColumnType(column)
}

// RowCount returns the number of rows.
func (c *Controller) RowCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.RowCount()
}

// CellValue returns the value of a cell.
func (c *Controller) CellValue(row int, column string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.CellValue(row, column)
}

// CellText returns the display form of a cell.
func (c *Controller) CellText(row int, column string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.CellText(row, column)
}

// Counts returns the unsaved change counters.
func (c *Controller) Counts() changes.Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Counts()
}

// HasChanges reports whether the session has unsaved changes.
func (c *Controller) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.HasChanges()
}

// PendingPush reports whether a commit is waiting to be pushed.
func (c *Controller) PendingPush() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingPush
}

// Busy reports whether a clone or publish is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task != nil
}

func (c *Controller) record(ctx context.Context, e history.Entry) {
	if c.recorder == nil {
		return
	}
	e.SessionID = c.sessionID
	if _, err := c.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("session: record history", "op", e.Op, "err", err)
	}
}

func resultLabel(err error, outcome gitsync.PushOutcome) string {
	if err != nil {
		return string(gitsync.Classify(err))
	}
	if outcome == gitsync.OutcomeNoChanges {
		return string(gitsync.KindNoChanges)
	}
	return "success"
}

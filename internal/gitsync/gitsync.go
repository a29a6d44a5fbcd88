// Package gitsync manages the local working copy of the data repository:
// probing, cloning with progress, connectivity checks, and the pull, commit,
// push sequence used to publish an edited file.
//
// All operations shell out to the git executable through a Runner. Every
// operation that touches the working copy holds a file lock beside it, so
// only one sync operation per path runs at a time.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle state of a working copy.
type State int

const (
	StateAbsent State = iota
	StateCloning
	StateReady
	StateSyncing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateCloning:
		return "cloning"
	case StateReady:
		return "ready"
	case StateSyncing:
		return "syncing"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handle refers to a working copy on disk.
type Handle struct {
	LocalPath        string
	RemoteConfigured bool

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Cloned reports whether the handle refers to an existing working copy.
func (h *Handle) Cloned() bool {
	if h == nil {
		return false
	}
	s := h.State()
	return s != StateAbsent && s != StateCloning
}

// Identity is the commit author used for published changes.
type Identity struct {
	Name  string
	Email string
}

// Syncer performs git operations on working copies.
type Syncer struct {
	runner      Runner
	metrics     *Metrics
	identity    Identity
	lockTimeout time.Duration
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithRunner replaces the git executable runner.
func WithRunner(r Runner) Option { return func(s *Syncer) { s.runner = r } }

// WithMetrics records operation metrics.
func WithMetrics(m *Metrics) Option { return func(s *Syncer) { s.metrics = m } }

// WithIdentity sets the commit author.
func WithIdentity(id Identity) Option { return func(s *Syncer) { s.identity = id } }

// WithLockTimeout bounds how long an operation waits for the path lock.
func WithLockTimeout(d time.Duration) Option { return func(s *Syncer) { s.lockTimeout = d } }

// New returns a Syncer using the git executable on PATH.
func New(opts ...Option) *Syncer {
	s := &Syncer{runner: ExecRunner{}, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) git(ctx context.Context, dir string, args ...string) (string, error) {
	return s.runner.Run(ctx, Command{Dir: dir, Args: args})
}

// lock takes the path lock for localPath; the returned function releases it.
func (s *Syncer) lock(localPath string) (func(), error) {
	l := newPathLocker(localPath)
	if err := l.acquire(s.lockTimeout); err != nil {
		return nil, err
	}
	return l.release, nil
}

// Probe inspects localPath without touching the network. A missing working
// copy yields a handle in StateAbsent, not an error.
func (s *Syncer) Probe(ctx context.Context, localPath string) (*Handle, error) {
	h := &Handle{LocalPath: localPath}
	if localPath == "" {
		return h, nil
	}
	ok, err := hasMarker(localPath)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", localPath, err)
	}
	if !ok {
		return h, nil
	}

	h.state = StateReady
	out, err := s.git(ctx, localPath, "config", "--get", "remote.origin.url")
	h.RemoteConfigured = err == nil && strings.TrimSpace(out) != ""
	return h, nil
}

func hasMarker(localPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(localPath, ".git"))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// TestConnection checks that the remote is reachable and accepts the stored
// credentials. It lists remote heads only and never changes local state.
func (s *Syncer) TestConnection(ctx context.Context, h *Handle) (err error) {
	start := time.Now()
	defer func() { s.metrics.observe("ls-remote", start, resultLabel(err)) }()

	if !h.Cloned() {
		return ErrNotInitialized
	}
	if !h.RemoteConfigured {
		return errorf("ls-remote", nil, "no remote named origin")
	}
	if _, err := s.git(ctx, h.LocalPath, "ls-remote", "--heads", "origin"); err != nil {
		failure := commandFailure("ls-remote", err)
		slog.Debug("gitsync: connection test failed", "path", h.LocalPath, "err", failure)
		return failure
	}
	return nil
}

// Pull fetches and merges remote changes into the working copy.
func (s *Syncer) Pull(ctx context.Context, h *Handle) (err error) {
	start := time.Now()
	defer func() { s.metrics.observe("pull", start, resultLabel(err)) }()

	if !h.Cloned() {
		return ErrNotInitialized
	}
	release, err := s.lock(h.LocalPath)
	if err != nil {
		return err
	}
	defer release()
	return s.pull(ctx, h)
}

func (s *Syncer) pull(ctx context.Context, h *Handle) error {
	h.setState(StateSyncing)
	args := append(s.identityArgs(), "pull", "--no-rebase", "--no-edit", "--autostash")
	_, pullErr := s.git(ctx, h.LocalPath, args...)

	// A conflicting merge leaves unmerged paths, and so does an autostash that
	// does not reapply, although pull then exits 0.
	out, lsErr := s.git(ctx, h.LocalPath, "ls-files", "--unmerged")
	paths := unmergedPaths(out)
	if len(paths) > 0 {
		s.abandonMerge(ctx, h)
	}

	switch {
	case pullErr != nil:
		h.setState(StateFailed)
		return &PullError{Err: commandFailure("pull", pullErr)}
	case lsErr != nil:
		h.setState(StateFailed)
		return &PullError{Err: commandFailure("ls-files", lsErr)}
	case len(paths) > 0:
		h.setState(StateFailed)
		return &PullError{Err: errorf("pull", nil, "conflicting changes in %s", strings.Join(paths, ", "))}
	}
	h.setState(StateReady)
	slog.Debug("gitsync: pulled", "path", h.LocalPath)
	return nil
}

// abandonMerge puts the working copy back at HEAD after a conflicting pull:
// the unmerged entries are reset and the autostash git kept is dropped, so the
// next pull starts clean. The local edits are not lost; the caller still
// holds them and rewrites the file on retry.
func (s *Syncer) abandonMerge(ctx context.Context, h *Handle) {
	if _, err := s.git(ctx, h.LocalPath, "reset", "--merge"); err != nil {
		slog.Warn("gitsync: reset after conflicting pull", "path", h.LocalPath, "err", err)
		return
	}
	top, err := s.git(ctx, h.LocalPath, "stash", "list", "-n", "1", "--format=%gs")
	if err != nil || strings.TrimSpace(top) != "autostash" {
		return
	}
	if _, err := s.git(ctx, h.LocalPath, "stash", "drop", "--quiet"); err != nil {
		slog.Warn("gitsync: drop autostash", "path", h.LocalPath, "err", err)
	}
}

// SetRemote points origin at remote with the given credentials. Use it after
// the remote URL or the credentials change; clone records them in origin.
func (s *Syncer) SetRemote(ctx context.Context, h *Handle, remote, username, token string) (err error) {
	start := time.Now()
	defer func() { s.metrics.observe("set-url", start, resultLabel(err)) }()

	if !h.Cloned() {
		return ErrNotInitialized
	}
	authURL, err := AuthenticatedURL(remote, username, token)
	if err != nil {
		return err
	}
	release, err := s.lock(h.LocalPath)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.git(ctx, h.LocalPath, "remote", "set-url", "origin", authURL); err != nil {
		return commandFailure("remote", err)
	}
	h.RemoteConfigured = true
	slog.Info("gitsync: origin updated", "remote", RedactURL(authURL), "path", h.LocalPath)
	return nil
}

// unmergedPaths extracts the distinct paths of `git ls-files --unmerged`,
// whose lines are "<mode> <sha> <stage>\t<path>".
func unmergedPaths(out string) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		_, path, ok := strings.Cut(line, "\t")
		if !ok || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

// Push pushes the current branch to origin. Use it to retry after a
// CommitAndPush whose push failed; the commit must not be recreated.
func (s *Syncer) Push(ctx context.Context, h *Handle) (err error) {
	start := time.Now()
	defer func() { s.metrics.observe("push", start, resultLabel(err)) }()

	if !h.Cloned() {
		return ErrNotInitialized
	}
	release, err := s.lock(h.LocalPath)
	if err != nil {
		return err
	}
	defer release()
	return s.push(ctx, h)
}

func (s *Syncer) push(ctx context.Context, h *Handle) error {
	h.setState(StateSyncing)
	if _, err := s.git(ctx, h.LocalPath, "push", "origin", "HEAD"); err != nil {
		h.setState(StateFailed)
		return &PushError{Err: commandFailure("push", err)}
	}
	h.setState(StateReady)
	return nil
}

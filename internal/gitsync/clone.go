package gitsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CloneOptions describes the repository to clone.
type CloneOptions struct {
	RemoteURL string
	Username  string
	Token     string
	LocalPath string
}

// Clone clones opts.RemoteURL into opts.LocalPath, reporting progress through
// onProgress in phase order with a non-decreasing percentage, ending with
// 100/PhaseDone.
//
// Cancellation is cooperative: cancelled is consulted before the transfer
// starts and again after it returns, before the result is reported. A
// cancellation seen at the second checkpoint discards the clone and yields
// ErrCancelled even when the transfer succeeded. ctx is only for aborting the
// process outright.
func (s *Syncer) Clone(ctx context.Context, opts CloneOptions, onProgress func(Progress), cancelled func() bool) (h *Handle, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("clone", start, resultLabel(err)) }()

	isCancelled := func() bool { return cancelled != nil && cancelled() }
	if isCancelled() {
		return nil, ErrCancelled
	}
	if opts.LocalPath == "" {
		return nil, errorf("clone", nil, "local path is empty")
	}
	if opts.LocalPath, err = filepath.Abs(opts.LocalPath); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	existed, err := checkDestination(opts.LocalPath)
	if err != nil {
		return nil, err
	}
	authURL, err := AuthenticatedURL(opts.RemoteURL, opts.Username, opts.Token)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	release, err := s.lock(opts.LocalPath)
	if err != nil {
		return nil, err
	}
	defer release()

	h = &Handle{LocalPath: opts.LocalPath, state: StateCloning}
	slog.Info("gitsync: cloning", "remote", RedactURL(authURL), "path", opts.LocalPath)

	pw := newProgressWriter(onProgress)
	_, runErr := s.runner.Run(ctx, Command{
		Dir:    filepath.Dir(filepath.Clean(opts.LocalPath)),
		Args:   []string{"clone", "--progress", authURL, opts.LocalPath},
		Stderr: pw,
	})
	pw.Flush()

	if isCancelled() {
		if runErr == nil {
			discardClone(opts.LocalPath, existed)
		}
		slog.Info("gitsync: clone cancelled", "path", opts.LocalPath)
		return nil, ErrCancelled
	}
	if runErr != nil {
		return nil, commandFailure("clone", runErr)
	}

	h.RemoteConfigured = true
	h.setState(StateReady)
	if onProgress != nil {
		onProgress(Progress{Percent: 100, Phase: PhaseDone})
	}
	return h, nil
}

// checkDestination fails with ErrDestinationExists when localPath holds a
// working copy or any other content. It reports whether the (empty)
// directory already existed.
func checkDestination(localPath string) (bool, error) {
	info, err := os.Stat(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s is a file", ErrDestinationExists, localPath)
	}
	entries, err := os.ReadDir(localPath)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return true, fmt.Errorf("%w: %s", ErrDestinationExists, localPath)
	}
	return true, nil
}

// discardClone removes what a cancelled clone produced.
func discardClone(localPath string, existed bool) {
	if !existed {
		if err := os.RemoveAll(localPath); err != nil {
			slog.Warn("gitsync: remove cancelled clone", "path", localPath, "err", err)
		}
		return
	}
	entries, err := os.ReadDir(localPath)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(localPath, e.Name())); err != nil {
			slog.Warn("gitsync: remove cancelled clone", "path", localPath, "err", err)
		}
	}
}

package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// PushOutcome is the terminal state of a successful or partially successful
// CommitAndPush.
type PushOutcome int

const (
	OutcomeNone      PushOutcome = iota
	OutcomeNoChanges             // nothing staged for the file; nothing committed
	OutcomeCommitted             // committed locally, push failed
	OutcomePushed
)

func (o PushOutcome) String() string {
	switch o {
	case OutcomeNoChanges:
		return "no_changes"
	case OutcomeCommitted:
		return "committed"
	case OutcomePushed:
		return "pushed"
	}
	return "none"
}

// CommitAndPush publishes relPath: pull, stage exactly relPath, commit with
// message, push to origin.
//
// A failed pull aborts before anything is staged and returns a *SyncError.
// When the file has no staged difference the result is OutcomeNoChanges with
// a nil error. A failed push returns OutcomeCommitted and a *PushError; the
// local commit is kept, so retry with Push rather than committing again.
func (s *Syncer) CommitAndPush(ctx context.Context, h *Handle, relPath, message string) (outcome PushOutcome, err error) {
	start := time.Now()
	defer func() {
		result := resultLabel(err)
		if err == nil && outcome == OutcomeNoChanges {
			result = string(KindNoChanges)
		}
		s.metrics.observe("commit_and_push", start, result)
	}()

	if !h.Cloned() {
		return OutcomeNone, ErrNotInitialized
	}
	if !filepath.IsLocal(relPath) {
		return OutcomeNone, errorf("add", nil, "path %q is outside the working copy", relPath)
	}
	gitPath := filepath.ToSlash(filepath.Clean(relPath))

	release, err := s.lock(h.LocalPath)
	if err != nil {
		return OutcomeNone, err
	}
	defer release()

	if err := s.pull(ctx, h); err != nil {
		return OutcomeNone, &SyncError{Err: err}
	}

	if _, err := s.git(ctx, h.LocalPath, "add", "--", gitPath); err != nil {
		return OutcomeNone, commandFailure("add", err)
	}

	changed, err := s.hasStagedChanges(ctx, h, gitPath)
	if err != nil {
		return OutcomeNone, err
	}
	if !changed {
		slog.Info("gitsync: nothing to commit", "path", gitPath)
		return OutcomeNoChanges, nil
	}

	args := append(s.identityArgs(), "commit", "-m", message, "--", gitPath)
	if _, err := s.git(ctx, h.LocalPath, args...); err != nil {
		return OutcomeNone, commandFailure("commit", err)
	}
	slog.Info("gitsync: committed", "path", gitPath)

	if err := s.push(ctx, h); err != nil {
		return OutcomeCommitted, err
	}
	slog.Info("gitsync: pushed", "path", gitPath)
	return OutcomePushed, nil
}

// hasStagedChanges runs `git diff --cached --quiet`, which exits 1 when the
// index differs from HEAD for path.
func (s *Syncer) hasStagedChanges(ctx context.Context, h *Handle, path string) (bool, error) {
	_, err := s.git(ctx, h.LocalPath, "diff", "--cached", "--quiet", "--", path)
	if err == nil {
		return false, nil
	}
	var ce *CommandError
	if errors.As(err, &ce) && ce.ExitCode == 1 {
		return true, nil
	}
	return false, commandFailure("diff", err)
}

func (s *Syncer) identityArgs() []string {
	var args []string
	if s.identity.Name != "" {
		args = append(args, "-c", fmt.Sprintf("user.name=%s", s.identity.Name))
	}
	if s.identity.Email != "" {
		args = append(args, "-c", fmt.Sprintf("user.email=%s", s.identity.Email))
	}
	return args
}

package gitsync

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDestinationExists    = errors.New("destination already contains a working copy")
	ErrNotInitialized       = errors.New("repository not initialized")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrHostUnreachable      = errors.New("host unreachable")
	ErrCancelled            = errors.New("cancelled")
	ErrBusy                 = errors.New("another sync operation is in progress")
	ErrUnsupportedRemote    = errors.New("unsupported remote URL")
)

// GitError is the catch-all failure of a git operation. Reason, when set, is
// one of the connectivity sentinels.
type GitError struct {
	Op      string
	Reason  error
	Message string
	Err     error
}

func (e *GitError) Error() string {
	msg := "git " + e.Op
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *GitError) Unwrap() []error {
	var errs []error
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PullError reports a failed fetch-and-merge.
type PullError struct{ Err error }

func (e *PullError) Error() string { return "pull failed: " + e.Err.Error() }
func (e *PullError) Unwrap() error { return e.Err }

// PushError reports a failed push. The local commit it follows is kept.
type PushError struct{ Err error }

func (e *PushError) Error() string { return "push failed: " + e.Err.Error() }
func (e *PushError) Unwrap() error { return e.Err }

// SyncError reports that the mandatory pull before a commit failed; nothing
// was staged or committed.
type SyncError struct{ Err error }

func (e *SyncError) Error() string { return "sync failed: " + e.Err.Error() }
func (e *SyncError) Unwrap() error { return e.Err }

// Kind is a stable name for an error category, suitable for logs, metrics
// and history records.
type Kind string

const (
	KindNone                 Kind = ""
	KindDestinationExists    Kind = "destination_exists"
	KindNotInitialized       Kind = "not_initialized"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindHostUnreachable      Kind = "host_unreachable"
	KindPullFailed           Kind = "pull_failed"
	KindPushFailed           Kind = "push_failed"
	KindSyncFailed           Kind = "sync_failed"
	KindNoChanges            Kind = "no_changes"
	KindCancelled            Kind = "cancelled"
	KindBusy                 Kind = "busy"
	KindOther                Kind = "other"
)

// Classify maps err to its Kind. Wrapping categories (sync, pull, push) win
// over the connectivity cause they carry; use errors.Is for the cause.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		syncErr *SyncError
		pushErr *PushError
		pullErr *PullError
	)
	switch {
	case errors.As(err, &syncErr):
		return KindSyncFailed
	case errors.As(err, &pushErr):
		return KindPushFailed
	case errors.As(err, &pullErr):
		return KindPullFailed
	case errors.Is(err, ErrDestinationExists):
		return KindDestinationExists
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthenticationFailed
	case errors.Is(err, ErrHostUnreachable):
		return KindHostUnreachable
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrBusy):
		return KindBusy
	}
	return KindOther
}

var (
	authPatterns = []string{
		"authentication failed",
		"could not read username",
		"could not read password",
		"invalid username or password",
		"invalid credentials",
		"terminal prompts disabled",
		"returned error: 401",
		"returned error: 403",
		"denied to",
	}
	hostPatterns = []string{
		"could not resolve host",
		"could not resolve proxy",
		"temporary failure in name resolution",
		"failed to connect",
		"couldn't connect to server",
		"connection refused",
		"connection timed out",
		"operation timed out",
		"network is unreachable",
		"no route to host",
	}
)

// classifyStderr recognises connectivity failures in git's stderr.
func classifyStderr(stderr string) error {
	s := strings.ToLower(stderr)
	for _, p := range authPatterns {
		if strings.Contains(s, p) {
			return ErrAuthenticationFailed
		}
	}
	for _, p := range hostPatterns {
		if strings.Contains(s, p) {
			return ErrHostUnreachable
		}
	}
	return nil
}

// commandFailure converts a runner error into a *GitError for op.
func commandFailure(op string, err error) error {
	var ce *CommandError
	if errors.As(err, &ce) {
		return &GitError{
			Op:      op,
			Reason:  classifyStderr(ce.Stderr),
			Message: summarizeStderr(ce.Stderr),
			Err:     err,
		}
	}
	return &GitError{Op: op, Message: err.Error(), Err: err}
}

// summarizeStderr keeps git's fatal/error lines, falling back to the last
// non-empty line. Credentials embedded in URLs are masked.
func summarizeStderr(stderr string) string {
	var picked []string
	last := ""
	for _, line := range strings.FieldsFunc(stderr, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		last = line
		if strings.HasPrefix(line, "fatal:") || strings.HasPrefix(line, "error:") {
			picked = append(picked, line)
		}
	}
	if len(picked) == 0 && last != "" {
		picked = []string{last}
	}
	return RedactURL(strings.Join(picked, "; "))
}

func errorf(op string, reason error, format string, args ...any) error {
	return &GitError{Op: op, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

package gitsync

import (
	"context"
	"strconv"
	"strings"
)

// WorkingCopyInfo summarizes the local repository state.
type WorkingCopyInfo struct {
	Branch    string
	Commit    string // abbreviated HEAD
	Modified  int
	Untracked int
	Ahead     int // commits not on the upstream branch; -1 without upstream
}

// Clean reports whether nothing is modified or untracked.
func (i WorkingCopyInfo) Clean() bool { return i.Modified == 0 && i.Untracked == 0 }

// Describe reads branch, HEAD and dirty state without touching the network.
// Ahead is measured against the last fetched upstream.
func (s *Syncer) Describe(ctx context.Context, h *Handle) (*WorkingCopyInfo, error) {
	if !h.Cloned() {
		return nil, ErrNotInitialized
	}

	info := &WorkingCopyInfo{Ahead: -1}
	sha, err := s.git(ctx, h.LocalPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return nil, commandFailure("rev-parse", err)
	}
	info.Commit = strings.TrimSpace(sha)

	if branch, err := s.git(ctx, h.LocalPath, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		info.Branch = strings.TrimSpace(branch)
	} else {
		info.Branch = "HEAD"
	}

	status, err := s.git(ctx, h.LocalPath, "status", "--porcelain")
	if err != nil {
		return nil, commandFailure("status", err)
	}
	info.Modified, info.Untracked = countPorcelain(status)

	if out, err := s.git(ctx, h.LocalPath, "rev-list", "--count", "@{upstream}..HEAD"); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(out)); err == nil {
			info.Ahead = n
		}
	}
	return info, nil
}

// countPorcelain counts entries of `git status --porcelain` output.
func countPorcelain(status string) (modified, untracked int) {
	for _, line := range strings.Split(status, "\n") {
		if len(line) < 2 {
			continue
		}
		if line[0] == '?' && line[1] == '?' {
			untracked++
		} else {
			modified++
		}
	}
	return modified, untracked
}

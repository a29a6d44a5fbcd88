package gitsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is one invocation of the git executable.
type Command struct {
	Dir  string
	Args []string

	// Stderr, when set, receives stderr as it is produced (clone progress).
	Stderr io.Writer
}

func (c Command) String() string {
	return "git " + RedactURL(strings.Join(c.Args, " "))
}

// Runner executes git commands. It returns stdout on success and a
// *CommandError when git exits non-zero.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// CommandError reports a git invocation that failed.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	cmd := Command{Args: e.Args}
	msg := fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + RedactURL(s)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct {
	// Binary overrides the executable name; defaults to "git".
	Binary string
}

// Run implements Runner. Prompts are disabled and messages forced to the C
// locale so failures can be classified from stderr.
func (r ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"LC_ALL=C",
		"LANGUAGE=C",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, c.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", &CommandError{Args: c.Args, ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

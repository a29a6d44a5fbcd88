// Package e2e provides a Go test harness for end-to-end publishing tests.
// It builds the real geoedit binary, creates a bare git remote seeded with a
// GeoJSON file, and gives every actor its own home and working copy.
package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// SeedPath is the data file committed to the remote, relative to the
// repository root.
const SeedPath = "data/cantines.geojson"

// SeedDocument is the initial content of SeedPath.
const SeedDocument = `{
  "type": "FeatureCollection",
  "name": "cantines",
  "features": [
    {
      "type": "Feature",
      "properties": {
        "nom": "Cantine A",
        "capacite": 120
      },
      "geometry": {
        "type": "Point",
        "coordinates": [
          2.35,
          48.85
        ]
      }
    },
    {
      "type": "Feature",
      "properties": {
        "nom": "Cantine B",
        "capacite": 80
      },
      "geometry": null
    },
    {
      "type": "Feature",
      "properties": {
        "nom": "Cantine C",
        "capacite": 60
      },
      "geometry": null
    }
  ]
}
`

// Harness holds the binary, the remote and per-actor directories.
type Harness struct {
	WorkDir   string
	Bin       string
	RemoteURL string
	BareDir   string

	homeDirs map[string]string
	t        *testing.T
}

// Setup builds geoedit and prepares the remote and the actors' homes.
// It skips the test when git is unavailable.
func Setup(t *testing.T, actors ...string) *Harness {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if len(actors) == 0 {
		actors = []string{"alice", "bob"}
	}

	workDir := t.TempDir()
	h := &Harness{
		WorkDir:  workDir,
		Bin:      filepath.Join(workDir, "geoedit"),
		BareDir:  filepath.Join(workDir, "remote.git"),
		homeDirs: make(map[string]string),
		t:        t,
	}
	h.RemoteURL = "file://" + filepath.ToSlash(h.BareDir)

	t.Log("building geoedit binary")
	if out, err := runCmd(findRepoRoot(), nil, "go", "build", "-o", h.Bin, "."); err != nil {
		t.Fatalf("build geoedit: %v\n%s", err, out)
	}

	h.seedRemote()

	for _, actor := range actors {
		home := filepath.Join(workDir, "home-"+actor)
		if err := os.MkdirAll(home, 0755); err != nil {
			t.Fatalf("mkdir home-%s: %v", actor, err)
		}
		h.homeDirs[actor] = home

		out, err := h.Run(actor, "config", "init", "--no-input",
			"--remote-url", h.RemoteURL,
			"--local-path", h.WorkingCopy(actor),
			"--username", actor,
			"--author-email", actor+"@example.org",
			"--source", "cantines="+SeedPath)
		if err != nil {
			t.Fatalf("config init %s: %v\n%s", actor, err, out)
		}
	}
	return h
}

func (h *Harness) seedRemote() {
	h.t.Helper()
	env := gitEnv(h.WorkDir)
	seed := filepath.Join(h.WorkDir, "seed")
	steps := [][]string{
		{"init", "--bare", "--initial-branch=main", h.BareDir},
		{"init", "--initial-branch=main", seed},
	}
	for _, args := range steps {
		if out, err := runCmd(h.WorkDir, env, "git", args...); err != nil {
			h.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
		}
	}

	path := filepath.Join(seed, filepath.FromSlash(SeedPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("mkdir seed data: %v", err)
	}
	if err := os.WriteFile(path, []byte(SeedDocument), 0644); err != nil {
		h.t.Fatalf("write seed: %v", err)
	}
	for _, args := range [][]string{
		{"add", "."},
		{"-c", "user.name=Seed", "-c", "user.email=seed@example.org", "commit", "-m", "seed"},
		{"push", h.BareDir, "main"},
	} {
		if out, err := runCmd(seed, env, "git", args...); err != nil {
			h.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
		}
	}
}

// Run runs geoedit as actor and returns combined output.
func (h *Harness) Run(actor string, args ...string) (string, error) {
	home, ok := h.homeDirs[actor]
	if !ok {
		return "", fmt.Errorf("unknown actor: %s", actor)
	}
	cmd := exec.Command(h.Bin, args...)
	cmd.Dir = home
	cmd.Env = gitEnv(home)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// MustRun is Run failing the test on error.
func (h *Harness) MustRun(actor string, args ...string) string {
	h.t.Helper()
	out, err := h.Run(actor, args...)
	if err != nil {
		h.t.Fatalf("%s: geoedit %s: %v\n%s", actor, strings.Join(args, " "), err, out)
	}
	return out
}

// WorkingCopy is where actor's clone lives.
func (h *Harness) WorkingCopy(actor string) string {
	return filepath.Join(h.WorkDir, "work-"+actor)
}

// RemoteLog returns `git log --format=format` on the remote's main branch.
func (h *Harness) RemoteLog(format string) []string {
	h.t.Helper()
	out, err := runCmd(h.BareDir, gitEnv(h.WorkDir), "git", "log", "--format="+format, "main")
	if err != nil {
		h.t.Fatalf("git log: %v\n%s", err, out)
	}
	return strings.Split(strings.TrimSpace(out), "\n")
}

// RemoteFile returns the content of path on the remote's main branch.
func (h *Harness) RemoteFile(path string) string {
	h.t.Helper()
	out, err := runCmd(h.BareDir, gitEnv(h.WorkDir), "git", "show", "main:"+path)
	if err != nil {
		h.t.Fatalf("git show: %v\n%s", err, out)
	}
	return out
}

// gitEnv isolates git from the user's configuration.
func gitEnv(home string) []string {
	return append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_TERMINAL_PROMPT=0",
		"GEOEDIT_CONFIG=",
		"GEOEDIT_TOKEN=",
	)
}

// --- internal helpers ---

func findRepoRoot() string {
	// Walk up from current dir looking for go.mod
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func runCmd(dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/marcus/geoedit/internal/gitsync"
	"golang.org/x/term"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// RenderMarkdown renders markdown using Glamour with terminal-aware wrapping.
// When stdout is not a terminal the markdown is returned as is.
func RenderMarkdown(text string) (string, error) {
	if !IsTerminal() {
		return strings.TrimRight(text, "\n"), nil
	}
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultMarkdownWidth))
}

// RenderMarkdownWithWidth renders markdown using Glamour with explicit wrapping.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(rendered, "\n"), nil
}

// SourceStatus is one data source line of a status report.
type SourceStatus struct {
	Name   string
	Path   string
	Exists bool
}

// StatusReport describes the working copy for `geoedit status`.
type StatusReport struct {
	Remote     string // already redacted
	LocalPath  string
	State      string
	Repo       *gitsync.WorkingCopyInfo // nil when not cloned
	Connection string                   // empty when not tested
	Sources    []SourceStatus
	Problems   []string
}

// Markdown renders the report as a markdown document.
func (r StatusReport) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Repository status\n\n")
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Remote | `%s` |\n", escapeCell(r.Remote))
	fmt.Fprintf(&sb, "| Working copy | `%s` |\n", escapeCell(r.LocalPath))
	fmt.Fprintf(&sb, "| State | %s |\n", escapeCell(r.State))
	if r.Repo != nil {
		fmt.Fprintf(&sb, "| Branch | %s @ `%s` |\n", escapeCell(r.Repo.Branch), r.Repo.Commit)
		if !r.Repo.Clean() {
			fmt.Fprintf(&sb, "| Local changes | %d modified, %d untracked |\n", r.Repo.Modified, r.Repo.Untracked)
		}
		if r.Repo.Ahead > 0 {
			fmt.Fprintf(&sb, "| Unpushed commits | %d (run `geoedit push`) |\n", r.Repo.Ahead)
		}
	}
	if r.Connection != "" {
		fmt.Fprintf(&sb, "| Connection | %s |\n", escapeCell(r.Connection))
	}

	if len(r.Sources) > 0 {
		sb.WriteString("\n## Data sources\n\n")
		for _, s := range r.Sources {
			mark := "missing"
			if s.Exists {
				mark = "present"
			}
			fmt.Fprintf(&sb, "- **%s** `%s` (%s)\n", s.Name, s.Path, mark)
		}
	}

	if len(r.Problems) > 0 {
		sb.WriteString("\n## Problems\n\n")
		for _, p := range r.Problems {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

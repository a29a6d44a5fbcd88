// Package output provides styled terminal output helpers (success, error,
// warning, tables of feature properties, sync results) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/geoedit/internal/changes"
	"github.com/marcus/geoedit/internal/gitsync"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stateStyles  = map[gitsync.State]lipgloss.Style{
		gitsync.StateAbsent:  lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		gitsync.StateCloning: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		gitsync.StateReady:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		gitsync.StateSyncing: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		gitsync.StateFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Stdout and Stderr are the writers used by the print helpers.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

// FormatState formats a working copy state with color
func FormatState(s gitsync.State) string {
	style, ok := stateStyles[s]
	if !ok {
		return s.String()
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatCounts formats unsaved change counters, e.g. "+1 -2 ~3".
func FormatCounts(c changes.Counts) string {
	if c.Total() == 0 {
		return subtleStyle.Render("no unsaved changes")
	}
	return warningStyle.Render(fmt.Sprintf("+%d -%d ~%d", c.Adds, c.Deletes, c.Edits))
}

// FormatResult colors a history result label.
func FormatResult(result string) string {
	switch result {
	case "success":
		return successStyle.Render("✓ " + result)
	case string(gitsync.KindNoChanges):
		return subtleStyle.Render("= " + result)
	case string(gitsync.KindCancelled):
		return warningStyle.Render("○ " + result)
	}
	return errorStyle.Render("✗ " + result)
}

// FormatError describes err for an operator, naming its category first.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	kind := gitsync.Classify(err)
	switch kind {
	case gitsync.KindAuthenticationFailed:
		return "authentication failed: check the username and token (" + err.Error() + ")"
	case gitsync.KindHostUnreachable:
		return "remote unreachable: check the network and the remote URL (" + err.Error() + ")"
	case gitsync.KindDestinationExists:
		return "the local path already holds files: choose an empty directory (" + err.Error() + ")"
	case gitsync.KindNotInitialized:
		return "the working copy is not cloned yet: run 'geoedit clone' first"
	}
	return err.Error()
}

// Truncate shortens s to width display cells, ANSI aware.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// SingleLine collapses line breaks so a cell fits in one table row.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSOURCES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", titleStyle.Render(strings.ToUpper(title)))
}

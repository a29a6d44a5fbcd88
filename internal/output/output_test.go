package output

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/geoedit/internal/changes"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFormatTimeAgoJustNow tests times less than a minute ago
func TestFormatTimeAgoJustNow(t *testing.T) {
	now := time.Now()
	tests := []time.Time{
		now,
		now.Add(-30 * time.Second),
		now.Add(-59 * time.Second),
	}

	for _, tm := range tests {
		result := FormatTimeAgo(tm)
		if result != "just now" {
			t.Errorf("FormatTimeAgo(%v) = %q, want 'just now'", tm, result)
		}
	}
}

// TestFormatTimeAgoMinutes tests times 1-59 minutes ago
func TestFormatTimeAgoMinutes(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Minute, "1m ago"},
		{2 * time.Minute, "2m ago"},
		{30 * time.Minute, "30m ago"},
		{59 * time.Minute, "59m ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoHours tests times 1-23 hours ago
func TestFormatTimeAgoHours(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Hour, "1h ago"},
		{2 * time.Hour, "2h ago"},
		{12 * time.Hour, "12h ago"},
		{23 * time.Hour, "23h ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoDays tests times 1-6 days ago
func TestFormatTimeAgoDays(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{24 * time.Hour, "1d ago"},
		{48 * time.Hour, "2d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoDate tests times 7+ days ago (returns date)
func TestFormatTimeAgoDate(t *testing.T) {
	tm := time.Now().Add(-8 * 24 * time.Hour)
	result := FormatTimeAgo(tm)
	expected := tm.Format("2006-01-02")
	if result != expected {
		t.Errorf("FormatTimeAgo(-8d) = %q, want %q", result, expected)
	}
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "no unsaved changes", ansi.Strip(FormatCounts(changes.Counts{})))
	assert.Equal(t, "+1 -2 ~3", ansi.Strip(FormatCounts(changes.Counts{Adds: 1, Deletes: 2, Edits: 3})))
}

func TestFormatResult(t *testing.T) {
	tests := map[string]string{
		"success":               "✓ success",
		"no_changes":            "= no_changes",
		"cancelled":             "○ cancelled",
		"push_failed":           "✗ push_failed",
		"authentication_failed": "✗ authentication_failed",
	}
	for in, want := range tests {
		assert.Equal(t, want, ansi.Strip(FormatResult(in)), in)
	}
}

func TestFormatState(t *testing.T) {
	assert.Equal(t, "[ready]", ansi.Strip(FormatState(gitsync.StateReady)))
	assert.Equal(t, "State(42)", FormatState(gitsync.State(42)))
}

func TestFormatError(t *testing.T) {
	assert.Empty(t, FormatError(nil))
	auth := &gitsync.GitError{Op: "ls-remote", Reason: gitsync.ErrAuthenticationFailed}
	assert.True(t, strings.HasPrefix(FormatError(auth), "authentication failed: check the username and token"))
	assert.Contains(t, FormatError(gitsync.ErrNotInitialized), "geoedit clone")
	assert.Equal(t, "boom", FormatError(errors.New("boom")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "École", Truncate("École", 10))
	assert.Equal(t, "Éco…", Truncate("École", 4))
	assert.Empty(t, Truncate("x", 0))
	assert.Equal(t, "a b c", SingleLine("a\n b\n\nc"))
}

func TestRenderTable(t *testing.T) {
	out := ansi.Strip(RenderTable([]string{"nom", "capacite"}, [][]string{
		{"École Jules Ferry", "120"},
		{strings.Repeat("x", 60), "0"},
	}, 0))

	assert.Contains(t, out, "nom")
	assert.Contains(t, out, "capacite")
	assert.Contains(t, out, "École Jules Ferry")
	assert.Contains(t, out, strings.Repeat("x", maxCellWidth-1)+"…")
	assert.NotContains(t, out, strings.Repeat("x", maxCellWidth+1))
}

func TestStatusReportMarkdown(t *testing.T) {
	r := StatusReport{
		Remote:     "https://***@github.com/ville/cantines-data",
		LocalPath:  "/srv/cantines",
		State:      "ready",
		Connection: "ok",
		Sources: []SourceStatus{
			{Name: "Cantines", Path: "data/cantines.geojson", Exists: true},
			{Name: "Écoles", Path: "data/ecoles.geojson"},
		},
		Problems: []string{"a|b"},
	}
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "status_report", []byte(r.Markdown()))
}

func TestStatusReportRepoRows(t *testing.T) {
	r := StatusReport{State: "ready", Repo: &gitsync.WorkingCopyInfo{Branch: "main", Commit: "1a2b3c4", Modified: 1, Ahead: 2}}
	md := r.Markdown()
	assert.Contains(t, md, "| Branch | main @ `1a2b3c4` |")
	assert.Contains(t, md, "| Local changes | 1 modified, 0 untracked |")
	assert.Contains(t, md, "| Unpushed commits | 2 (run `geoedit push`) |")

	r.Repo = &gitsync.WorkingCopyInfo{Branch: "main", Commit: "1a2b3c4", Ahead: -1}
	md = r.Markdown()
	assert.NotContains(t, md, "Local changes")
	assert.NotContains(t, md, "Unpushed")
}

func TestRenderMarkdownWithWidth(t *testing.T) {
	out, err := RenderMarkdownWithWidth("", 80)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = RenderMarkdownWithWidth("# Title\n\nbody", 10)
	require.NoError(t, err)
	assert.Contains(t, ansi.Strip(out), "body")
}

package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/geoedit/internal/output"
)

// View implements tea.Model
func (m Model) View() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	var body string
	switch m.Mode {
	case ModeSources:
		body = m.renderSources()
	default:
		body = m.renderTable()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatus(),
		m.renderFooter(),
	)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder
	s.WriteString("geoedit (resize for full view)\n\n")
	if ds, ok := m.ctrl.Source(); ok {
		fmt.Fprintf(&s, "Source: %s (%d rows)\n", ds.Name, m.ctrl.RowCount())
	}
	fmt.Fprintf(&s, "Changes: +%d -%d ~%d\n", m.Counts.Adds, m.Counts.Deletes, m.Counts.Edits)
	if m.Cloning {
		fmt.Fprintf(&s, "Cloning: %d%%\n", m.ClonePercent)
	}
	s.WriteString("\nq:quit ?:help")
	return s.String()
}

func (m Model) renderHeader() string {
	title := "geoedit"
	if ds, ok := m.ctrl.Source(); ok {
		title += " · " + ds.Name
	}
	right := output.FormatCounts(m.Counts)
	if m.ctrl.PendingPush() {
		right += " " + warningStyle.Render("(unpushed commit)")
	}

	left := headerStyle.Render(title)
	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderSources() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Data sources"))
	s.WriteString("\n\n")
	if len(m.Sources) == 0 {
		s.WriteString(subtleStyle.Render("No data sources configured. Run 'geoedit config init'."))
	}
	for i, ds := range m.Sources {
		line := fmt.Sprintf("%s  %s", ds.Name, subtleStyle.Render(ds.Path))
		if i == m.SourceIdx {
			line = selectedStyle.Render("▸ ") + selectedStyle.Render(ds.Name) + "  " + subtleStyle.Render(ds.Path)
		} else {
			line = "  " + line
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	if m.Cloning {
		s.WriteString("\n")
		s.WriteString(m.renderCloneProgress())
	}

	return panelStyle.Width(max(m.Width-2, MinWidth-2)).Render(strings.TrimRight(s.String(), "\n"))
}

func (m Model) renderCloneProgress() string {
	phase := string(m.ClonePhase)
	if phase == "" {
		phase = "starting"
	}
	bar := m.progress.ViewAs(float64(m.ClonePercent) / 100)
	return fmt.Sprintf("%s %s\n%s", subtleStyle.Render("clone:"), phase, bar)
}

func (m Model) renderTable() string {
	if m.ctrl.RowCount() == 0 && len(m.ctrl.Columns()) == 0 {
		return panelStyle.Render(subtleStyle.Render("empty table, press a to add a row"))
	}
	content := m.table.View()
	if m.Mode == ModeEdit {
		column, _ := m.currentColumn()
		label := fmt.Sprintf("row %d · %s (%s)", m.table.Cursor()+1, column, m.ctrl.ColumnType(column))
		content += "\n" + selectedStyle.Render(label) + "\n" + m.input.View()
	}
	return panelStyle.Render(content)
}

func (m Model) renderStatus() string {
	var prefix string
	if m.Publishing {
		prefix = m.spinner.View() + " "
	}
	if m.Status == "" {
		return prefix
	}
	msg := output.Truncate(output.SingleLine(m.Status), max(m.Width-lipgloss.Width(prefix), 1))
	switch {
	case m.StatusErr:
		return prefix + errorStyle.Render(msg)
	case m.Publishing || m.Cloning:
		return prefix + msg
	}
	return prefix + successStyle.Render(msg)
}

func (m Model) renderFooter() string {
	if m.Mode == ModeEdit {
		return subtleStyle.Render("enter:save esc:cancel")
	}
	if m.Mode == ModeSources {
		return m.help.View(sourcesKeys(m.keys))
	}
	return m.help.View(tableKeys(m.keys))
}

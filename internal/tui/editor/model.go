// Package editor is the interactive table editor: pick a data source, edit
// its feature properties cell by cell, then publish or revert.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/geoedit/internal/changes"
	"github.com/marcus/geoedit/internal/config"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/output"
	"github.com/marcus/geoedit/internal/session"
)

// Mode is the screen the editor is showing.
type Mode int

const (
	ModeSources Mode = iota
	ModeTable
	ModeEdit
)

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 12

const maxColumnWidth = 24

// EventMsg carries a session event into the program.
type EventMsg session.Event

// Model is the Bubble Tea model for the editor.
type Model struct {
	ctrl   *session.Controller
	ctx    context.Context
	events *eventQueue
	unsub  func()

	keys     keyMap
	help     help.Model
	table    table.Model
	input    textinput.Model
	progress progress.Model
	spinner  spinner.Model

	Width  int
	Height int

	Mode      Mode
	Sources   []config.DataSource
	SourceIdx int
	Column    int
	ShowHelp  bool

	Counts       changes.Counts
	Cloning      bool
	ClonePercent int
	ClonePhase   gitsync.Phase
	Publishing   bool

	cloneTask *session.Task
	Status    string
	StatusErr bool
}

// NewModel creates an editor bound to ctrl. When source is not empty it is
// opened on start.
func NewModel(ctx context.Context, ctrl *session.Controller, source string) Model {
	cfg := ctrl.Config()

	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	t := table.New(table.WithFocused(true))
	ts := table.DefaultStyles()
	ts.Header = ts.Header.BorderForeground(mutedColor).Bold(true)
	ts.Selected = ts.Selected.Foreground(whiteColor).Background(primaryColor)
	t.SetStyles(ts)

	events := newEventQueue()
	unsub := ctrl.Subscribe(events.push)

	m := Model{
		ctrl:     ctrl,
		ctx:      ctx,
		events:   events,
		unsub:    unsub,
		keys:     defaultKeyMap(),
		help:     help.New(),
		table:    t,
		input:    input,
		progress: progress.New(progress.WithDefaultGradient()),
		spinner:  sp,
		Sources:  cfg.DataSources,
	}
	for i, ds := range m.Sources {
		if ds.Name == source {
			m.SourceIdx = i
			m.openSource()
		}
	}
	return m
}

// Close removes the model's session subscription.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.spinner.Tick)
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return EventMsg(events.next())
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(msg.Width-20, 10)
		m.resizeTable()
		return m, nil

	case EventMsg:
		m.handleEvent(session.Event(msg))
		return m, m.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventReady:
		m.rebuildTable()
	case session.EventModifications:
		m.Counts = ev.Counts
		m.rebuildTable()
	case session.EventCloneStarted:
		m.Cloning = true
		m.ClonePercent = 0
		m.ClonePhase = ""
		m.setStatus(ev.Message, false)
	case session.EventCloneProgress:
		m.ClonePercent = ev.Progress.Percent
		m.ClonePhase = ev.Progress.Phase
	case session.EventCloneFinished:
		m.Cloning = false
		m.cloneTask = nil
		if ev.Err != nil {
			m.setStatus(output.FormatError(ev.Err), !errors.Is(ev.Err, gitsync.ErrCancelled))
			return
		}
		m.setStatus(ev.Message, false)
	case session.EventPublishFinished:
		m.Publishing = false
		if ev.Err != nil {
			m.setStatus("publish failed: "+output.FormatError(ev.Err), true)
			return
		}
		m.setStatus(ev.Message, false)
	case session.EventConnection:
		if ev.Err != nil {
			m.setStatus(output.FormatError(ev.Err), true)
			return
		}
		m.setStatus(ev.Message, false)
	}
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Mode == ModeEdit {
		return m.handleEditKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.Cloning && m.cloneTask != nil {
			m.cloneTask.Cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		return m, nil

	case key.Matches(msg, m.keys.Test):
		m.setStatus("testing connection…", false)
		return m, m.testConnection()

	case key.Matches(msg, m.keys.Cancel):
		if m.cloneTask != nil {
			m.cloneTask.Cancel()
			m.setStatus("cancelling clone after the transfer…", false)
		}
		return m, nil
	}

	if m.Mode == ModeSources {
		return m.handleSourcesKey(msg)
	}
	return m.handleTableKey(msg)
}

func (m Model) handleSourcesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.SourceIdx > 0 {
			m.SourceIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.SourceIdx < len(m.Sources)-1 {
			m.SourceIdx++
		}
	case key.Matches(msg, m.keys.Select):
		m.openSource()
	case key.Matches(msg, m.keys.Clone):
		t, err := m.ctrl.StartClone(m.ctx)
		if err != nil {
			m.setStatus(output.FormatError(err), true)
			return m, nil
		}
		m.cloneTask = t
		m.Cloning = true
	}
	return m, nil
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.Mode = ModeSources
		return m, nil

	case key.Matches(msg, m.keys.Left):
		if m.Column > 0 {
			m.Column--
			m.rebuildTable()
		}
		return m, nil

	case key.Matches(msg, m.keys.Right):
		if m.Column < len(m.ctrl.Columns())-1 {
			m.Column++
			m.rebuildTable()
		}
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		m.startEdit()
		return m, nil

	case key.Matches(msg, m.keys.Add):
		row, err := m.ctrl.AddRow()
		if err != nil {
			m.setStatus(output.FormatError(err), true)
			return m, nil
		}
		m.refresh()
		m.table.SetCursor(row)
		m.setStatus(fmt.Sprintf("added row %d", row+1), false)
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.ctrl.RowCount() == 0 {
			return m, nil
		}
		row := m.table.Cursor()
		if err := m.ctrl.DeleteRow(row); err != nil {
			m.setStatus(output.FormatError(err), true)
			return m, nil
		}
		m.refresh()
		m.setStatus(fmt.Sprintf("deleted row %d", row+1), false)
		return m, nil

	case key.Matches(msg, m.keys.Revert):
		if err := m.ctrl.RevertChanges(); err != nil {
			m.setStatus(output.FormatError(err), true)
			return m, nil
		}
		m.refresh()
		m.setStatus("changes reverted", false)
		return m, nil

	case key.Matches(msg, m.keys.Publish):
		if _, err := m.ctrl.StartPublish(m.ctx); err != nil {
			m.setStatus(output.FormatError(err), true)
			return m, nil
		}
		m.Publishing = m.ctrl.Busy()
		if m.Publishing {
			m.setStatus("publishing…", false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Mode = ModeTable
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		m.Mode = ModeTable
		m.input.Blur()
		column, ok := m.currentColumn()
		if !ok {
			return m, nil
		}
		row := m.table.Cursor()
		change, err := m.ctrl.SetCell(row, column, m.input.Value())
		if err != nil {
			m.setStatus(output.FormatError(err), true)
			return m, nil
		}
		m.refresh()
		if change.Coerced {
			m.setStatus(fmt.Sprintf("%q is not a valid %s, %s reset", m.input.Value(), m.ctrl.ColumnType(column), column), true)
		} else {
			m.setStatus(fmt.Sprintf("row %d %s updated", row+1, column), false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openSource() {
	if m.SourceIdx < 0 || m.SourceIdx >= len(m.Sources) {
		return
	}
	name := m.Sources[m.SourceIdx].Name
	if err := m.ctrl.SelectDataSource(m.ctx, name); err != nil {
		m.setStatus(output.FormatError(err), true)
		return
	}
	m.Mode = ModeTable
	m.Column = 0
	m.table.SetCursor(0)
	m.rebuildTable()
	m.setStatus(fmt.Sprintf("%s: %d rows", name, m.ctrl.RowCount()), false)
}

func (m *Model) startEdit() {
	column, ok := m.currentColumn()
	if !ok || m.ctrl.RowCount() == 0 {
		return
	}
	text, err := m.ctrl.CellText(m.table.Cursor(), column)
	if err != nil {
		m.setStatus(output.FormatError(err), true)
		return
	}
	m.input.SetValue(text)
	m.input.CursorEnd()
	m.input.Placeholder = string(m.ctrl.ColumnType(column))
	m.input.Focus()
	m.Mode = ModeEdit
}

func (m Model) currentColumn() (string, bool) {
	cols := m.ctrl.Columns()
	if m.Column < 0 || m.Column >= len(cols) {
		return "", false
	}
	return cols[m.Column], true
}

func (m *Model) testConnection() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		// The outcome arrives as an EventConnection.
		_ = ctrl.TestConnection(ctx)
		return nil
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.Status = s
	m.StatusErr = isErr
}

// refresh picks up counters and cells after a local mutation, ahead of the
// queued Modifications event.
func (m *Model) refresh() {
	m.Counts = m.ctrl.Counts()
	m.rebuildTable()
}

// rebuildTable reloads columns and rows from the controller.
func (m *Model) rebuildTable() {
	cols := m.ctrl.Columns()
	if m.Column >= len(cols) {
		m.Column = max(len(cols)-1, 0)
	}
	n := m.ctrl.RowCount()

	widths := make([]int, len(cols))
	cells := make([][]string, n)
	for r := 0; r < n; r++ {
		cells[r] = make([]string, len(cols))
		for c, col := range cols {
			text, err := m.ctrl.CellText(r, col)
			if err != nil {
				text = "∅"
			}
			text = output.SingleLine(text)
			cells[r][c] = text
			widths[c] = max(widths[c], ansi.StringWidth(text))
		}
	}

	columns := make([]table.Column, 0, len(cols)+1)
	columns = append(columns, table.Column{Title: "#", Width: max(len(strconv.Itoa(n)), 1)})
	for c, col := range cols {
		title := col
		if c == m.Column {
			title = "▸" + col
		}
		w := min(max(widths[c], ansi.StringWidth(title)), maxColumnWidth)
		columns = append(columns, table.Column{Title: title, Width: w})
	}

	rows := make([]table.Row, n)
	for r := range cells {
		row := make(table.Row, 0, len(cols)+1)
		row = append(row, strconv.Itoa(r+1))
		for c, text := range cells[r] {
			row = append(row, output.Truncate(text, columns[c+1].Width))
		}
		rows[r] = row
	}

	// Rows must never be wider than the columns while swapping.
	m.table.SetRows(nil)
	m.table.SetColumns(columns)
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= n && n > 0 {
		m.table.SetCursor(n - 1)
	}
	m.resizeTable()
}

func (m *Model) resizeTable() {
	if m.Height == 0 {
		m.table.SetHeight(10)
		return
	}
	// header, counts line, status line, help and panel borders
	m.table.SetHeight(max(m.Height-9, 3))
	m.table.SetWidth(max(m.Width-4, MinWidth-4))
}

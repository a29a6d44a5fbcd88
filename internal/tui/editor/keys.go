package editor

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Select  key.Binding
	Edit    key.Binding
	Add     key.Binding
	Delete  key.Binding
	Revert  key.Binding
	Publish key.Binding
	Clone   key.Binding
	Cancel  key.Binding
	Test    key.Binding
	Back    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
		Right:   key.NewBinding(key.WithKeys("right", "l", "tab"), key.WithHelp("→/l", "next column")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Edit:    key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("e", "edit cell")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add row")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete row")),
		Revert:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "revert")),
		Publish: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "publish")),
		Clone:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clone")),
		Cancel:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel clone")),
		Test:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "test connection")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// sourcesKeys is shown while choosing a data source.
type sourcesKeys keyMap

func (k sourcesKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Clone, k.Test, k.Help, k.Quit}
}

func (k sourcesKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Clone, k.Cancel, k.Test},
		{k.Help, k.Quit},
	}
}

// tableKeys is shown while editing a table.
type tableKeys keyMap

func (k tableKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Add, k.Delete, k.Revert, k.Publish, k.Back, k.Help}
}

func (k tableKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Edit, k.Add, k.Delete},
		{k.Revert, k.Publish, k.Test},
		{k.Back, k.Help, k.Quit},
	}
}

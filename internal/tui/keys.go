package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the browser's key bindings. The query input always has focus,
// so bindings avoid plain letters.
type KeyMap struct {
	Quit    key.Binding
	Search  key.Binding
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "search"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑", "prev"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓", "next"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh stats"),
		),
	}
}

func (k KeyMap) bindings() []key.Binding {
	return []key.Binding{k.Search, k.Up, k.Down, k.Refresh, k.Quit}
}

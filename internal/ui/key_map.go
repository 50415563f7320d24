package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the viewer.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	tab    key.Binding
	remove key.Binding
	add    key.Binding
	rejoin key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		tab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		remove: key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove track")),
		add:    key.NewBinding(key.WithKeys("a", "enter"), key.WithHelp("a", "queue track")),
		rejoin: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rejoin")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.tab, k.rejoin, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.tab},
		{k.remove, k.add},
		{k.rejoin, k.quit},
	}
}

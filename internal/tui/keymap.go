package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keybindings for the sessions view. It satisfies
// help.KeyMap so the help bubble can render it.
type keyMap struct {
	Up           key.Binding
	Down         key.Binding
	NewForward   key.Binding
	FromConfig   key.Binding
	StopSelected key.Binding
	StopAll      key.Binding
	CopyAddress  key.Binding
	CopyLogs     key.Binding
	ToggleLogs   key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		NewForward: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new forward"),
		),
		FromConfig: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "declared forwards"),
		),
		StopSelected: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop selected"),
		),
		StopAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "stop all"),
		),
		CopyAddress: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy address"),
		),
		CopyLogs: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy logs"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "toggle log pane"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the one-line help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NewForward, k.StopSelected, k.CopyAddress, k.Help, k.Quit}
}

// FullHelp returns the bindings for the expanded help view, one column per
// inner slice.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.NewForward, k.FromConfig, k.StopSelected, k.StopAll},
		{k.CopyAddress, k.CopyLogs, k.ToggleLogs},
		{k.Help, k.Quit},
	}
}

package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	add     key.Binding
	toggle  key.Binding
	finish  key.Binding
	remove  key.Binding
	tab     key.Binding
	sync    key.Binding
	signIn  key.Binding
	signOut key.Binding
	enter   key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		toggle:  key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s", "start/stop")),
		finish:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finish")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "active/finished")),
		sync:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sync now")),
		signIn:  key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i", "sign in")),
		signOut: key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "sign out")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.toggle, k.finish, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.add, k.toggle, k.finish, k.remove},
		{k.tab, k.sync, k.signOut},
		{k.quit},
	}
}

package ui

import (
	"maps"
	"slices"

	"github.com/charmbracelet/bubbles/key"

	"quickspell/internal/domain"
)

// keyMap holds the fixed navigation bindings and the configurable action keys
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Escape  key.Binding
	Preview key.Binding
	Help    key.Binding
	Quit    key.Binding

	// key name -> action label
	actions map[string]string
}

func newKeyMap(actions map[string]string) keyMap {
	bound := make(map[string]string, len(actions)+1)
	maps.Copy(bound, actions)
	if len(bound) == 0 {
		bound["enter"] = domain.MainActionLabel
	}

	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑/ctrl+p", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓/ctrl+n", "down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear/back"),
		),
		Preview: key.NewBinding(
			key.WithKeys("ctrl+v"),
			key.WithHelp("ctrl+v", "preview"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		actions: bound,
	}
}

// actionFor returns the action label bound to a key
func (k keyMap) actionFor(keyName string) (string, bool) {
	label, ok := k.actions[keyName]
	return label, ok
}

// actionBindings returns the configured action keys in key order
func (k keyMap) actionBindings() []key.Binding {
	names := slices.Sorted(maps.Keys(k.actions))
	out := make([]key.Binding, 0, len(names))
	for _, name := range names {
		out = append(out, key.NewBinding(key.WithKeys(name), key.WithHelp(name, k.actions[name])))
	}
	return out
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return append(k.actionBindings(), k.Escape, k.Preview, k.Help, k.Quit)
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Escape},
		k.actionBindings(),
		{k.Preview, k.Help, k.Quit},
	}
}

package ui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/noborus/ov/oviewer"

	"quickspell/internal/domain"
)

// HelpRenderer handles help content rendering
type HelpRenderer struct{}

// NewHelpRenderer creates a new help renderer
func NewHelpRenderer() *HelpRenderer {
	return &HelpRenderer{}
}

// Render generates the help page shown in the pager
func (r *HelpRenderer) Render(keys keyMap, spells []domain.Spell) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginTop(1)

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	var help strings.Builder
	row := func(k, desc string) {
		help.WriteString(fmt.Sprintf("  %s %s\n", keyStyle.Render(k), descStyle.Render(desc)))
	}

	help.WriteString(titleStyle.Render("quickspell Help"))
	help.WriteString("\n")

	help.WriteString(sectionStyle.Render("Navigation"))
	help.WriteString("\n")
	for _, b := range []struct{ keys, desc string }{
		{keys.Up.Help().Key, "Previous item"},
		{keys.Down.Help().Key, "Next item"},
		{keys.Escape.Help().Key, "Clear the query, or go back one spell"},
	} {
		row(b.keys, b.desc)
	}

	help.WriteString(sectionStyle.Render("Actions"))
	help.WriteString("\n")
	for _, b := range keys.actionBindings() {
		row(b.Help().Key, "Run action "+b.Help().Desc)
	}
	row(keys.Preview.Help().Key, "Preview the selected item")

	if len(spells) > 0 {
		help.WriteString(sectionStyle.Render("Spells"))
		help.WriteString("\n")
		for _, spell := range spells {
			desc := spell.Name
			if !spell.IsEnabled() {
				desc += " (disabled)"
			}
			row(spell.ID, desc)
		}
	}

	help.WriteString(sectionStyle.Render("Other"))
	help.WriteString("\n")
	row(keys.Help.Help().Key, "Show this help")
	row(keys.Quit.Help().Key, "Quit")

	return help.String()
}

// pagerCommand shows content in the ov pager. It implements
// tea.ExecCommand so bubbletea releases the terminal while it runs.
type pagerCommand struct {
	content string
}

func (p *pagerCommand) Run() error {
	root, err := oviewer.NewRoot(strings.NewReader(p.content))
	if err != nil {
		return err
	}

	// Configure ov to not write on exit (to avoid messing with our screen)
	config := oviewer.NewConfig()
	config.IsWriteOnExit = false
	config.IsWriteOriginal = false
	root.SetConfig(config)

	return root.Run()
}

// ov drives the terminal itself
func (p *pagerCommand) SetStdin(io.Reader)  {}
func (p *pagerCommand) SetStdout(io.Writer) {}
func (p *pagerCommand) SetStderr(io.Writer) {}

// showInPager hands the terminal to the pager until it exits
func showInPager(content string) tea.Cmd {
	return tea.Exec(&pagerCommand{content: content}, func(err error) tea.Msg {
		return pagerClosedMsg{err: err}
	})
}

package views

import (
	"github.com/charmbracelet/lipgloss"

	"quickspell/internal/domain"
)

// Styles contains all the style definitions for the UI
type Styles struct {
	Prompt        lipgloss.Style
	Breadcrumb    lipgloss.Style
	BreadcrumbSep lipgloss.Style
	Kind          lipgloss.Style
	Label         lipgloss.Style
	Dim           lipgloss.Style
	Selected      lipgloss.Style
	Status        lipgloss.Style
	StatusError   lipgloss.Style
	StatusLoading lipgloss.Style
	StatusReady   lipgloss.Style
	Filtering     lipgloss.Style
	Help          lipgloss.Style
	Main          lipgloss.Style
}

// NewStyles creates a new Styles instance with default values
func NewStyles() *Styles {
	return &Styles{
		Prompt:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Breadcrumb:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		BreadcrumbSep: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Kind:          lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Width(6),
		Label:         lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Dim:           lipgloss.NewStyle().Faint(true),
		Selected:      lipgloss.NewStyle().Background(lipgloss.Color("238")).Bold(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
		StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")), // red
		StatusLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("241")), // gray
		StatusReady:   lipgloss.NewStyle().Foreground(lipgloss.Color("78")),  // green
		Filtering:     lipgloss.NewStyle().Foreground(lipgloss.Color("51")),  // cyan
		Help:          lipgloss.NewStyle().Faint(true),
		Main:          lipgloss.NewStyle().Padding(0, 1),
	}
}

// StatusStyle returns the style used for a machine status
func (s *Styles) StatusStyle(status domain.Status) lipgloss.Style {
	switch status {
	case domain.StatusError:
		return s.StatusError
	case domain.StatusReady:
		return s.StatusReady
	default:
		return s.StatusLoading
	}
}

// KindColor returns the color of an item kind badge
func KindColor(kind string) string {
	switch kind {
	case "DIR":
		return "33" // blue
	case "FILE":
		return "252"
	case "APP":
		return "78" // green
	default:
		return "214" // yellow
	}
}

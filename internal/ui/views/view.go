package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"quickspell/internal/domain"
)

// ViewState contains all the state needed for rendering
type ViewState struct {
	Width         int
	Height        int
	Snapshot      domain.Snapshot
	Input         string // rendered query line
	StatusMessage string
	HelpLine      string
}

// Renderer handles all view rendering
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{styles: NewStyles()}
}

// Styles exposes the renderer's styles
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Render produces the complete view
func (r *Renderer) Render(state ViewState) string {
	content := &strings.Builder{}

	content.WriteString(r.renderBreadcrumb(state.Snapshot.ContextNameChain))
	content.WriteString("\n")
	content.WriteString(state.Input)
	content.WriteString("\n\n")

	// Lines left for items after breadcrumb, input, status and help
	listHeight := state.Height - 7
	if listHeight < 3 {
		listHeight = 3
	}
	content.WriteString(r.renderItems(state.Snapshot, listHeight, state.Width))

	content.WriteString(r.styles.Status.Render(r.renderStatus(state)))
	if state.HelpLine != "" {
		content.WriteString("\n")
		content.WriteString(r.styles.Help.Render(state.HelpLine))
	}
	return r.styles.Main.Render(content.String())
}

func (r *Renderer) renderBreadcrumb(chain []string) string {
	if len(chain) == 0 {
		return r.styles.Breadcrumb.Render("quickspell")
	}
	parts := make([]string, len(chain))
	for i, name := range chain {
		parts[i] = r.styles.Breadcrumb.Render(name)
	}
	return strings.Join(parts, r.styles.BreadcrumbSep.Render(" › "))
}

// renderItems draws the window of visible items that keeps the selection on screen
func (r *Renderer) renderItems(snap domain.Snapshot, height, width int) string {
	items := snap.VisibleItems
	if len(items) == 0 {
		return r.styles.Dim.Render(emptyMessage(snap)) + "\n"
	}

	offset := 0
	if snap.SelectedIndex >= height {
		offset = snap.SelectedIndex - height + 1
	}
	end := min(offset+height, len(items))

	var b strings.Builder
	for i := offset; i < end; i++ {
		b.WriteString(r.renderItem(items[i], i == snap.SelectedIndex, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Renderer) renderItem(item domain.Item, selected bool, width int) string {
	kind := r.styles.Kind.Foreground(lipgloss.Color(KindColor(item.Kind))).Render(item.Kind)
	label := r.styles.Label.Render(item.Label)
	line := fmt.Sprintf("%s %s", kind, label)
	if item.Data != "" && item.Data != item.Label {
		line += "  " + r.styles.Dim.Render(item.Data)
	}
	if width > 4 && lipgloss.Width(line) > width-2 {
		line = lipgloss.NewStyle().MaxWidth(width - 2).Render(line)
	}
	if selected {
		return r.styles.Selected.Render("> " + line)
	}
	return "  " + line
}

func emptyMessage(snap domain.Snapshot) string {
	switch {
	case snap.Status == domain.StatusLoading:
		return "Loading..."
	case snap.Status == domain.StatusError:
		return "Nothing to show"
	case snap.Query != "":
		return "No matches"
	default:
		return "No items"
	}
}

func (r *Renderer) renderStatus(state ViewState) string {
	snap := state.Snapshot
	status := r.styles.StatusStyle(snap.Status).Render(snap.Status.String())

	parts := []string{status}
	if snap.Status == domain.StatusLoading {
		spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		frame := int(time.Now().UnixMilli()/80) % len(spinner)
		parts[0] = spinner[frame] + " " + status
	}
	if snap.IsFiltering {
		parts = append(parts, r.styles.Filtering.Render("filtering"))
	}

	shown := len(snap.VisibleItems)
	if shown < snap.TotalFilteredCount {
		parts = append(parts, fmt.Sprintf("%d of %d", shown, snap.TotalFilteredCount))
	} else {
		parts = append(parts, fmt.Sprintf("%d items", snap.TotalFilteredCount))
	}
	parts = append(parts, fmt.Sprintf("%d spells", snap.DefinitionCount))

	if state.StatusMessage != "" {
		parts = append(parts, state.StatusMessage)
	}
	return strings.Join(parts, " | ")
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"quickspell/internal/app"
	"quickspell/internal/config"
	"quickspell/internal/domain"
	"quickspell/internal/eventbus"
	"quickspell/internal/state"
	"quickspell/internal/ui/views"
)

// Session is the command surface the UI drives
type Session interface {
	Snapshot() domain.Snapshot
	Spells() []domain.Spell
	SetQuery(text string)
	MoveSelection(delta int) domain.Snapshot
	Escape() state.EscapeResult
	InvokeAction(ctx context.Context, label string) error
	Preview(ctx context.Context) (string, error)
}

// Model represents the UI state
type Model struct {
	session Session
	ctx     context.Context
	log     logrus.FieldLogger

	snapshot      domain.Snapshot
	statusMessage string

	width  int
	height int
	input  textinput.Model
	help   help.Model
	keys   keyMap

	renderer     *views.Renderer
	helpRenderer *HelpRenderer
}

// NewModel creates a new UI model
func NewModel(ctx context.Context, session Session, cfg *config.Config, log logrus.FieldLogger) *Model {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var keys map[string]string
	if cfg != nil {
		keys = cfg.Keys
	}

	m := &Model{
		session:      session,
		ctx:          ctx,
		log:          log,
		snapshot:     session.Snapshot(),
		help:         help.New(),
		keys:         newKeyMap(keys),
		renderer:     views.NewRenderer(),
		helpRenderer: NewHelpRenderer(),
	}

	m.input = textinput.New()
	m.input.Placeholder = "Search..."
	m.input.Prompt = m.renderer.Styles().Prompt.Render("❯ ")
	m.input.Focus()
	return m
}

// Init returns an initial command
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tickMsg:
		return m, tick()

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("%s: %v", msg.label, msg.err)
		} else {
			m.statusMessage = ""
		}
		return m, nil

	case previewMsg:
		if msg.err != nil {
			m.statusMessage = previewError(msg.err)
			return m, nil
		}
		return m, showInPager(msg.content)

	case pagerClosedMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("pager failed")
			m.statusMessage = fmt.Sprintf("pager: %v", msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(event eventbus.DomainEvent) {
	switch e := event.(type) {
	case eventbus.SnapshotEvent:
		m.snapshot = e.Snapshot
	case eventbus.ErrorEvent:
		if e.Err != nil {
			m.statusMessage = fmt.Sprintf("%s: %v", e.Message, e.Err)
		} else {
			m.statusMessage = e.Message
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.snapshot = m.session.MoveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.snapshot = m.session.MoveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		return m.escape()

	case key.Matches(msg, m.keys.Preview):
		return m, m.preview()

	case key.Matches(msg, m.keys.Help) && m.input.Value() == "":
		return m, showInPager(m.helpRenderer.Render(m.keys, m.session.Spells()))
	}

	if label, ok := m.keys.actionFor(msg.String()); ok {
		return m, m.invoke(label)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.session.SetQuery(after)
	}
	return m, cmd
}

// escape clears the query, leaves the current spell, or quits at the root
func (m *Model) escape() (tea.Model, tea.Cmd) {
	switch m.session.Escape() {
	case state.EscapeNone:
		return m, tea.Quit
	default:
		m.snapshot = m.session.Snapshot()
		m.input.SetValue(m.snapshot.Query)
		m.input.CursorEnd()
		m.statusMessage = ""
		return m, nil
	}
}

func (m *Model) invoke(label string) tea.Cmd {
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		return actionDoneMsg{label: label, err: session.InvokeAction(ctx, label)}
	}
}

func (m *Model) preview() tea.Cmd {
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		content, err := session.Preview(ctx)
		return previewMsg{content: content, err: err}
	}
}

func previewError(err error) string {
	switch {
	case errors.Is(err, app.ErrNoPreview):
		return "no preview for this spell"
	case errors.Is(err, state.ErrNoFrame):
		return "nothing to preview"
	default:
		return fmt.Sprintf("preview: %v", err)
	}
}

// View renders the UI
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	return m.renderer.Render(views.ViewState{
		Width:         m.width,
		Height:        m.height,
		Snapshot:      m.snapshot,
		Input:         m.input.View(),
		StatusMessage: m.statusMessage,
		HelpLine:      m.help.View(m.keys),
	})
}

// ForwardEvents subscribes send to the events the UI renders. The returned
// func unsubscribes.
func ForwardEvents(bus eventbus.EventBus, send func(tea.Msg)) func() {
	forward := func(e eventbus.DomainEvent) {
		send(EventMsg{Event: e})
	}
	unsubs := []func(){
		bus.Subscribe(eventbus.EventSnapshot, forward),
		bus.Subscribe(eventbus.EventError, forward),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

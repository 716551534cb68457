package ui

import (
	"time"

	"quickspell/internal/eventbus"
)

// EventMsg wraps a domain event for the UI
type EventMsg struct {
	Event eventbus.DomainEvent
}

// tickMsg is sent on a timer for the loading spinner
type tickMsg time.Time

// actionDoneMsg reports the outcome of an invoked action
type actionDoneMsg struct {
	label string
	err   error
}

// previewMsg carries the rendered preview output
type previewMsg struct {
	content string
	err     error
}

// pagerClosedMsg is sent when the pager returns the terminal
type pagerClosedMsg struct {
	err error
}

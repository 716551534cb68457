package domain

import "time"

// EventType represents the type of domain event
type EventType string

// Event types
const (
	EventSnapshot       EventType = "Snapshot"
	EventError          EventType = "Error"
	EventFilterApplied  EventType = "FilterApplied"
	EventActionInvoked  EventType = "ActionInvoked"
	EventFramePushed    EventType = "FramePushed"
	EventProviderLoaded EventType = "ProviderLoaded"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	Type() EventType
}

// SnapshotEvent carries the state a front end must render
type SnapshotEvent struct {
	Snapshot Snapshot
}

func (e SnapshotEvent) Type() EventType { return EventSnapshot }

// ErrorEvent is emitted when an operation fails
type ErrorEvent struct {
	Message string
	Err     error
}

func (e ErrorEvent) Type() EventType { return EventError }

// FilterAppliedEvent is emitted after a re-filter, applied or discarded
type FilterAppliedEvent struct {
	Query   string
	Items   int
	Results int
	Applied bool
	Elapsed time.Duration
}

func (e FilterAppliedEvent) Type() EventType { return EventFilterApplied }

// ActionInvokedEvent is emitted after an action ran successfully
type ActionInvokedEvent struct {
	SpellID string
	Label   string
}

func (e ActionInvokedEvent) Type() EventType { return EventActionInvoked }

// FramePushedEvent is emitted when an action pushes a new context
type FramePushedEvent struct {
	FrameID uint64
	SpellID string
}

func (e FramePushedEvent) Type() EventType { return EventFramePushed }

// ProviderLoadedEvent is emitted when a provider finished populating a frame
type ProviderLoadedEvent struct {
	FrameID uint64
	SpellID string
	Items   int
	Stale   bool
}

func (e ProviderLoadedEvent) Type() EventType { return EventProviderLoaded }

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FieldSeparator joins the three columns of an item on the wire
const FieldSeparator = "\t"

// ErrMalformedItem is returned when a provider line has fewer than three fields
var ErrMalformedItem = errors.New("malformed item line")

// Item is a single search candidate produced by a provider
type Item struct {
	Kind  string
	Label string
	Data  string
}

// ParseItem parses a KIND\tLABEL\tDATA line.
// The data column keeps any further tabs so String() reproduces the input.
func ParseItem(line string) (Item, error) {
	parts := strings.SplitN(line, FieldSeparator, 3)
	if len(parts) < 3 {
		return Item{}, fmt.Errorf("%w: %q", ErrMalformedItem, line)
	}
	return Item{Kind: parts[0], Label: parts[1], Data: parts[2]}, nil
}

// String returns the canonical wire form of the item
func (i Item) String() string {
	return i.Kind + FieldSeparator + i.Label + FieldSeparator + i.Data
}

// Fields returns the tab separated columns of the item
func (i Item) Fields() []string {
	return strings.Split(i.String(), FieldSeparator)
}

// Status is the lifecycle state of the navigation machine
type Status int

const (
	StatusNotStarted Status = iota
	StatusBooting
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "notstarted"
	case StatusBooting:
		return "booting"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status in lowercase for snapshot payloads
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the immutable view of the navigation state handed to front ends
type Snapshot struct {
	Status             Status   `json:"status"`
	DefinitionCount    int      `json:"definitionCount"`
	ContextNameChain   []string `json:"contextNameChain"`
	VisibleItems       []Item   `json:"visibleItems"`
	TotalFilteredCount int      `json:"totalFilteredCount"`
	Query              string   `json:"query"`
	IsFiltering        bool     `json:"isFiltering"`
	SelectedIndex      int      `json:"selectedIndex"`
	SelectedItem       *Item    `json:"selectedItem,omitempty"`
}

// Depth returns the number of contexts on the navigation stack
func (s Snapshot) Depth() int {
	return len(s.ContextNameChain)
}

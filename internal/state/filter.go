package state

import "time"

// FilterRecord describes one Refilter call
type FilterRecord struct {
	Query   string
	Items   int
	Results int
	Applied bool
	Elapsed time.Duration
}

// FilterSink receives a FilterRecord after every Refilter
type FilterSink interface {
	RecordFilter(FilterRecord) error
}

// FilterSinkFunc adapts a function to FilterSink
type FilterSinkFunc func(FilterRecord) error

func (f FilterSinkFunc) RecordFilter(r FilterRecord) error { return f(r) }

func (m *Machine) record(r FilterRecord) {
	if m.sink == nil {
		return
	}
	if err := m.sink.RecordFilter(r); err != nil {
		m.log.WithError(err).Warn("failed to record filter metrics")
	}
}

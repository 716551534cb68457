package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"quickspell/internal/state"
)

// filterFormatter renders entries as bare "[filter] ..." lines
type filterFormatter struct{}

func (filterFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return fmt.Appendf(nil, "[filter] query=%q items=%v results=%v applied=%v time=%v\n",
		e.Data["query"], e.Data["items"], e.Data["results"], e.Data["applied"], e.Data["time"]), nil
}

// FilterLog is a state.FilterSink that appends one line per re-filter to a
// log file and feeds the prometheus collectors. The file is opened on first
// use so an unwritable path only surfaces as a sink error.
type FilterLog struct {
	path    string
	metrics *Metrics

	mu     sync.Mutex
	file   *os.File
	logger *logrus.Logger
}

// NewFilterLog creates a sink writing to path. metrics may be nil.
func NewFilterLog(path string, metrics *Metrics) *FilterLog {
	return &FilterLog{path: path, metrics: metrics}
}

// RecordFilter implements state.FilterSink
func (f *FilterLog) RecordFilter(r state.FilterRecord) error {
	if f.metrics != nil {
		f.metrics.ObserveFilter(r)
	}
	if f.path == "" {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.open(); err != nil {
		return err
	}
	f.logger.WithFields(logrus.Fields{
		"query":   r.Query,
		"items":   r.Items,
		"results": r.Results,
		"applied": r.Applied,
		"time":    r.Elapsed,
	}).Info("filter")
	return nil
}

func (f *FilterLog) open() error {
	if f.logger != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create filter log directory: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open filter log: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(filterFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	f.file = file
	f.logger = logger
	return nil
}

// Close closes the log file
func (f *FilterLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.logger = nil
	return err
}

var _ state.FilterSink = (*FilterLog)(nil)

// Package state holds the navigation state machine: the stack of active
// search contexts, their item sets and the application status.
//
// All state sits behind one reader/writer lock. Ranking and process I/O run
// outside of it, and their results are written back only when the frame
// they were computed for is still on top of the stack.
package state

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quickspell/internal/domain"
	"quickspell/internal/match"
	"quickspell/internal/template"
)

// DefaultStartingSpell is the spell pushed by Begin unless configured otherwise
const DefaultStartingSpell = "search_files"

// MaxResults caps both a re-filter result and the items in a snapshot
const MaxResults = 100

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrUnknownSpell   = errors.New("unknown spell")
	ErrNoFrame        = errors.New("no active frame on stack")
	ErrPoisoned       = errors.New("state lock poisoned")
)

// RankFunc orders haystack lines against a query
type RankFunc func(haystack []string, query string, cfg domain.SearchConfig) []int

// LoadRequest tells the caller which provider populates a frame
type LoadRequest struct {
	FrameID   uint64
	SpellID   string
	Command   string
	Streaming bool
}

type frame struct {
	id          uint64
	spellID     string
	query       string
	all         []domain.Item
	filtered    []domain.Item
	isFiltering bool
	selected    int
}

func (f *frame) clampSelection() {
	if len(f.filtered) == 0 {
		f.selected = 0
		return
	}
	f.selected = min(max(f.selected, 0), len(f.filtered)-1)
}

func (f *frame) selectedItem() *domain.Item {
	if len(f.filtered) == 0 {
		return nil
	}
	item := f.filtered[min(max(f.selected, 0), len(f.filtered)-1)]
	return &item
}

// Machine is the navigation state machine
type Machine struct {
	mu       sync.RWMutex
	status   domain.Status
	spells   map[string]domain.Spell
	stack    []*frame
	lastID   uint64
	poisoned bool

	starting string
	rank     RankFunc
	sink     FilterSink
	log      logrus.FieldLogger
}

// Option configures a Machine
type Option func(*Machine)

// WithStartingSpell sets the spell pushed by Begin
func WithStartingSpell(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.starting = id
		}
	}
}

// WithRanker replaces the ranking function
func WithRanker(rank RankFunc) Option {
	return func(m *Machine) { m.rank = rank }
}

// WithFilterSink sets where filter records are sent
func WithFilterSink(sink FilterSink) Option {
	return func(m *Machine) { m.sink = sink }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Machine) { m.log = log }
}

// New creates a machine in the NotStarted state
func New(opts ...Option) *Machine {
	m := &Machine{
		status:   domain.StatusNotStarted,
		spells:   map[string]domain.Spell{},
		starting: DefaultStartingSpell,
		rank:     match.Rank,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// write runs fn under the write lock. A panic in fn poisons the machine.
func (m *Machine) write(fn func() error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return ErrPoisoned
	}
	defer func() {
		if r := recover(); r != nil {
			m.poisoned = true
			m.log.WithField("panic", r).Error("panic while mutating navigation state")
			err = ErrPoisoned
		}
	}()
	return fn()
}

func (m *Machine) read(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.poisoned {
		return ErrPoisoned
	}
	return fn()
}

func (m *Machine) top() *frame {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// isTop reports whether id is the current frame. Callers hold the lock.
func (m *Machine) isTop(id uint64) bool {
	f := m.top()
	return f != nil && f.id == id
}

func (m *Machine) pushFrame(spellID string) *frame {
	m.lastID++
	f := &frame{id: m.lastID, spellID: spellID}
	m.stack = append(m.stack, f)
	return f
}

// IsCurrent reports whether frameID is the frame on top of the stack
func (m *Machine) IsCurrent(frameID uint64) bool {
	current := false
	_ = m.read(func() error {
		current = m.isTop(frameID)
		return nil
	})
	return current
}

// Begin installs spells and pushes the starting frame. It fails with
// ErrAlreadyStarted unless the machine is NotStarted.
func (m *Machine) Begin(spells map[string]domain.Spell) (uint64, error) {
	var id uint64
	err := m.write(func() error {
		if m.status != domain.StatusNotStarted {
			return ErrAlreadyStarted
		}
		m.status = domain.StatusBooting
		m.spells = maps.Clone(spells)
		if m.spells == nil {
			m.spells = map[string]domain.Spell{}
		}
		m.status = domain.StatusLoading
		m.stack = nil
		id = m.pushFrame(m.starting).id
		return nil
	})
	return id, err
}

// LoadRequestFor resolves the provider of the frame with the given id
func (m *Machine) LoadRequestFor(frameID uint64) (LoadRequest, error) {
	var req LoadRequest
	err := m.read(func() error {
		idx := slices.IndexFunc(m.stack, func(f *frame) bool { return f.id == frameID })
		if idx < 0 {
			return fmt.Errorf("%w: frame %d", ErrNoFrame, frameID)
		}
		f := m.stack[idx]
		spell, ok := m.spells[f.spellID]
		if !ok {
			return fmt.Errorf("%w: spell not found for frame %s", ErrUnknownSpell, f.spellID)
		}
		req = LoadRequest{
			FrameID:   f.id,
			SpellID:   f.spellID,
			Command:   spell.Provider,
			Streaming: spell.IsStreaming,
		}
		return nil
	})
	return req, err
}

// FinishLoading installs a batch provider's items and moves to Ready. It is
// a no-op returning false when frameID is no longer the current frame.
func (m *Machine) FinishLoading(frameID uint64, items []domain.Item) bool {
	applied := false
	_ = m.write(func() error {
		if !m.isTop(frameID) {
			return nil
		}
		f := m.top()
		f.all = slices.Clone(items)
		f.filtered = slices.Clone(items)
		f.isFiltering = false
		f.clampSelection()
		m.status = domain.StatusReady
		applied = true
		return nil
	})
	return applied
}

// AppendItems merges a streaming flush into the current frame. It returns
// false, leaving the state untouched, when frameID is stale.
func (m *Machine) AppendItems(frameID uint64, items []domain.Item) bool {
	applied := false
	_ = m.write(func() error {
		if !m.isTop(frameID) {
			return nil
		}
		f := m.top()
		f.all = append(f.all, items...)
		f.filtered = append(f.filtered, items...)
		applied = true
		return nil
	})
	return applied
}

// MarkReady ends a stream for the current frame
func (m *Machine) MarkReady(frameID uint64) bool {
	applied := false
	_ = m.write(func() error {
		if !m.isTop(frameID) {
			return nil
		}
		m.status = domain.StatusReady
		applied = true
		return nil
	})
	return applied
}

// Fail moves to Error and drops the stack and the spells
func (m *Machine) Fail() {
	_ = m.write(func() error {
		m.status = domain.StatusError
		m.spells = map[string]domain.Spell{}
		m.stack = nil
		return nil
	})
}

// SetQuery stores the query on the current frame and resets the selection.
// Ranking happens in Refilter.
func (m *Machine) SetQuery(text string) bool {
	applied := false
	_ = m.write(func() error {
		f := m.top()
		if f == nil {
			return nil
		}
		f.query = text
		f.selected = 0
		f.isFiltering = true
		applied = true
		return nil
	})
	return applied
}

// MoveSelection moves the selection by delta, clamped to the filtered items
func (m *Machine) MoveSelection(delta int) bool {
	applied := false
	_ = m.write(func() error {
		f := m.top()
		if f == nil {
			return nil
		}
		if len(f.filtered) == 0 {
			f.selected = 0
		} else {
			cur := min(max(f.selected, 0), len(f.filtered)-1)
			f.selected = min(max(cur+delta, 0), len(f.filtered)-1)
		}
		applied = true
		return nil
	})
	return applied
}

// EscapeResult tells what Escape did
type EscapeResult int

const (
	EscapeNone EscapeResult = iota
	EscapeCleared
	EscapePopped
)

func (r EscapeResult) String() string {
	switch r {
	case EscapeCleared:
		return "cleared"
	case EscapePopped:
		return "popped"
	default:
		return "none"
	}
}

// Escape clears a non-empty query first; with an empty query it pops the
// current frame unless it is the last one.
func (m *Machine) Escape() EscapeResult {
	result := EscapeNone
	_ = m.write(func() error {
		f := m.top()
		switch {
		case f == nil:
		case f.query != "":
			f.query = ""
			f.selected = 0
			f.filtered = slices.Clone(f.all)
			f.isFiltering = false
			result = EscapeCleared
		case len(m.stack) > 1:
			m.stack[len(m.stack)-1] = nil
			m.stack = m.stack[:len(m.stack)-1]
			m.top().clampSelection()
			m.status = domain.StatusReady
			result = EscapePopped
		}
		return nil
	})
	return result
}

// Push enters spellID as a new frame in the Loading state. An unknown
// spell leaves the stack untouched.
func (m *Machine) Push(spellID string) (LoadRequest, error) {
	var req LoadRequest
	err := m.write(func() error {
		spell, ok := m.spells[spellID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSpell, spellID)
		}
		f := m.pushFrame(spellID)
		m.status = domain.StatusLoading
		req = LoadRequest{
			FrameID:   f.id,
			SpellID:   spellID,
			Command:   spell.Provider,
			Streaming: spell.IsStreaming,
		}
		return nil
	})
	return req, err
}

// Snapshot returns an immutable view of the state. A poisoned machine
// reports Error with empty collections.
func (m *Machine) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Status:           domain.StatusError,
		ContextNameChain: []string{},
		VisibleItems:     []domain.Item{},
	}
	_ = m.read(func() error {
		snap.Status = m.status
		snap.DefinitionCount = len(m.spells)
		for _, f := range m.stack {
			name := f.spellID
			if spell, ok := m.spells[f.spellID]; ok {
				name = spell.Name
			}
			snap.ContextNameChain = append(snap.ContextNameChain, name)
		}
		f := m.top()
		if f == nil {
			return nil
		}
		snap.VisibleItems = slices.Clone(f.filtered[:min(len(f.filtered), MaxResults)])
		if snap.VisibleItems == nil {
			snap.VisibleItems = []domain.Item{}
		}
		snap.TotalFilteredCount = len(f.filtered)
		snap.Query = f.query
		snap.IsFiltering = f.isFiltering
		if len(f.filtered) > 0 {
			snap.SelectedIndex = min(max(f.selected, 0), len(f.filtered)-1)
		}
		snap.SelectedItem = f.selectedItem()
		return nil
	})
	return snap
}

// Status returns the current status, Error when poisoned
func (m *Machine) Status() domain.Status {
	status := domain.StatusError
	_ = m.read(func() error {
		status = m.status
		return nil
	})
	return status
}

// Spells returns the loaded spells ordered by id
func (m *Machine) Spells() []domain.Spell {
	var out []domain.Spell
	_ = m.read(func() error {
		for _, id := range slices.Sorted(maps.Keys(m.spells)) {
			out = append(out, m.spells[id])
		}
		return nil
	})
	return out
}

// CurrentSpell returns the spell of the current frame
func (m *Machine) CurrentSpell() (domain.Spell, error) {
	spell, _, err := m.ActionContext()
	return spell, err
}

// TemplateFrames copies what templates can see of every frame, bottom first
func (m *Machine) TemplateFrames() ([]template.Frame, error) {
	var frames []template.Frame
	err := m.read(func() error {
		frames = m.templateFrames()
		return nil
	})
	return frames, err
}

// ActionContext returns the current spell and the template frames in one
// consistent read.
func (m *Machine) ActionContext() (domain.Spell, []template.Frame, error) {
	var (
		spell  domain.Spell
		frames []template.Frame
	)
	err := m.read(func() error {
		f := m.top()
		if f == nil {
			return ErrNoFrame
		}
		s, ok := m.spells[f.spellID]
		if !ok {
			return fmt.Errorf("%w: no active spell %s", ErrUnknownSpell, f.spellID)
		}
		spell = s
		spell.Actions = slices.Clone(s.Actions)
		frames = m.templateFrames()
		return nil
	})
	return spell, frames, err
}

func (m *Machine) templateFrames() []template.Frame {
	frames := make([]template.Frame, 0, len(m.stack))
	for _, f := range m.stack {
		frames = append(frames, template.Frame{
			SpellID:  f.spellID,
			Query:    f.query,
			Selected: f.selectedItem(),
		})
	}
	return frames
}

// Refilter ranks the current frame's items against its query outside the
// lock and writes the result back only if the frame and its query are
// unchanged. It reports whether the result was applied and always emits a
// FilterRecord, also when there is no frame to filter.
func (m *Machine) Refilter() bool {
	start := time.Now()
	job, ok := m.beginFilter()
	if !ok {
		m.record(FilterRecord{Elapsed: time.Since(start)})
		return false
	}
	result := m.computeFilter(job)
	applied := m.applyFilter(job, result)
	m.record(FilterRecord{
		Query:   job.query,
		Items:   len(job.items),
		Results: len(result),
		Applied: applied,
		Elapsed: time.Since(start),
	})
	return applied
}

type filterJob struct {
	frameID uint64
	query   string
	items   []domain.Item
	search  *domain.SearchConfig
}

func (m *Machine) beginFilter() (filterJob, bool) {
	var job filterJob
	err := m.read(func() error {
		f := m.top()
		if f == nil {
			return ErrNoFrame
		}
		job = filterJob{
			frameID: f.id,
			query:   f.query,
			// all only ever grows by append or is replaced wholesale, so
			// this prefix stays valid after the lock is released
			items: f.all[:len(f.all):len(f.all)],
		}
		if spell, ok := m.spells[f.spellID]; ok && spell.Search != nil {
			cfg := *spell.Search
			job.search = &cfg
		}
		return nil
	})
	return job, err == nil
}

// computeFilter runs without the lock. An empty query or a spell without a
// search config keeps the items in input order. Either way at most
// MaxResults are kept.
func (m *Machine) computeFilter(job filterJob) []domain.Item {
	if job.query == "" || job.search == nil {
		return slices.Clone(job.items[:min(len(job.items), MaxResults)])
	}
	haystack := make([]string, len(job.items))
	for i, item := range job.items {
		haystack[i] = item.String()
	}
	order := m.rank(haystack, job.query, *job.search)
	out := make([]domain.Item, 0, min(len(order), MaxResults))
	for _, idx := range order[:min(len(order), MaxResults)] {
		out = append(out, job.items[idx])
	}
	return out
}

func (m *Machine) applyFilter(job filterJob, result []domain.Item) bool {
	applied := false
	_ = m.write(func() error {
		f := m.top()
		if f == nil || f.id != job.frameID || f.query != job.query {
			return nil
		}
		f.filtered = result
		f.clampSelection()
		f.isFiltering = false
		applied = true
		return nil
	})
	return applied
}

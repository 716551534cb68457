// Package app implements the command contract front ends talk to: start,
// query changes, selection moves, action invocation, escape and preview.
// Every state change a front end must reflect is published as a
// SnapshotEvent on the event bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"quickspell/internal/actions"
	"quickspell/internal/domain"
	"quickspell/internal/eventbus"
	"quickspell/internal/metrics"
	"quickspell/internal/provider"
	"quickspell/internal/state"
	"quickspell/internal/template"
)

// ErrNoPreview is returned by Preview when the current spell declares none
var ErrNoPreview = errors.New("spell has no preview")

// LoadFunc produces the spell definitions at start
type LoadFunc func() (map[string]domain.Spell, error)

// Options wires a Session
type Options struct {
	Load          LoadFunc
	Runner        *provider.Runner
	Resolver      *template.Resolver
	Bus           eventbus.EventBus
	Metrics       *metrics.Metrics
	FilterSink    state.FilterSink
	StartingSpell string
	Logger        logrus.FieldLogger
}

// Session is the single navigation session of the process
type Session struct {
	machine    *state.Machine
	runner     *provider.Runner
	resolver   *template.Resolver
	dispatcher *actions.Dispatcher
	bus        eventbus.EventBus
	metrics    *metrics.Metrics
	load       LoadFunc
	log        logrus.FieldLogger

	startMu sync.Mutex
	ctx     context.Context
	wg      sync.WaitGroup
}

// New creates a session. Load, Runner, Resolver and Bus are required.
func New(opts Options) (*Session, error) {
	switch {
	case opts.Load == nil:
		return nil, errors.New("app: Load is required")
	case opts.Runner == nil:
		return nil, errors.New("app: Runner is required")
	case opts.Resolver == nil:
		return nil, errors.New("app: Resolver is required")
	case opts.Bus == nil:
		return nil, errors.New("app: Bus is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Session{
		runner:   opts.Runner,
		resolver: opts.Resolver,
		bus:      opts.Bus,
		metrics:  opts.Metrics,
		load:     opts.Load,
		log:      log,
		ctx:      context.Background(),
	}
	s.machine = state.New(
		state.WithStartingSpell(opts.StartingSpell),
		state.WithFilterSink(&filterPublisher{bus: opts.Bus, next: opts.FilterSink}),
		state.WithLogger(log),
	)
	s.dispatcher = actions.NewDispatcher(s.machine, opts.Resolver, opts.Runner, s, log)
	return s, nil
}

// Snapshot returns the current state without side effects
func (s *Session) Snapshot() domain.Snapshot {
	return s.machine.Snapshot()
}

// Spells returns the loaded spells ordered by id
func (s *Session) Spells() []domain.Spell {
	return s.machine.Spells()
}

// Start loads the spells, pushes the starting spell and begins populating
// it in the background. Calling it again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.machine.Status() != domain.StatusNotStarted {
		return nil
	}
	s.ctx = context.WithoutCancel(ctx)

	spells, err := s.load()
	if err != nil {
		s.fail("failed to load spells", err)
		return fmt.Errorf("failed to load spells: %w", err)
	}

	frameID, err := s.machine.Begin(spells)
	if errors.Is(err, state.ErrAlreadyStarted) {
		return nil
	}
	if err != nil {
		return err
	}

	req, err := s.machine.LoadRequestFor(frameID)
	if err != nil {
		s.fail("failed to load items", err)
		return nil
	}
	s.Populate(req)
	return nil
}

// SetQuery stores the query and re-filters in the background. A snapshot
// is published only when that result is still current.
func (s *Session) SetQuery(text string) {
	if !s.machine.SetQuery(text) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.machine.Refilter() {
			s.publishSnapshot()
		}
	}()
}

// MoveSelection moves the selection by delta
func (s *Session) MoveSelection(delta int) domain.Snapshot {
	s.machine.MoveSelection(delta)
	return s.publishSnapshot()
}

// Escape clears the query or leaves the current spell
func (s *Session) Escape() state.EscapeResult {
	result := s.machine.Escape()
	if result != state.EscapeNone {
		s.publishSnapshot()
	}
	return result
}

// InvokeAction runs the action labelled label on the current selection
func (s *Session) InvokeAction(ctx context.Context, label string) error {
	outcome, err := s.dispatcher.Invoke(ctx, label)
	if err != nil {
		s.log.WithError(err).WithField("label", label).Warn("action failed")
		s.bus.Publish(domain.ErrorEvent{Message: "action failed", Err: err})
		return err
	}

	spellID := ""
	if spell, err := s.machine.CurrentSpell(); err == nil {
		spellID = spell.ID
	}
	if outcome.Pushed != nil {
		spellID = outcome.Pushed.SpellID
	}
	s.bus.Publish(domain.ActionInvokedEvent{SpellID: spellID, Label: label})
	return nil
}

// Preview renders the current spell's preview command and returns its output
func (s *Session) Preview(ctx context.Context) (string, error) {
	spell, frames, err := s.machine.ActionContext()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(spell.Preview) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPreview, spell.ID)
	}
	cmd, err := s.resolver.Render(spell.Preview, frames)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cmd) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPreview, spell.ID)
	}
	return s.runner.Output(ctx, cmd)
}

// Wait blocks until every background provider run and re-filter finished
func (s *Session) Wait() {
	s.wg.Wait()
}

// Populate publishes the Loading snapshot for a freshly pushed frame and
// runs its provider in the background. The provider command is rendered
// against the stack as it is at push time, so it can refer to the
// selections of the frames below.
func (s *Session) Populate(req state.LoadRequest) {
	s.bus.Publish(domain.FramePushedEvent{FrameID: req.FrameID, SpellID: req.SpellID})
	s.publishSnapshot()

	command, err := s.renderProvider(req)
	if err != nil {
		if s.machine.IsCurrent(req.FrameID) {
			s.fail("failed to render provider", err)
		}
		return
	}
	req.Command = command

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runProvider(req)
	}()
}

func (s *Session) runProvider(req state.LoadRequest) {
	logger := s.log.WithFields(logrus.Fields{"spell": req.SpellID, "frame": req.FrameID})
	count := 0
	stale := false

	var err error
	if req.Streaming {
		err = s.runner.Stream(s.ctx, req.SpellID, req.Command, func(items []domain.Item) bool {
			if !s.machine.AppendItems(req.FrameID, items) {
				stale = true
				return false
			}
			count += len(items)
			s.refilterActiveQuery()
			s.publishSnapshot()
			return true
		})
		if err == nil && !stale && !s.machine.MarkReady(req.FrameID) {
			stale = true
		}
	} else {
		var items []domain.Item
		items, err = s.runner.Batch(s.ctx, req.SpellID, req.Command)
		if err == nil {
			if s.machine.FinishLoading(req.FrameID, items) {
				count = len(items)
			} else {
				stale = true
			}
		}
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.ProviderFailed(req.SpellID)
		}
		if !s.machine.IsCurrent(req.FrameID) {
			logger.WithError(err).Warn("provider for a stale frame failed")
			return
		}
		s.fail("failed to load items", err)
		return
	}

	if s.metrics != nil {
		s.metrics.ProviderLoaded(req.SpellID, count)
	}
	s.bus.Publish(domain.ProviderLoadedEvent{FrameID: req.FrameID, SpellID: req.SpellID, Items: count, Stale: stale})
	if stale {
		logger.Debug("discarded provider output for a stale frame")
		return
	}
	logger.WithField("items", count).Info("provider finished")
	s.refilterActiveQuery()
	s.publishSnapshot()
}

func (s *Session) renderProvider(req state.LoadRequest) (string, error) {
	if !strings.Contains(req.Command, "{{") {
		return req.Command, nil
	}
	frames, err := s.machine.TemplateFrames()
	if err != nil {
		return "", err
	}
	return s.resolver.Render(req.Command, frames)
}

// refilterActiveQuery re-ranks when items arrived while a query was set
func (s *Session) refilterActiveQuery() {
	if s.machine.Snapshot().Query != "" {
		s.machine.Refilter()
	}
}

func (s *Session) fail(msg string, err error) {
	s.log.WithError(err).Error(msg)
	s.machine.Fail()
	s.bus.Publish(domain.ErrorEvent{Message: msg, Err: err})
	s.publishSnapshot()
}

func (s *Session) publishSnapshot() domain.Snapshot {
	snap := s.machine.Snapshot()
	s.bus.Publish(domain.SnapshotEvent{Snapshot: snap})
	return snap
}

// filterPublisher forwards filter records to the bus and the next sink
type filterPublisher struct {
	bus  eventbus.EventBus
	next state.FilterSink
}

func (p *filterPublisher) RecordFilter(r state.FilterRecord) error {
	p.bus.Publish(domain.FilterAppliedEvent{
		Query:   r.Query,
		Items:   r.Items,
		Results: r.Results,
		Applied: r.Applied,
		Elapsed: r.Elapsed,
	})
	if p.next == nil {
		return nil
	}
	return p.next.RecordFilter(r)
}

// Package actions resolves an invoked label against the current spell's
// actions and executes the first one whose condition passes.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"quickspell/internal/domain"
	"quickspell/internal/state"
	"quickspell/internal/template"
)

var (
	ErrNoMatchingAction = errors.New("no matching action")
	ErrEmptyCommand     = errors.New("resolved command is empty")
	ErrEmptySpellTarget = errors.New("resolved spell target is empty")
)

// Navigator is the part of the state machine the dispatcher needs
type Navigator interface {
	ActionContext() (domain.Spell, []template.Frame, error)
	Push(spellID string) (state.LoadRequest, error)
}

// Renderer renders a template against the navigation frames
type Renderer interface {
	Render(tmpl string, frames []template.Frame) (string, error)
}

// CommandRunner runs an already tokenized command and waits for it
type CommandRunner interface {
	Exec(ctx context.Context, argv []string) error
}

// Populator loads the items of a freshly pushed frame in the background
type Populator interface {
	Populate(req state.LoadRequest)
}

// Outcome describes what an invocation did
type Outcome struct {
	Label string
	// Argv is set when a command ran
	Argv []string
	// Pushed is set when a spell was entered
	Pushed *state.LoadRequest
}

// Dispatcher executes spell actions
type Dispatcher struct {
	nav      Navigator
	renderer Renderer
	runner   CommandRunner
	populate Populator
	log      logrus.FieldLogger
}

// NewDispatcher wires a dispatcher
func NewDispatcher(nav Navigator, renderer Renderer, runner CommandRunner, populate Populator, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		nav:      nav,
		renderer: renderer,
		runner:   runner,
		populate: populate,
		log:      log,
	}
}

// Invoke runs the first action of the current spell labelled label whose
// condition passes. Actions are scanned in declaration order.
func (d *Dispatcher) Invoke(ctx context.Context, label string) (Outcome, error) {
	spell, frames, err := d.nav.ActionContext()
	if err != nil {
		return Outcome{}, err
	}
	logger := d.log.WithFields(logrus.Fields{"spell": spell.ID, "label": label})

	for _, action := range spell.Actions {
		if action.Label() != label {
			continue
		}
		ok, err := d.conditionPasses(action.Condition(), frames)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			logger.WithField("if", action.Condition()).Debug("action condition failed, trying next")
			continue
		}

		switch a := action.(type) {
		case domain.CmdAction:
			return d.runCommand(ctx, logger, label, a, frames)
		case domain.SpellAction:
			return d.pushSpell(logger, label, a, frames)
		default:
			return Outcome{}, fmt.Errorf("unsupported action type %T", action)
		}
	}

	return Outcome{}, fmt.Errorf("%w for label %s", ErrNoMatchingAction, label)
}

func (d *Dispatcher) conditionPasses(cond string, frames []template.Frame) (bool, error) {
	if cond == "" {
		return true, nil
	}
	rendered, err := d.renderer.Render(cond, frames)
	if err != nil {
		return false, err
	}
	return ConditionPasses(rendered), nil
}

func (d *Dispatcher) runCommand(ctx context.Context, logger logrus.FieldLogger, label string, a domain.CmdAction, frames []template.Frame) (Outcome, error) {
	rendered, err := d.renderer.Render(a.Cmd, frames)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(rendered) == "" {
		return Outcome{}, ErrEmptyCommand
	}
	argv, err := shlex.Split(rendered)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to tokenize command %q: %w", rendered, err)
	}
	if len(argv) == 0 {
		return Outcome{}, ErrEmptyCommand
	}

	logger.WithField("argv", argv).Info("running action command")
	if err := d.runner.Exec(ctx, argv); err != nil {
		return Outcome{}, fmt.Errorf("action command failed: %w", err)
	}
	return Outcome{Label: label, Argv: argv}, nil
}

func (d *Dispatcher) pushSpell(logger logrus.FieldLogger, label string, a domain.SpellAction, frames []template.Frame) (Outcome, error) {
	rendered, err := d.renderer.Render(a.Spell, frames)
	if err != nil {
		return Outcome{}, err
	}
	target := strings.TrimSpace(rendered)
	if target == "" {
		return Outcome{}, ErrEmptySpellTarget
	}

	req, err := d.nav.Push(target)
	if err != nil {
		return Outcome{}, err
	}
	logger.WithFields(logrus.Fields{"target": target, "frame": req.FrameID}).Info("entered spell")
	if d.populate != nil {
		d.populate.Populate(req)
	}
	return Outcome{Label: label, Pushed: &req}, nil
}

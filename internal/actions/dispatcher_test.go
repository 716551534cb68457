package actions

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickspell/internal/domain"
	"quickspell/internal/state"
	"quickspell/internal/template"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Exec(_ context.Context, argv []string) error {
	f.calls = append(f.calls, argv)
	return f.err
}

type fakePopulator struct {
	reqs []state.LoadRequest
}

func (f *fakePopulator) Populate(req state.LoadRequest) { f.reqs = append(f.reqs, req) }

func on() *bool {
	b := true
	return &b
}

func fixture(t *testing.T, actions domain.Actions) (*Dispatcher, *state.Machine, *fakeRunner, *fakePopulator) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	spells := map[string]domain.Spell{
		"search_files": {ID: "search_files", Name: "Files", Enabled: on(), Provider: "ls", Actions: actions},
		"folders":      {ID: "folders", Name: "Folders", Enabled: on(), Provider: "find . -type d", IsStreaming: true},
	}
	m := state.New(state.WithLogger(logger))
	id, err := m.Begin(spells)
	require.NoError(t, err)
	require.True(t, m.FinishLoading(id, []domain.Item{
		{Kind: "FILE", Label: "notes.txt", Data: "/Users/me/my notes.txt"},
		{Kind: "DIR", Label: "folders", Data: "/Users/me"},
	}))

	resolver, err := template.NewResolver(16)
	require.NoError(t, err)
	runner := &fakeRunner{}
	pop := &fakePopulator{}
	return NewDispatcher(m, resolver, runner, pop, logger), m, runner, pop
}

func TestInvokeRunsMainCommandAsArgv(t *testing.T) {
	d, _, runner, _ := fixture(t, domain.Actions{
		domain.CmdAction{Cmd: `open "{{context.search_files.selection.data}}"`},
	})

	out, err := d.Invoke(context.Background(), domain.MainActionLabel)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "/Users/me/my notes.txt"}, out.Argv)
	assert.Equal(t, [][]string{{"open", "/Users/me/my notes.txt"}}, runner.calls)
	assert.Nil(t, out.Pushed)
}

func TestInvokeSkipsFailedConditions(t *testing.T) {
	d, _, runner, _ := fixture(t, domain.Actions{
		domain.CmdAction{If: "{{context.search_files.selection.type}} == 'DIR'", Cmd: "cd-into"},
		domain.CmdAction{Name: "reveal", Cmd: "reveal"},
		domain.CmdAction{If: "{{context.search_files.selection.type}} == FILE", Cmd: "open-file"},
		domain.CmdAction{Cmd: "never"},
	})

	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"open-file"}}, runner.calls)
}

func TestInvokeNoMatchingAction(t *testing.T) {
	d, _, runner, _ := fixture(t, domain.Actions{
		domain.CmdAction{If: "false", Cmd: "nope"},
		domain.CmdAction{Name: "other", Cmd: "other"},
	})

	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	require.ErrorIs(t, err, ErrNoMatchingAction)
	assert.Contains(t, err.Error(), "MAIN")
	assert.Empty(t, runner.calls)
}

func TestInvokeConditionRenderFailureAborts(t *testing.T) {
	d, _, runner, _ := fixture(t, domain.Actions{
		domain.CmdAction{If: "{{#broken}}", Cmd: "a"},
		domain.CmdAction{Cmd: "b"},
	})

	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	var renderErr *template.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Empty(t, runner.calls)
}

func TestInvokeEmptyCommand(t *testing.T) {
	d, _, _, _ := fixture(t, domain.Actions{
		domain.CmdAction{Cmd: "  {{context.missing.selection.data}} "},
	})
	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestInvokeCommandFailure(t *testing.T) {
	d, _, runner, _ := fixture(t, domain.Actions{domain.CmdAction{Cmd: "false"}})
	runner.err = errors.New("exit status 1")

	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestInvokeBadQuoting(t *testing.T) {
	d, _, runner, _ := fixture(t, domain.Actions{domain.CmdAction{Cmd: `open "unterminated`}})
	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestInvokePushesSpell(t *testing.T) {
	d, m, _, pop := fixture(t, domain.Actions{
		domain.SpellAction{Name: "browse", Spell: "{{context.search_files.selection.label}}"},
	})
	m.MoveSelection(1)

	out, err := d.Invoke(context.Background(), "browse")
	require.NoError(t, err)
	require.NotNil(t, out.Pushed)
	assert.Equal(t, "folders", out.Pushed.SpellID)
	assert.True(t, out.Pushed.Streaming)
	require.Len(t, pop.reqs, 1)
	assert.Equal(t, *out.Pushed, pop.reqs[0])

	snap := m.Snapshot()
	assert.Equal(t, []string{"Files", "Folders"}, snap.ContextNameChain)
	assert.Equal(t, domain.StatusLoading, snap.Status)
}

func TestInvokePushUnknownSpellKeepsStack(t *testing.T) {
	d, m, _, pop := fixture(t, domain.Actions{domain.SpellAction{Spell: "{{context.search_files.selection.label}}"}})

	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	require.ErrorIs(t, err, state.ErrUnknownSpell)
	assert.Empty(t, pop.reqs)
	assert.Equal(t, 1, m.Snapshot().Depth())
}

func TestInvokeEmptySpellTarget(t *testing.T) {
	d, _, _, _ := fixture(t, domain.Actions{domain.SpellAction{Spell: "{{context.nope.query}}"}})
	_, err := d.Invoke(context.Background(), domain.MainActionLabel)
	assert.ErrorIs(t, err, ErrEmptySpellTarget)
}

func TestInvokeWithoutFrame(t *testing.T) {
	resolver, err := template.NewResolver(1)
	require.NoError(t, err)
	d := NewDispatcher(state.New(), resolver, &fakeRunner{}, nil, nil)
	_, err = d.Invoke(context.Background(), domain.MainActionLabel)
	assert.ErrorIs(t, err, state.ErrNoFrame)
}

func TestConditionPasses(t *testing.T) {
	cases := map[string]bool{
		"":                 true,
		"   ":              true,
		"APP == 'APP'":     true,
		`APP == "APP"`:     true,
		"APP == FILE":      false,
		"APP != FILE":      true,
		"'APP' != 'APP'":   false,
		" a ==  a ":        true,
		"'a == a'":         false,
		"a == b != c":      false,
		"TRUE":             true,
		"yes":              true,
		"Y":                true,
		"1":                true,
		"false":            false,
		"No":               false,
		"n":                false,
		"0":                false,
		"anything else":    true,
		"'x\" == x":        false,
		"\"mismatch' == x": false,
	}
	for input, want := range cases {
		assert.Equal(t, want, ConditionPasses(input), "condition %q", input)
	}
}

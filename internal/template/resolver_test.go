package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickspell/internal/domain"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(8)
	require.NoError(t, err)
	return r
}

func frame(spellID, line, query string) Frame {
	f := Frame{SpellID: spellID, Query: query}
	if line != "" {
		item, err := domain.ParseItem(line)
		if err != nil {
			panic(err)
		}
		f.Selected = &item
	}
	return f
}

func TestRenderSelectionData(t *testing.T) {
	frames := []Frame{frame("search_files", "FILE\t[F] notes.txt\t/Users/me/notes.txt", "notes")}

	out, err := newResolver(t).Render("{{context.search_files.selection.data}}", frames)
	require.NoError(t, err)
	assert.Equal(t, "/Users/me/notes.txt", out)
}

func TestRenderConditionText(t *testing.T) {
	frames := []Frame{frame("quickspell", "APP\t[A] Notes\t/Applications/Notes.app", "")}

	out, err := newResolver(t).Render("{{context.quickspell.selection.type}} == 'APP'", frames)
	require.NoError(t, err)
	assert.Equal(t, "APP == 'APP'", out)
}

func TestRenderMissingSelectionIsEmpty(t *testing.T) {
	frames := []Frame{frame("search_files", "", "")}

	out, err := newResolver(t).Render("[{{context.search_files.selection.data}}]", frames)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestRenderMultiFrameContext(t *testing.T) {
	frames := []Frame{
		frame("quickspell", "SPELL\tQuickspell\tsearch_files", ""),
		frame("search_files", "FILE\t[F] notes.txt\t/Users/me/notes.txt", "notes"),
	}

	out, err := newResolver(t).Render(
		"{{context.quickspell.selection.data}} -> {{context.search_files.selection.data}}", frames)
	require.NoError(t, err)
	assert.Equal(t, "search_files -> /Users/me/notes.txt", out)
}

func TestRenderQuerySpellIDAndRaw(t *testing.T) {
	frames := []Frame{frame("files", "FILE\ta&b\t/tmp/<a>", "a&b")}

	out, err := newResolver(t).Render(
		"{{context.files.spellId}}|{{context.files.query}}|{{context.files.selection.label}}|{{context.files.selection.raw}}", frames)
	require.NoError(t, err)
	assert.Equal(t, "files|a&b|a&b|FILE\ta&b\t/tmp/<a>", out, "output must not be HTML escaped")
}

func TestRenderUnknownVariableIsEmpty(t *testing.T) {
	out, err := newResolver(t).Render("open {{context.nope.selection.data}}", nil)
	require.NoError(t, err)
	assert.Equal(t, "open ", out)
}

func TestRenderMalformedTemplate(t *testing.T) {
	_, err := newResolver(t).Render("{{#context.files}}unterminated", nil)
	require.Error(t, err)

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "{{#context.files}}unterminated", renderErr.Template)
}

func TestRenderUsesCache(t *testing.T) {
	r := newResolver(t)
	frames := []Frame{frame("files", "FILE\ta\t/a", "")}

	for range 3 {
		out, err := r.Render("{{context.files.selection.data}}", frames)
		require.NoError(t, err)
		assert.Equal(t, "/a", out)
	}
	assert.Equal(t, 1, r.cache.Len())
}

package spells

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickspell/internal/domain"
)

const filesSpell = `
id: search_files
name: Search Files
enabled: true
provider: ./scripts/files.sh
is_streaming: true
preview: "cat {{context.search_files.selection.data}}"
search:
  field: 3
  scheme: Path
  mode: EXACT
fzf_options: ["--tiebreak=end"]
actions:
  - type: CMD
    if: "{{context.search_files.selection.type}} == 'DIR'"
    cmd: open -R "{{context.search_files.selection.data}}"
  - type: CMD
    cmd: open "{{context.search_files.selection.data}}"
  - type: SPELL
    name: browse
    spell: folders
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func quiet() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	return l, &buf
}

func TestParseFullSpell(t *testing.T) {
	spell, err := Parse([]byte(filesSpell))
	require.NoError(t, err)

	assert.Equal(t, "search_files", spell.ID)
	assert.Equal(t, "Search Files", spell.Name)
	assert.True(t, spell.IsEnabled())
	assert.True(t, spell.IsStreaming)
	require.NotNil(t, spell.Search)
	assert.Equal(t, domain.SearchConfig{Field: 3, Scheme: domain.SchemePath, Mode: domain.ModeExact}, *spell.Search)
	assert.Equal(t, []string{"--tiebreak=end"}, spell.FzfOptions)

	require.Len(t, spell.Actions, 3)
	first, ok := spell.Actions[0].(domain.CmdAction)
	require.True(t, ok)
	assert.Equal(t, domain.MainActionLabel, first.Label())
	assert.Equal(t, "{{context.search_files.selection.type}} == 'DIR'", first.Condition())

	push, ok := spell.Actions[2].(domain.SpellAction)
	require.True(t, ok)
	assert.Equal(t, "browse", push.Label())
	assert.Equal(t, "folders", push.Spell)
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte("id: x\nname: X\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enabled")
	assert.Contains(t, err.Error(), "provider")
}

func TestParseRejectsBadActions(t *testing.T) {
	for _, doc := range []string{
		"id: a\nname: A\nenabled: true\nprovider: p\nactions:\n  - type: NOPE\n",
		"id: a\nname: A\nenabled: true\nprovider: p\nactions:\n  - type: CMD\n",
		"id: a\nname: A\nenabled: true\nprovider: p\nactions:\n  - type: SPELL\n",
		"id: a\nname: A\nenabled: true\nprovider: p\nsearch:\n  scheme: weird\n",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "files.yml", filesSpell)
	writeFile(t, dir, "folders.yaml", "id: folders\nname: Folders\nenabled: false\nprovider: find . -type d\n")
	writeFile(t, dir, "README.md", "not a spell")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yml"), 0o755))

	log, _ := quiet()
	spells, err := LoadDir(dir, "", log)
	require.NoError(t, err)
	assert.Len(t, spells, 2)
	assert.False(t, spells["folders"].IsEnabled())
	assert.Equal(t, "./scripts/files.sh", spells["search_files"].Provider)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), "", nil)
	assert.ErrorIs(t, err, ErrDirNotFound)
}

func TestLoadDirOneBadFileAbortsAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", filesSpell)
	writeFile(t, dir, "b.yml", "id: [unclosed\n")

	spells, err := LoadDir(dir, "", nil)
	assert.Nil(t, spells)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, filepath.Join(dir, "b.yml"), parseErr.Path)
}

func TestLoadDirDuplicateIDLaterWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", "id: dup\nname: First\nenabled: true\nprovider: a\n")
	writeFile(t, dir, "b.yml", "id: dup\nname: Second\nenabled: true\nprovider: b\n")

	log, buf := quiet()
	spells, err := LoadDir(dir, "", log)
	require.NoError(t, err)
	assert.Equal(t, "Second", spells["dup"].Name)
	assert.Contains(t, buf.String(), "duplicate spell id")
}

func TestLoadDirCustomPattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.spell", "id: a\nname: A\nenabled: true\nprovider: a\n")
	writeFile(t, dir, "b.yml", "id: b\nname: B\nenabled: true\nprovider: b\n")

	spells, err := LoadDir(dir, "*.spell", nil)
	require.NoError(t, err)
	assert.Contains(t, spells, "a")
	assert.NotContains(t, spells, "b")
}

//go:build e2e && unix

package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Spells installed by CreateTestWorkspace. The starting spell lists the
// workspace's files and folders; SPELL actions open a folder listing.
var defaultSpells = map[string]string{
	"files.yml": `id: search_files
name: Files
enabled: true
provider: |
  for f in *; do
    if [ -d "$f" ]; then printf 'DIR\t%s\t%s\n' "$f" "$PWD/$f"; else printf 'FILE\t%s\t%s\n' "$f" "$PWD/$f"; fi
  done
preview: cat "{{context.search_files.selection.data}}"
search:
  field: 2
  scheme: path
actions:
  - type: SPELL
    if: "{{context.search_files.selection.type}} == DIR"
    spell: folder
  - type: CMD
    cmd: touch "{{context.search_files.selection.label}}.opened"
`,
	"folder.yml": `id: folder
name: Folder
enabled: true
is_streaming: true
provider: ls -1 "{{context.search_files.selection.data}}" | while read f; do printf 'FILE\t%s\t%s\n' "$f" "$f"; done
search:
  field: 2
`,
}

// CreateTestWorkspace creates a temporary workspace holding a spells
// directory, a config file and the files the spells list
func (tf *TUITestFramework) CreateTestWorkspace() (string, error) {
	dir := tf.t.TempDir()
	tf.workspace = filepath.Join(dir, "resources")
	spellsDir := filepath.Join(tf.workspace, "spells")
	if err := os.MkdirAll(spellsDir, 0755); err != nil {
		return "", err
	}
	for name, content := range defaultSpells {
		if err := tf.WriteSpell(name, content); err != nil {
			return "", err
		}
	}

	tf.configPath = filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf(`spells_dir = %q
resources_dir = %q
log_file = %q
log_level = "debug"
stream_interval = "20ms"
`, spellsDir, tf.workspace, filepath.Join(dir, "quickspell.log"))
	if err := os.WriteFile(tf.configPath, []byte(cfg), 0644); err != nil {
		return "", err
	}
	return tf.workspace, nil
}

// WriteSpell adds or replaces a spell file
func (tf *TUITestFramework) WriteSpell(name, content string) error {
	return os.WriteFile(filepath.Join(tf.workspace, "spells", name), []byte(content), 0644)
}

// CreateFile creates a file relative to the workspace
func (tf *TUITestFramework) CreateFile(name, content string) error {
	path := filepath.Join(tf.workspace, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

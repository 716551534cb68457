// Package spells loads spell definitions from a directory of YAML files.
package spells

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"quickspell/internal/domain"
)

// DefaultPattern selects the spell files of a directory
const DefaultPattern = "*.{yml,yaml}"

// ErrDirNotFound is returned when the spells directory does not exist
var ErrDirNotFound = errors.New("spells directory not found")

// ParseError reports a spell file that could not be decoded or validated
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes and validates a single spell document
func Parse(data []byte) (domain.Spell, error) {
	var spell domain.Spell
	if err := yaml.Unmarshal(data, &spell); err != nil {
		return domain.Spell{}, err
	}
	if err := spell.Validate(); err != nil {
		return domain.Spell{}, err
	}
	return spell, nil
}

// LoadDir reads every file in dir whose name matches pattern. One bad file
// fails the whole load. When two files declare the same id the one sorting
// last wins.
func LoadDir(dir, pattern string, log logrus.FieldLogger) (map[string]domain.Spell, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid spell pattern %q: %w", pattern, err)
	}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%w at %s", ErrDirNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("io error while loading spells: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("io error while loading spells: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	spells := make(map[string]domain.Spell)
	source := make(map[string]string)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !matcher.Match(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("io error while loading spells: %w", err)
		}
		spell, err := Parse(data)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		if prev, dup := source[spell.ID]; dup {
			log.WithFields(logrus.Fields{
				"spell":    spell.ID,
				"previous": prev,
				"file":     path,
			}).Warn("duplicate spell id, later file wins")
		}
		spells[spell.ID] = spell
		source[spell.ID] = path
	}

	log.WithFields(logrus.Fields{"dir": dir, "count": len(spells)}).Info("loaded spells")
	return spells, nil
}

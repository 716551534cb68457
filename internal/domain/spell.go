package domain

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MainActionLabel is the label of actions declared without a name
const MainActionLabel = "MAIN"

// Spell is a configured search context: a provider command, optional
// search tuning and the actions that can be invoked on its items.
type Spell struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Enabled     *bool         `yaml:"enabled"`
	Provider    string        `yaml:"provider"`
	Alias       string        `yaml:"alias,omitempty"`
	IsStreaming bool          `yaml:"is_streaming,omitempty"`
	Preview     string        `yaml:"preview,omitempty"`
	Search      *SearchConfig `yaml:"search,omitempty"`
	FzfOptions  []string      `yaml:"fzf_options,omitempty"`
	Actions     Actions       `yaml:"actions,omitempty"`
}

// IsEnabled reports the enabled flag, treating a missing flag as false
func (s Spell) IsEnabled() bool {
	return s.Enabled != nil && *s.Enabled
}

// Validate checks the fields every spell file must declare
func (s Spell) Validate() error {
	var missing []string
	if strings.TrimSpace(s.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if s.Enabled == nil {
		missing = append(missing, "enabled")
	}
	if strings.TrimSpace(s.Provider) == "" {
		missing = append(missing, "provider")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// Scheme selects the scoring configuration used by the ranker
type Scheme string

const (
	SchemePlain Scheme = "plain"
	SchemePath  Scheme = "path"
)

// UnmarshalYAML accepts scheme names in any case
func (s *Scheme) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(value.Value)) {
	case "", "plain", "default":
		*s = SchemePlain
	case "path":
		*s = SchemePath
	default:
		return fmt.Errorf("line %d: unknown search scheme %q", value.Line, value.Value)
	}
	return nil
}

// Mode selects fuzzy or exact matching
type Mode string

const (
	ModeFuzzy Mode = "fuzzy"
	ModeExact Mode = "exact"
)

// UnmarshalYAML accepts mode names in any case
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(value.Value)) {
	case "", "fuzzy":
		*m = ModeFuzzy
	case "exact":
		*m = ModeExact
	default:
		return fmt.Errorf("line %d: unknown search mode %q", value.Line, value.Value)
	}
	return nil
}

// SearchConfig tunes how a spell's items are matched against the query
type SearchConfig struct {
	Field  int    `yaml:"field,omitempty"`
	Scheme Scheme `yaml:"scheme,omitempty"`
	Mode   Mode   `yaml:"mode,omitempty"`
}

// DefaultSearchConfig matches the first column fuzzily
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{Field: 1, Scheme: SchemePlain, Mode: ModeFuzzy}
}

// WithDefaults fills zero values with the defaults
func (c SearchConfig) WithDefaults() SearchConfig {
	if c.Field <= 0 {
		c.Field = 1
	}
	if c.Scheme == "" {
		c.Scheme = SchemePlain
	}
	if c.Mode == "" {
		c.Mode = ModeFuzzy
	}
	return c
}

// Action is one invokable action of a spell. The set of implementations is
// closed: CmdAction and SpellAction.
type Action interface {
	// Label is the name the front end invokes the action by
	Label() string
	// Condition is the raw guard template, empty when absent
	Condition() string
	isAction()
}

// CmdAction runs an external command built from a template
type CmdAction struct {
	Name string
	If   string
	Cmd  string
}

func (a CmdAction) Label() string     { return labelOrMain(a.Name) }
func (a CmdAction) Condition() string { return a.If }
func (CmdAction) isAction()           {}

// SpellAction pushes another spell onto the navigation stack
type SpellAction struct {
	Name  string
	If    string
	Spell string
}

func (a SpellAction) Label() string     { return labelOrMain(a.Name) }
func (a SpellAction) Condition() string { return a.If }
func (SpellAction) isAction()           {}

func labelOrMain(name string) string {
	if name == "" {
		return MainActionLabel
	}
	return name
}

// Actions is the ordered action list of a spell
type Actions []Action

type rawAction struct {
	Type  string `yaml:"type"`
	Name  string `yaml:"name"`
	If    string `yaml:"if"`
	Cmd   string `yaml:"cmd"`
	Spell string `yaml:"spell"`
}

// UnmarshalYAML decodes the CMD/SPELL tagged records
func (a *Actions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: actions must be a list", value.Line)
	}
	out := make(Actions, 0, len(value.Content))
	for _, node := range value.Content {
		var raw rawAction
		if err := node.Decode(&raw); err != nil {
			return err
		}
		switch strings.ToUpper(raw.Type) {
		case "CMD":
			if raw.Cmd == "" {
				return fmt.Errorf("line %d: CMD action requires cmd", node.Line)
			}
			out = append(out, CmdAction{Name: raw.Name, If: raw.If, Cmd: raw.Cmd})
		case "SPELL":
			if raw.Spell == "" {
				return fmt.Errorf("line %d: SPELL action requires spell", node.Line)
			}
			out = append(out, SpellAction{Name: raw.Name, If: raw.If, Spell: raw.Spell})
		default:
			return fmt.Errorf("line %d: unknown action type %q", node.Line, raw.Type)
		}
	}
	*a = out
	return nil
}

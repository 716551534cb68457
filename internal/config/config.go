package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const appName = "quickspell"

// ErrConfigExists is returned by WriteDefault when it would overwrite a file
var ErrConfigExists = errors.New("config file already exists")

// Config represents the application configuration
type Config struct {
	SpellsDir         string            `mapstructure:"spells_dir"`
	ResourcesDir      string            `mapstructure:"resources_dir"` // provider working dir, parent of SpellsDir when empty
	SpellPattern      string            `mapstructure:"spell_pattern"`
	StartingSpell     string            `mapstructure:"starting_spell"`
	LogFile           string            `mapstructure:"log_file"`
	FilterLogFile     string            `mapstructure:"filter_log_file"` // LogFile when empty
	LogLevel          string            `mapstructure:"log_level"`
	StreamInterval    time.Duration     `mapstructure:"stream_interval"`
	TemplateCacheSize int               `mapstructure:"template_cache_size"`
	Shell             string            `mapstructure:"shell"`
	Keys              map[string]string `mapstructure:"keys"` // key name -> action label
}

// Level parses LogLevel
func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DataDir returns the directory holding log files
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", appName)
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

func defaults() map[string]any {
	return map[string]any{
		"spells_dir":          filepath.Join(configDir(), "spells"),
		"resources_dir":       "",
		"spell_pattern":       "*.{yml,yaml}",
		"starting_spell":      "search_files",
		"log_file":            filepath.Join(DataDir(), appName+".log"),
		"filter_log_file":     "",
		"log_level":           "info",
		"stream_interval":     "500ms",
		"template_cache_size": 256,
		"shell":               "sh",
		"keys": map[string]string{
			"enter": "MAIN",
		},
	}
}

// Load reads the config file at path, falling back to $QUICKSPELL_CONFIG and
// then DefaultPath. A missing file yields the defaults. QUICKSPELL_*
// environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("QUICKSPELL_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SpellsDir = ExpandHome(cfg.SpellsDir)
	cfg.ResourcesDir = ExpandHome(cfg.ResourcesDir)
	cfg.LogFile = ExpandHome(cfg.LogFile)
	cfg.FilterLogFile = ExpandHome(cfg.FilterLogFile)
	if cfg.ResourcesDir == "" {
		cfg.ResourcesDir = filepath.Dir(filepath.Clean(cfg.SpellsDir))
	}
	if cfg.FilterLogFile == "" {
		cfg.FilterLogFile = cfg.LogFile
	}
	if cfg.Keys == nil {
		cfg.Keys = map[string]string{}
	}

	if _, err := cfg.Level(); err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}
	if cfg.StreamInterval <= 0 {
		return nil, fmt.Errorf("stream_interval must be positive, got %s", cfg.StreamInterval)
	}
	return &cfg, nil
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(defaults())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ExpandHome expands a leading ~/ in a path
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

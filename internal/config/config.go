// Package config defines the database's configuration surface (spec §10.3):
// a Config struct loadable from a YAML file and overridable by command-line
// flags in cmd/bisondb.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bisondb/bison/internal/bisonerr"
)

// Config holds every setting the engine and CLI need. Defaults() returns
// the starting values; the zero value differs from it (cache disabled, no
// log level, no recent-log buffer).
type Config struct {
	// Root is the directory the database's collection files live under
	// (spec §6 constructor's root_path). Required.
	Root string `yaml:"root"`

	// SourceDocument optionally seeds collections from a JSON document's
	// top-level keys on open (spec §6 constructor's source_document_path).
	SourceDocument string `yaml:"source_document,omitempty"`

	// CacheEnabled toggles the result cache. Disabling it is a debugging
	// knob only; spec §4.6 assumes the cache is always present, so this
	// merely clears it after every write instead of bypassing it.
	CacheEnabled bool `yaml:"cache_enabled"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// Pretty enables colorized Markdown-rendered CLI output.
	Pretty bool `yaml:"pretty"`

	// ReturnSnapshot is the default for update()'s return_result flag
	// (spec §4.5) when the CLI doesn't override it per call.
	ReturnSnapshot bool `yaml:"return_snapshot"`

	// RecentLogEntries sets how many recent log records the engine keeps
	// in memory for the "recent-logs" CLI command (internal/logging's
	// RecentEntriesSize buffer). 0 disables the buffer entirely.
	RecentLogEntries int `yaml:"recent_log_entries"`
}

// Defaults returns the configuration used when no file or flags override
// it.
func Defaults() Config {
	return Config{
		CacheEnabled:     true,
		LogLevel:         "info",
		RecentLogEntries: 100,
	}
}

// Load reads and parses a YAML config file at path, starting from
// Defaults() so unspecified fields keep their default value.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, bisonerr.Wrap(bisonerr.IoError, err, "read config %q", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, bisonerr.Wrap(bisonerr.ParseError, err, "parse config %q", path)
	}

	return cfg, nil
}

// Validate reports whether cfg is usable: Root must be set. This is a
// startup-time CLI concern, not one of the engine's spec §7 error kinds,
// so it's a plain error rather than a *bisonerr.Error.
func (c Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root directory is required")
	}

	return nil
}

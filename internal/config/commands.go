package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codeberg.org/mutker/statehook/internal/errors"
	"gopkg.in/yaml.v3"
)

// CommandSpec maps the values of one telemetry key onto action names.
type CommandSpec struct {
	Actions               map[string]string `json:"actions" yaml:"actions"`
	ExecuteOnInitialFetch bool              `json:"executeOnInitialFetch" yaml:"executeOnInitialFetch"`
}

// Action returns the action configured for a stringified value.
func (c CommandSpec) Action(value string) (string, bool) {
	action, ok := c.Actions[value]
	return action, ok
}

// CommandMap maps telemetry keys onto their command specs. It is read-only
// once loaded.
type CommandMap map[string]CommandSpec

// Lookup returns the CommandSpec for key.
func (m CommandMap) Lookup(key string) (CommandSpec, bool) {
	spec, ok := m[key]
	return spec, ok
}

// Keys returns the configured keys sorted by name.
func (m CommandMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ActionCount returns the number of value -> action entries across all keys.
func (m CommandMap) ActionCount() int {
	n := 0
	for _, spec := range m {
		n += len(spec.Actions)
	}
	return n
}

// LoadCommands reads a command map file. Files ending in .yaml or .yml are
// decoded as YAML, .json files as JSON, anything else by content.
func LoadCommands(path string) (CommandMap, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseCommands(data, yaml.Unmarshal)
	case ".json":
		return parseCommands(data, json.Unmarshal)
	}
	return ParseCommands(data)
}

// ParseCommands decodes a command map document. A document starting with '{'
// is JSON, with JSON semantics: escapes such as \/ are accepted and a
// duplicated key takes its last definition. Anything else is read as YAML.
func ParseCommands(data []byte) (CommandMap, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return parseCommands(data, json.Unmarshal)
	}
	return parseCommands(data, yaml.Unmarshal)
}

// parseCommands only checks that every key carries an actions mapping.
// Action names are used as given, empty ones included.
func parseCommands(data []byte, unmarshal func([]byte, any) error) (CommandMap, error) {
	errFactory := errors.New()

	var raw map[string]*CommandSpec
	if err := unmarshal(data, &raw); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if raw == nil {
		return nil, errFactory.WithData(errors.ErrMissingConfig, "command map is empty")
	}

	commands := make(CommandMap, len(raw))
	for key, spec := range raw {
		if spec == nil || spec.Actions == nil {
			return nil, errFactory.WithData(errors.ErrMissingConfig, "actions for key "+key)
		}
		commands[key] = *spec
	}

	return commands, nil
}

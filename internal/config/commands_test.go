package config_test

import (
	"path/filepath"
	"testing"

	"codeberg.org/mutker/statehook/internal/config"
	"codeberg.org/mutker/statehook/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCommandsJSON(t *testing.T) {
	// tab indentation, as the files are usually written
	path := writeFile(t, "commands.json", "{\n\t\"power\": {\n\t\t\"actions\": {\n\t\t\t\"on\": \"btn1\",\n\t\t\t\"off\": \"btn2\"\n\t\t},\n\t\t\"executeOnInitialFetch\": true\n\t},\n\t\"input\": {\n\t\t\"actions\": {\"1\": \"btn3\", \"2\": \"btn4\"}\n\t}\n}\n")

	commands, err := config.LoadCommands(path)
	require.NoError(t, err)

	power, ok := commands.Lookup("power")
	require.True(t, ok)
	assert.True(t, power.ExecuteOnInitialFetch)

	action, ok := power.Action("on")
	assert.True(t, ok)
	assert.Equal(t, "btn1", action)

	input, ok := commands.Lookup("input")
	require.True(t, ok)
	assert.False(t, input.ExecuteOnInitialFetch, "executeOnInitialFetch defaults to false")

	action, ok = input.Action("2")
	assert.True(t, ok)
	assert.Equal(t, "btn4", action)

	_, ok = input.Action("3")
	assert.False(t, ok)

	_, ok = commands.Lookup("temp")
	assert.False(t, ok)

	assert.Equal(t, []string{"input", "power"}, commands.Keys())
	assert.Equal(t, 4, commands.ActionCount())
}

func TestLoadCommandsYAML(t *testing.T) {
	path := writeFile(t, "commands.yaml", `
Mute:
  actions:
    "true": mute-on
    "false": mute-off
`)

	commands, err := config.LoadCommands(path)
	require.NoError(t, err)

	spec, ok := commands.Lookup("Mute")
	require.True(t, ok, "key case must be preserved")
	action, ok := spec.Action("true")
	assert.True(t, ok)
	assert.Equal(t, "mute-on", action)
}

func TestLoadCommandsMissingFile(t *testing.T) {
	_, err := config.LoadCommands(filepath.Join(t.TempDir(), "commands.json"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestParseCommandsErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.ErrorCode
	}{
		{"empty document", ``, errors.ErrMissingConfig},
		{"malformed", `{"power": {"actions": `, errors.ErrInvalidConfig},
		{"not a mapping", `["power"]`, errors.ErrInvalidConfig},
		{"missing actions", `{"power": {"executeOnInitialFetch": true}}`, errors.ErrMissingConfig},
		{"null spec", `{"power": null}`, errors.ErrMissingConfig},
		{"actions not a mapping", `{"power": {"actions": ["on"]}}`, errors.ErrInvalidConfig},
		{"trailing comma", `{"power": {"actions": {"on": "btn1"},}}`, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseCommands([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), err.Error())
		})
	}
}

func TestParseCommandsEmptyActions(t *testing.T) {
	commands, err := config.ParseCommands([]byte(`{"power": {"actions": {}}}`))
	require.NoError(t, err)

	spec, ok := commands.Lookup("power")
	require.True(t, ok)
	_, ok = spec.Action("on")
	assert.False(t, ok)
}

func TestParseCommandsJSONEscapes(t *testing.T) {
	commands, err := config.ParseCommands([]byte(`{"power": {"actions": {"on": "bank\/1\/btn1", "a\/b": "x"}}}`))
	require.NoError(t, err)

	spec, ok := commands.Lookup("power")
	require.True(t, ok)

	action, ok := spec.Action("on")
	require.True(t, ok)
	assert.Equal(t, "bank/1/btn1", action)

	action, ok = spec.Action("a/b")
	require.True(t, ok)
	assert.Equal(t, "x", action)
}

func TestParseCommandsDuplicateKeyLastWins(t *testing.T) {
	commands, err := config.ParseCommands([]byte(`{
		"power": {"actions": {"on": "btn1"}, "executeOnInitialFetch": true},
		"power": {"actions": {"off": "btn2"}}
	}`))
	require.NoError(t, err)

	spec, ok := commands.Lookup("power")
	require.True(t, ok)
	assert.False(t, spec.ExecuteOnInitialFetch)

	_, ok = spec.Action("on")
	assert.False(t, ok, "the first definition is replaced entirely")
	action, ok := spec.Action("off")
	require.True(t, ok)
	assert.Equal(t, "btn2", action)
}

func TestLoadCommandsByExtension(t *testing.T) {
	path := writeFile(t, "commands.json", `{"mute": {"actions": {"true": "mute\/on"}}}`)
	commands, err := config.LoadCommands(path)
	require.NoError(t, err)
	spec, _ := commands.Lookup("mute")
	action, _ := spec.Action("true")
	assert.Equal(t, "mute/on", action)

	// a .yml file starting with a flow mapping is still read as YAML
	path = writeFile(t, "commands.yml", `{mute: {actions: {"true": mute-on}}}`)
	commands, err = config.LoadCommands(path)
	require.NoError(t, err)
	spec, _ = commands.Lookup("mute")
	action, _ = spec.Action("true")
	assert.Equal(t, "mute-on", action)
}

func TestParseCommandsEmptyActionName(t *testing.T) {
	commands, err := config.ParseCommands([]byte(`{"power": {"actions": {"on": ""}}}`))
	require.NoError(t, err)

	spec, _ := commands.Lookup("power")
	action, ok := spec.Action("on")
	assert.True(t, ok)
	assert.Empty(t, action)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCmd runs the root command with args and returns captured output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validSettings = `{
	"telemetryURL": "http://192.168.1.20/state",
	"actionURL": "http://192.168.1.20/press/",
	"updateInterval": 1000
}`

const validCommands = `{
	"power": {
		"actions": {"on": "btn1", "off": "btn2"},
		"executeOnInitialFetch": true
	},
	"input": {
		"actions": {"1": "in1", "2": "in2"}
	}
}`

func TestValidateValidConfig(t *testing.T) {
	dir := t.TempDir()
	settings := writeFile(t, dir, "settings.json", validSettings)
	commands := writeFile(t, dir, "commands.json", validCommands)

	out, err := executeCmd(t, "validate", "-s", settings, "-c", commands)
	require.NoError(t, err)

	for _, phrase := range []string{
		"Configuration is valid!",
		"Interval:        1s",
		"Request timeout: 5s",
		"Journal:         disabled",
		"Commands:        2 keys, 4 actions",
		"power (fires on initial fetch)",
		"on -> http://192.168.1.20/press/btn1",
		"2 -> http://192.168.1.20/press/in2",
	} {
		assert.Contains(t, out, phrase)
	}
}

func TestValidateInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	settings := writeFile(t, dir, "settings.json", `{"telemetryURL": "http://host/state", "updateInterval": 1000}`)
	commands := writeFile(t, dir, "commands.json", validCommands)

	_, err := executeCmd(t, "validate", "-s", settings, "-c", commands)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "actionURL")
}

func TestValidateMissingCommands(t *testing.T) {
	dir := t.TempDir()
	settings := writeFile(t, dir, "settings.json", validSettings)

	_, err := executeCmd(t, "validate", "-s", settings, "-c", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestValidateMalformedCommands(t *testing.T) {
	dir := t.TempDir()
	settings := writeFile(t, dir, "settings.json", validSettings)
	commands := writeFile(t, dir, "commands.json", `{"power": {"actions": ["on"]}}`)

	_, err := executeCmd(t, "validate", "-s", settings, "-c", commands)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := executeCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "statehook dev")
	assert.Contains(t, out, "commit: none")
}

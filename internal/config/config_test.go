package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/statehook/internal/config"
	"codeberg.org/mutker/statehook/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validSettings = `{
	"telemetryURL": "http://127.0.0.1:8000/telemetry",
	"actionURL": "http://127.0.0.1:8888/press/bank/1/",
	"updateInterval": 1000
}`

func TestLoad(t *testing.T) {
	path := writeFile(t, "settings.json", `{
	"telemetryURL": "http://127.0.0.1:8000/telemetry",
	"actionURL": "http://127.0.0.1:8888/press/bank/1/",
	"updateInterval": 1500,
	"requestTimeout": 2000,
	"allowOverlap": false,
	"actionRateLimit": 2.5,
	"logLevel": "debug",
	"pidFile": "/run/statehook.pid",
	"journal": {"enabled": true, "path": "/var/lib/statehook/journal.db", "batchSize": 3, "batchTimeout": 1}
}`)

	cfg, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000/telemetry", cfg.TelemetryURL)
	assert.Equal(t, "http://127.0.0.1:8888/press/bank/1/", cfg.ActionURL)
	assert.Equal(t, 1500, cfg.UpdateInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Interval())
	assert.Equal(t, 2*time.Second, cfg.Timeout())
	assert.False(t, cfg.AllowOverlap)
	assert.InDelta(t, 2.5, cfg.ActionRateLimit, 0.0001)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/run/statehook.pid", cfg.PIDFile)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/var/lib/statehook/journal.db", cfg.Journal.Path)
	assert.Equal(t, 3, cfg.Journal.BatchSize)
	assert.Equal(t, time.Second, cfg.Journal.FlushInterval())
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "settings.json", validSettings)

	cfg, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.True(t, cfg.AllowOverlap, "cycles overlap unless the guard is requested")
	assert.Zero(t, cfg.ActionRateLimit)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, config.DefaultJournalPath, cfg.Journal.Path)
	assert.Equal(t, config.DefaultJournalBatch, cfg.Journal.BatchSize)
	assert.Equal(t, filepath.Join(os.TempDir(), "statehook.pid"), cfg.PIDFile)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(config.WithConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeFile(t, "settings.json", `{"telemetryURL": `)

	_, err := config.Load(config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		code     errors.ErrorCode
	}{
		{
			name:     "missing telemetry url",
			settings: `{"actionURL": "http://a/", "updateInterval": 100}`,
			code:     errors.ErrMissingConfig,
		},
		{
			name:     "missing action url",
			settings: `{"telemetryURL": "http://t/", "updateInterval": 100}`,
			code:     errors.ErrMissingConfig,
		},
		{
			name:     "bad scheme",
			settings: `{"telemetryURL": "ftp://t/", "actionURL": "http://a/", "updateInterval": 100}`,
			code:     errors.ErrInvalidURL,
		},
		{
			name:     "missing host",
			settings: `{"telemetryURL": "http://t/", "actionURL": "http:///press", "updateInterval": 100}`,
			code:     errors.ErrInvalidURL,
		},
		{
			name:     "zero interval",
			settings: `{"telemetryURL": "http://t/", "actionURL": "http://a/"}`,
			code:     errors.ErrInvalidInterval,
		},
		{
			name:     "negative interval",
			settings: `{"telemetryURL": "http://t/", "actionURL": "http://a/", "updateInterval": -5}`,
			code:     errors.ErrInvalidInterval,
		},
		{
			name:     "invalid log level",
			settings: `{"telemetryURL": "http://t/", "actionURL": "http://a/", "updateInterval": 100, "logLevel": "loud"}`,
			code:     errors.ErrInvalidLogLevel,
		},
		{
			name:     "negative rate limit",
			settings: `{"telemetryURL": "http://t/", "actionURL": "http://a/", "updateInterval": 100, "actionRateLimit": -1}`,
			code:     errors.ErrInvalidConfig,
		},
		{
			name:     "journal without path",
			settings: `{"telemetryURL": "http://t/", "actionURL": "http://a/", "updateInterval": 100, "journal": {"enabled": true, "path": ""}}`,
			code:     errors.ErrMissingConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "settings.json", tt.settings)
			_, err := config.Load(config.WithConfigFile(path))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), err.Error())
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "settings.json", validSettings)

	t.Setenv("STATEHOOK_UPDATEINTERVAL", "250")
	t.Setenv("STATEHOOK_JOURNAL_ENABLED", "true")

	cfg, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.UpdateInterval)
	assert.True(t, cfg.Journal.Enabled)
}

func TestLoadCustomEnvPrefix(t *testing.T) {
	path := writeFile(t, "settings.json", validSettings)

	t.Setenv("HOOKTEST_LOGLEVEL", "error")

	cfg, err := config.Load(config.WithConfigFile(path), config.WithEnvPrefix("HOOKTEST"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "settings.json", validSettings)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--update-interval", "200",
		"--allow-overlap=false",
		"--log-level", "warning",
		"--journal-path", "/tmp/journal.db",
	}))

	cfg, err := config.Load(config.WithConfigFile(path), config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.UpdateInterval)
	assert.False(t, cfg.AllowOverlap)
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
	assert.Equal(t, "http://127.0.0.1:8000/telemetry", cfg.TelemetryURL, "unset flags must not clobber the file")
}

func TestLoadWithoutFile(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--telemetry-url", "https://telemetry.local/state",
		"--action-url", "https://companion.local/press/",
		"--update-interval", "750",
	}))

	cfg, err := config.Load(config.WithConfigFile(""), config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, "https://telemetry.local/state", cfg.TelemetryURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Interval())
}

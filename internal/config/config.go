package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/statehook/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultSettingsFile    = "settings.json"
	DefaultCommandsFile    = "commands.json"
	DefaultEnvPrefix       = "STATEHOOK"
	DefaultLogLevel        = "info"
	DefaultRequestTimeout  = 5000
	DefaultJournalPath     = "statehook.db"
	DefaultJournalBatch    = 10
	DefaultJournalTimeout  = 5
	defaultPIDFileBasename = "statehook.pid"
)

// Config holds the runtime settings. Durations are stored in the units the
// settings file uses and converted by the accessor methods.
type Config struct {
	TelemetryURL    string        `mapstructure:"telemetryURL"`
	ActionURL       string        `mapstructure:"actionURL"`
	UpdateInterval  int           `mapstructure:"updateInterval"` // milliseconds
	RequestTimeout  int           `mapstructure:"requestTimeout"` // milliseconds
	AllowOverlap    bool          `mapstructure:"allowOverlap"`
	ActionRateLimit float64       `mapstructure:"actionRateLimit"` // calls per second, 0 = unlimited
	LogLevel        string        `mapstructure:"logLevel"`
	PIDFile         string        `mapstructure:"pidFile"`
	Journal         JournalConfig `mapstructure:"journal"`
}

type JournalConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Path         string `mapstructure:"path"`
	BatchSize    int    `mapstructure:"batchSize"`
	BatchTimeout int    `mapstructure:"batchTimeout"` // seconds
}

// flag name -> settings key
var flagKeys = map[string]string{
	"telemetry-url":     "telemetryURL",
	"action-url":        "actionURL",
	"update-interval":   "updateInterval",
	"request-timeout":   "requestTimeout",
	"allow-overlap":     "allowOverlap",
	"action-rate-limit": "actionRateLimit",
	"log-level":         "logLevel",
	"pid-file":          "pidFile",
	"journal":           "journal.enabled",
	"journal-path":      "journal.path",
}

// RegisterFlags adds the settings override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("telemetry-url", "", "Telemetry endpoint to poll")
	fs.String("action-url", "", "Base URL action names are appended to")
	fs.Int("update-interval", 0, "Poll interval in milliseconds")
	fs.Int("request-timeout", DefaultRequestTimeout, "Timeout for each HTTP call in milliseconds")
	fs.Bool("allow-overlap", true, "Start a poll cycle even if the previous one is still fetching or dispatching")
	fs.Float64("action-rate-limit", 0, "Maximum action calls per second (0 = unlimited)")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("pid-file", "", "PID file path")
	fs.Bool("journal", false, "Record dispatch results to the journal database")
	fs.String("journal-path", DefaultJournalPath, "Journal database path")
}

// Load reads settings from the settings file, the environment and flags, in
// increasing order of priority, and validates the result.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		configPath: DefaultSettingsFile,
		envPrefix:  DefaultEnvPrefix,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if o.flags != nil {
		for name, key := range flagKeys {
			f := o.flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err).WithData(name)
			}
		}
	}

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		v.SetConfigType(configType(o.configPath))
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(o.configPath)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if cfg.PIDFile == "" {
		cfg.PIDFile = filepath.Join(os.TempDir(), defaultPIDFileBasename)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telemetryURL", "")
	v.SetDefault("actionURL", "")
	v.SetDefault("updateInterval", 0)
	v.SetDefault("requestTimeout", DefaultRequestTimeout)
	v.SetDefault("allowOverlap", true)
	v.SetDefault("actionRateLimit", 0)
	v.SetDefault("logLevel", DefaultLogLevel)
	v.SetDefault("pidFile", "")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", DefaultJournalPath)
	v.SetDefault("journal.batchSize", DefaultJournalBatch)
	v.SetDefault("journal.batchTimeout", DefaultJournalTimeout)
}

// settings files are JSON unless the extension says otherwise
func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// Validate checks that every required setting is present and usable
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.TelemetryURL == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "telemetryURL")
	}
	if err := validateURL(c.TelemetryURL); err != nil {
		return errFactory.Wrap(errors.ErrInvalidURL, err).WithData("telemetryURL")
	}

	if c.ActionURL == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "actionURL")
	}
	if err := validateURL(c.ActionURL); err != nil {
		return errFactory.Wrap(errors.ErrInvalidURL, err).WithData("actionURL")
	}

	if c.UpdateInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.UpdateInterval)
	}
	if c.RequestTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.RequestTimeout).
			WithMessage("Invalid request timeout")
	}
	if c.ActionRateLimit < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "actionRateLimit must not be negative")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return errFactory.WithData(errors.ErrMissingConfig, "journal.path")
		}
		if c.Journal.BatchSize < 0 || c.Journal.BatchTimeout < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, "journal batching must not be negative")
		}
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Interval returns the poll interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// FlushInterval returns the journal flush interval
func (j JournalConfig) FlushInterval() time.Duration {
	return time.Duration(j.BatchTimeout) * time.Second
}

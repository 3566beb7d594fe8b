package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/statehook/internal/config"
	"codeberg.org/mutker/statehook/internal/dispatch"
	"codeberg.org/mutker/statehook/internal/errors"
	"codeberg.org/mutker/statehook/internal/journal"
	"codeberg.org/mutker/statehook/internal/logger"
	"codeberg.org/mutker/statehook/internal/pid"
	"codeberg.org/mutker/statehook/internal/poll"
	"codeberg.org/mutker/statehook/internal/telemetry"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll telemetry and dispatch actions",
	Long: `Poll the telemetry endpoint every updateInterval milliseconds and
trigger the configured action for every key whose value changed.

Every setting can also be given as a STATEHOOK_<NAME> environment variable
(for example STATEHOOK_UPDATEINTERVAL=1000) or as a flag. Flags take
precedence over the environment, which takes precedence over the file.

By default a new cycle starts on every tick even while earlier action calls
are still running. With --allow-overlap=false a tick that arrives while the
previous cycle is still fetching or dispatching is skipped. A slow action
endpoint then delays the next fetch, and a value that changes and changes
back within that window never triggers its action.

The daemon runs until it receives SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	config.RegisterFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, commands, err := loadAll(cmd)
	if err != nil {
		fatal(err, "Failed to load configuration")
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, logger.IsService())
	logger.Debug().
		Int("commands", len(commands)).
		Int("actions", commands.ActionCount()).
		Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		return logStartupError(err, "Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	j, err := journal.NewService(journal.Config{
		DBPath:        cfg.Journal.Path,
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval(),
		Enabled:       cfg.Journal.Enabled,
	}, logger.Default())
	if err != nil {
		return logStartupError(err, "Failed to open dispatch journal")
	}
	defer func() {
		if err := j.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close dispatch journal")
		}
	}()

	client := telemetry.NewClient(cfg.TelemetryURL, cfg.ActionURL, cfg.Timeout(),
		telemetry.WithActionRateLimit(cfg.ActionRateLimit))
	defer client.Close()

	dispatcher := dispatch.New(client, logger.Default(), dispatch.WithRecorder(j))
	poller := poll.New(client, dispatcher, commands, cfg.Interval(), logger.Default(),
		poll.WithAllowOverlap(cfg.AllowOverlap))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	poller.Run(ctx)

	logger.Info().Msg("Exiting...")
	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// fatal logs err and exits with status 1.
func fatal(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.FatalWithCode(coded).Msg(msg)
	}
	logger.Fatal().Err(err).Msg(msg)
}

func logStartupError(err error, msg string) error {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithCode(coded).Msg(msg)
	} else {
		logger.Error().Err(err).Msg(msg)
	}
	return err
}

package main

import (
	"os"

	"codeberg.org/mutker/statehook/internal/config"
	"github.com/spf13/cobra"
)

// loadAll reads the settings and the command map named by the command's
// flags. Without --settings, settings.json is read only if it exists so that
// the environment and flags alone can configure the daemon.
func loadAll(cmd *cobra.Command) (*config.Config, config.CommandMap, error) {
	settingsPath, _ := cmd.Flags().GetString("settings")
	if settingsPath == "" {
		settingsPath = config.DefaultSettingsFile
		if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
			settingsPath = ""
		}
	}

	cfg, err := config.Load(
		config.WithConfigFile(settingsPath),
		config.WithFlags(cmd.Flags()),
	)
	if err != nil {
		return nil, nil, err
	}

	commandsPath, _ := cmd.Flags().GetString("commands")
	if commandsPath == "" {
		commandsPath = config.DefaultCommandsFile
	}

	commands, err := config.LoadCommands(commandsPath)
	if err != nil {
		return nil, nil, err
	}

	return cfg, commands, nil
}

package main

import (
	"fmt"
	"slices"

	"codeberg.org/mutker/statehook/internal/telemetry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the settings and command map",
	Long: `Load and validate the settings and the command map without polling.
Prints the resolved action URL for every configured value.

Exit codes:
  0 - configuration is valid
  1 - configuration is invalid`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, commands, err := loadAll(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := telemetry.NewClient(cfg.TelemetryURL, cfg.ActionURL, cfg.Timeout())
	defer client.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration is valid!\n")
	fmt.Fprintf(out, "  Telemetry URL:   %s\n", cfg.TelemetryURL)
	fmt.Fprintf(out, "  Interval:        %s\n", cfg.Interval())
	fmt.Fprintf(out, "  Request timeout: %s\n", cfg.Timeout())
	fmt.Fprintf(out, "  Allow overlap:   %t\n", cfg.AllowOverlap)
	if cfg.Journal.Enabled {
		fmt.Fprintf(out, "  Journal:         %s\n", cfg.Journal.Path)
	} else {
		fmt.Fprintf(out, "  Journal:         disabled\n")
	}
	fmt.Fprintf(out, "  Commands:        %d keys, %d actions\n", len(commands), commands.ActionCount())

	for _, key := range commands.Keys() {
		spec, _ := commands.Lookup(key)
		initial := ""
		if spec.ExecuteOnInitialFetch {
			initial = " (fires on initial fetch)"
		}
		fmt.Fprintf(out, "  %s%s\n", key, initial)
		values := make([]string, 0, len(spec.Actions))
		for value := range spec.Actions {
			values = append(values, value)
		}
		slices.Sort(values)
		for _, value := range values {
			fmt.Fprintf(out, "    %s -> %s\n", value, client.ActionTarget(spec.Actions[value]))
		}
	}

	return nil
}

// Package main is the entry point for the statehook daemon.
//
// Usage:
//
//	statehook run -s settings.json -c commands.json   # Poll and dispatch
//	statehook validate -s settings.json -c commands.json
//	statehook version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "statehook",
	Short: "Trigger remote actions when polled telemetry changes",
	Long: `statehook polls a telemetry endpoint that returns a flat JSON object,
works out which keys changed since the previous poll, and calls the action
configured for each key's new value.

The command map (commands.json) maps keys to per-value actions:
  {
    "power": {
      "actions": {"on": "btn1", "off": "btn2"},
      "executeOnInitialFetch": true
    }
  }

An action is triggered with GET <actionURL><action>.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "statehook %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("settings", "s", "", "Settings file (default \"settings.json\" if present)")
	rootCmd.PersistentFlags().StringP("commands", "c", "", "Command map file (default \"commands.json\")")

	rootCmd.AddCommand(versionCmd)
}

// Mowerctl controls Husqvarna Automower robotic mowers through the
// Automower Connect cloud API.
//
// It lists the mowers of an account, shows their status, sends commands
// (start, pause, park, resume, headlight, cutting height) and follows the
// live event stream.
//
// Usage:
//
//	mowerctl [command] [flags]
//
// Credentials come from settings.yaml in the configuration directory or the
// MOWERCTL_CLIENT_ID and MOWERCTL_CLIENT_SECRET environment variables.
// Run 'mowerctl configure' to create the settings file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerctl/internal/logging"
	"github.com/muurk/mowerctl/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		// Errors already rendered as a result box only set the exit code
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	settingsPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "mowerctl",
	Short: "Husqvarna Automower command line client",
	Long: `A command line client for the Husqvarna Automower Connect API.

Lists the mowers on your account, shows their status, sends commands and
follows the live event stream.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	cobra.OnFinalize(teardown)

	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default: settings.yaml in the mowerctl config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $MOWERCTL_LOG_LEVEL, silent when unset)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configureCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipSetup: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mowerctl %s\n", version.Full())
	},
}

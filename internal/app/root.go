package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

var (
	cfgFile   string
	dbPath    string
	logLevel  string
	logFormat string

	// RootCmd is the root command for swupdate
	RootCmd = &cobra.Command{
		Use:   "swupdate",
		Short: "Update every package manager on this machine in one command",
		Long: `swupdate detects the package managers installed on this machine and runs
each one's update command, one family at a time.

A family is a group of interchangeable programs, such as the AUR helpers
yay, paru and pikaur. For each enabled family swupdate picks one installed
program (your preferred one when configured), runs it with elevation when
it needs root, and reports the outcome. One family failing never stops the
others.

Quick Start:
  1. swupdate config init    # write ~/.config/swupdate/config.yaml
  2. swupdate plan           # see what would run
  3. swupdate update

Examples:
  # Update everything
  swupdate update

  # Only the distribution packages and AUR
  swupdate update --family "arch official" --family "arch aur"

  # Run families concurrently and keep their output apart
  swupdate update --parallel --jobs 4

  # List known programs and which ones are installed
  swupdate list

  # Show recent runs
  swupdate history`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "swupdate: update every package manager on this machine")
			fmt.Fprintln(out)
			path, _ := configPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "No config file found; built-in defaults are used.")
				fmt.Fprintln(out, "Run 'swupdate config init' to create one.")
			}
			fmt.Fprintln(out, "Run 'swupdate plan' to preview, 'swupdate update' to update.")
			fmt.Fprintln(out, "Run 'swupdate --help' for all commands.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/swupdate/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (default: ~/.swupdate/history.db)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json (overrides config)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. Cancelling ctx stops running update
// programs.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// getStateDir returns ~/.swupdate, creating it if needed.
func getStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".swupdate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create swupdate directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the history database path: the --db flag, then the
// history.path config key, then the default.
func getDBPath(configured string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if configured != "" {
		return configured, nil
	}

	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// getDefaultPIDFile returns the path of the update lock file.
func getDefaultPIDFile() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "update.pid"), nil
}

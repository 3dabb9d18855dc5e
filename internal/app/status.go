package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/output"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/store"
	"github.com/blackwell-systems/swupdate/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the detected system, config and last update run",
	Long: `Display what swupdate knows about this machine.

Shows:
  • Detected operating system, distribution and ecosystem
  • Config file location, or that built-in defaults are in use
  • History database location and number of recorded runs
  • Outcome of the most recent run
  • Whether an update is running right now`,
	Example: `  # Check status
  swupdate status`,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, log, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	info := detectHost(log)

	const label = "%-12s"

	fmt.Fprintln(out)

	system := info.String()
	if info.Kernel != "" {
		system += " · kernel " + info.Kernel
	}
	if info.Hostname != "" {
		system += " · " + info.Hostname
	}
	fmt.Fprintf(out, label+"%s\n", "System:", system)

	if info.IsLinux() {
		if eco, ok := info.Ecosystem(router.Supported); ok {
			fmt.Fprintf(out, label+"%s\n", "Ecosystem:", eco)
		} else {
			fmt.Fprintf(out, label+"not supported (only add-on and language families will run)\n", "Ecosystem:")
		}
	}

	if path, err := configPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Fprintf(out, label+"%s\n", "Config:", path)
		} else {
			fmt.Fprintf(out, label+"built-in defaults (run 'swupdate config init' to create %s)\n", "Config:", path)
		}
	}

	pidFile, err := getDefaultPIDFile()
	if err == nil {
		running, pid, err := watcher.IsRunning(pidFile)
		switch {
		case err != nil:
			fmt.Fprintf(out, label+"unknown (%v)\n", "Update:", err)
		case running:
			fmt.Fprintf(out, label+"running (PID %d)\n", "Update:", pid)
		default:
			fmt.Fprintf(out, label+"idle\n", "Update:")
		}
	}

	if !cfg.History.Enabled {
		fmt.Fprintf(out, label+"disabled\n", "History:")
		return nil
	}

	path, err := getDBPath(cfg.History.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(out, label+"no runs recorded yet\n", "History:")
		return nil
	}

	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(out, label+"unreadable (%v)\n", "History:", err)
		return nil
	}
	defer st.Close()

	count, _ := st.CountRuns()
	fmt.Fprintf(out, label+"%s · %d run(s)\n", "History:", path, count)

	last, err := st.LastRun()
	if err != nil || last == nil {
		return nil
	}

	mode := ""
	if last.DryRun {
		mode = " (dry-run)"
	}
	fmt.Fprintf(out, label+"%s%s · %d succeeded · %d failed · %d skipped · %s\n",
		"Last run:",
		output.FormatRelativeTime(last.StartedAt),
		mode,
		last.Succeeded,
		last.Failed,
		last.Skipped,
		shortRunID(last.ID))

	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/config"
	"github.com/blackwell-systems/swupdate/internal/program"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/runner"
	"github.com/blackwell-systems/swupdate/internal/store"
	"github.com/blackwell-systems/swupdate/internal/watcher"
)

// resolveLauncher is overridable in tests.
var resolveLauncher = func(opts runner.Options) (string, error) {
	return runner.New(opts).ResolveLauncher()
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and package manager problems",
	Long: `Runs diagnostic checks without updating anything.

Checks:
  • Config file parses and every value is valid
  • Operating system and distribution are recognised
  • Every required family has an installed program
  • An elevation launcher exists for programs that need root
  • History database is readable
  • No other update is running

Critical problems make the command exit 1. Warnings are printed but do not
fail the command.`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running swupdate diagnostics...")
	fmt.Fprintln(out)

	// Critical issues fail the command; warnings only inform.
	criticalIssues := 0
	warningIssues := 0

	// Check 1: config
	path, _ := configPath()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(out, "✗ Config cannot be read:", err)
		fmt.Fprintln(out, "  Action: fix the file or move it aside to use defaults")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Found 1 critical issue(s).")
		return fmt.Errorf("diagnostics failed")
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintln(out, "✓ Config loaded:", path)
	} else {
		fmt.Fprintln(out, "✓ No config file, using defaults")
	}

	errs := cfg.Validate()
	for _, e := range errs {
		var w *config.Warning
		if errors.As(e, &w) {
			fmt.Fprintf(out, "⚠ %s: %s\n", w.Field, w.Msg)
			warningIssues++
		}
	}
	if fatal := config.Fatal(errs); fatal != nil {
		for _, line := range strings.Split(fatal.Error(), "\n") {
			fmt.Fprintln(out, "✗ Invalid config value:", line)
		}
		criticalIssues++
	}

	log, err := newLogger(io.Discard, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log, _ = newLogger(io.Discard, "", "")
	}

	// Check 2: system detection
	info, detectErr := detectOS()
	if detectErr != nil {
		fmt.Fprintln(out, "⚠ Could not detect distribution:", detectErr)
		warningIssues++
	} else {
		fmt.Fprintln(out, "✓ System:", info.String())
	}
	if info.IsLinux() {
		if eco, ok := info.Ecosystem(router.Supported); ok {
			fmt.Fprintln(out, "✓ Ecosystem:", eco)
		} else {
			fmt.Fprintf(out, "✗ Distribution %q is not supported\n", strings.Join(info.Candidates(), "/"))
			fmt.Fprintf(out, "  Supported: %s\n", strings.Join(router.Ecosystems(), ", "))
			criticalIssues++
		}
	}

	if criticalIssues > 0 {
		return doctorResult(out, criticalIssues, warningIssues)
	}

	// Check 3: one program per family
	eng, err := newEngine(cfg, log, io.Discard, io.Discard)
	if err != nil {
		fmt.Fprintln(out, "✗ Invalid execution settings:", err)
		return doctorResult(out, criticalIssues+1, warningIssues)
	}
	eng.info = info

	reqs, _ := eng.requests(nil)
	reports := eng.newRouter().Plan(commandContext(cmd), reqs)

	needsRoot := false
	for _, rep := range reports {
		switch rep.Outcome {
		case router.OutcomePlanned:
			fmt.Fprintf(out, "✓ %s: %s\n", rep.Label, strings.Join(rep.Programs, " + "))
			if requiresElevation(rep) {
				needsRoot = true
			}
		case router.OutcomeSkipped:
			fmt.Fprintf(out, "- %s: %s\n", rep.Label, rep.Reason)
		default:
			fmt.Fprintf(out, "✗ %s: %s\n", rep.Label, rep.Reason)
			fmt.Fprintln(out, "  Action: install one of the programs listed by 'swupdate list "+string(rep.Family)+"' or disable the family")
			criticalIssues++
		}
	}

	// Check 4: elevation
	if needsRoot {
		launcher, err := resolveLauncher(eng.runner)
		switch {
		case err != nil:
			fmt.Fprintln(out, "✗ No elevation launcher:", err)
			fmt.Fprintln(out, "  Action: install sudo or doas, or run swupdate as root")
			criticalIssues++
		case launcher == "":
			fmt.Fprintln(out, "✓ Elevation: not needed")
		default:
			fmt.Fprintln(out, "✓ Elevation via", launcher)
		}
	}

	// Check 5: history database - warning only
	if cfg.History.Enabled {
		dbFile, err := getDBPath(cfg.History.Path)
		if err != nil {
			fmt.Fprintln(out, "⚠ History path error:", err)
			warningIssues++
		} else if _, err := os.Stat(dbFile); os.IsNotExist(err) {
			fmt.Fprintln(out, "✓ History: no runs recorded yet")
		} else if st, err := store.Open(dbFile); err != nil {
			fmt.Fprintln(out, "⚠ History database unreadable:", err)
			warningIssues++
		} else {
			n, _ := st.CountRuns()
			st.Close()
			fmt.Fprintf(out, "✓ History: %d run(s) in %s\n", n, dbFile)
		}
	}

	// Check 6: concurrent run - warning only
	if pidFile, err := getDefaultPIDFile(); err == nil {
		if running, pid, _ := watcher.IsRunning(pidFile); running {
			fmt.Fprintf(out, "⚠ An update is running (PID %d)\n", pid)
			warningIssues++
		}
	}

	return doctorResult(out, criticalIssues, warningIssues)
}

func doctorResult(out io.Writer, critical, warnings int) error {
	fmt.Fprintln(out)
	switch {
	case critical > 0:
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", critical, warnings)
		return fmt.Errorf("diagnostics failed")
	case warnings > 0:
		fmt.Fprintf(out, "Found %d warning(s). Updates will run.\n", warnings)
	default:
		fmt.Fprintln(out, "✓ All checks passed!")
	}
	return nil
}

// requiresElevation reports whether any selected program of rep needs root.
func requiresElevation(rep router.Report) bool {
	table, ok := program.Lookup(rep.Family)
	if !ok {
		return false
	}
	for _, d := range table.Descriptors {
		if !d.RequiresElevation {
			continue
		}
		for _, name := range rep.Programs {
			if name == d.DisplayName {
				return true
			}
		}
	}
	return false
}

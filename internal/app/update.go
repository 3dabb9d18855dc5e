package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/config"
	"github.com/blackwell-systems/swupdate/internal/metrics"
	"github.com/blackwell-systems/swupdate/internal/osinfo"
	"github.com/blackwell-systems/swupdate/internal/output"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/runner"
	"github.com/blackwell-systems/swupdate/internal/selection"
	"github.com/blackwell-systems/swupdate/internal/store"
	"github.com/blackwell-systems/swupdate/internal/watcher"
)

// newExecutor is overridable in tests.
var newExecutor = func(opts runner.Options) router.Executor { return runner.New(opts) }

// ErrUpdateFailed is returned when at least one family did not succeed.
var ErrUpdateFailed = errors.New("update failed")

var (
	updateFamilies  []string
	updateDryRun    bool
	updateParallel  bool
	updateJobs      int
	updateTimeout   time.Duration
	updateCapture   bool
	updateNoHistory bool
	updateOutput    string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run the update command of every enabled package manager",
	Long: `Detects the system, picks one installed program per enabled family and runs
its update command. Programs that need root are wrapped in sudo, doas,
pkexec or run0 unless swupdate already runs elevated.

Families are processed one at a time in a fixed order unless --parallel is
set. A failing family is reported and the remaining families still run.
Families whose programs are not installed are skipped for add-on tools
(snap, flatpak, AUR helpers, language toolchains) and reported as errors
for the distribution's own package manager.

The exit code is 0 when every family succeeded or was skipped, 1 otherwise.
Each run is recorded in the history database unless --no-history is set.`,
	Example: `  # Update everything
  swupdate update

  # Preview without running anything
  swupdate update --dry-run

  # Only rust and js toolchains, as JSON
  swupdate update --family rust --family js --output json

  # Run families concurrently, at most 3 at a time
  swupdate update --parallel --jobs 3`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringSliceVarP(&updateFamilies, "family", "f", nil, "only update these families (label, ecosystem or family name)")
	updateCmd.Flags().BoolVarP(&updateDryRun, "dry-run", "n", false, "show what would run without running it")
	updateCmd.Flags().BoolVar(&updateParallel, "parallel", false, "update families concurrently")
	updateCmd.Flags().IntVarP(&updateJobs, "jobs", "j", 0, "maximum families updated at once with --parallel")
	updateCmd.Flags().DurationVar(&updateTimeout, "timeout", 0, "per-program timeout, e.g. 30m (0 disables)")
	updateCmd.Flags().BoolVar(&updateCapture, "capture", false, "buffer program output and print it after each program exits")
	updateCmd.Flags().BoolVar(&updateNoHistory, "no-history", false, "do not record this run in the history database")
	updateCmd.Flags().StringVarP(&updateOutput, "output", "o", formatTable, "report format: table, json or yaml")

	RootCmd.AddCommand(updateCmd)
}

// applyUpdateFlags copies explicitly set flags over the config values.
func applyUpdateFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.Execution.Parallel = updateParallel
	}
	if flags.Changed("jobs") {
		cfg.Execution.Jobs = updateJobs
	}
	if flags.Changed("timeout") {
		cfg.Execution.Timeout = updateTimeout.String()
	}
	if flags.Changed("capture") && updateCapture {
		cfg.Execution.Output = string(runner.OutputCapture)
	}
}

// engine bundles what one update or plan needs.
type engine struct {
	cfg    *config.Config
	log    zerolog.Logger
	info   osinfo.Info
	runner runner.Options
	router router.Options
}

// newEngine translates the configuration into runner and router options.
// childOut receives the programs' standard output.
func newEngine(cfg *config.Config, log zerolog.Logger, childOut, childErr io.Writer) (*engine, error) {
	timeout, err := cfg.Execution.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	mode, err := runner.ParseOutputMode(cfg.Execution.Output)
	if err != nil {
		return nil, err
	}
	policy, err := selection.ParsePolicy(cfg.Execution.PreferredPolicy)
	if err != nil {
		return nil, err
	}

	// Concurrent programs must not interleave on the terminal. Their output
	// is buffered and printed per family once the run is over.
	if cfg.Execution.Parallel {
		mode = runner.OutputCapture
		childOut = io.Discard
	}

	jobs := cfg.Execution.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	return &engine{
		cfg:  cfg,
		log:  log,
		info: detectHost(log),
		runner: runner.Options{
			Elevation: cfg.Execution.Elevation,
			Output:    mode,
			Timeout:   timeout,
			Stdout:    childOut,
			Stderr:    childErr,
			Logger:    &log,
		},
		router: router.Options{
			Policy:   policy,
			Parallel: cfg.Execution.Parallel,
			Jobs:     jobs,
			Logger:   &log,
		},
	}, nil
}

func (e *engine) requests(families []string) ([]router.Request, error) {
	return filterRequests(config.Requests(e.cfg, e.info), families)
}

func (e *engine) newRouter() *router.Router {
	return router.New(newProber(), newExecutor(e.runner), e.router)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if err := validOutputFormat(updateOutput); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, log, err := setup(errOut)
	if err != nil {
		return err
	}
	applyUpdateFlags(cmd, cfg)

	// Structured reports own stdout, so program output goes to stderr.
	childOut := out
	if updateOutput != formatTable {
		childOut = errOut
	}

	eng, err := newEngine(cfg, log, childOut, errOut)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	reqs, err := eng.requests(updateFamilies)
	if err != nil {
		return err
	}

	if !updateDryRun {
		lock, err := acquireUpdateLock()
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn().Err(err).Msg("failed to release update lock")
			}
		}()
	}

	var progress *output.Progress
	if cfg.Execution.Parallel && !updateDryRun && updateOutput == formatTable {
		progress = output.NewProgress(len(reqs))
		progress.SetWriter(errOut)
		eng.router.OnReport = func(_ int, rep router.Report) {
			progress.Done(rep.Label, string(rep.Outcome))
		}
	}
	rt := eng.newRouter()

	ctx := commandContext(cmd)
	start := time.Now()
	var reports []router.Report
	if updateDryRun {
		reports = rt.Plan(ctx, reqs)
	} else {
		reports = rt.Run(ctx, reqs)
	}
	end := time.Now()

	if progress != nil {
		progress.Finish()
	}
	if cfg.Execution.Parallel && !updateDryRun {
		printCapturedOutput(childOut, reports)
	}

	runID := ""
	if !updateNoHistory && cfg.History.Enabled {
		runID, err = recordRun(cfg, eng.info, reports, start, end, updateDryRun)
		if err != nil {
			log.Warn().Err(err).Msg("failed to record run history")
		}
	}

	if cfg.Metrics.Textfile != "" && !updateDryRun {
		m := metrics.New()
		m.Observe(reports, start, end)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn().Err(err).Msg("failed to write metrics")
		}
	}

	summary := router.Summarize(reports)
	if updateOutput == formatTable {
		fmt.Fprintln(out)
		if updateDryRun {
			fmt.Fprint(out, output.RenderPlanTable(reports))
		} else {
			fmt.Fprint(out, output.RenderReportTable(reports))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, output.RenderSummary(summary))
	} else if err := writeStructured(out, updateOutput, newRunView(runID, updateDryRun, reports)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !summary.OK() {
		return fmt.Errorf("%w: %d of %d families did not succeed", ErrUpdateFailed, summary.Failed, summary.Total)
	}
	return nil
}

func acquireUpdateLock() (*watcher.Lock, error) {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return nil, err
	}
	lock, err := watcher.AcquireLock(pidFile)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// printCapturedOutput prints each family's buffered program output in
// request order.
func printCapturedOutput(w io.Writer, reports []router.Report) {
	for _, rep := range reports {
		for _, res := range rep.Results {
			if len(res.Stdout) == 0 {
				continue
			}
			fmt.Fprintf(w, "==> %s (%s)\n", rep.Label, res.Descriptor.DisplayName)
			w.Write(res.Stdout)
			if res.Stdout[len(res.Stdout)-1] != '\n' {
				fmt.Fprintln(w)
			}
		}
	}
}

// recordRun stores the run in the history database and returns its ID.
func recordRun(cfg *config.Config, info osinfo.Info, reports []router.Report, start, end time.Time, dryRun bool) (string, error) {
	path, err := getDBPath(cfg.History.Path)
	if err != nil {
		return "", err
	}

	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	summary := router.Summarize(reports)
	run := &store.Run{
		StartedAt:  start,
		FinishedAt: end,
		Hostname:   info.Hostname,
		Ecosystem:  hostEcosystem(info),
		DryRun:     dryRun,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
	}
	if err := st.InsertRun(run, toFamilyReports(reports)); err != nil {
		return "", err
	}
	return run.ID, nil
}

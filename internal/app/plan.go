package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/output"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/watcher"
)

var (
	planFamilies []string
	planWatch    bool
	planOutput   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which program each family would run, without running anything",
	Long: `Resolves every enabled family exactly like 'swupdate update' and prints the
command lines it would spawn, including the elevation launcher. Nothing is
executed and nothing is recorded in the history.

With --watch, the plan is printed again every time the config file changes,
which is handy while editing preferred programs.`,
	Example: `  # Preview the next update
  swupdate plan

  # Re-plan on every config edit
  swupdate plan --watch`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringSliceVarP(&planFamilies, "family", "f", nil, "only plan these families")
	planCmd.Flags().BoolVarP(&planWatch, "watch", "w", false, "re-plan whenever the config file changes")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", formatTable, "format: table, json or yaml")

	RootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := validOutputFormat(planOutput); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := commandContext(cmd)

	if !planWatch {
		return planOnce(ctx, out, cmd.ErrOrStderr())
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	if err := planOnce(ctx, out, cmd.ErrOrStderr()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)...\n", path)

	// The config may be broken right now; the watcher logs with flag settings only.
	log, err := newLogger(cmd.ErrOrStderr(), "", "")
	if err != nil {
		return err
	}
	w := watcher.NewConfigWatcher(path, log)
	return w.Run(ctx, func() {
		fmt.Fprintf(out, "\n--- %s: config changed ---\n", time.Now().Format(time.TimeOnly))
		// A broken edit is reported and the watch goes on.
		if err := planOnce(ctx, out, cmd.ErrOrStderr()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

// planOnce loads the current config and prints the plan.
func planOnce(ctx context.Context, out, errOut io.Writer) error {
	cfg, log, err := setup(errOut)
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg, log, out, errOut)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	reqs, err := eng.requests(planFamilies)
	if err != nil {
		return err
	}

	reports := eng.newRouter().Plan(ctx, reqs)

	if planOutput != formatTable {
		return writeStructured(out, planOutput, newRunView("", true, reports))
	}
	fmt.Fprint(out, output.RenderPlanTable(reports))
	fmt.Fprintln(out)
	fmt.Fprintln(out, output.RenderSummary(router.Summarize(reports)))
	return nil
}

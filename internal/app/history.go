package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/output"
	"github.com/blackwell-systems/swupdate/internal/store"
)

var (
	historyLimit     int
	historyOlderThan string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past update runs",
	Long: `Lists recorded update runs, newest first, with how many families succeeded,
failed and were skipped. Use 'swupdate history show <run-id>' for the
per-family detail of one run. Run IDs may be abbreviated to any unique
prefix.`,
	Example: `  # Last 20 runs
  swupdate history

  # Detail of one run
  swupdate history show 0f9c2a1e

  # Forget runs older than 90 days
  swupdate history prune --older-than 90d`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the family reports of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than a given age",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "number of runs to show (0 for all)")
	historyPruneCmd.Flags().StringVar(&historyOlderThan, "older-than", "90d", "age cutoff, e.g. 720h or 30d")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	RootCmd.AddCommand(historyCmd)
}

// openHistory opens the history database read-write.
func openHistory(cmd *cobra.Command) (*store.Store, error) {
	cfg, _, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	path, err := getDBPath(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderHistoryTable(runs))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	st, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(args[0])
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return fmt.Errorf("no run with ID %q (see 'swupdate history')", args[0])
		}
		return err
	}

	reports, err := st.GetReports(run.ID)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderRunDetail(run, reports))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	age, err := parseAge(historyOlderThan)
	if err != nil {
		return err
	}

	st, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.DeleteRunsBefore(time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s) older than %s.\n", n, historyOlderThan)
	return nil
}

// parseAge accepts Go durations plus a whole-day suffix ("30d").
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q (use e.g. 720h or 30d)", s)
	}
	return d, nil
}

package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/config"
	"github.com/blackwell-systems/swupdate/internal/output"
	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/program"
	"github.com/blackwell-systems/swupdate/internal/router"
)

// newInspector is overridable in tests.
var newInspector = func() inspector { return probe.New() }

type inspector interface {
	Inspect(descriptors []program.Descriptor) []probe.Candidate
}

var listInstalled bool

var listCmd = &cobra.Command{
	Use:   "list [family|ecosystem]",
	Short: "List known update programs and whether they are installed",
	Long: `Lists the candidate programs of every family in priority order, with the
command each one runs and whether it was found on PATH. The configured
preferred program of a family is marked with *.

An ecosystem name such as "ubuntu" or "manjaro" selects its family.`,
	Example: `  # Everything
  swupdate list

  # AUR helpers only
  swupdate list aur

  # Families used on this machine's distribution
  swupdate list ubuntu`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listInstalled, "installed", "i", false, "only show installed programs")
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	tables := program.Tables()
	if len(args) == 1 {
		family, err := router.ResolveEcosystem(args[0])
		if err != nil {
			return fmt.Errorf("%w (known: %s)", err, strings.Join(router.Ecosystems(), ", "))
		}
		table, ok := program.Lookup(family)
		if !ok {
			return fmt.Errorf("no programs known for family %s", family)
		}
		tables = []program.Table{table}
	}

	preferred := preferredPrograms(cfg)
	ins := newInspector()

	var rows []output.ProgramRow
	for _, t := range tables {
		for _, c := range ins.Inspect(t.Descriptors) {
			if listInstalled && !c.Available() {
				continue
			}
			rows = append(rows, output.ProgramRow{
				Family:    string(t.Family),
				Candidate: c,
				Preferred: preferred[t.Family] == c.Descriptor.ID,
			})
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderProgramTable(rows))
	return nil
}

// preferredPrograms returns the configured preferred program per family.
func preferredPrograms(cfg *config.Config) map[program.Family]program.ID {
	l := cfg.OS.Linux
	return map[program.Family]program.ID{
		program.Arch: program.ID(l.Arch.PreferredOfficial),
		program.AUR:  program.ID(l.Arch.PreferredAUR),
		program.Deb:  program.ID(l.Deb.Preferred),
		program.RPM:  program.ID(l.RPM.Preferred),
	}
}

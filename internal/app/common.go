package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/swupdate/internal/config"
	"github.com/blackwell-systems/swupdate/internal/logging"
	"github.com/blackwell-systems/swupdate/internal/osinfo"
	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/store"
)

// Overridable in tests.
var (
	detectOS  = osinfo.Detect
	newProber = func() router.Prober { return probe.New() }
)

// commandContext returns the command's context, or Background when the
// command was invoked without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// configPath returns the --config flag value or the default path.
func configPath() (string, error) {
	return config.Path(cfgFile)
}

// loadConfig loads and validates the configuration. Unknown preferred
// program names are logged and cleared; anything else invalid is an error.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	errs := cfg.Validate()
	for _, e := range errs {
		var w *config.Warning
		if errors.As(e, &w) {
			log.Warn().Str("field", w.Field).Msg(w.Msg)
		}
	}
	if err := config.Fatal(errs); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger it describes. The
// --log-level and --log-format flags take precedence over the file.
func setup(stderr io.Writer) (*config.Config, zerolog.Logger, error) {
	boot, err := newLogger(stderr, "", "")
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	cfg, err := loadConfig(boot)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	return logging.New(logging.Options{Level: level, Format: format, Output: w})
}

// detectHost identifies the running system. A detection failure is logged
// and the bare OS name is used.
func detectHost(log zerolog.Logger) osinfo.Info {
	info, err := detectOS()
	if err != nil {
		log.Warn().Err(err).Msg("could not detect distribution")
	}
	log.Debug().Str("os", info.String()).Msg("detected system")
	return info
}

// hostEcosystem returns the native ecosystem name for history records.
func hostEcosystem(info osinfo.Info) string {
	if eco, ok := info.Ecosystem(router.Supported); ok {
		return eco
	}
	return info.OS
}

// filterRequests keeps the requests named in families, matched by label,
// ecosystem or family. An empty filter keeps everything.
func filterRequests(reqs []router.Request, families []string) ([]router.Request, error) {
	if len(families) == 0 {
		return reqs, nil
	}

	var out []router.Request
	matched := make(map[string]bool, len(families))
	for _, req := range reqs {
		for _, name := range families {
			if requestMatches(req, name) {
				out = append(out, req)
				matched[name] = true
				break
			}
		}
	}

	for _, name := range families {
		if !matched[name] {
			return nil, fmt.Errorf("no configured family matches %q", name)
		}
	}
	return out, nil
}

func requestMatches(req router.Request, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.EqualFold(req.Label, name) || strings.EqualFold(req.Ecosystem, name) {
		return true
	}
	family, err := router.ResolveEcosystem(req.Ecosystem)
	return err == nil && string(family) == name
}

// toFamilyReports converts router reports into history records.
func toFamilyReports(reports []router.Report) []*store.FamilyReport {
	out := make([]*store.FamilyReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, &store.FamilyReport{
			Label:     r.Label,
			Ecosystem: r.Ecosystem,
			Family:    string(r.Family),
			Outcome:   string(r.Outcome),
			Programs:  r.Programs,
			ExitCode:  r.ExitCode(),
			Reason:    r.Reason,
			Duration:  r.Duration,
		})
	}
	return out
}

// Structured output formats for --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validOutputFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

type commandView struct {
	Program  string   `json:"program" yaml:"program"`
	Argv     []string `json:"argv" yaml:"argv"`
	Elevated bool     `json:"elevated" yaml:"elevated"`
}

type reportView struct {
	Label      string        `json:"label" yaml:"label"`
	Ecosystem  string        `json:"ecosystem" yaml:"ecosystem"`
	Family     string        `json:"family,omitempty" yaml:"family,omitempty"`
	Outcome    string        `json:"outcome" yaml:"outcome"`
	Programs   []string      `json:"programs,omitempty" yaml:"programs,omitempty"`
	Commands   []commandView `json:"commands,omitempty" yaml:"commands,omitempty"`
	ExitCode   int           `json:"exit_code" yaml:"exit_code"`
	Reason     string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	DurationMS int64         `json:"duration_ms" yaml:"duration_ms"`
}

type summaryView struct {
	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Planned   int `json:"planned" yaml:"planned"`
}

type runView struct {
	RunID   string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	DryRun  bool         `json:"dry_run" yaml:"dry_run"`
	Summary summaryView  `json:"summary" yaml:"summary"`
	Reports []reportView `json:"reports" yaml:"reports"`
}

func newRunView(runID string, dryRun bool, reports []router.Report) runView {
	s := router.Summarize(reports)
	view := runView{
		RunID:  runID,
		DryRun: dryRun,
		Summary: summaryView{
			Total:     s.Total,
			Succeeded: s.Succeeded,
			Failed:    s.Failed,
			Skipped:   s.Skipped,
			Planned:   s.Planned,
		},
		Reports: make([]reportView, 0, len(reports)),
	}
	for _, r := range reports {
		rv := reportView{
			Label:      r.Label,
			Ecosystem:  r.Ecosystem,
			Family:     string(r.Family),
			Outcome:    string(r.Outcome),
			Programs:   r.Programs,
			ExitCode:   r.ExitCode(),
			Reason:     r.Reason,
			DurationMS: r.Duration.Milliseconds(),
		}
		for _, c := range r.Commands {
			rv.Commands = append(rv.Commands, commandView{Program: c.Program, Argv: c.Argv, Elevated: c.Elevated})
		}
		view.Reports = append(view.Reports, rv)
	}
	return view
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

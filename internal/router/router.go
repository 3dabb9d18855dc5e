// Package router maps ecosystems to descriptor tables and drives each
// requested family through probe, selection and execution.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/program"
	"github.com/blackwell-systems/swupdate/internal/runner"
	"github.com/blackwell-systems/swupdate/internal/selection"
)

// Prober resolves descriptors on the search path.
type Prober interface {
	Probe(descriptors []program.Descriptor) probe.Availability
}

// Executor runs one selected program.
type Executor interface {
	Execute(ctx context.Context, entry probe.Entry) (runner.Result, error)
}

// Commander is implemented by executors that can describe an invocation
// without running it. Plan uses it to fill Report.Commands.
type Commander interface {
	Command(entry probe.Entry) ([]string, bool, error)
}

// Options configures a Router.
type Options struct {
	Policy selection.Policy
	// Parallel runs families concurrently, at most Jobs at a time.
	Parallel bool
	Jobs     int
	Logger   *zerolog.Logger
	// OnReport is called as each family finishes. In parallel mode it is
	// called from several goroutines.
	OnReport func(index int, report Report)
}

// Router runs requests with per-family failure isolation.
type Router struct {
	prober   Prober
	executor Executor
	policy   selection.Policy
	parallel bool
	jobs     int
	onReport func(int, Report)
	log      zerolog.Logger
}

// New creates a Router.
func New(p Prober, e Executor, opts Options) *Router {
	r := &Router{
		prober:   p,
		executor: e,
		policy:   opts.Policy,
		parallel: opts.Parallel,
		jobs:     opts.Jobs,
		onReport: opts.OnReport,
		log:      zerolog.Nop(),
	}
	if r.jobs <= 0 {
		r.jobs = 1
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "router").Logger()
	}
	return r
}

// Run updates every request and returns one report per request, in request
// order. It never returns early: every failure becomes a report.
func (r *Router) Run(ctx context.Context, requests []Request) []Report {
	return r.each(ctx, requests, true)
}

// Plan resolves and selects like Run but never executes anything.
func (r *Router) Plan(ctx context.Context, requests []Request) []Report {
	return r.each(ctx, requests, false)
}

func (r *Router) each(ctx context.Context, requests []Request, execute bool) []Report {
	reports := make([]Report, len(requests))

	if !r.parallel || !execute {
		for i, req := range requests {
			reports[i] = r.handle(ctx, req, execute)
			r.notify(i, reports[i])
		}
		return reports
	}

	var g errgroup.Group
	g.SetLimit(r.jobs)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			reports[i] = r.handle(ctx, req, execute)
			r.notify(i, reports[i])
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

func (r *Router) notify(i int, report Report) {
	if r.onReport != nil {
		r.onReport(i, report)
	}
}

// handle processes a single request. It recovers every error into the
// returned report.
func (r *Router) handle(ctx context.Context, req Request, execute bool) Report {
	start := time.Now()
	report := Report{Label: req.Label, Ecosystem: req.Ecosystem}
	if report.Label == "" {
		report.Label = req.Ecosystem
	}

	finish := func() Report {
		report.Duration = time.Since(start)
		return report
	}

	log := r.log.With().Str("label", report.Label).Logger()

	if !req.Enabled {
		report.Outcome = OutcomeSkipped
		report.Reason = "disabled in configuration"
		log.Debug().Msg("family disabled, skipping")
		return finish()
	}

	family, err := ResolveEcosystem(req.Ecosystem)
	if err != nil {
		report.Outcome = OutcomeUnsupported
		report.Err = err
		report.Reason = err.Error()
		log.Warn().Err(err).Msg("no descriptor table for ecosystem")
		return finish()
	}
	report.Family = family
	log = log.With().Str("family", string(family)).Logger()

	table, ok := program.Lookup(family)
	if !ok || table.Empty() {
		err := &UnsupportedEcosystemError{Ecosystem: req.Ecosystem}
		report.Outcome = OutcomeUnsupported
		report.Err = err
		report.Reason = err.Error()
		return finish()
	}

	if err := ctx.Err(); err != nil {
		report.Outcome = OutcomeFailed
		report.Err = err
		report.Reason = "cancelled before start"
		return finish()
	}

	sel, err := r.choose(table, req)
	if err != nil {
		report.Err = err
		report.Reason = err.Error()
		var none *selection.NoProgramAvailableError
		if req.Optional && errors.As(err, &none) {
			report.Outcome = OutcomeSkipped
			log.Debug().Err(err).Msg("optional family not installed, skipping")
			return finish()
		}
		report.Outcome = OutcomeNoProgram
		log.Warn().Err(err).Msg("no program selected")
		return finish()
	}
	report.Programs = sel.Names()

	for _, entry := range sel.Entries() {
		log.Info().
			Str("program", entry.Descriptor.DisplayName).
			Str("path", entry.Path).
			Str("selection", sel.Kind.String()).
			Msg("selected update program")
	}

	if !execute {
		report.Outcome = OutcomePlanned
		cmds, err := r.describe(sel)
		report.Commands = cmds
		if err != nil {
			// update would fail to spawn; plan keeps the unwrapped argv
			report.Err = err
			report.Reason = err.Error()
			log.Warn().Err(err).Msg("planned command cannot be built")
		}
		return finish()
	}

	r.execute(ctx, log, sel, &report)
	return finish()
}

func (r *Router) choose(table program.Table, req Request) (selection.Selection, error) {
	available := r.prober.Probe(table.Descriptors)
	if table.Composite && len(req.Programs) > 0 {
		return selection.SelectCombined(table, available, req.Programs)
	}
	return selection.Select(table, available, req.Preferred, r.policy)
}

// describe builds the commands a selection would spawn. An error means at
// least one command could not be built, for instance because no elevation
// launcher is installed.
func (r *Router) describe(sel selection.Selection) ([]Command, error) {
	cmdr, _ := r.executor.(Commander)

	var cmds []Command
	var errs []error
	for _, entry := range sel.Entries() {
		c := Command{Program: entry.Descriptor.DisplayName, Path: entry.Path}
		if cmdr != nil {
			argv, elevated, err := cmdr.Command(entry)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.Program, err))
			} else {
				c.Argv, c.Elevated = argv, elevated
			}
		}
		if c.Argv == nil {
			c.Argv = append([]string{entry.Path}, entry.Descriptor.UpdateArgs...)
		}
		cmds = append(cmds, c)
	}
	return cmds, errors.Join(errs...)
}

// execute runs every selected program in order. A combined selection keeps
// going after one of its programs fails.
func (r *Router) execute(ctx context.Context, log zerolog.Logger, sel selection.Selection, report *Report) {
	var spawnErrs []error

	for _, entry := range sel.Entries() {
		name := entry.Descriptor.DisplayName
		log.Info().Str("program", name).Msg("running update")

		res, err := r.executor.Execute(ctx, entry)
		if err != nil {
			log.Error().Err(err).Str("program", name).Msg("could not start update program")
			spawnErrs = append(spawnErrs, err)
			continue
		}

		report.Results = append(report.Results, res)
		report.Commands = append(report.Commands, Command{
			Program:  name,
			Path:     res.Path,
			Argv:     res.Argv,
			Elevated: res.Elevated,
		})

		if res.Success() {
			log.Info().Str("program", name).Dur("duration", res.Duration).Msg("update succeeded")
		} else {
			log.Warn().Str("program", name).Str("status", res.Describe()).Msg("update failed")
		}
	}

	switch {
	case len(spawnErrs) > 0:
		report.Outcome = OutcomeSpawnFailed
		report.Err = errors.Join(spawnErrs...)
		report.Reason = spawnErrs[0].Error()
	default:
		report.Outcome = OutcomeSucceeded
		for _, res := range report.Results {
			if !res.Success() {
				report.Outcome = OutcomeFailed
				report.Reason = fmt.Sprintf("%s: %s", res.Descriptor.DisplayName, res.Describe())
				break
			}
		}
	}
}

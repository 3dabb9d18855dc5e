package router

import (
	"time"

	"github.com/blackwell-systems/swupdate/internal/program"
	"github.com/blackwell-systems/swupdate/internal/runner"
)

// Outcome classifies a family's report.
type Outcome string

const (
	// OutcomeSucceeded means every selected program exited 0.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means a program exited non-zero, was killed, timed out,
	// or the run was cancelled before the family started.
	OutcomeFailed Outcome = "failed"
	// OutcomeNoProgram means no program of a required family is installed.
	OutcomeNoProgram Outcome = "no-program"
	// OutcomeSpawnFailed means a program could not be started.
	OutcomeSpawnFailed Outcome = "spawn-failed"
	// OutcomeUnsupported means the ecosystem has no descriptor table.
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeSkipped means the family is disabled, or optional and not
	// installed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomePlanned means a program was selected but not run.
	OutcomePlanned Outcome = "planned"
)

// Request asks the router to update one family.
type Request struct {
	// Label names the request in reports, e.g. "arch official".
	Label string
	// Ecosystem is a distribution ID or tool identity, see ResolveEcosystem.
	Ecosystem string
	Enabled   bool
	// Preferred is the configured program for single-selection families.
	Preferred program.ID
	// Programs lists the programs to run together for composite families.
	Programs []program.ID
	// Optional requests are reported as skipped, not failed, when none of
	// the family's programs is installed.
	Optional bool
}

// Command is one invocation that was, or would be, spawned.
type Command struct {
	Program  string
	Path     string
	Argv     []string
	Elevated bool
}

// Report is the result of one request.
type Report struct {
	Label     string
	Ecosystem string
	Family    program.Family
	Outcome   Outcome
	Programs  []string
	Commands  []Command
	Results   []runner.Result
	Err       error
	Reason    string
	Duration  time.Duration
}

// OK reports whether the request needs no attention.
func (r Report) OK() bool {
	switch r.Outcome {
	case OutcomeSucceeded, OutcomeSkipped, OutcomePlanned:
		return true
	}
	return false
}

// ExitCode returns the exit code of the first unsuccessful program, 0 when
// every program succeeded, or -1 when nothing ran.
func (r Report) ExitCode() int {
	if len(r.Results) == 0 {
		return -1
	}
	for _, res := range r.Results {
		if !res.Success() {
			return res.ExitCode
		}
	}
	return 0
}

// Summary counts reports by coarse outcome.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Planned   int
}

// OK reports whether every request succeeded, was skipped or was planned.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Summarize counts reports. Every outcome other than succeeded, skipped and
// planned counts as failed.
func Summarize(reports []Report) Summary {
	s := Summary{Total: len(reports)}
	for _, r := range reports {
		switch r.Outcome {
		case OutcomeSucceeded:
			s.Succeeded++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomePlanned:
			s.Planned++
		default:
			s.Failed++
		}
	}
	return s
}

package store

import "time"

// Run is one invocation of swupdate update.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Hostname   string
	Ecosystem  string // detected distribution or OS
	DryRun     bool
	Succeeded  int
	Failed     int
	Skipped    int
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FamilyReport is the stored outcome of one family within a run.
type FamilyReport struct {
	RunID     string
	Position  int
	Label     string
	Ecosystem string
	Family    string
	Outcome   string
	Programs  []string
	ExitCode  int // -1 when nothing ran
	Reason    string
	Duration  time.Duration
}

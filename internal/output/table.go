// Package output provides terminal output utilities for swupdate.
//
// This package includes:
//   - Table rendering for family reports, plans, program availability and run history
//   - A progress bar for parallel update runs
//   - Human-readable formatting for durations and dates
//
// All table rendering functions use plain characters and ANSI color codes for terminal output.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/store"
)

// ANSI color codes for outcome display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderReportTable renders one row per family report of an update run.
func RenderReportTable(reports []router.Report) string {
	if len(reports) == 0 {
		return "No families configured.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-9s %-22s %-14s %-9s %s\n",
		"Family", "Ecosystem", "Program", "Outcome", "Duration", "Detail"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, r := range reports {
		sb.WriteString(fmt.Sprintf("%-16s %-9s %-22s %s %-9s %s\n",
			truncate(r.Label, 16),
			truncate(string(r.Family), 9),
			truncate(formatPrograms(r.Programs), 22),
			padColor(outcomeColor(string(r.Outcome)), formatOutcome(string(r.Outcome)), 14),
			formatDuration(r.Duration),
			reportDetail(r)))
	}

	return sb.String()
}

// RenderPlanTable renders the commands an update run would spawn.
func RenderPlanTable(reports []router.Report) string {
	if len(reports) == 0 {
		return "No families configured.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-12s %-22s %s\n",
		"Family", "Status", "Program", "Command"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, r := range reports {
		if len(r.Commands) == 0 {
			sb.WriteString(fmt.Sprintf("%-16s %s %-22s %s\n",
				truncate(r.Label, 16),
				padColor(outcomeColor(string(r.Outcome)), formatOutcome(string(r.Outcome)), 12),
				"—",
				r.Reason))
			continue
		}
		for i, c := range r.Commands {
			label := r.Label
			status := padColor(outcomeColor(string(r.Outcome)), formatOutcome(string(r.Outcome)), 12)
			if i > 0 {
				label = ""
				status = fmt.Sprintf("%-12s", "")
			}
			cmd := strings.Join(c.Argv, " ")
			if c.Elevated {
				cmd = colorize(colorYellow, cmd)
			}
			sb.WriteString(fmt.Sprintf("%-16s %s %-22s %s\n",
				truncate(label, 16),
				status,
				truncate(c.Program, 22),
				cmd))
		}
		if r.Reason != "" {
			sb.WriteString(fmt.Sprintf("%-16s %-12s %s\n", "", "", colorize(colorYellow, "⚠ "+r.Reason)))
		}
	}

	return sb.String()
}

// ProgramRow is one line of the program availability listing.
type ProgramRow struct {
	Family    string
	Candidate probe.Candidate
	Preferred bool
}

// RenderProgramTable renders descriptor tables with their availability.
func RenderProgramTable(rows []ProgramRow) string {
	if len(rows) == 0 {
		return "No programs found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s %-12s %-24s %-9s %-10s %s\n",
		"Family", "ID", "Program", "Elevated", "Available", "Command"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	prev := ""
	for _, row := range rows {
		d := row.Candidate.Descriptor
		family := row.Family
		if family == prev {
			family = ""
		}
		prev = row.Family

		name := d.DisplayName
		if row.Preferred {
			name += " *"
		}

		elevated := "no"
		if d.RequiresElevation {
			elevated = "yes"
		}

		avail := padColor(colorGray, "✗ missing", 10)
		if row.Candidate.Available() {
			avail = padColor(colorGreen, "✓ found", 10)
		}

		sb.WriteString(fmt.Sprintf("%-8s %-12s %-24s %-9s %s %s\n",
			truncate(family, 8),
			truncate(string(d.ID), 12),
			truncate(name, 24),
			elevated,
			avail,
			strings.Join(append([]string{d.Executable}, d.UpdateArgs...), " ")))
	}

	return sb.String()
}

// RenderHistoryTable renders a table of past runs, newest first.
func RenderHistoryTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No update runs recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-10s %-17s %-10s %-10s %-6s %-6s %-7s %s\n",
		"Run", "Started", "Ecosystem", "Duration", "OK", "Failed", "Skipped", "Mode"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, run := range runs {
		mode := "update"
		if run.DryRun {
			mode = "dry-run"
		}
		failed := fmt.Sprintf("%-6d", run.Failed)
		if run.Failed > 0 {
			failed = colorize(colorRed, failed)
		}

		sb.WriteString(fmt.Sprintf("%-10s %-17s %-10s %-10s %-6d %s %-7d %s\n",
			shortID(run.ID),
			formatRelativeTime(run.StartedAt),
			truncate(run.Ecosystem, 10),
			formatDuration(run.Duration()),
			run.Succeeded,
			failed,
			run.Skipped,
			mode))
	}

	return sb.String()
}

// RenderRunDetail renders one stored run with its family reports.
func RenderRunDetail(run *store.Run, reports []*store.FamilyReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:       %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Started:   %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), formatRelativeTime(run.StartedAt)))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", formatDuration(run.Duration())))
	if run.Hostname != "" {
		sb.WriteString(fmt.Sprintf("Host:      %s\n", run.Hostname))
	}
	sb.WriteString(fmt.Sprintf("Ecosystem: %s\n", run.Ecosystem))
	if run.DryRun {
		sb.WriteString("Mode:      dry-run\n")
	}
	sb.WriteString("\n")

	if len(reports) == 0 {
		sb.WriteString("No family reports recorded.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-16s %-9s %-22s %-14s %-6s %-9s %s\n",
		"Family", "Ecosystem", "Program", "Outcome", "Exit", "Duration", "Reason"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, rep := range reports {
		exit := "—"
		if rep.ExitCode >= 0 {
			exit = fmt.Sprintf("%d", rep.ExitCode)
		}
		sb.WriteString(fmt.Sprintf("%-16s %-9s %-22s %s %-6s %-9s %s\n",
			truncate(rep.Label, 16),
			truncate(rep.Family, 9),
			truncate(formatPrograms(rep.Programs), 22),
			padColor(outcomeColor(rep.Outcome), formatOutcome(rep.Outcome), 14),
			exit,
			formatDuration(rep.Duration),
			rep.Reason))
	}

	return sb.String()
}

// RenderSummary renders a one-line summary of an update run.
// Format: "3 succeeded · 1 failed · 2 skipped"
func RenderSummary(s router.Summary) string {
	parts := []string{
		colorize(colorGreen, fmt.Sprintf("%d succeeded", s.Succeeded)),
	}
	if s.Failed > 0 {
		parts = append(parts, colorize(colorRed, fmt.Sprintf("%d failed", s.Failed)))
	} else {
		parts = append(parts, "0 failed")
	}
	parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	if s.Planned > 0 {
		parts = append(parts, fmt.Sprintf("%d planned", s.Planned))
	}
	return strings.Join(parts, " · ")
}

func reportDetail(r router.Report) string {
	if r.Outcome == router.OutcomeSucceeded {
		if code := r.ExitCode(); code >= 0 {
			return fmt.Sprintf("exit %d", code)
		}
		return ""
	}
	return r.Reason
}

// formatOutcome returns the display label for an outcome.
func formatOutcome(outcome string) string {
	switch outcome {
	case string(router.OutcomeSucceeded):
		return "✓ updated"
	case string(router.OutcomeSkipped):
		return "- skipped"
	case string(router.OutcomePlanned):
		return "→ planned"
	case string(router.OutcomeNoProgram):
		return "⚠ no program"
	case string(router.OutcomeUnsupported):
		return "⚠ unsupported"
	case string(router.OutcomeSpawnFailed):
		return "✗ not started"
	default:
		return "✗ failed"
	}
}

// outcomeColor returns the ANSI color code for an outcome.
func outcomeColor(outcome string) string {
	switch outcome {
	case string(router.OutcomeSucceeded), string(router.OutcomePlanned):
		return colorGreen
	case string(router.OutcomeSkipped):
		return colorGray
	case string(router.OutcomeNoProgram), string(router.OutcomeUnsupported):
		return colorYellow
	default:
		return colorRed
	}
}

// padColor pads text to width before coloring so that escape codes do not
// break column alignment.
func padColor(color, text string, width int) string {
	if n := width - len([]rune(text)); n > 0 {
		text += strings.Repeat(" ", n)
	}
	return colorize(color, text)
}

func formatPrograms(programs []string) string {
	if len(programs) == 0 {
		return "—"
	}
	return strings.Join(programs, " + ")
}

// shortID returns the first 8 characters of a run ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration renders a duration rounded for humans (e.g. "1m32s").
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "—"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week") + " ago"
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month") + " ago"
	default:
		return plural(int(diff.Hours()/24/365), "year") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatRelativeTime is the exported form of formatRelativeTime.
func FormatRelativeTime(t time.Time) string {
	return formatRelativeTime(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

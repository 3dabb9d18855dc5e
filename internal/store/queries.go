package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run operations

// InsertRun stores a run and its family reports in one transaction. An empty
// run.ID is replaced with a new UUID.
func (s *Store) InsertRun(run *Run, reports []*FamilyReport) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs
		(id, started_at, finished_at, hostname, ecosystem, dry_run, succeeded, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Hostname,
		run.Ecosystem,
		run.DryRun,
		run.Succeeded,
		run.Failed,
		run.Skipped,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to insert run %s", run.ID), err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO family_reports
		(run_id, position, label, ecosystem, family, outcome, programs, exit_code, reason, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return wrapErr("failed to prepare report insert", err)
	}
	defer stmt.Close()

	for i, rep := range reports {
		rep.RunID = run.ID
		rep.Position = i

		programsJSON, err := json.Marshal(rep.Programs)
		if err != nil {
			return fmt.Errorf("failed to marshal programs: %w", err)
		}

		_, err = stmt.Exec(
			rep.RunID,
			rep.Position,
			rep.Label,
			rep.Ecosystem,
			rep.Family,
			rep.Outcome,
			string(programsJSON),
			rep.ExitCode,
			rep.Reason,
			rep.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert report %s: %w", rep.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, started_at, finished_at, hostname, ecosystem, dry_run, succeeded, failed, skipped`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt string

	err := row.Scan(
		&run.ID,
		&startedAt,
		&finishedAt,
		&run.Hostname,
		&run.Ecosystem,
		&run.DryRun,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at for run %s: %w", run.ID, err)
	}
	return &run, nil
}

// GetRun retrieves a run by full ID or by a unique ID prefix.
func (s *Store) GetRun(id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty ID", ErrRunNotFound)
	}

	// IDs are compared literally; % and _ are not wildcards.
	query := `SELECT ` + runColumns + ` FROM runs WHERE substr(id, 1, ?) = ? ORDER BY started_at DESC`

	rows, err := s.db.Query(query, len(id), id)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get run %s", id), err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	for _, run := range runs {
		if run.ID == id {
			return run, nil
		}
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// every run.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// LastRun returns the most recent run, or nil if there is none.
func (s *Store) LastRun() (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to get last run", err)
	}
	return run, nil
}

// CountRuns returns the number of stored runs.
func (s *Store) CountRuns() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, wrapErr("failed to count runs", err)
	}
	return count, nil
}

// Report operations

// GetReports returns a run's family reports in their original order.
func (s *Store) GetReports(runID string) ([]*FamilyReport, error) {
	query := `
		SELECT run_id, position, label, ecosystem, family, outcome, programs, exit_code, reason, duration_ms
		FROM family_reports
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get reports for run %s", runID), err)
	}
	defer rows.Close()

	var reports []*FamilyReport
	for rows.Next() {
		var rep FamilyReport
		var programsJSON string
		var durationMS int64

		err := rows.Scan(
			&rep.RunID,
			&rep.Position,
			&rep.Label,
			&rep.Ecosystem,
			&rep.Family,
			&rep.Outcome,
			&programsJSON,
			&rep.ExitCode,
			&rep.Reason,
			&durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}

		if err := json.Unmarshal([]byte(programsJSON), &rep.Programs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal programs for %s: %w", rep.Label, err)
		}
		rep.Duration = time.Duration(durationMS) * time.Millisecond

		reports = append(reports, &rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// DeleteRunsBefore removes runs that started before cutoff, along with
// their reports, and returns how many runs were deleted.
func (s *Store) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM runs WHERE started_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, wrapErr("failed to delete old runs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	return n, nil
}

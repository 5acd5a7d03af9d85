package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordRun appends one execution to the run history.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	errStr := ""
	success := 1
	if run.Err != nil {
		errStr = run.Err.Error()
		success = 0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (run_id, type, name, started_at, duration_sec, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Type, run.Name, run.Started.UTC(), run.Duration.Seconds(), success, errStr)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RunTime returns the mean duration in minutes of the successful runs of a
// task, falling back to the mean over all tasks of its type. ok is false
// when neither has any history.
func (s *SQLiteStore) RunTime(ctx context.Context, taskType, name string) (float64, bool, error) {
	var mean sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(duration_sec) FROM task_runs
		WHERE type = ? AND name = ? AND success = 1
	`, taskType, name).Scan(&mean)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query run time: %w", err)
	}
	if mean.Valid {
		return mean.Float64 / 60, true, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT AVG(duration_sec) FROM task_runs
		WHERE type = ? AND success = 1
	`, taskType).Scan(&mean)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query run time: %w", err)
	}
	if mean.Valid {
		return mean.Float64 / 60, true, nil
	}
	return 0, false, nil
}

// Runs returns the executions recorded under runID in the order they were
// recorded.
func (s *SQLiteStore) Runs(ctx context.Context, runID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, name, started_at, duration_sec, success, error FROM task_runs
		WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			seconds float64
			success int
			errStr  sql.NullString
		)
		if err := rows.Scan(&run.Type, &run.Name, &run.Started, &seconds, &success, &errStr); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.RunID = runID
		run.Duration = time.Duration(seconds * float64(time.Second))
		if success == 0 {
			run.Err = errors.New(errStr.String)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

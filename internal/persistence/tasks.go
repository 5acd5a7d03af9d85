package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/pipetask/internal/task"
)

// dataColumns returns the descriptor's columns without state.
func dataColumns(d *task.Descriptor) []task.Column {
	cols := make([]task.Column, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Name != task.StateColumn {
			cols = append(cols, c)
		}
	}
	return cols
}

func quoted(cols []task.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%q", c.Name)
	}
	return strings.Join(parts, ", ")
}

// Insert adds a task in the pending state. Inserting an existing name is a
// no-op, so re-planning never resets progress.
func (s *SQLiteStore) Insert(ctx context.Context, taskType, name string, f task.Fields) error {
	d, err := s.descriptor(taskType)
	if err != nil {
		return err
	}

	cols := dataColumns(d)
	args := make([]any, 0, len(cols)+2)
	args = append(args, name)
	for _, c := range cols {
		args = append(args, f[c.Name])
	}
	args = append(args, StatePending)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ")
	query := fmt.Sprintf(`INSERT INTO %q (name, %s, state) VALUES (%s) ON CONFLICT(name) DO NOTHING`,
		d.Type, quoted(cols), placeholders)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", taskType, name, err)
	}
	return nil
}

// Get returns one stored task.
func (s *SQLiteStore) Get(ctx context.Context, taskType, name string) (*Record, error) {
	d, err := s.descriptor(taskType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT name, %s, state FROM %q WHERE name = ?`, quoted(dataColumns(d)), d.Type)
	rec, err := scanRecord(d, s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, taskType, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return rec, nil
}

// State returns the stored state of a task.
func (s *SQLiteStore) State(ctx context.Context, taskType, name string) (State, error) {
	if _, err := s.descriptor(taskType); err != nil {
		return 0, err
	}

	var st State
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT state FROM %q WHERE name = ?`, taskType), name).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s %s", ErrNotFound, taskType, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query state: %w", err)
	}
	return st, nil
}

// SetState moves a task to a new state. The transition is checked against
// the lifecycle inside a transaction, so concurrent writers cannot skip a
// step.
func (s *SQLiteStore) SetState(ctx context.Context, taskType, name string, to State) error {
	if _, err := s.descriptor(taskType); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var from State
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT state FROM %q WHERE name = ?`, taskType), name).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, taskType, name)
	}
	if err != nil {
		return fmt.Errorf("failed to query state: %w", err)
	}

	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s %s: %s -> %s", ErrTransition, taskType, name, from, to)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %q SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ? AND state = ?`, taskType),
		to, name, from); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns every stored task of a type, ordered by name.
func (s *SQLiteStore) List(ctx context.Context, taskType string) ([]*Record, error) {
	d, err := s.descriptor(taskType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, %s, state FROM %q ORDER BY name`, quoted(dataColumns(d)), d.Type))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	return collect(d, rows)
}

func collect(d *task.Descriptor, rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(d, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return out, nil
}

// ListByState returns the stored tasks of a type in state st, ordered by
// name.
func (s *SQLiteStore) ListByState(ctx context.Context, taskType string, st State) ([]*Record, error) {
	d, err := s.descriptor(taskType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, %s, state FROM %q WHERE state = ? ORDER BY name`, quoted(dataColumns(d)), d.Type), st)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()
	return collect(d, rows)
}

// Counts returns the number of tasks of a type in each state.
func (s *SQLiteStore) Counts(ctx context.Context, taskType string) (map[State]int, error) {
	if _, err := s.descriptor(taskType); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT state, COUNT(*) FROM %q GROUP BY state`, taskType))
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var st State
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(d *task.Descriptor, row rowScanner) (*Record, error) {
	cols := dataColumns(d)
	ints := make([]sql.NullInt64, len(cols))
	strs := make([]sql.NullString, len(cols))

	rec := &Record{Type: d.Type, Fields: make(task.Fields, len(cols))}
	dest := make([]any, 0, len(cols)+2)
	dest = append(dest, &rec.Name)
	for i, c := range cols {
		if c.Type == task.Text {
			dest = append(dest, &strs[i])
		} else {
			dest = append(dest, &ints[i])
		}
	}
	dest = append(dest, &rec.State)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for i, c := range cols {
		switch {
		case c.Type == task.Text && strs[i].Valid:
			rec.Fields[c.Name] = strs[i].String
		case c.Type == task.Integer && ints[i].Valid:
			rec.Fields[c.Name] = ints[i].Int64
		}
	}
	return rec, nil
}

package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/pipetask/internal/task"
)

// initSchema creates the tables shared by all task types.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_sec REAL NOT NULL,
		success INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_type_name ON %[1]s(type, name);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_run_id ON %[1]s(run_id);
	`, task.RunsTable)

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// EnsureSchema creates one table per task type, named after the type, with
// the type's columns plus a "name" primary key. Descriptors must already be
// validated, which guarantees identifier-safe table and column names.
func (s *SQLiteStore) EnsureSchema(ctx context.Context, descs []*task.Descriptor) error {
	for _, d := range descs {
		if _, err := s.db.ExecContext(ctx, createTableSQL(d)); err != nil {
			return fmt.Errorf("failed to create table for %s: %w", d.Type, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS "idx_%s_state" ON %q(state)`, d.Type, d.Type)); err != nil {
			return fmt.Errorf("failed to create state index for %s: %w", d.Type, err)
		}

		s.mu.Lock()
		s.descs[d.Type] = d
		s.mu.Unlock()
	}
	return nil
}

func createTableSQL(d *task.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (\n\t%s TEXT PRIMARY KEY", d.Type, task.NameColumn)
	for _, c := range d.Columns {
		sqlType := "INTEGER"
		if c.Type == task.Text {
			sqlType = "TEXT"
		}
		if c.Name == task.StateColumn {
			fmt.Fprintf(&b, ",\n\t%q %s NOT NULL DEFAULT %d", c.Name, sqlType, StatePending)
			continue
		}
		fmt.Fprintf(&b, ",\n\t%q %s", c.Name, sqlType)
	}
	fmt.Fprintf(&b, ",\n\t%s DATETIME DEFAULT CURRENT_TIMESTAMP\n)", task.UpdatedColumn)
	return b.String()
}

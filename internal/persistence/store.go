// Package persistence stores task state and run history in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/pipetask/internal/task"
)

// ErrNotFound is returned for tasks that have not been inserted.
var ErrNotFound = errors.New("task not found")

// ErrTransition is returned for state changes the lifecycle forbids.
var ErrTransition = errors.New("invalid state transition")

// Record is one stored task.
type Record struct {
	Type   string
	Name   string
	Fields task.Fields
	State  State
}

// Run is one recorded execution of a task.
type Run struct {
	RunID    string // Shared by every execution of one Runner.Run
	Type     string
	Name     string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Store is the persistence interface used by the runner and the CLI.
type Store interface {
	task.History

	// Schema
	EnsureSchema(ctx context.Context, descs []*task.Descriptor) error

	// Task state
	Insert(ctx context.Context, taskType, name string, f task.Fields) error
	Get(ctx context.Context, taskType, name string) (*Record, error)
	State(ctx context.Context, taskType, name string) (State, error)
	SetState(ctx context.Context, taskType, name string, to State) error
	List(ctx context.Context, taskType string) ([]*Record, error)
	ListByState(ctx context.Context, taskType string, st State) ([]*Record, error)
	Counts(ctx context.Context, taskType string) (map[State]int, error)

	// Run history
	RecordRun(ctx context.Context, run Run) error
	Runs(ctx context.Context, runID string) ([]Run, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.RWMutex
	descs map[string]*task.Descriptor
}

// NewSQLiteStore opens (creating if needed) a store at dbPath. Parent
// directories are created. WAL mode and a busy timeout are enabled.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	return open(ctx, connStr)
}

var memSeq atomic.Int64

// NewMemoryStore creates a private in-memory store for testing. Each call
// gets its own database; connections of one store share it.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:pipetask-mem-%d?mode=memory&cache=shared", memSeq.Add(1))
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Two connections: one for an open row cursor, one for nested queries.
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db, descs: make(map[string]*task.Descriptor)}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) descriptor(taskType string) (*task.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descs[taskType]
	if !ok {
		return nil, &task.UnknownTypeError{Type: taskType}
	}
	return d, nil
}

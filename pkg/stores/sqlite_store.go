package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Path == MemoryPath {
		// Every connection to :memory: is a separate database.
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and applies connection PRAGMAs.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
	if s.cfg.Path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginRun records a new run in the running status.
func (s *SQLiteStore) BeginRun(ctx context.Context, runID string, snapshot *engine.GraphSnapshot) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if snapshot == nil {
		return fmt.Errorf("graph snapshot is required")
	}

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO runs (id, project, status, state, snapshot, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		runID,
		snapshot.Project.Name,
		engine.RunStatusRunning,
		engine.StateNotStarted,
		string(blob),
		now,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// RecordTransition appends a state transition and updates the run's current state.
func (s *SQLiteStore) RecordTransition(ctx context.Context, update engine.StatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := update.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transitions (run_id, state, style, message, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		update.RunID,
		update.State,
		update.Style,
		update.Message,
		nullString(update.Error),
		timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE runs SET state = ?, updated_at = ? WHERE id = ?
	`, update.State, time.Now().UTC(), update.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	if err := expectRow(result, "run", update.RunID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

// RecordResource appends a realized resource.
func (s *SQLiteStore) RecordResource(ctx context.Context, record engine.ResourceRecord) error {
	timestamp := record.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (run_id, kind, name, project, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.RunID,
		record.Kind,
		record.Name,
		record.Project,
		record.Outcome,
		timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record resource: %w", err)
	}
	return nil
}

// FinishRun stores the terminal state of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, result *engine.RunResult) error {
	if result == nil {
		return fmt.Errorf("run result is required")
	}

	var errMsg *string
	if result.Err != nil {
		msg := result.Err.Error()
		errMsg = &msg
	}

	completedAt := result.FinishedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, state = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		engine.RunStatusFor(result.State),
		result.State,
		errMsg,
		completedAt.UTC(),
		time.Now().UTC(),
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	return expectRow(res, "run", result.RunID)
}

const runColumns = `id, project, status, state, snapshot, error, started_at, completed_at, created_at, updated_at`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Project != "" {
		where = append(where, "project = ?")
		args = append(args, filter.Project)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ListTransitions lists the transitions of a run in the order they happened.
func (s *SQLiteStore) ListTransitions(ctx context.Context, runID string) ([]*Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, state, style, message, error, timestamp
		FROM transitions
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := []*Transition{}
	for rows.Next() {
		t := &Transition{}
		if err := rows.Scan(&t.ID, &t.RunID, &t.State, &t.Style, &t.Message, &t.Error, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

// ListResources lists the resources realized by a run in the order they were ensured.
func (s *SQLiteStore) ListResources(ctx context.Context, runID string) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, kind, name, project, outcome, timestamp
		FROM resources
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []*Resource{}
	for rows.Next() {
		r := &Resource{}
		if err := rows.Scan(&r.ID, &r.RunID, &r.Kind, &r.Name, &r.Project, &r.Outcome, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}

	return resources, nil
}

// DeleteRun deletes a run and its transitions and resources.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectRow(result, "run", id)
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.Project,
		&run.Status,
		&run.State,
		&run.Snapshot,
		&run.Error,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func expectRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrPassNotFound is returned by GetPass for an unknown pass ID.
var ErrPassNotFound = errors.New("pass not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	cfg  Config
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg:  cfg,
		path: cfg.Path,
	}, nil
}

// Open creates, initializes and migrates a store at path in one step.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", s.path)
	if s.path != MemoryPath {
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

// Close closes the database connection
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

// RecordPass stores a pass and its constraint totals in one transaction.
func (s *SQLiteStore) RecordPass(ctx context.Context, pass *Pass) error {
	if pass.ID == "" {
		return fmt.Errorf("pass ID is required")
	}
	if pass.ScoredAt.IsZero() {
		pass.ScoredAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes (id, problem, hard, soft, feasible, fact_count, failures, source, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pass.ID,
		pass.Problem,
		pass.Hard,
		pass.Soft,
		pass.Feasible,
		pass.FactCount,
		pass.Failures,
		pass.Source,
		pass.ScoredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}

	for _, t := range pass.Totals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO constraint_totals (pass_id, constraint_name, level, count, magnitude, hard, soft)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, pass.ID, t.Constraint, t.Level, t.Count, t.Magnitude, t.Hard, t.Soft)
		if err != nil {
			return fmt.Errorf("failed to record total of %s: %w", t.Constraint, err)
		}
		t.PassID = pass.ID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pass: %w", err)
	}
	return nil
}

// GetPass retrieves a pass with its constraint totals.
func (s *SQLiteStore) GetPass(ctx context.Context, id string) (*Pass, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, problem, hard, soft, feasible, fact_count, failures, source, scored_at
		FROM passes
		WHERE id = ?
	`, id)

	pass, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPassNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pass: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pass_id, constraint_name, level, count, magnitude, hard, soft
		FROM constraint_totals
		WHERE pass_id = ?
		ORDER BY constraint_name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraint totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &ConstraintTotal{}
		if err := rows.Scan(&t.PassID, &t.Constraint, &t.Level, &t.Count, &t.Magnitude, &t.Hard, &t.Soft); err != nil {
			return nil, fmt.Errorf("failed to scan constraint total: %w", err)
		}
		pass.Totals = append(pass.Totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraint totals: %w", err)
	}

	return pass, nil
}

// ListPasses lists passes newest first.
func (s *SQLiteStore) ListPasses(ctx context.Context, filter PassFilter, limit, offset int) ([]*Pass, error) {
	var (
		where []string
		args  []any
	)
	if filter.Problem != "" {
		where = append(where, "problem = ?")
		args = append(args, filter.Problem)
	}
	if filter.FeasibleOnly {
		where = append(where, "feasible = 1")
	}
	if !filter.Since.IsZero() {
		where = append(where, "scored_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}

	query := `
		SELECT id, problem, hard, soft, feasible, fact_count, failures, source, scored_at
		FROM passes`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += `
		ORDER BY scored_at DESC, id
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	defer rows.Close()

	passes := []*Pass{}
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		passes = append(passes, pass)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passes: %w", err)
	}

	return passes, nil
}

// DeletePassesBefore removes passes scored before the given time and
// returns how many were removed.
func (s *SQLiteStore) DeletePassesBefore(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := before.UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM constraint_totals
		WHERE pass_id IN (SELECT id FROM passes WHERE scored_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete constraint totals: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM passes WHERE scored_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete passes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit deletion: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (*Pass, error) {
	pass := &Pass{}
	var scoredAt int64
	err := row.Scan(
		&pass.ID,
		&pass.Problem,
		&pass.Hard,
		&pass.Soft,
		&pass.Feasible,
		&pass.FactCount,
		&pass.Failures,
		&pass.Source,
		&scoredAt,
	)
	if err != nil {
		return nil, err
	}
	pass.ScoredAt = time.UnixMilli(scoredAt).UTC()
	return pass, nil
}

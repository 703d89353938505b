package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.HistoryRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateExecution stores an execution record.
func (r *Repository) CreateExecution(ctx context.Context, e model.ExecutionRecord) error {
	if e.ID == "" {
		return fmt.Errorf("execution id is required: %w", model.ErrNotValid)
	}

	var exitCode *int64
	if e.ExitCode != nil {
		c := int64(*e.ExitCode)
		exitCode = &c
	}
	var finishedAt *int64
	if e.FinishedAt != nil {
		u := e.FinishedAt.UnixMilli()
		finishedAt = &u
	}

	query := `
		INSERT INTO executions (
			id, request_id, command, cwd,
			status, exit_code, error,
			stdout_bytes, stderr_bytes, truncated,
			requested_at, decided_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		e.ID,
		e.RequestID,
		e.Command,
		e.Cwd,
		string(e.Status),
		exitCode,
		e.Error,
		e.StdoutBytes,
		e.StderrBytes,
		e.Truncated,
		e.RequestedAt.UnixMilli(),
		e.DecidedAt.UnixMilli(),
		finishedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: executions.") {
			return fmt.Errorf("execution already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert execution: %w", err)
	}

	r.logger.Debugf("Created execution in repository: %s", e.ID)
	return nil
}

// ListExecutions returns the execution records, newest first.
func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]model.ExecutionRecord, error) {
	query := `
		SELECT
			id, request_id, command, cwd,
			status, exit_code, error,
			stdout_bytes, stderr_bytes, truncated,
			requested_at, decided_at, finished_at
		FROM executions
		ORDER BY decided_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query executions: %w", err)
	}
	defer rows.Close()

	var records []model.ExecutionRecord
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(s scanner) (model.ExecutionRecord, error) {
	var rec model.ExecutionRecord
	var status string
	var exitCode, finishedAt sql.NullInt64
	var requestedAt, decidedAt int64

	err := s.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.Command,
		&rec.Cwd,
		&status,
		&exitCode,
		&rec.Error,
		&rec.StdoutBytes,
		&rec.StderrBytes,
		&rec.Truncated,
		&requestedAt,
		&decidedAt,
		&finishedAt,
	)
	if err != nil {
		return model.ExecutionRecord{}, err
	}

	rec.Status = model.ExecutionStatus(status)
	rec.RequestedAt = time.UnixMilli(requestedAt).UTC()
	rec.DecidedAt = time.UnixMilli(decidedAt).UTC()
	if exitCode.Valid {
		c := int(exitCode.Int64)
		rec.ExitCode = &c
	}
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		rec.FinishedAt = &t
	}

	return rec, nil
}

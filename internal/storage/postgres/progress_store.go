// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/concept-modules/internal/store"
)

// Schema creates the ledger tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS lesson_sessions (
	session_id      UUID PRIMARY KEY,
	module_id       TEXT NOT NULL,
	learner_id      TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ,
	ended_at        TIMESTAMPTZ,
	status          TEXT NOT NULL,
	units_total     INTEGER NOT NULL,
	units_completed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS lesson_sessions_module_idx ON lesson_sessions (module_id, started_at DESC);
CREATE TABLE IF NOT EXISTS unit_completions (
	session_id   UUID NOT NULL REFERENCES lesson_sessions (session_id) ON DELETE CASCADE,
	module_id    TEXT NOT NULL,
	unit_id      TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, unit_id)
);
`

// ProgressStoreConfig controls the Postgres connection pool used by the ledger.
type ProgressStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// Migrate applies Schema after connecting.
	Migrate bool
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ProgressStore implements store.ProgressRepository using Postgres.
type ProgressStore struct {
	pool pool
}

var _ store.ProgressRepository = (*ProgressStore)(nil)

// NewProgressStore connects to Postgres and optionally applies the schema.
func NewProgressStore(ctx context.Context, cfg ProgressStoreConfig) (*ProgressStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &ProgressStore{pool: p}
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewProgressStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProgressStoreWithPool(p pool) (*ProgressStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProgressStore{pool: p}, nil
}

// Migrate applies Schema.
func (s *ProgressStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *ProgressStore) Close() {
	s.pool.Close()
}

// UpsertSessionStart inserts a session row; repeated starts keep the original row.
func (s *ProgressStore) UpsertSessionStart(
	ctx context.Context,
	sessionID uuid.UUID,
	moduleID string,
	learnerID string,
	unitsTotal int,
	startedAt time.Time,
) error {
	query := `
		INSERT INTO lesson_sessions (session_id, module_id, learner_id, started_at, status, units_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, query,
		sessionID, moduleID, learnerID, startedAt, string(store.SessionActive), unitsTotal)
	if err != nil {
		return fmt.Errorf("failed to upsert session start: %w", err)
	}
	return nil
}

// RecordUnitCompletion stores the first completion of a unit and bumps the session counter.
func (s *ProgressStore) RecordUnitCompletion(
	ctx context.Context,
	sessionID uuid.UUID,
	moduleID string,
	unitID string,
	at time.Time,
) error {
	query := `
		INSERT INTO unit_completions (session_id, module_id, unit_id, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, unit_id) DO NOTHING;
	`
	res, err := s.pool.Exec(ctx, query, sessionID, moduleID, unitID, at)
	if err != nil {
		return fmt.Errorf("failed to record unit completion: %w", err)
	}
	if res.RowsAffected() == 0 {
		return nil
	}
	query = `
		UPDATE lesson_sessions
		SET units_completed = units_completed + 1
		WHERE session_id = $1;
	`
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to bump units completed: %w", err)
	}
	return nil
}

// CompleteSession marks the session completed.
func (s *ProgressStore) CompleteSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	query := `
		UPDATE lesson_sessions
		SET completed_at = $1, status = $2
		WHERE session_id = $3 AND completed_at IS NULL;
	`
	_, err := s.pool.Exec(ctx, query, at, string(store.SessionCompleted), sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

// EndSession stamps ended_at; completed sessions keep their status.
func (s *ProgressStore) EndSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	query := `
		UPDATE lesson_sessions
		SET ended_at = $1,
			status = CASE WHEN status = $2 THEN status ELSE $3 END
		WHERE session_id = $4 AND ended_at IS NULL;
	`
	_, err := s.pool.Exec(ctx, query,
		at, string(store.SessionCompleted), string(store.SessionEnded), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

const sessionColumns = `session_id, module_id, learner_id, started_at, completed_at, ended_at, status, units_total, units_completed`

// GetSession retrieves a single session by its ID.
func (s *ProgressStore) GetSession(ctx context.Context, sessionID uuid.UUID) (store.SessionRun, error) {
	query := `SELECT ` + sessionColumns + `
		FROM lesson_sessions
		WHERE session_id = $1;
	`
	run, err := scanSession(s.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SessionRun{}, store.ErrNotFound
		}
		return store.SessionRun{}, fmt.Errorf("failed to get session: %w", err)
	}
	return run, nil
}

// ListSessions retrieves sessions, newest first, with optional module filtering.
func (s *ProgressStore) ListSessions(
	ctx context.Context,
	moduleID *string,
	limit,
	offset int,
) ([]store.SessionRun, error) {
	query := `SELECT ` + sessionColumns + `
		FROM lesson_sessions
		WHERE ($1::text IS NULL OR module_id = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, moduleID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var runs []store.SessionRun
	for rows.Next() {
		run, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return runs, nil
}

// ListUnitCompletions retrieves completions for a session in completion order.
func (s *ProgressStore) ListUnitCompletions(
	ctx context.Context,
	sessionID uuid.UUID,
	limit,
	offset int,
) ([]store.UnitCompletion, error) {
	query := `
		SELECT session_id, module_id, unit_id, completed_at
		FROM unit_completions
		WHERE session_id = $1
		ORDER BY completed_at ASC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit completions: %w", err)
	}
	defer rows.Close()

	var out []store.UnitCompletion
	for rows.Next() {
		var c store.UnitCompletion
		if err := rows.Scan(&c.SessionID, &c.ModuleID, &c.UnitID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit completion row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unit completion rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (store.SessionRun, error) {
	var (
		run    store.SessionRun
		status string
	)
	err := row.Scan(
		&run.SessionID,
		&run.ModuleID,
		&run.LearnerID,
		&run.StartedAt,
		&run.CompletedAt,
		&run.EndedAt,
		&status,
		&run.UnitsTotal,
		&run.UnitsCompleted,
	)
	if err != nil {
		return store.SessionRun{}, err
	}
	run.Status = store.SessionStatus(status)
	return run, nil
}

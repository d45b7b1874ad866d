// Package store declares interfaces for recording lesson progress.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("progress record not found")

// SessionStatus mirrors the lesson_sessions status column.
type SessionStatus string

// Session statuses persisted in lesson_sessions.status.
const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionEnded     SessionStatus = "ended"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionEnded:
		return true
	default:
		return false
	}
}

// SessionRun models one lesson session in the ledger. The ledger is write-side
// only: nothing restores a controller from it.
type SessionRun struct {
	// SessionID is the controller instance identifier.
	SessionID uuid.UUID
	// ModuleID names the module walked through.
	ModuleID string
	// LearnerID is empty for anonymous sessions.
	LearnerID string
	// StartedAt captures when the session was opened.
	StartedAt time.Time
	// CompletedAt is nil until every unit was completed.
	CompletedAt *time.Time
	// EndedAt is nil until the session was discarded.
	EndedAt *time.Time
	// Status is active/completed/ended.
	Status SessionStatus
	// UnitsTotal is the size of the module's registry.
	UnitsTotal int
	// UnitsCompleted counts distinct completed units.
	UnitsCompleted int
}

// UnitCompletion records the first time a unit was completed in a session.
type UnitCompletion struct {
	SessionID   uuid.UUID
	ModuleID    string
	UnitID      string
	CompletedAt time.Time
}

// ProgressRepository persists the lesson completion ledger.
type ProgressRepository interface {
	// UpsertSessionStart inserts (or idempotently keeps) a session row.
	UpsertSessionStart(
		ctx context.Context,
		sessionID uuid.UUID,
		moduleID string,
		learnerID string,
		unitsTotal int,
		startedAt time.Time,
	) error
	// RecordUnitCompletion stores a unit completion; repeats are ignored.
	RecordUnitCompletion(ctx context.Context, sessionID uuid.UUID, moduleID, unitID string, at time.Time) error
	// CompleteSession marks the session completed.
	CompleteSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error
	// EndSession stamps ended_at; a completed session keeps its status.
	EndSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error

	// GetSession loads a single session or returns ErrNotFound.
	GetSession(ctx context.Context, sessionID uuid.UUID) (SessionRun, error)
	// ListSessions returns sessions filtered by optional module plus limit/offset.
	ListSessions(ctx context.Context, moduleID *string, limit, offset int) ([]SessionRun, error)
	// ListUnitCompletions returns completions for one session in completion order.
	ListUnitCompletions(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]UnitCompletion, error)
}

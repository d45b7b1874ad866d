package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart    Stage = "SESSION_START"
	StageUnitActivated   Stage = "UNIT_ACTIVATED"
	StageUnitCompleted   Stage = "UNIT_COMPLETED"
	StageModuleCompleted Stage = "MODULE_COMPLETED"
	StageNavigateNext    Stage = "NAVIGATE_NEXT"
	StageSessionEnd      Stage = "SESSION_END"
)

// Event captures a single milestone of a lesson session.
type Event struct {
	// SessionID identifies the controller instance using the 16-byte UUID form.
	SessionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// ModuleID names the module the session is walking through.
	ModuleID string
	// LearnerID optionally names who is driving the session.
	LearnerID string
	// UnitID scopes unit-level stages.
	UnitID string
	// NextModuleID is the navigation target for StageNavigateNext.
	NextModuleID string
	// Completed is the number of completed units after the transition.
	Completed int
	// Total is the number of units in the module.
	Total int
	// Dur is the time since the session started.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.ModuleID == "" {
		return errors.New("module id is required")
	}
	switch e.Stage {
	case StageSessionStart, StageModuleCompleted, StageSessionEnd:
	case StageUnitActivated, StageUnitCompleted:
		if e.UnitID == "" {
			return fmt.Errorf("%s requires unit id", e.Stage)
		}
	case StageNavigateNext:
		if e.NextModuleID == "" {
			return errors.New("navigate requires next module id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Completed < 0 || e.Total < 0 || e.Completed > e.Total {
		return fmt.Errorf("completed %d out of range for total %d", e.Completed, e.Total)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Percent returns Completed as a percentage of Total (0 when Total is 0).
func (e Event) Percent() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Completed) / float64(e.Total) * 100
}

// SessionUUID converts the binary session ID to uuid.UUID for repositories.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

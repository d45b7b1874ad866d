package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/concept-modules/internal/store"
)

// ProgressStore keeps the completion ledger in-memory.
type ProgressStore struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*store.SessionRun
	completions map[uuid.UUID][]store.UnitCompletion
}

var _ store.ProgressRepository = (*ProgressStore)(nil)

// NewProgressStore creates an empty in-memory ledger.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		sessions:    make(map[uuid.UUID]*store.SessionRun),
		completions: make(map[uuid.UUID][]store.UnitCompletion),
	}
}

// UpsertSessionStart inserts a session row unless it already exists.
func (s *ProgressStore) UpsertSessionStart(
	_ context.Context,
	sessionID uuid.UUID,
	moduleID string,
	learnerID string,
	unitsTotal int,
	startedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return nil
	}
	s.sessions[sessionID] = &store.SessionRun{
		SessionID:  sessionID,
		ModuleID:   moduleID,
		LearnerID:  learnerID,
		StartedAt:  startedAt,
		Status:     store.SessionActive,
		UnitsTotal: unitsTotal,
	}
	return nil
}

// RecordUnitCompletion stores the first completion of a unit.
func (s *ProgressStore) RecordUnitCompletion(
	_ context.Context,
	sessionID uuid.UUID,
	moduleID string,
	unitID string,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.completions[sessionID] {
		if c.UnitID == unitID {
			return nil
		}
	}
	s.completions[sessionID] = append(s.completions[sessionID], store.UnitCompletion{
		SessionID:   sessionID,
		ModuleID:    moduleID,
		UnitID:      unitID,
		CompletedAt: at,
	})
	if run, ok := s.sessions[sessionID]; ok {
		run.UnitsCompleted++
	}
	return nil
}

// CompleteSession marks the session completed once.
func (s *ProgressStore) CompleteSession(_ context.Context, sessionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.sessions[sessionID]
	if !ok || run.CompletedAt != nil {
		return nil
	}
	ts := at
	run.CompletedAt = &ts
	run.Status = store.SessionCompleted
	return nil
}

// EndSession stamps ended_at; completed sessions keep their status.
func (s *ProgressStore) EndSession(_ context.Context, sessionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.sessions[sessionID]
	if !ok || run.EndedAt != nil {
		return nil
	}
	ts := at
	run.EndedAt = &ts
	if run.Status != store.SessionCompleted {
		run.Status = store.SessionEnded
	}
	return nil
}

// GetSession returns a copy of the session or store.ErrNotFound.
func (s *ProgressStore) GetSession(_ context.Context, sessionID uuid.UUID) (store.SessionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.sessions[sessionID]
	if !ok {
		return store.SessionRun{}, store.ErrNotFound
	}
	return copyRun(run), nil
}

// ListSessions returns sessions newest first.
func (s *ProgressStore) ListSessions(
	_ context.Context,
	moduleID *string,
	limit,
	offset int,
) ([]store.SessionRun, error) {
	s.mu.RLock()
	runs := make([]store.SessionRun, 0, len(s.sessions))
	for _, run := range s.sessions {
		if moduleID != nil && run.ModuleID != *moduleID {
			continue
		}
		runs = append(runs, copyRun(run))
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].SessionID.String() > runs[j].SessionID.String()
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return page(runs, limit, offset), nil
}

// ListUnitCompletions returns completions in the order they were recorded.
func (s *ProgressStore) ListUnitCompletions(
	_ context.Context,
	sessionID uuid.UUID,
	limit,
	offset int,
) ([]store.UnitCompletion, error) {
	s.mu.RLock()
	out := append([]store.UnitCompletion(nil), s.completions[sessionID]...)
	s.mu.RUnlock()
	return page(out, limit, offset), nil
}

func copyRun(run *store.SessionRun) store.SessionRun {
	out := *run
	if run.CompletedAt != nil {
		ts := *run.CompletedAt
		out.CompletedAt = &ts
	}
	if run.EndedAt != nil {
		ts := *run.EndedAt
		out.EndedAt = &ts
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

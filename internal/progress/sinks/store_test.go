package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/concept-modules/internal/progress"
	"github.com/JakeFAU/concept-modules/internal/storage/memory"
	"github.com/JakeFAU/concept-modules/internal/store"
)

// TestStoreSinkPersistsEvents writes a full session into the ledger.
func TestStoreSinkPersistsEvents(t *testing.T) {
	t.Parallel()

	repo := memory.NewProgressStore()
	sink := NewStoreSink(repo, nil)
	sessionUUID := uuid.New()
	id := progress.UUIDToBytes(sessionUUID)
	now := time.Unix(1700000000, 0).UTC()

	batch := []progress.Event{
		{SessionID: id, Stage: progress.StageSessionStart, ModuleID: "m", LearnerID: "ada", Total: 2, TS: now},
		{SessionID: id, Stage: progress.StageUnitActivated, ModuleID: "m", UnitID: "b", Total: 2, TS: now},
		{SessionID: id, Stage: progress.StageUnitCompleted, ModuleID: "m", UnitID: "a", Completed: 1, Total: 2, TS: now.Add(time.Second)},
		{SessionID: id, Stage: progress.StageUnitCompleted, ModuleID: "m", UnitID: "b", Completed: 2, Total: 2, TS: now.Add(2 * time.Second)},
		{SessionID: id, Stage: progress.StageModuleCompleted, ModuleID: "m", Completed: 2, Total: 2, TS: now.Add(2 * time.Second)},
		{SessionID: id, Stage: progress.StageSessionEnd, ModuleID: "m", Completed: 2, Total: 2, TS: now.Add(time.Minute)},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, err := repo.GetSession(context.Background(), sessionUUID)
	require.NoError(t, err)
	require.Equal(t, "ada", run.LearnerID)
	require.Equal(t, store.SessionCompleted, run.Status)
	require.Equal(t, 2, run.UnitsCompleted)
	require.NotNil(t, run.EndedAt)

	units, err := repo.ListUnitCompletions(context.Background(), sessionUUID, 0, 0)
	require.NoError(t, err)
	require.Len(t, units, 2)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(failingRepo{}, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{SessionID: progress.UUIDToBytes(uuid.New()), Stage: progress.StageSessionStart, ModuleID: "m", TS: time.Now()},
	})
	require.ErrorIs(t, err, errRepo)
}

// TestStoreSinkNilRepository is a no-op.
func TestStoreSinkNilRepository(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewStoreSink(nil, nil).Consume(context.Background(), []progress.Event{{}}))
}

var errRepo = assertErr("repo down")

type failingRepo struct {
	store.ProgressRepository
}

func (failingRepo) UpsertSessionStart(context.Context, uuid.UUID, string, string, int, time.Time) error {
	return errRepo
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

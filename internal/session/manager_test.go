package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
	"github.com/JakeFAU/concept-modules/internal/lesson"
	"github.com/JakeFAU/concept-modules/internal/nodes/memory"
	"github.com/JakeFAU/concept-modules/internal/progress"
)

const testCatalog = `
modules:
  - id: concurrency
    title: Concurrency
    next: memory
    units:
      - {id: goroutines, title: Goroutines, category: fundamentals}
      - {id: channels, title: Channels, category: architecture}
      - {id: select, title: Select, category: implementation}
  - id: memory
    title: Memory
    units:
      - {id: stack, title: Stack, category: fundamentals}
      - {id: heap, title: Heap, category: advanced}
  - id: glossary
    title: Glossary
    content: terms
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type randomIDs struct{}

func (randomIDs) NewRawID() (uuid.UUID, error) { return uuid.New(), nil }

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

func (r *recorder) last() progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	mgr     *Manager
	clock   *fakeClock
	events  *recorder
	tracker *memory.Tracker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat, err := curriculum.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	f := fixture{
		clock:   &fakeClock{now: time.Unix(1700000000, 0).UTC()},
		events:  &recorder{},
		tracker: memory.New(),
	}
	f.mgr, err = NewManager(cat, Config{
		Clock:   f.clock,
		IDs:     randomIDs{},
		Emitter: f.events,
		Tracker: f.tracker,
		IdleTTL: 10 * time.Minute,
	})
	require.NoError(t, err)
	return f
}

// TestNewManagerValidatesConfig requires a catalog, clock, and ids.
func TestNewManagerValidatesConfig(t *testing.T) {
	t.Parallel()

	cat, err := curriculum.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	_, err = NewManager(nil, Config{Clock: &fakeClock{}, IDs: randomIDs{}})
	require.Error(t, err)
	_, err = NewManager(cat, Config{IDs: randomIDs{}})
	require.Error(t, err)
	_, err = NewManager(cat, Config{Clock: &fakeClock{}})
	require.Error(t, err)
}

// TestOpenUnknownModule surfaces curriculum.ErrUnknownModule.
func TestOpenUnknownModule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.mgr.Open("nope", "")
	require.ErrorIs(t, err, curriculum.ErrUnknownModule)
	require.Zero(t, f.mgr.Len())
}

// TestWalkModuleEmitsEventsAndMarksNode drives a module to completion.
func TestWalkModuleEmitsEventsAndMarksNode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("concurrency", "ada")
	require.NoError(t, err)
	require.Equal(t, 0, snap.View.ActiveIndex)
	require.Equal(t, "goroutines", snap.View.ActiveUnitID)
	require.Equal(t, lesson.ModeTabbed, snap.View.Mode)

	id := snap.SessionID
	_, err = f.mgr.Advance(id)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.mgr.Advance(id)
	require.NoError(t, err)
	snap, err = f.mgr.Complete(id, "")
	require.NoError(t, err)

	require.True(t, snap.View.ModuleComplete)
	require.InDelta(t, 100.0, snap.View.ProgressPercent, 1e-9)
	require.Equal(t, []progress.Stage{
		progress.StageSessionStart,
		progress.StageUnitCompleted, progress.StageUnitActivated,
		progress.StageUnitCompleted, progress.StageUnitActivated,
		progress.StageUnitCompleted, progress.StageModuleCompleted,
	}, f.events.stages())

	done := f.events.last()
	require.Equal(t, 3, done.Completed)
	require.Equal(t, 3, done.Total)
	require.Equal(t, time.Minute, done.Dur)
	require.Equal(t, "ada", done.LearnerID)

	// Completing again fires nothing further.
	_, err = f.mgr.Complete(id, "goroutines")
	require.NoError(t, err)
	require.Len(t, f.events.stages(), 7)

	f.mgr.Close()
	got, err := f.tracker.Completed(context.Background(), "ada")
	require.NoError(t, err)
	require.Equal(t, []string{"concurrency"}, got)
}

// TestInvalidInputKeepsView tolerates unknown ids and boundary overruns.
func TestInvalidInputKeepsView(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("concurrency", "")
	require.NoError(t, err)
	id := snap.SessionID

	after, err := f.mgr.Select(id, "nope")
	require.NoError(t, err)
	require.Equal(t, snap.View, after.View)

	after, err = f.mgr.Retreat(id)
	require.NoError(t, err)
	require.Equal(t, snap.View, after.View)

	after, err = f.mgr.Complete(id, "nope")
	require.NoError(t, err)
	require.Equal(t, snap.View, after.View)
}

// TestNextBeforeLastUnitDoesNothing gates navigation on the final unit.
func TestNextBeforeLastUnitDoesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("concurrency", "")
	require.NoError(t, err)

	res, err := f.mgr.Next(snap.SessionID)
	require.NoError(t, err)
	require.Nil(t, res.NextSessionID)
	require.Empty(t, res.NextModuleID)
	require.Zero(t, res.View.CompletedCount)
	require.Equal(t, 1, f.mgr.Len())
}

// TestNextOpensSessionForNextModule completes the last unit and navigates.
func TestNextOpensSessionForNextModule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("concurrency", "ada")
	require.NoError(t, err)
	id := snap.SessionID

	_, err = f.mgr.Select(id, "select")
	require.NoError(t, err)
	res, err := f.mgr.Next(id)
	require.NoError(t, err)
	require.NotNil(t, res.NextSessionID)
	require.Equal(t, "memory", res.NextModuleID)
	require.Equal(t, 1, res.View.CompletedCount)
	require.False(t, res.View.ModuleComplete)
	require.Equal(t, 2, f.mgr.Len())

	next, err := f.mgr.Get(*res.NextSessionID)
	require.NoError(t, err)
	require.Equal(t, "memory", next.ModuleID)
	require.Equal(t, "ada", next.LearnerID)
	require.Equal(t, "stack", next.View.ActiveUnitID)

	stages := f.events.stages()
	require.Contains(t, stages, progress.StageNavigateNext)
	require.Equal(t, progress.StageSessionStart, stages[len(stages)-1])
}

// TestNextWithoutSuccessorCompletesOnly finishes the last module without navigating.
func TestNextWithoutSuccessorCompletesOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("memory", "")
	require.NoError(t, err)
	id := snap.SessionID
	_, err = f.mgr.Advance(id)
	require.NoError(t, err)

	res, err := f.mgr.Next(id)
	require.NoError(t, err)
	require.Nil(t, res.NextSessionID)
	require.True(t, res.View.ModuleComplete)
	require.NotContains(t, f.events.stages(), progress.StageNavigateNext)
}

// TestSingleContentModule renders the degenerate single view.
func TestSingleContentModule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("glossary", "")
	require.NoError(t, err)
	require.Equal(t, lesson.ModeSingle, snap.View.Mode)
	require.True(t, snap.View.ModuleComplete)
	require.False(t, snap.View.CanAdvance)
	require.False(t, snap.View.CanRequestNextModule)

	res, err := f.mgr.Next(snap.SessionID)
	require.NoError(t, err)
	require.Nil(t, res.NextSessionID)
}

// TestEndRemovesSession discards state and emits SESSION_END.
func TestEndRemovesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("concurrency", "")
	require.NoError(t, err)

	require.NoError(t, f.mgr.End(snap.SessionID))
	require.Equal(t, progress.StageSessionEnd, f.events.last().Stage)
	_, err = f.mgr.Get(snap.SessionID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.mgr.End(snap.SessionID), ErrNotFound)
	_, err = f.mgr.Next(snap.SessionID)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestSweepEndsIdleSessions removes only sessions past the idle TTL.
func TestSweepEndsIdleSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	stale, err := f.mgr.Open("concurrency", "")
	require.NoError(t, err)
	f.clock.Advance(8 * time.Minute)
	fresh, err := f.mgr.Open("memory", "")
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	require.Equal(t, 1, f.mgr.Sweep())
	_, err = f.mgr.Get(stale.SessionID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.mgr.Get(fresh.SessionID)
	require.NoError(t, err)

	// Get touched fresh, so it survives another partial interval.
	f.clock.Advance(9 * time.Minute)
	require.Zero(t, f.mgr.Sweep())
}

// TestRunStopsOnCancel returns once the context is done.
func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.mgr.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// TestConcurrentOperationsSerialise keeps a consistent view under parallel callers.
func TestConcurrentOperationsSerialise(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snap, err := f.mgr.Open("concurrency", "")
	require.NoError(t, err)
	id := snap.SessionID

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.mgr.Advance(id)
			_, _ = f.mgr.Get(id)
		}()
	}
	wg.Wait()

	final, err := f.mgr.Get(id)
	require.NoError(t, err)
	require.Equal(t, 2, final.View.ActiveIndex)
	require.Equal(t, 2, final.View.CompletedCount)
	require.False(t, final.View.ModuleComplete)
}

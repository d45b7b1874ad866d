package lesson

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
)

type hookRecorder struct {
	moduleComplete int
	navigations    []string
	activated      []string
	completed      []string
}

func (r *hookRecorder) hooks() Hooks {
	return Hooks{
		OnModuleComplete:       func() { r.moduleComplete++ },
		OnNavigateToNextModule: func(id string) { r.navigations = append(r.navigations, id) },
		OnUnitActivated:        func(id string) { r.activated = append(r.activated, id) },
		OnUnitCompleted:        func(id string) { r.completed = append(r.completed, id) },
	}
}

func fourUnits() *curriculum.Registry {
	return curriculum.MustRegistry(
		curriculum.Unit{ID: "unit0", Title: "Intro", Category: curriculum.CategoryFundamentals},
		curriculum.Unit{ID: "unit1", Title: "Planner", Category: curriculum.CategoryArchitecture},
		curriculum.Unit{ID: "unit2", Title: "Tools", Category: curriculum.CategoryImplementation},
		curriculum.Unit{ID: "unit3", Title: "Reflection", Category: curriculum.CategoryAdvanced},
	)
}

// TestFreshController covers the initial state of a four unit module.
func TestFreshController(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	require.Equal(t, 0, c.ActiveIndex())
	require.Zero(t, c.CompletedCount())
	require.Zero(t, c.ProgressPercent())
	require.False(t, c.IsModuleComplete())
}

// TestAdvanceThreeTimes marks each passed unit complete.
func TestAdvanceThreeTimes(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	c.Advance()
	c.Advance()
	c.Advance()

	require.Equal(t, 3, c.ActiveIndex())
	require.Equal(t, []string{"unit0", "unit1", "unit2"}, c.State().CompletedIDs())
	require.InDelta(t, 75.0, c.ProgressPercent(), 1e-9)
	require.Equal(t, []string{"unit1", "unit2", "unit3"}, rec.activated)
	require.Zero(t, rec.moduleComplete)
}

// TestMarkCompleteDefaultsToActiveAndFiresOnce covers the completion edge and its idempotence.
func TestMarkCompleteDefaultsToActiveAndFiresOnce(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	for range 3 {
		c.Advance()
	}

	c.MarkComplete("")
	require.True(t, c.IsModuleComplete())
	require.Equal(t, 4, c.CompletedCount())
	require.InDelta(t, 100.0, c.ProgressPercent(), 1e-9)
	require.Equal(t, 1, rec.moduleComplete)

	before := c.State()
	c.MarkComplete("")
	c.MarkComplete("unit0")
	require.Equal(t, before.CompletedIDs(), c.State().CompletedIDs())
	require.Equal(t, 1, rec.moduleComplete)
	require.Len(t, rec.completed, 4)
}

// TestRequestNextModuleAtTerminal fires navigation exactly once per request.
func TestRequestNextModuleAtTerminal(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	for range 3 {
		c.Advance()
	}
	c.MarkComplete("")

	c.RequestNextModule("next-id")
	require.Equal(t, []string{"next-id"}, rec.navigations)
	require.Equal(t, 1, rec.moduleComplete)
}

// TestRequestNextModuleCompletesFinalUnit applies the completion edge when the last unit was not marked.
func TestRequestNextModuleCompletesFinalUnit(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	for range 3 {
		c.Advance()
	}

	c.RequestNextModule("memory")
	require.True(t, c.IsCompleted("unit3"))
	require.True(t, c.IsModuleComplete())
	require.Equal(t, 1, rec.moduleComplete)
	require.Equal(t, []string{"memory"}, rec.navigations)
}

// TestRequestNextModuleGatedBeforeTerminal is a no-op away from the last unit.
func TestRequestNextModuleGatedBeforeTerminal(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	c.Advance()

	c.RequestNextModule("next-id")
	require.Empty(t, rec.navigations)
	require.Equal(t, 1, c.ActiveIndex())
	require.Equal(t, 1, c.CompletedCount())
}

// TestRequestNextModuleWithoutTarget completes the last unit but skips navigation.
func TestRequestNextModuleWithoutTarget(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	c.SelectUnit("unit3")

	c.RequestNextModule("")
	require.True(t, c.IsCompleted("unit3"))
	require.Empty(t, rec.navigations)
}

// TestSelectUnknownUnitIsNoOp leaves state unchanged and does not panic.
func TestSelectUnknownUnitIsNoOp(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	before := c.State()

	require.NotPanics(t, func() { c.SelectUnit("nonexistent") })
	require.Equal(t, before, c.State())
	require.Empty(t, rec.activated)
}

// TestSelectUnitJumpsWithoutCompleting checks selection never marks units.
func TestSelectUnitJumpsWithoutCompleting(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	c.SelectUnit("unit2")
	require.Equal(t, 2, c.ActiveIndex())
	require.Zero(t, c.CompletedCount())

	c.SelectUnit("unit0")
	require.Equal(t, 0, c.ActiveIndex())
}

// TestMarkCompleteUnknownUnitIsNoOp keeps foreign ids out of the completed set.
func TestMarkCompleteUnknownUnitIsNoOp(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	c.MarkComplete("unit9")
	require.Zero(t, c.CompletedCount())
}

// TestMarkCompleteOutOfOrder allows completing any unit by id.
func TestMarkCompleteOutOfOrder(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}
	c := New(fourUnits(), rec.hooks())
	c.MarkComplete("unit3")
	c.MarkComplete("unit1")
	c.MarkComplete("unit0")
	require.Zero(t, rec.moduleComplete)
	c.MarkComplete("unit2")
	require.Equal(t, 1, rec.moduleComplete)
	require.Equal(t, 0, c.ActiveIndex())
}

// TestBoundarySafety covers retreat at the first unit and advance at the last.
func TestBoundarySafety(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	before := c.State()
	c.Retreat()
	require.Equal(t, before, c.State())

	c.SelectUnit("unit3")
	before = c.State()
	c.Advance()
	require.Equal(t, before, c.State())
	require.False(t, c.IsCompleted("unit3"))
}

// TestRetreatKeepsCompletion revisits a completed unit without un-completing it.
func TestRetreatKeepsCompletion(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	c.Advance()
	c.Retreat()
	require.Equal(t, 0, c.ActiveIndex())
	require.True(t, c.IsCompleted("unit0"))
}

// TestEmptyAndNilRegistries keeps every operation a no-op without units.
func TestEmptyAndNilRegistries(t *testing.T) {
	t.Parallel()

	for name, reg := range map[string]*curriculum.Registry{
		"nil":   nil,
		"empty": curriculum.MustRegistry(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := &hookRecorder{}
			c := New(reg, rec.hooks())
			require.NotPanics(t, func() {
				c.Advance()
				c.Retreat()
				c.MarkComplete("")
				c.SelectUnit("x")
				c.RequestNextModule("next")
			})
			require.Equal(t, -1, c.ActiveIndex())
			require.Zero(t, c.ProgressPercent())
			require.False(t, c.IsModuleComplete())
			require.Zero(t, rec.moduleComplete)
			require.Empty(t, rec.navigations)
			_, ok := c.ActiveUnit()
			require.False(t, ok)
		})
	}
}

// TestStateSnapshotIsIsolated ensures later transitions do not leak into old snapshots.
func TestStateSnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	snap := c.State()
	c.Advance()
	require.Zero(t, snap.CompletedCount())
	require.Equal(t, 0, snap.ActiveIndex)
}

// TestRandomOperationsHoldInvariants drives random sequences and checks monotonicity,
// the progress bound, and the single completion edge.
func TestRandomOperationsHoldInvariants(t *testing.T) {
	t.Parallel()

	ids := []string{"unit0", "unit1", "unit2", "unit3", "ghost", ""}
	for seed := int64(1); seed <= 50; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test input
			rec := &hookRecorder{}
			c := New(fourUnits(), rec.hooks())
			prev := map[string]bool{}

			for step := 0; step < 200; step++ {
				wasTerminal := c.CanRequestNextModule()
				navBefore := len(rec.navigations)
				switch rng.Intn(5) {
				case 0:
					c.SelectUnit(ids[rng.Intn(len(ids))])
				case 1:
					c.MarkComplete(ids[rng.Intn(len(ids))])
				case 2:
					c.Advance()
				case 3:
					c.Retreat()
				case 4:
					c.RequestNextModule("next")
					if !wasTerminal {
						require.Equal(t, navBefore, len(rec.navigations))
					}
				}

				for id := range prev {
					require.True(t, c.IsCompleted(id), "completed set shrank")
				}
				for _, id := range c.State().CompletedIDs() {
					prev[id] = true
				}
				pct := c.ProgressPercent()
				require.GreaterOrEqual(t, pct, 0.0)
				require.LessOrEqual(t, pct, 100.0)
				require.Equal(t, pct == 100, c.IsModuleComplete())
				require.GreaterOrEqual(t, c.ActiveIndex(), 0)
				require.Less(t, c.ActiveIndex(), 4)
				require.LessOrEqual(t, rec.moduleComplete, 1)
				require.Equal(t, c.IsModuleComplete(), rec.moduleComplete == 1)
			}
		})
	}
}

package lesson

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
)

// TestRenderFreshModule exposes the first tab and forward navigation only.
func TestRenderFreshModule(t *testing.T) {
	t.Parallel()

	v := RenderController(New(fourUnits(), Hooks{}))
	require.Equal(t, ModeTabbed, v.Mode)
	require.Equal(t, "unit0", v.ActiveUnitID)
	require.Len(t, v.Tabs, 4)
	require.True(t, v.Tabs[0].Active)
	require.False(t, v.CanRetreat)
	require.True(t, v.CanAdvance)
	require.False(t, v.CanRequestNextModule)
	require.Zero(t, v.ProgressPercent)
	require.Equal(t, curriculum.CategoryAdvanced, v.Tabs[3].Category)
}

// TestRenderTerminalPosition swaps advance for the next-module affordance.
func TestRenderTerminalPosition(t *testing.T) {
	t.Parallel()

	c := New(fourUnits(), Hooks{})
	for range 3 {
		c.Advance()
	}
	v := RenderController(c)
	require.Equal(t, 3, v.ActiveIndex)
	require.True(t, v.CanRetreat)
	require.False(t, v.CanAdvance)
	require.True(t, v.CanRequestNextModule)
	require.Equal(t, 3, v.CompletedCount)
	require.InDelta(t, 75.0, v.ProgressPercent, 1e-9)
	require.True(t, v.Tabs[2].Completed)
	require.False(t, v.Tabs[3].Completed)
	require.False(t, v.ModuleComplete)
}

// TestRenderIsReferentiallyTransparent renders the same inputs twice.
func TestRenderIsReferentiallyTransparent(t *testing.T) {
	t.Parallel()

	reg := fourUnits()
	c := New(reg, Hooks{})
	c.Advance()
	st := c.State()
	require.Equal(t, Render(reg, st), Render(reg, st))
}

// TestRenderSingleContent returns one always-complete unit without navigation.
func TestRenderSingleContent(t *testing.T) {
	t.Parallel()

	v := Render(nil, State{})
	require.Equal(t, ModeSingle, v.Mode)
	require.Len(t, v.Tabs, 1)
	require.Equal(t, curriculum.SingleUnitID, v.Tabs[0].ID)
	require.True(t, v.Tabs[0].Active)
	require.True(t, v.Tabs[0].Completed)
	require.False(t, v.CanRetreat)
	require.False(t, v.CanAdvance)
	require.False(t, v.CanRequestNextModule)
	require.True(t, v.ModuleComplete)

	require.Equal(t, v, RenderController(New(nil, Hooks{})))
}

// TestRenderEmptyRegistry disables navigation and reports zero progress.
func TestRenderEmptyRegistry(t *testing.T) {
	t.Parallel()

	v := RenderController(New(curriculum.MustRegistry(), Hooks{}))
	require.Equal(t, ModeTabbed, v.Mode)
	require.Empty(t, v.Tabs)
	require.Equal(t, -1, v.ActiveIndex)
	require.False(t, v.CanRetreat || v.CanAdvance || v.CanRequestNextModule)
	require.Zero(t, v.ProgressPercent)
	require.False(t, v.ModuleComplete)
}

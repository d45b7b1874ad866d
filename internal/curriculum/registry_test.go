package curriculum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleUnits() []Unit {
	return []Unit{
		{ID: "what-is-an-agent", Title: "What is an agent", Category: CategoryFundamentals},
		{ID: "tool-loop", Title: "The tool loop", Category: CategoryArchitecture},
		{ID: "wiring-tools", Title: "Wiring tools", Category: CategoryImplementation},
	}
}

// TestNewRegistryKeepsOrder verifies canonical order and index lookups.
func TestNewRegistryKeepsOrder(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(sampleUnits()...)
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())

	idx, ok := reg.IndexOf("wiring-tools")
	require.True(t, ok)
	require.Equal(t, 2, idx)

	u, ok := reg.At(1)
	require.True(t, ok)
	require.Equal(t, "tool-loop", u.ID)

	_, ok = reg.At(3)
	require.False(t, ok)
	require.False(t, reg.Contains("missing"))
}

// TestNewRegistryRejectsDuplicates ensures unit ids are unique within a registry.
func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	units := append(sampleUnits(), Unit{ID: "tool-loop", Category: CategoryAdvanced})
	_, err := NewRegistry(units...)
	require.ErrorIs(t, err, ErrDuplicateUnit)
}

// TestNewRegistryRejectsInvalidUnits covers empty ids and unknown categories.
func TestNewRegistryRejectsInvalidUnits(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Unit{ID: " ", Category: CategoryAdvanced})
	require.ErrorIs(t, err, ErrEmptyUnitID)

	_, err = NewRegistry(Unit{ID: "x", Category: "expert"})
	require.ErrorIs(t, err, ErrInvalidCategory)
}

// TestUnitsReturnsCopy guards the registry against caller mutation.
func TestUnitsReturnsCopy(t *testing.T) {
	t.Parallel()

	reg := MustRegistry(sampleUnits()...)
	units := reg.Units()
	units[0].ID = "mutated"

	first, _ := reg.At(0)
	require.Equal(t, "what-is-an-agent", first.ID)
}

// TestNilRegistryIsEmpty checks the nil receiver behaves like an empty registry.
func TestNilRegistryIsEmpty(t *testing.T) {
	t.Parallel()

	var reg *Registry
	require.Equal(t, 0, reg.Len())
	require.Nil(t, reg.Units())
	_, ok := reg.IndexOf("x")
	require.False(t, ok)
}

// TestParseCategory normalizes case and whitespace.
func TestParseCategory(t *testing.T) {
	t.Parallel()

	cat, err := ParseCategory(" Advanced ")
	require.NoError(t, err)
	require.Equal(t, CategoryAdvanced, cat)

	_, err = ParseCategory("beginner")
	require.ErrorIs(t, err, ErrInvalidCategory)
}

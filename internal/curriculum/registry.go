package curriculum

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyUnitID is returned for units without an id.
	ErrEmptyUnitID = errors.New("unit id is required")
	// ErrDuplicateUnit is returned when two units in one registry share an id.
	ErrDuplicateUnit = errors.New("duplicate unit id")
)

// Registry is the ordered, immutable sequence of units that makes up one
// module. Its iteration order is the canonical unit order. A nil *Registry
// behaves as an empty one.
type Registry struct {
	units []Unit
	index map[string]int
}

// NewRegistry validates units and freezes them in the supplied order.
func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{
		units: make([]Unit, 0, len(units)),
		index: make(map[string]int, len(units)),
	}
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[u.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateUnit, u.ID)
		}
		r.index[u.ID] = len(r.units)
		r.units = append(r.units, u)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static fixtures; it panics on invalid input.
func MustRegistry(units ...Unit) *Registry {
	r, err := NewRegistry(units...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of units.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.units)
}

// At returns the unit at position i.
func (r *Registry) At(i int) (Unit, bool) {
	if r == nil || i < 0 || i >= len(r.units) {
		return Unit{}, false
	}
	return r.units[i], true
}

// IndexOf returns the position of the unit with the given id.
func (r *Registry) IndexOf(id string) (int, bool) {
	if r == nil {
		return -1, false
	}
	i, ok := r.index[id]
	if !ok {
		return -1, false
	}
	return i, true
}

// Contains reports whether id names a unit in the registry.
func (r *Registry) Contains(id string) bool {
	_, ok := r.IndexOf(id)
	return ok
}

// Units returns a copy of the units in canonical order.
func (r *Registry) Units() []Unit {
	if r == nil {
		return nil
	}
	return append([]Unit(nil), r.units...)
}

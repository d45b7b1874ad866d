package lesson

import (
	"github.com/JakeFAU/concept-modules/internal/curriculum"
)

// Hooks are the caller-supplied callbacks fired at transition points. All are
// optional. State is committed before a hook runs and is never rolled back,
// so hooks may start asynchronous work without the controller waiting on it.
type Hooks struct {
	// OnModuleComplete fires once per controller lifetime, on the transition
	// into "every unit completed".
	OnModuleComplete func()
	// OnNavigateToNextModule fires when RequestNextModule succeeds at the
	// last unit. The caller is expected to create a new Controller for the
	// target module.
	OnNavigateToNextModule func(nextModuleID string)
	// OnUnitActivated fires whenever the active unit changes.
	OnUnitActivated func(unitID string)
	// OnUnitCompleted fires when a unit enters the completed set.
	OnUnitCompleted func(unitID string)
}

// Controller owns the progress state for one module session.
type Controller struct {
	units     *curriculum.Registry
	hooks     Hooks
	active    int
	completed map[string]struct{}
	// fired latches the module-complete edge.
	fired bool
}

// New creates a controller positioned at the first unit with nothing
// completed. A nil or empty registry yields a controller whose operations are
// all no-ops.
func New(units *curriculum.Registry, hooks Hooks) *Controller {
	c := &Controller{
		units:     units,
		hooks:     hooks,
		active:    -1,
		completed: make(map[string]struct{}, units.Len()),
	}
	if units.Len() > 0 {
		c.active = 0
	}
	return c
}

// Registry returns the registry the controller was created with.
func (c *Controller) Registry() *curriculum.Registry {
	return c.units
}

// SelectUnit jumps to the unit with the given id. Unknown ids are ignored.
func (c *Controller) SelectUnit(id string) {
	idx, ok := c.units.IndexOf(id)
	if !ok {
		return
	}
	c.moveTo(idx)
}

// MarkComplete adds the unit to the completed set. An empty id means the
// active unit. Re-marking and unknown ids are no-ops.
func (c *Controller) MarkComplete(id string) {
	if id == "" {
		u, ok := c.units.At(c.active)
		if !ok {
			return
		}
		id = u.ID
	}
	if !c.units.Contains(id) {
		return
	}
	c.complete(id)
}

// Advance marks the active unit complete and moves forward one position. At
// the last unit it does nothing; use RequestNextModule there.
func (c *Controller) Advance() {
	if !c.CanAdvance() {
		return
	}
	u, _ := c.units.At(c.active)
	c.complete(u.ID)
	c.moveTo(c.active + 1)
}

// Retreat moves back one position without touching the completed set.
func (c *Controller) Retreat() {
	if !c.CanRetreat() {
		return
	}
	c.moveTo(c.active - 1)
}

// RequestNextModule completes the last unit and asks the caller to navigate
// to nextModuleID. It is a no-op unless the last unit is active. An empty
// nextModuleID still completes the unit but has nowhere to navigate, so the
// navigation hook is skipped.
func (c *Controller) RequestNextModule(nextModuleID string) {
	if !c.CanRequestNextModule() {
		return
	}
	u, _ := c.units.At(c.active)
	c.complete(u.ID)
	if nextModuleID == "" {
		return
	}
	if c.hooks.OnNavigateToNextModule != nil {
		c.hooks.OnNavigateToNextModule(nextModuleID)
	}
}

// ActiveIndex returns the active position, or -1 for an empty registry.
func (c *Controller) ActiveIndex() int {
	return c.active
}

// ActiveUnit returns the active unit.
func (c *Controller) ActiveUnit() (curriculum.Unit, bool) {
	return c.units.At(c.active)
}

// IsCompleted reports whether the unit is in the completed set.
func (c *Controller) IsCompleted(id string) bool {
	_, ok := c.completed[id]
	return ok
}

// CompletedCount returns the size of the completed set.
func (c *Controller) CompletedCount() int {
	return len(c.completed)
}

// IsModuleComplete reports whether every unit has been completed. Always
// false for an empty registry.
func (c *Controller) IsModuleComplete() bool {
	n := c.units.Len()
	return n > 0 && len(c.completed) == n
}

// ProgressPercent returns the completed share of units in [0, 100].
func (c *Controller) ProgressPercent() float64 {
	return percent(len(c.completed), c.units.Len())
}

// CanRetreat reports whether Retreat would move.
func (c *Controller) CanRetreat() bool {
	return c.active > 0
}

// CanAdvance reports whether Advance would move.
func (c *Controller) CanAdvance() bool {
	return c.active >= 0 && c.active < c.units.Len()-1
}

// CanRequestNextModule reports whether the last unit is active.
func (c *Controller) CanRequestNextModule() bool {
	n := c.units.Len()
	return n > 0 && c.active == n-1
}

// State returns a snapshot of the progress state.
func (c *Controller) State() State {
	done := make(map[string]struct{}, len(c.completed))
	for id := range c.completed {
		done[id] = struct{}{}
	}
	return State{
		ActiveIndex: c.active,
		completed:   done,
		total:       c.units.Len(),
	}
}

func (c *Controller) moveTo(idx int) {
	if idx == c.active {
		return
	}
	c.active = idx
	if c.hooks.OnUnitActivated != nil {
		u, _ := c.units.At(idx)
		c.hooks.OnUnitActivated(u.ID)
	}
}

func (c *Controller) complete(id string) {
	if _, done := c.completed[id]; done {
		return
	}
	c.completed[id] = struct{}{}
	if c.hooks.OnUnitCompleted != nil {
		c.hooks.OnUnitCompleted(id)
	}
	if c.fired || !c.IsModuleComplete() {
		return
	}
	c.fired = true
	if c.hooks.OnModuleComplete != nil {
		c.hooks.OnModuleComplete()
	}
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

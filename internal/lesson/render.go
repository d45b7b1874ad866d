package lesson

import "github.com/JakeFAU/concept-modules/internal/curriculum"

// Mode selects how a View is presented.
type Mode string

// Presentation modes.
const (
	// ModeTabbed walks a registry unit by unit.
	ModeTabbed Mode = "tabbed"
	// ModeSingle shows one content blob with no navigation.
	ModeSingle Mode = "single"
)

// Tab is the per-unit part of a View.
type Tab struct {
	ID          string              `json:"id"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Category    curriculum.Category `json:"category,omitempty"`
	Position    int                 `json:"position"`
	Active      bool                `json:"active"`
	Completed   bool                `json:"completed"`
}

// View is the display descriptor produced by Render.
type View struct {
	Mode                 Mode    `json:"mode"`
	ActiveIndex          int     `json:"active_index"`
	ActiveUnitID         string  `json:"active_unit_id,omitempty"`
	Tabs                 []Tab   `json:"tabs"`
	CanRetreat           bool    `json:"can_retreat"`
	CanAdvance           bool    `json:"can_advance"`
	CanRequestNextModule bool    `json:"can_request_next_module"`
	CompletedCount       int     `json:"completed_count"`
	TotalCount           int     `json:"total_count"`
	ProgressPercent      float64 `json:"progress_percent"`
	ModuleComplete       bool    `json:"module_complete"`
}

// Render maps a registry and a progress snapshot to a View. It has no hidden
// state: identical inputs always produce identical output. A nil registry
// selects single-content mode, which shows one always-complete unit and
// disables navigation.
func Render(units *curriculum.Registry, st State) View {
	if units == nil {
		return singleView()
	}
	n := units.Len()
	v := View{
		Mode:                 ModeTabbed,
		ActiveIndex:          st.ActiveIndex,
		Tabs:                 make([]Tab, 0, n),
		CanRetreat:           st.ActiveIndex > 0 && st.ActiveIndex < n,
		CanAdvance:           st.ActiveIndex >= 0 && st.ActiveIndex < n-1,
		CanRequestNextModule: n > 0 && st.ActiveIndex == n-1,
		TotalCount:           n,
	}
	for i, u := range units.Units() {
		done := st.IsCompleted(u.ID)
		if done {
			v.CompletedCount++
		}
		active := i == st.ActiveIndex
		if active {
			v.ActiveUnitID = u.ID
		}
		v.Tabs = append(v.Tabs, Tab{
			ID:          u.ID,
			Title:       u.Title,
			Description: u.Description,
			Category:    u.Category,
			Position:    i,
			Active:      active,
			Completed:   done,
		})
	}
	v.ProgressPercent = percent(v.CompletedCount, n)
	v.ModuleComplete = n > 0 && v.CompletedCount == n
	return v
}

// RenderController renders c's current state.
func RenderController(c *Controller) View {
	return Render(c.Registry(), c.State())
}

func singleView() View {
	return View{
		Mode:         ModeSingle,
		ActiveIndex:  0,
		ActiveUnitID: curriculum.SingleUnitID,
		Tabs: []Tab{{
			ID:        curriculum.SingleUnitID,
			Active:    true,
			Completed: true,
		}},
		CompletedCount:  1,
		TotalCount:      1,
		ProgressPercent: 100,
		ModuleComplete:  true,
	}
}

package service

import "github.com/dpr-plan-engine/internal/domain"

// Comparison is the comparison overlay state machine. It is not safe for
// concurrent use; the Engine serialises access.
type Comparison struct {
	active bool
	plans  []domain.PlanID
}

// State returns the current lifecycle state.
func (c *Comparison) State() domain.ComparisonState {
	switch {
	case c.active:
		return domain.ComparisonActive
	case len(c.plans) > 0:
		return domain.ComparisonSelecting
	default:
		return domain.ComparisonIdle
	}
}

// Active reports whether the overlay currently overrides filtering.
func (c *Comparison) Active() bool {
	return c.active
}

// Plans returns the pinned plans in selection order.
func (c *Comparison) Plans() []domain.PlanID {
	return clonePlans(c.plans)
}

// Add pins a plan. Adding an already pinned plan is a no-op.
func (c *Comparison) Add(id domain.PlanID) error {
	if c.active {
		return domain.ErrComparisonActive
	}
	for _, p := range c.plans {
		if p == id {
			return nil
		}
	}
	if len(c.plans) >= domain.MaxComparison {
		return domain.ErrComparisonFull
	}
	c.plans = append(c.plans, id)
	return nil
}

// Remove unpins a plan. The selection is immutable once active.
func (c *Comparison) Remove(id domain.PlanID) error {
	if c.active {
		return domain.ErrComparisonActive
	}
	for i, p := range c.plans {
		if p == id {
			c.plans = append(c.plans[:i], c.plans[i+1:]...)
			return nil
		}
	}
	return domain.ErrPlanNotSelected
}

// Activate moves a non-empty selection to Active.
func (c *Comparison) Activate() error {
	if c.active {
		return domain.ErrComparisonActive
	}
	if len(c.plans) == 0 {
		return domain.ErrEmptyComparison
	}
	c.active = true
	return nil
}

// Clear returns to Idle and reports whether the overlay was active.
func (c *Comparison) Clear() bool {
	wasActive := c.active
	c.active = false
	c.plans = nil
	return wasActive
}

// View describes the overlay for the page.
func (c *Comparison) View() domain.ComparisonView {
	return domain.ComparisonView{
		State:             c.State(),
		Plans:             c.Plans(),
		SelectionDisabled: len(c.plans) >= domain.MaxComparison,
		CompareEnabled:    !c.active && len(c.plans) > 0,
		RemoveVisible:     !c.active,
		FiltersDisabled:   c.active,
	}
}

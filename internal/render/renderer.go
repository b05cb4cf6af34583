package render

import (
	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// Renderer turns a selection result into a patch for a view.
type Renderer struct {
	logger *logrus.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(logger *logrus.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// policy returns whether non-selected elements are hidden and whether selected
// elements move to the front. Combinations without their own behavior fall back:
// hideOnly with an ordered top-N acts as limit, suggested and all act as limit and showAll.
func policy(shape domain.SelectionShape, mode domain.DisplayMode) (hideRest, reorder bool) {
	switch mode {
	case domain.DisplayLimit, domain.DisplaySuggested:
		return true, true
	case domain.DisplayHideOnly:
		if shape == domain.ShapeIncludedSet {
			return true, false
		}
		return true, true
	default:
		return false, true
	}
}

// Plan computes the patch for elements without touching any view.
// It returns false when there are no managed elements.
func (r *Renderer) Plan(elements []Element, result domain.SelectionResult, mode domain.DisplayMode) (Patch, bool) {
	managed := Managed(elements)
	if len(managed) == 0 {
		r.logger.Warn("No plan elements found to render")
		return Patch{}, false
	}

	if !result.Filtering() {
		return showAll(managed), true
	}

	selected := make([]int, 0, len(managed))
	used := make([]bool, len(managed))
	switch result.Shape {
	case domain.ShapeOrderedTop:
		for _, plan := range result.Plans {
			found := false
			for i, el := range managed {
				if el.Plan == plan && !used[i] {
					selected = append(selected, i)
					used[i] = true
					found = true
				}
			}
			if !found {
				r.logger.WithField("plan", plan).Warn("Selected plan has no element on the page")
			}
		}
	case domain.ShapeIncludedSet:
		present := make(map[domain.PlanID]bool, len(managed))
		for i, el := range managed {
			present[el.Plan] = true
			if result.Contains(el.Plan) {
				selected = append(selected, i)
				used[i] = true
			}
		}
		for _, plan := range result.Plans {
			if !present[plan] {
				r.logger.WithField("plan", plan).Warn("Selected plan has no element on the page")
			}
		}
	}

	if len(selected) == 0 {
		r.logger.WithFields(logrus.Fields{
			"shape":  result.Shape.String(),
			"source": result.Source,
		}).Warn("No selected plan is on the page, showing all plans")
		return showAll(managed), true
	}

	hideRest, reorder := policy(result.Shape, mode)
	patch := Patch{Reorder: reorder, Entries: make([]Entry, 0, len(managed))}
	if reorder {
		for _, i := range selected {
			patch.Entries = append(patch.Entries, Entry{Index: i, Plan: managed[i].Plan, Visible: true})
		}
		for i, el := range managed {
			if !used[i] {
				patch.Entries = append(patch.Entries, Entry{Index: i, Plan: el.Plan, Visible: !hideRest})
			}
		}
		return patch, true
	}

	for i, el := range managed {
		patch.Entries = append(patch.Entries, Entry{Index: i, Plan: el.Plan, Visible: used[i] || !hideRest})
	}
	return patch, true
}

// Render applies the patch for result to view. Failures are logged and leave the view as it was.
func (r *Renderer) Render(view View, result domain.SelectionResult, mode domain.DisplayMode) Patch {
	patch, ok := r.Plan(view.Elements(), result, mode)
	if !ok {
		return Patch{}
	}
	if err := view.Apply(patch); err != nil {
		r.logger.WithError(err).Warn("Failed to apply render patch")
		return Patch{}
	}

	r.logger.WithFields(logrus.Fields{
		"shape":    result.Shape.String(),
		"source":   result.Source,
		"mode":     mode,
		"elements": len(patch.Entries),
		"reorder":  patch.Reorder,
	}).Debug("Rendered plan visibility")
	return patch
}

// ShowOnly hides every managed element whose plan is not in plans, keeping the current order.
func (r *Renderer) ShowOnly(view View, plans []domain.PlanID) Patch {
	pinned := make(map[domain.PlanID]bool, len(plans))
	for _, p := range plans {
		pinned[p] = true
	}
	managed := Managed(view.Elements())
	patch := Patch{Entries: make([]Entry, len(managed))}
	for i, el := range managed {
		patch.Entries[i] = Entry{Index: i, Plan: el.Plan, Visible: pinned[el.Plan]}
	}
	return r.apply(view, patch)
}

// ShowEverything makes every managed element visible, keeping the current order.
func (r *Renderer) ShowEverything(view View) Patch {
	return r.apply(view, showAll(Managed(view.Elements())))
}

func (r *Renderer) apply(view View, patch Patch) Patch {
	if patch.Empty() {
		return patch
	}
	if err := view.Apply(patch); err != nil {
		r.logger.WithError(err).Warn("Failed to apply render patch")
		return Patch{}
	}
	return patch
}

func showAll(managed []Element) Patch {
	patch := Patch{Entries: make([]Entry, len(managed))}
	for i, el := range managed {
		patch.Entries[i] = Entry{Index: i, Plan: el.Plan, Visible: true}
	}
	return patch
}

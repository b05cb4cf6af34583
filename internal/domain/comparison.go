package domain

// MaxComparison is the most plans a comparison can pin.
const MaxComparison = 3

// ComparisonState is the lifecycle state of the comparison overlay.
type ComparisonState string

const (
	ComparisonIdle      ComparisonState = "idle"
	ComparisonSelecting ComparisonState = "selecting"
	ComparisonActive    ComparisonState = "active"
)

// ComparisonView is what the page shows for the comparison overlay.
type ComparisonView struct {
	State             ComparisonState `json:"state"`
	Plans             []PlanID        `json:"plans"`
	SelectionDisabled bool            `json:"selectionDisabled"`
	CompareEnabled    bool            `json:"compareEnabled"`
	RemoveVisible     bool            `json:"removeVisible"`
	FiltersDisabled   bool            `json:"filtersDisabled"`
}

// Selected reports whether id is pinned.
func (v ComparisonView) Selected(id PlanID) bool {
	for _, p := range v.Plans {
		if p == id {
			return true
		}
	}
	return false
}

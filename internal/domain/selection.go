package domain

import "strings"

// TopN is the length of the ordered top list used by the recommendation flows.
const TopN = 3

// SelectionShape says which of the three selector outputs a SelectionResult holds.
// The shapes have different rendering consequences and are not interchangeable.
type SelectionShape int

const (
	ShapeNoFiltering SelectionShape = iota
	ShapeOrderedTop
	ShapeIncludedSet
)

func (s SelectionShape) String() string {
	switch s {
	case ShapeOrderedTop:
		return "orderedTop"
	case ShapeIncludedSet:
		return "includedSet"
	default:
		return "noFiltering"
	}
}

// SelectionSource records which cascade rule produced a result.
type SelectionSource string

const (
	SourceNone           SelectionSource = "none"
	SourceStaticScenario SelectionSource = "staticScenario"
	SourceRecommendation SelectionSource = "recommendation"
	SourceSetLogic       SelectionSource = "setLogic"
	SourceFilterTopThree SelectionSource = "filterTopThree"
)

// SelectionResult is the Plan Selector's output.
type SelectionResult struct {
	Shape  SelectionShape  `json:"shape"`
	Plans  []PlanID        `json:"plans,omitempty"`
	Source SelectionSource `json:"source"`
}

// NoFiltering is the "show everything, keep the existing order" result.
func NoFiltering() SelectionResult {
	return SelectionResult{Shape: ShapeNoFiltering, Source: SourceNone}
}

// OrderedTop builds an ordered top-N result.
func OrderedTop(source SelectionSource, plans []PlanID) SelectionResult {
	return SelectionResult{Shape: ShapeOrderedTop, Plans: plans, Source: source}
}

// IncludedSet builds an included-set result.
func IncludedSet(source SelectionSource, plans []PlanID) SelectionResult {
	return SelectionResult{Shape: ShapeIncludedSet, Plans: plans, Source: source}
}

// Filtering reports whether the result narrows or reorders anything. An empty
// top list or included-set fails open and is treated like no filtering.
func (r SelectionResult) Filtering() bool {
	return r.Shape != ShapeNoFiltering && len(r.Plans) > 0
}

// Contains reports whether id is part of the selection.
func (r SelectionResult) Contains(id PlanID) bool {
	for _, p := range r.Plans {
		if p == id {
			return true
		}
	}
	return false
}

// SelectorVariant picks the cascade used after the static scenario layer.
type SelectorVariant string

const (
	// VariantIncludedSet is the filter page: set intersection fallback.
	VariantIncludedSet SelectorVariant = "included"
	// VariantTopThree is the results page: curated top three per attribute combination.
	VariantTopThree SelectorVariant = "topThree"
)

// StaticShape chooses how static scenario lists are returned.
type StaticShape string

const (
	StaticIncluded StaticShape = "included"
	StaticOrdered  StaticShape = "ordered"
)

// Trigger identifies the call site that runs the pipeline.
type Trigger string

const (
	TriggerFieldChange  Trigger = "fieldChange"
	TriggerQuoteFetched Trigger = "quoteFetched"
	TriggerQuoteFailed  Trigger = "quoteFailed"
	TriggerPageLoad     Trigger = "pageLoad"
	TriggerComparison   Trigger = "comparisonCleared"
)

// SelectOptions parameterise one selector run.
type SelectOptions struct {
	Variant              SelectorVariant
	StaticShape          StaticShape
	SortByRecommendation bool
	Trigger              Trigger
	Quotes               []PlanQuote
}

// DisplayMode selects whether filtering reorders, hides, or both.
type DisplayMode string

const (
	DisplayShowAll   DisplayMode = "showAll"
	DisplayLimit     DisplayMode = "limit"
	DisplayHideOnly  DisplayMode = "hideOnly"
	DisplaySuggested DisplayMode = "suggested"
	DisplayAll       DisplayMode = "all"
)

// ParseDisplayMode accepts the configured mode names case-insensitively.
// Unknown names fall back to showAll.
func ParseDisplayMode(raw string) (DisplayMode, bool) {
	for _, m := range []DisplayMode{DisplayShowAll, DisplayLimit, DisplayHideOnly, DisplaySuggested, DisplayAll} {
		if strings.EqualFold(raw, string(m)) {
			return m, true
		}
	}
	return DisplayShowAll, false
}

// WidgetOptions are the options supplied when the widget is attached to a page.
type WidgetOptions struct {
	DisplayMode          DisplayMode     `json:"displayMode" mapstructure:"display_mode"`
	SortByRecommendation bool            `json:"sortByRecommendation" mapstructure:"sort_by_recommendation"`
	Variant              SelectorVariant `json:"variant" mapstructure:"variant"`
	StaticShape          StaticShape     `json:"staticShape" mapstructure:"static_shape"`
}

// DefaultWidgetOptions mirror the filter page defaults.
func DefaultWidgetOptions() WidgetOptions {
	return WidgetOptions{
		DisplayMode: DisplayShowAll,
		Variant:     VariantIncludedSet,
		StaticShape: StaticIncluded,
	}
}

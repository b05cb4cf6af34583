package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// PlanSelector runs the selection cascade: static scenario, recommendation,
// then set logic or the curated top three depending on the variant.
type PlanSelector struct {
	logger *logrus.Logger
}

// NewPlanSelector creates a selector.
func NewPlanSelector(logger *logrus.Logger) *PlanSelector {
	return &PlanSelector{logger: logger}
}

// Select never fails; inputs it cannot use degrade to no filtering.
func (s *PlanSelector) Select(state domain.FilterState, opts domain.SelectOptions) domain.SelectionResult {
	if plans, ok := StaticScenario(state.ScenarioKey()); ok {
		if opts.StaticShape == domain.StaticOrdered {
			if len(plans) > domain.TopN {
				plans = plans[:domain.TopN]
			}
			return domain.OrderedTop(domain.SourceStaticScenario, plans)
		}
		return domain.IncludedSet(domain.SourceStaticScenario, plans)
	}

	if opts.SortByRecommendation && opts.Trigger == domain.TriggerQuoteFetched {
		if top := RecommendedTop(opts.Quotes); len(top) > 0 {
			return domain.OrderedTop(domain.SourceRecommendation, top)
		}
		s.logger.Debug("No ranked plans in quote, falling back to filter rules")
	}

	if opts.Variant == domain.VariantTopThree {
		return s.selectTopThree(state)
	}
	return s.selectIncluded(state)
}

func (s *PlanSelector) selectIncluded(state domain.FilterState) domain.SelectionResult {
	reason := state.InsuranceReason
	tier := state.CoverageTier

	switch {
	case !reason.Constrained() && !tier.Constrained():
		return domain.NoFiltering()
	case reason.Constrained() && !tier.Constrained():
		return s.included(state, ReasonSet(reason))
	case !reason.Constrained() && tier.Constrained():
		return s.included(state, TierSet(tier))
	default:
		return s.included(state, intersect(ReasonSet(reason), TierSet(tier)))
	}
}

func (s *PlanSelector) included(state domain.FilterState, plans []domain.PlanID) domain.SelectionResult {
	if len(plans) == 0 {
		s.logger.WithFields(logrus.Fields{
			"insurance_reason": state.InsuranceReason.String(),
			"coverage_tier":    state.CoverageTier.Key(),
		}).Warn("No plans match the filter combination")
		return domain.NoFiltering()
	}
	return domain.IncludedSet(domain.SourceSetLogic, plans)
}

func (s *PlanSelector) selectTopThree(state domain.FilterState) domain.SelectionResult {
	if !state.InsuranceReason.Constrained() {
		return domain.NoFiltering()
	}

	plans := TopThreeFor(state)
	if len(plans) == 0 {
		s.logger.WithFields(logrus.Fields{
			"insurance_reason":      state.InsuranceReason.String(),
			"coverage_tier":         state.CoverageTier.Key(),
			"pre_existing":          state.PreExisting,
			"pre_existing_coverage": state.PreExistingCoverage,
		}).Warn("Filter combination has no top three entry")
		return domain.NoFiltering()
	}
	return domain.OrderedTop(domain.SourceFilterTopThree, plans)
}

// TopThreeFor returns the curated top three for a state, or nil for combinations
// without an entry.
func TopThreeFor(state domain.FilterState) []domain.PlanID {
	h, ok := healthOf(state)
	if !ok {
		return nil
	}
	return clonePlans(topThree[topThreeKey{reason: state.InsuranceReason, tier: state.CoverageTier.Key(), health: h}])
}

// RecommendedTop returns up to three plans ranked 1..3 by ascending rank.
// Ties keep input order and a plan appears at most once.
func RecommendedTop(quotes []domain.PlanQuote) []domain.PlanID {
	ranked := make([]domain.PlanQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.Recommended() {
			ranked = append(ranked, q)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RecommendationRank < ranked[j].RecommendationRank
	})

	seen := make(map[domain.PlanID]bool, len(ranked))
	top := make([]domain.PlanID, 0, domain.TopN)
	for _, q := range ranked {
		if seen[q.PlanName] {
			continue
		}
		seen[q.PlanName] = true
		top = append(top, q.PlanName)
		if len(top) == domain.TopN {
			break
		}
	}
	return top
}

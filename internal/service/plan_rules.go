package service

import "github.com/dpr-plan-engine/internal/domain"

// Catalogue lists every plan in page order.
var Catalogue = []domain.PlanID{
	"LINK 1", "LINK 2", "LINK 3", "LINK 4",
	"ZONE 1", "ZONE 2", "ZONE 3", "ZONE 4", "ZONE 5",
	"VISIT 1", "VISIT 2",
}

// reasonSets are the plans eligible for each insurance reason. Order matters:
// intersections keep it.
var reasonSets = map[domain.InsuranceReason][]domain.PlanID{
	domain.ReasonVisaCompliance: {"LINK 1", "LINK 2", "LINK 3", "ZONE 4", "ZONE 5"},
	domain.ReasonTemporaryCover: {"LINK 1", "LINK 2", "LINK 3", "LINK 4", "ZONE 1", "ZONE 2", "ZONE 3", "VISIT 1", "VISIT 2"},
	domain.ReasonSupplemental:   {"LINK 1", "LINK 2", "LINK 3", "LINK 4", "ZONE 1", "ZONE 2", "ZONE 3", "ZONE 4", "ZONE 5"},
}

var tierSets = map[domain.CoverageTier][]domain.PlanID{
	domain.TierBasic:         {"LINK 1", "LINK 2", "LINK 3", "ZONE 1", "ZONE 2", "ZONE 5", "VISIT 1"},
	domain.TierComprehensive: {"LINK 3", "LINK 4", "ZONE 3", "ZONE 4", "VISIT 2"},
}

// staticScenarios are curated plan lists that bypass derived logic, keyed "<reason>:<tier|all>".
var staticScenarios = map[string][]domain.PlanID{
	"2:all":           {"ZONE 5", "ZONE 4", "LINK 3", "LINK 2", "LINK 1", "ZONE 3", "ZONE 2", "ZONE 1", "LINK 4"},
	"2:basic":         {"ZONE 5", "LINK 2", "ZONE 2"},
	"1:comprehensive": {"LINK 4", "ZONE 3", "VISIT 2"},
}

// health buckets preExisting/preExistingCoverage for the top-three tree.
type health string

const (
	healthAny       health = "any"
	healthNone      health = "none"
	healthUncovered health = "uncovered"
	healthCovered   health = "covered"
)

type topThreeKey struct {
	reason domain.InsuranceReason
	tier   string
	health health
}

// topThree is the curated top-three per attribute combination. Reason 2 ignores health.
var topThree = map[topThreeKey][]domain.PlanID{
	{domain.ReasonVisaCompliance, "basic", healthNone}:              {"ZONE 5", "LINK 2", "LINK 3"},
	{domain.ReasonVisaCompliance, "basic", healthUncovered}:         {"LINK 2", "ZONE 5", "LINK 1"},
	{domain.ReasonVisaCompliance, "basic", healthCovered}:           {"LINK 3", "LINK 2", "ZONE 5"},
	{domain.ReasonVisaCompliance, "comprehensive", healthNone}:      {"ZONE 4", "LINK 3", "ZONE 5"},
	{domain.ReasonVisaCompliance, "comprehensive", healthUncovered}: {"LINK 3", "ZONE 4", "LINK 2"},
	{domain.ReasonVisaCompliance, "comprehensive", healthCovered}:   {"LINK 3", "ZONE 4", "ZONE 5"},
	{domain.ReasonVisaCompliance, "all", healthNone}:                {"ZONE 5", "ZONE 4", "LINK 3"},
	{domain.ReasonVisaCompliance, "all", healthUncovered}:           {"LINK 3", "LINK 2", "ZONE 4"},
	{domain.ReasonVisaCompliance, "all", healthCovered}:             {"LINK 3", "ZONE 5", "ZONE 4"},

	{domain.ReasonTemporaryCover, "basic", healthNone}:              {"LINK 1", "ZONE 1", "VISIT 1"},
	{domain.ReasonTemporaryCover, "basic", healthUncovered}:         {"LINK 2", "LINK 1", "ZONE 2"},
	{domain.ReasonTemporaryCover, "basic", healthCovered}:           {"LINK 2", "ZONE 2", "VISIT 1"},
	{domain.ReasonTemporaryCover, "comprehensive", healthNone}:      {"LINK 4", "ZONE 3", "VISIT 2"},
	{domain.ReasonTemporaryCover, "comprehensive", healthUncovered}: {"LINK 4", "LINK 3", "ZONE 3"},
	{domain.ReasonTemporaryCover, "comprehensive", healthCovered}:   {"LINK 3", "LINK 4", "VISIT 2"},
	{domain.ReasonTemporaryCover, "all", healthNone}:                {"LINK 1", "LINK 4", "ZONE 1"},
	{domain.ReasonTemporaryCover, "all", healthUncovered}:           {"LINK 3", "LINK 2", "ZONE 3"},
	{domain.ReasonTemporaryCover, "all", healthCovered}:             {"LINK 3", "LINK 4", "ZONE 2"},

	{domain.ReasonSupplemental, "basic", healthAny}:         {"ZONE 5", "LINK 2", "ZONE 2"},
	{domain.ReasonSupplemental, "comprehensive", healthAny}: {"ZONE 4", "LINK 3", "ZONE 3"},
	{domain.ReasonSupplemental, "all", healthAny}:           {"ZONE 5", "ZONE 4", "LINK 3"},
}

// healthOf buckets the pre-existing answers. ok is false for combinations the
// form cannot produce.
func healthOf(state domain.FilterState) (health, bool) {
	if state.InsuranceReason == domain.ReasonSupplemental {
		return healthAny, true
	}
	switch state.PreExisting {
	case domain.AnswerNo:
		return healthNone, true
	case domain.AnswerYes:
		if state.PreExistingCoverage == domain.AnswerYes {
			return healthCovered, true
		}
		return healthUncovered, true
	}
	return "", false
}

// ReasonSet returns the plans eligible for a reason.
func ReasonSet(reason domain.InsuranceReason) []domain.PlanID {
	return clonePlans(reasonSets[reason])
}

// TierSet returns the plans eligible for a tier.
func TierSet(tier domain.CoverageTier) []domain.PlanID {
	return clonePlans(tierSets[tier])
}

// StaticScenario returns the curated list for a scenario key.
func StaticScenario(key string) ([]domain.PlanID, bool) {
	plans, ok := staticScenarios[key]
	return clonePlans(plans), ok
}

// StaticScenarioKeys lists every curated scenario key.
func StaticScenarioKeys() []string {
	keys := make([]string, 0, len(staticScenarios))
	for k := range staticScenarios {
		keys = append(keys, k)
	}
	return keys
}

// intersect keeps the plans of a that are also in b, in a's order.
func intersect(a, b []domain.PlanID) []domain.PlanID {
	in := make(map[domain.PlanID]bool, len(b))
	for _, p := range b {
		in[p] = true
	}
	out := make([]domain.PlanID, 0, len(a))
	for _, p := range a {
		if in[p] {
			out = append(out, p)
		}
	}
	return out
}

func clonePlans(plans []domain.PlanID) []domain.PlanID {
	if plans == nil {
		return nil
	}
	out := make([]domain.PlanID, len(plans))
	copy(out, plans)
	return out
}

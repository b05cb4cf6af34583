// Package domain contains the core entities of the plan ranking and visibility engine:
// the applicant's filter attributes, quoted plans, selection results and display modes.
//
// Every categorical attribute has an explicit "absent" zero value. Absence means the
// applicant has not constrained that attribute, which is different from a negative answer.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// InsuranceReason is the applicant's reason for buying cover. The stored form
// value is one less than the constant, so the zero value is absent.
type InsuranceReason int

const (
	ReasonAbsent InsuranceReason = iota
	ReasonVisaCompliance
	ReasonTemporaryCover
	ReasonSupplemental
)

// ParseInsuranceReason normalises a stored value. Unknown values and "all" are absent;
// ok reports whether the input was recognised (absent inputs are recognised).
func ParseInsuranceReason(raw string) (reason InsuranceReason, ok bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "all") {
		return ReasonAbsent, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return ReasonAbsent, false
	}
	switch reason := InsuranceReason(n + 1); reason {
	case ReasonVisaCompliance, ReasonTemporaryCover, ReasonSupplemental:
		return reason, true
	default:
		return ReasonAbsent, false
	}
}

// Constrained reports whether the reason narrows the plan list.
func (r InsuranceReason) Constrained() bool {
	return r != ReasonAbsent
}

// String returns the stored form ("0", "1", "2" or "all").
func (r InsuranceReason) String() string {
	if r == ReasonAbsent {
		return "all"
	}
	return strconv.Itoa(int(r) - 1)
}

// MarshalText encodes the reason in its stored form.
func (r InsuranceReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts the stored form. Unrecognised values are an error.
func (r *InsuranceReason) UnmarshalText(text []byte) error {
	reason, ok := ParseInsuranceReason(string(text))
	if !ok {
		return fmt.Errorf("unknown insurance reason %q", text)
	}
	*r = reason
	return nil
}

// CoverageTier is the level of cover the applicant asked for.
type CoverageTier string

const (
	TierAbsent        CoverageTier = ""
	TierBasic         CoverageTier = "basic"
	TierComprehensive CoverageTier = "comprehensive"
)

// ParseCoverageTier normalises a stored value, see ParseInsuranceReason.
func ParseCoverageTier(raw string) (CoverageTier, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "all") {
		return TierAbsent, true
	}
	switch CoverageTier(v) {
	case TierBasic, TierComprehensive:
		return CoverageTier(v), true
	default:
		return TierAbsent, false
	}
}

// Constrained reports whether the tier narrows the plan list.
func (t CoverageTier) Constrained() bool {
	return t != TierAbsent
}

// Key returns the tier as used in rule table keys, with absent collapsing to "all".
func (t CoverageTier) Key() string {
	if t == TierAbsent {
		return "all"
	}
	return string(t)
}

// Answer is a yes/no form answer that may be unanswered.
type Answer string

const (
	AnswerAbsent Answer = ""
	AnswerYes    Answer = "yes"
	AnswerNo     Answer = "no"
)

// ParseAnswer normalises a stored yes/no value.
func ParseAnswer(raw string) (Answer, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "all":
		return AnswerAbsent, true
	case "yes", "true":
		return AnswerYes, true
	case "no", "false":
		return AnswerNo, true
	default:
		return AnswerAbsent, false
	}
}

// Form field names shared by the key-value store and the filter form controls.
const (
	FieldInsuranceReason     = "insuranceReason"
	FieldCoverageTier        = "coverageTier"
	FieldPreExisting         = "preExisting"
	FieldPreExistingCoverage = "preExistingCoverage"
)

// FilterFields lists the fields that drive plan selection, in form order.
var FilterFields = []string{
	FieldInsuranceReason,
	FieldCoverageTier,
	FieldPreExisting,
	FieldPreExistingCoverage,
}

// FilterState is the normalised snapshot of the applicant attributes that drive
// plan selection. It is derived on demand and never stored as its own entity.
type FilterState struct {
	InsuranceReason     InsuranceReason `json:"insuranceReason"`
	CoverageTier        CoverageTier    `json:"coverageTier"`
	PreExisting         Answer          `json:"preExisting"`
	PreExistingCoverage Answer          `json:"preExistingCoverage"`
}

// NoConstraint returns the FilterState with every field absent.
func NoConstraint() FilterState {
	return FilterState{}
}

// Unconstrained reports whether neither reason nor tier narrows the plan list.
func (f FilterState) Unconstrained() bool {
	return !f.InsuranceReason.Constrained() && !f.CoverageTier.Constrained()
}

// ScenarioKey is the static scenario table key, "<reason>:<tier|all>".
func (f FilterState) ScenarioKey() string {
	return f.InsuranceReason.String() + ":" + f.CoverageTier.Key()
}

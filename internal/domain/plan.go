package domain

import (
	"math"
	"strconv"
	"time"
)

// PlanID is a plan's unique name. Identifiers are compared exactly and case-sensitively.
type PlanID string

// HospitalAccommodationOption is the quote option consumed by the pricing feature.
const HospitalAccommodationOption = "Hospital Accommodation"

// QuoteOption is a named add-on with its premium delta.
type QuoteOption struct {
	Name    string  `json:"Name"`
	Premium float64 `json:"Premium"`
}

// PlanQuote is one priced plan of a quote response.
type PlanQuote struct {
	PlanName           PlanID        `json:"PlanName"`
	Premium            float64       `json:"Premium"`
	ConfirmationNumber string        `json:"ConfirmationNumber"`
	RecommendationRank int           `json:"RecommendationRank,omitempty"`
	QuoteOptions       []QuoteOption `json:"QuoteOptions,omitempty"`
}

// Recommended reports whether the quote carries a meaningful recommendation rank.
func (q PlanQuote) Recommended() bool {
	return q.RecommendationRank >= 1 && q.RecommendationRank <= TopN
}

// Option returns the named quote option, if the plan offers it.
func (q PlanQuote) Option(name string) (QuoteOption, bool) {
	for _, opt := range q.QuoteOptions {
		if opt.Name == name {
			return opt, true
		}
	}
	return QuoteOption{}, false
}

// QuoteSet is the quote API response.
type QuoteSet struct {
	QuoteSetID string      `json:"QuoteSetId"`
	PlanQuotes []PlanQuote `json:"PlanQuotes"`
}

// Quote returns the quote for a plan, if present.
func (s *QuoteSet) Quote(id PlanID) (PlanQuote, bool) {
	if s == nil {
		return PlanQuote{}, false
	}
	for _, q := range s.PlanQuotes {
		if q.PlanName == id {
			return q, true
		}
	}
	return PlanQuote{}, false
}

// RoundPremium rounds a premium to whole currency units, halves away from zero.
func RoundPremium(premium float64) int64 {
	return int64(math.Round(premium))
}

// Applicant is the multi-step form record persisted under the formData key.
type Applicant struct {
	InsuranceReason     string    `json:"insuranceReason" validate:"omitempty,oneof=0 1 2 all"`
	CoverageTier        string    `json:"coverageTier" validate:"omitempty,oneof=basic comprehensive all"`
	PreExisting         string    `json:"preExisting" validate:"omitempty,oneof=yes no"`
	PreExistingCoverage string    `json:"preExistingCoverage" validate:"omitempty,oneof=yes no"`
	DateOfBirth         string    `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	CoverStartDate      string    `json:"coverStartDate" validate:"required,datetime=2006-01-02"`
	CoverEndDate        string    `json:"coverEndDate" validate:"omitempty,datetime=2006-01-02"`
	Email               string    `json:"email" validate:"omitempty,email"`
	Partner             bool      `json:"partner"`
	Dependants          int       `json:"dependants" validate:"gte=0,lte=10"`
	UpdatedAt           time.Time `json:"updatedAt,omitempty"`
}

// FormFields returns the applicant as stored form values. Empty answers are
// left out so they do not overwrite earlier steps.
func (a *Applicant) FormFields() map[string]string {
	fields := map[string]string{
		"partner":    strconv.FormatBool(a.Partner),
		"dependants": strconv.Itoa(a.Dependants),
	}
	for name, value := range map[string]string{
		FieldInsuranceReason:     a.InsuranceReason,
		FieldCoverageTier:        a.CoverageTier,
		FieldPreExisting:         a.PreExisting,
		FieldPreExistingCoverage: a.PreExistingCoverage,
		"dateOfBirth":            a.DateOfBirth,
		"coverStartDate":         a.CoverStartDate,
		"coverEndDate":           a.CoverEndDate,
		"email":                  a.Email,
	} {
		if value != "" {
			fields[name] = value
		}
	}
	return fields
}

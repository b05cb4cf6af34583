package service

import "github.com/dpr-plan-engine/internal/domain"

// PlanPrices returns each quoted plan's display premium in whole currency units.
// With hospitalAccommodation the Hospital Accommodation option delta is added
// for plans that offer it.
func PlanPrices(set *domain.QuoteSet, hospitalAccommodation bool) map[domain.PlanID]int64 {
	prices := make(map[domain.PlanID]int64)
	if set == nil {
		return prices
	}
	for _, q := range set.PlanQuotes {
		premium := q.Premium
		if hospitalAccommodation {
			if opt, ok := q.Option(domain.HospitalAccommodationOption); ok {
				premium += opt.Premium
			}
		}
		prices[q.PlanName] = domain.RoundPremium(premium)
	}
	return prices
}

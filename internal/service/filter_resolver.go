package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// FilterResolver reads the applicant's filter attributes from the persistent store
// and normalises them into a FilterState.
type FilterResolver struct {
	logger *logrus.Logger
}

// NewFilterResolver creates a resolver.
func NewFilterResolver(logger *logrus.Logger) *FilterResolver {
	return &FilterResolver{logger: logger}
}

// Resolve never fails: a missing store, missing key, failed read or unrecognised
// value leaves the affected field unconstrained.
func (r *FilterResolver) Resolve(ctx context.Context, store domain.KeyValueStore) domain.FilterState {
	return r.Normalize(r.FormData(ctx, store))
}

// Normalize turns raw form values into a FilterState.
func (r *FilterResolver) Normalize(values map[string]string) domain.FilterState {
	state := domain.NoConstraint()

	if reason, ok := domain.ParseInsuranceReason(values[domain.FieldInsuranceReason]); ok {
		state.InsuranceReason = reason
	} else {
		r.unrecognised(domain.FieldInsuranceReason, values[domain.FieldInsuranceReason])
	}

	if tier, ok := domain.ParseCoverageTier(values[domain.FieldCoverageTier]); ok {
		state.CoverageTier = tier
	} else {
		r.unrecognised(domain.FieldCoverageTier, values[domain.FieldCoverageTier])
	}

	if answer, ok := domain.ParseAnswer(values[domain.FieldPreExisting]); ok {
		state.PreExisting = answer
	} else {
		r.unrecognised(domain.FieldPreExisting, values[domain.FieldPreExisting])
	}

	if answer, ok := domain.ParseAnswer(values[domain.FieldPreExistingCoverage]); ok {
		state.PreExistingCoverage = answer
	} else {
		r.unrecognised(domain.FieldPreExistingCoverage, values[domain.FieldPreExistingCoverage])
	}

	return state
}

// FormData returns the stored form object with every value as a string.
// Non-scalar values are dropped.
func (r *FilterResolver) FormData(ctx context.Context, store domain.KeyValueStore) map[string]string {
	values := make(map[string]string)
	if store == nil {
		return values
	}

	raw, err := store.Get(ctx, domain.KeyFormData)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WithError(err).Warn("Failed to read form data, treating as empty")
		}
		return values
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		r.logger.WithError(err).Warn("Stored form data is not an object, treating as empty")
		return values
	}

	for name, v := range fields {
		switch val := v.(type) {
		case string:
			values[name] = val
		case float64:
			values[name] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			values[name] = strconv.FormatBool(val)
		}
	}
	return values
}

func (r *FilterResolver) unrecognised(field, value string) {
	r.logger.WithFields(logrus.Fields{
		"field": field,
		"value": value,
	}).Warn("Unrecognised filter value, treating as no constraint")
}

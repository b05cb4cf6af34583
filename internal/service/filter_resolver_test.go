package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/logging"
	"github.com/dpr-plan-engine/internal/storage"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (json.RawMessage, error) {
	return nil, errors.New("access denied")
}

func (brokenStore) Set(context.Context, string, json.RawMessage) error {
	return errors.New("quota exceeded")
}

func (brokenStore) Delete(context.Context, string) error { return nil }

func (brokenStore) Close() error { return nil }

func TestFilterResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		formData string
		want     domain.FilterState
	}{
		{
			name:     "string values",
			formData: `{"insuranceReason":"0","coverageTier":"basic","preExisting":"no"}`,
			want: domain.FilterState{
				InsuranceReason: domain.ReasonVisaCompliance,
				CoverageTier:    domain.TierBasic,
				PreExisting:     domain.AnswerNo,
			},
		},
		{
			name:     "numeric reason and boolean answers",
			formData: `{"insuranceReason":2,"preExisting":true,"preExistingCoverage":false}`,
			want: domain.FilterState{
				InsuranceReason:     domain.ReasonSupplemental,
				PreExisting:         domain.AnswerYes,
				PreExistingCoverage: domain.AnswerNo,
			},
		},
		{
			name:     "all means no constraint",
			formData: `{"insuranceReason":"all","coverageTier":"all"}`,
			want:     domain.NoConstraint(),
		},
		{
			name:     "unrecognised values are dropped",
			formData: `{"insuranceReason":"7","coverageTier":"platinum","preExisting":"maybe"}`,
			want:     domain.NoConstraint(),
		},
		{
			name:     "not an object",
			formData: `["0","basic"]`,
			want:     domain.NoConstraint(),
		},
		{
			name:     "nested values are ignored",
			formData: `{"insuranceReason":{"value":"1"},"coverageTier":"comprehensive"}`,
			want:     domain.FilterState{InsuranceReason: domain.ReasonAbsent, CoverageTier: domain.TierComprehensive},
		},
	}

	resolver := NewFilterResolver(logging.Discard())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore(10, 0)
			require.NoError(t, store.Set(context.Background(), domain.KeyFormData, json.RawMessage(tt.formData)))

			assert.Equal(t, tt.want, resolver.Resolve(context.Background(), store))
		})
	}
}

func TestFilterResolver_MissingData(t *testing.T) {
	resolver := NewFilterResolver(logging.Discard())
	ctx := context.Background()

	assert.Equal(t, domain.NoConstraint(), resolver.Resolve(ctx, nil))
	assert.Equal(t, domain.NoConstraint(), resolver.Resolve(ctx, storage.NewMemoryStore(10, 0)))
	assert.Equal(t, domain.NoConstraint(), resolver.Resolve(ctx, brokenStore{}))
}

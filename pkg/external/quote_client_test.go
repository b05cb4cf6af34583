package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/logging"
)

func testApplicant() *domain.Applicant {
	return &domain.Applicant{
		InsuranceReason: "0",
		CoverageTier:    "basic",
		PreExisting:     "no",
		DateOfBirth:     "1990-04-01",
		CoverStartDate:  "2026-11-01",
		Email:           "applicant@example.com",
	}
}

func newTestQuoteClient(url string, retries int) *QuoteClient {
	return NewQuoteClient(domain.QuoteAPIConfig{
		BaseURL:    url,
		APIKey:     "test-key",
		Timeout:    5 * time.Second,
		RateLimit:  100,
		RetryCount: retries,
	})
}

func TestQuoteClient_CreateQuoteSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/quoteset", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var got domain.Applicant
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "basic", got.CoverageTier)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"QuoteSetId": "qs-42",
			"PlanQuotes": [
				{"PlanName": "LINK 1", "Premium": 101.4, "ConfirmationNumber": "C1", "RecommendationRank": 2},
				{"PlanName": "ZONE 5", "Premium": "88.5", "ConfirmationNumber": "C2", "Recommended": "1",
				 "QuoteOptions": [{"Name": "Hospital Accommodation", "Premium": 14}]},
				{"PlanName": "LINK 3", "Premium": 95, "Rank": 7},
				{"Premium": 10}
			]
		}`))
	}))
	defer server.Close()

	set, err := newTestQuoteClient(server.URL+"/api", 0).CreateQuoteSet(context.Background(), testApplicant())
	require.NoError(t, err)

	assert.Equal(t, "qs-42", set.QuoteSetID)
	require.Len(t, set.PlanQuotes, 3)
	assert.Equal(t, 2, set.PlanQuotes[0].RecommendationRank)
	assert.Equal(t, 1, set.PlanQuotes[1].RecommendationRank)
	assert.Equal(t, 88.5, set.PlanQuotes[1].Premium)
	assert.Equal(t, 0, set.PlanQuotes[2].RecommendationRank)

	opt, ok := set.PlanQuotes[1].Option(domain.HospitalAccommodationOption)
	require.True(t, ok)
	assert.Equal(t, 14.0, opt.Premium)
}

func TestQuoteClient_ValidatesApplicant(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := newTestQuoteClient(server.URL, 0)
	tests := []struct {
		name   string
		mutate func(a *domain.Applicant)
		field  string
	}{
		{"missing date of birth", func(a *domain.Applicant) { a.DateOfBirth = "" }, "DateOfBirth"},
		{"bad cover start", func(a *domain.Applicant) { a.CoverStartDate = "01/11/2026" }, "CoverStartDate"},
		{"unknown tier", func(a *domain.Applicant) { a.CoverageTier = "gold" }, "CoverageTier"},
		{"too many dependants", func(a *domain.Applicant) { a.Dependants = 11 }, "Dependants"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApplicant()
			tt.mutate(a)
			_, err := client.CreateQuoteSet(context.Background(), a)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestQuoteClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"QuoteSetId":"ok","PlanQuotes":[]}`))
	}))
	defer server.Close()

	set, err := newTestQuoteClient(server.URL, 2).CreateQuoteSet(context.Background(), testApplicant())
	require.NoError(t, err)
	assert.Equal(t, "ok", set.QuoteSetID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQuoteClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer server.Close()

	_, err := newTestQuoteClient(server.URL, 3).CreateQuoteSet(context.Background(), testApplicant())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuoteClient_GetApplicationURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/applicationUrl/C-1":
			w.Write([]byte(`"https://apply.example.com/C-1"`))
		case "/applicationUrl/C 2":
			w.Write([]byte("https://apply.example.com/C-2\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestQuoteClient(server.URL, 0)
	ctx := context.Background()

	u, err := client.GetApplicationURL(ctx, "C-1")
	require.NoError(t, err)
	assert.Equal(t, "https://apply.example.com/C-1", u)

	u, err = client.GetApplicationURL(ctx, "C 2")
	require.NoError(t, err)
	assert.Equal(t, "https://apply.example.com/C-2", u)

	_, err = client.GetApplicationURL(ctx, "missing")
	assert.Error(t, err)

	_, err = client.GetApplicationURL(ctx, " ")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDecodeQuoteSet_Invalid(t *testing.T) {
	_, err := DecodeQuoteSet([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeQuoteSet([]byte(`{"QuoteSetId":"x"}`))
	assert.Error(t, err)
}

func TestParseRank(t *testing.T) {
	tests := []struct {
		json string
		want int
	}{
		{`{"RecommendationRank": 1}`, 1},
		{`{"RecommendationRank": "3"}`, 3},
		{`{"Recommended": 2}`, 2},
		{`{"Rank": " 2 "}`, 2},
		{`{"RecommendationRank": 0}`, 0},
		{`{"RecommendationRank": 4}`, 0},
		{`{"RecommendationRank": "first"}`, 0},
		{`{"RecommendationRank": true}`, 0},
		{`{}`, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRank(gjson.Parse(tt.json)), tt.json)
	}
}

type stubQuoteService struct {
	err   error
	calls int
}

func (s *stubQuoteService) CreateQuoteSet(context.Context, *domain.Applicant) (*domain.QuoteSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.QuoteSet{QuoteSetID: "stub"}, nil
}

func (s *stubQuoteService) GetApplicationURL(context.Context, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://apply.example.com", nil
}

func TestResilientQuoteClient_TripsOnFailures(t *testing.T) {
	stub := &stubQuoteService{err: errors.New("connection refused")}
	client := NewResilientQuoteClient(stub, nil, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.CreateQuoteSet(ctx, testApplicant())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.GetApplicationURL(ctx, "C-1")
	assert.ErrorIs(t, err, ErrQuoteServiceUnavailable)
	assert.Equal(t, 3, stub.calls)
}

func TestResilientQuoteClient_ValidationErrorsDoNotTrip(t *testing.T) {
	stub := &stubQuoteService{err: domain.NewValidationError("DateOfBirth", "required", "")}
	client := NewResilientQuoteClient(stub, nil, logging.Discard())

	for i := 0; i < 5; i++ {
		_, err := client.CreateQuoteSet(context.Background(), testApplicant())
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	}
	assert.Equal(t, gobreaker.StateClosed, client.State())

	stub.err = nil
	set, err := client.CreateQuoteSet(context.Background(), testApplicant())
	require.NoError(t, err)
	assert.Equal(t, "stub", set.QuoteSetID)
}

func TestQuoteCacheKey(t *testing.T) {
	a := testApplicant()
	b := testApplicant()
	b.UpdatedAt = time.Now()
	b.Email = " Applicant@Example.com "
	assert.Equal(t, QuoteCacheKey(a), QuoteCacheKey(b), "same applicant, re-submitted")

	b.Email = "other@example.com"
	assert.NotEqual(t, QuoteCacheKey(a), QuoteCacheKey(b), "another applicant with the same details")

	b.Email = a.Email
	b.CoverageTier = "comprehensive"
	assert.NotEqual(t, QuoteCacheKey(a), QuoteCacheKey(b))
	assert.Contains(t, QuoteCacheKey(a), "dpr:quote:")
}

func TestCacheable(t *testing.T) {
	assert.True(t, Cacheable(testApplicant()))

	anonymous := testApplicant()
	anonymous.Email = "  "
	assert.False(t, Cacheable(anonymous))
	assert.False(t, Cacheable(nil))
}

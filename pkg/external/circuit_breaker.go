package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/dpr-plan-engine/internal/domain"
)

// ErrQuoteServiceUnavailable is returned while the circuit breaker is open.
var ErrQuoteServiceUnavailable = errors.New("quote service temporarily unavailable")

// ResilientQuoteClient wraps a quote service with a circuit breaker and an optional cache.
type ResilientQuoteClient struct {
	client  domain.QuoteService
	cache   *QuoteCache
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientQuoteClient creates a resilient client. cache may be nil.
func NewResilientQuoteClient(client domain.QuoteService, cache *QuoteCache, logger *logrus.Logger) *ResilientQuoteClient {
	r := &ResilientQuoteClient{
		client: client,
		cache:  cache,
		logger: logger,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "QuoteAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			var verr *domain.ValidationError
			return err == nil || errors.As(err, &verr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return r
}

// CreateQuoteSet serves cached quotes when available, otherwise calls through the
// breaker. Applicants without an email are never cached.
func (r *ResilientQuoteClient) CreateQuoteSet(ctx context.Context, applicant *domain.Applicant) (*domain.QuoteSet, error) {
	cacheable := r.cache != nil && Cacheable(applicant)
	if cacheable {
		set, found, err := r.cache.Get(ctx, applicant)
		if err != nil {
			r.logger.WithError(err).Warn("Quote cache read failed")
		} else if found {
			r.logger.WithField("quote_set_id", set.QuoteSetID).Debug("Serving quote from cache")
			return set, nil
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.CreateQuoteSet(ctx, applicant)
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	set := result.(*domain.QuoteSet)

	if cacheable {
		if err := r.cache.Set(ctx, applicant, set, 0); err != nil {
			r.logger.WithError(err).Warn("Quote cache write failed")
		}
	}
	return set, nil
}

// GetApplicationURL calls through the breaker.
func (r *ResilientQuoteClient) GetApplicationURL(ctx context.Context, confirmationNumber string) (string, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.GetApplicationURL(ctx, confirmationNumber)
	})
	if err != nil {
		return "", r.wrap(err)
	}
	return result.(string), nil
}

// State returns the breaker state.
func (r *ResilientQuoteClient) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientQuoteClient) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrQuoteServiceUnavailable, err)
	}
	return err
}

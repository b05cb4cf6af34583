package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/dpr-plan-engine/internal/domain"
)

// QuoteClient talks to the remote quoting API.
type QuoteClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	retryCount int
	validate   *validator.Validate
}

// NewQuoteClient creates a new quoting API client
func NewQuoteClient(config domain.QuoteAPIConfig) *QuoteClient {
	baseURL := config.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &QuoteClient{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimit:  rate.NewLimiter(limit, 1),
		retryCount: config.RetryCount,
		validate:   validator.New(),
	}
}

// ValidateApplicant checks the applicant record before it is sent for quoting.
func (c *QuoteClient) ValidateApplicant(applicant *domain.Applicant) error {
	if applicant == nil {
		return domain.NewValidationError("applicant", "applicant is required", nil)
	}
	if err := c.validate.Struct(applicant); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return domain.NewValidationError(first.Field(), fmt.Sprintf("failed %s validation", first.Tag()), first.Value())
		}
		return fmt.Errorf("failed to validate applicant: %w", err)
	}
	return nil
}

// CreateQuoteSet posts the applicant and returns the priced plans.
func (c *QuoteClient) CreateQuoteSet(ctx context.Context, applicant *domain.Applicant) (*domain.QuoteSet, error) {
	if err := c.ValidateApplicant(applicant); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(applicant)
	if err != nil {
		return nil, fmt.Errorf("failed to encode applicant: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"quoteset", payload)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}

	set, err := DecodeQuoteSet(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	return set, nil
}

// GetApplicationURL resolves the application URL for a confirmation number.
// The API answers with either a JSON string or plain text.
func (c *QuoteClient) GetApplicationURL(ctx context.Context, confirmationNumber string) (string, error) {
	if strings.TrimSpace(confirmationNumber) == "" {
		return "", domain.NewValidationError("confirmationNumber", "confirmation number is required", confirmationNumber)
	}

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"applicationUrl/"+url.PathEscape(confirmationNumber), nil)
	if err != nil {
		return "", fmt.Errorf("application URL request failed: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if gjson.Valid(text) {
		if r := gjson.Parse(text); r.Type == gjson.String {
			text = r.Str
		} else if u := r.Get("url"); u.Exists() {
			text = u.String()
		}
	}
	if text == "" {
		return "", fmt.Errorf("application URL response was empty")
	}
	return text, nil
}

// do sends a request, retrying transport errors and 5xx responses.
func (c *QuoteClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.rateLimit.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}

		body, retry, err := c.once(ctx, method, endpoint, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *QuoteClient) once(ctx context.Context, method, endpoint string, payload []byte) ([]byte, bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode >= 500, fmt.Errorf("quote API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

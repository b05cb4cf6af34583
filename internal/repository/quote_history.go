// Package repository persists fetched quote sets for later review.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// QuoteRecord is one row of the quote history.
type QuoteRecord struct {
	ID              uuid.UUID          `json:"id"`
	SessionID       string             `json:"sessionId"`
	QuoteSetID      string             `json:"quoteSetId"`
	InsuranceReason string             `json:"insuranceReason"`
	CoverageTier    string             `json:"coverageTier"`
	Applicant       domain.Applicant   `json:"applicant"`
	PlanQuotes      []domain.PlanQuote `json:"planQuotes"`
	Recommended     []domain.PlanID    `json:"recommended"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// QuoteHistoryRepository stores quote sets in PostgreSQL.
type QuoteHistoryRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewQuoteHistoryRepository creates a new quote history repository
func NewQuoteHistoryRepository(db *pgxpool.Pool, logger *logrus.Logger) *QuoteHistoryRepository {
	return &QuoteHistoryRepository{
		db:  db,
		log: logger,
	}
}

var _ domain.QuoteHistory = (*QuoteHistoryRepository)(nil)

// Record inserts a quote set fetched for a session.
func (r *QuoteHistoryRepository) Record(ctx context.Context, sessionID string, applicant *domain.Applicant, set *domain.QuoteSet) error {
	if set == nil {
		return fmt.Errorf("recording quote history: %w", domain.NewValidationError("quoteSet", "is required", nil))
	}
	if applicant == nil {
		applicant = &domain.Applicant{}
	}

	applicantJSON, err := json.Marshal(applicant)
	if err != nil {
		return fmt.Errorf("marshaling applicant: %w", err)
	}
	quotesJSON, err := json.Marshal(set.PlanQuotes)
	if err != nil {
		return fmt.Errorf("marshaling plan quotes: %w", err)
	}

	recommended := make([]string, 0, domain.TopN)
	for _, q := range set.PlanQuotes {
		if q.Recommended() {
			recommended = append(recommended, string(q.PlanName))
		}
	}

	id := uuid.New()
	query := `
		INSERT INTO quote_history (
			id, session_id, quote_set_id, insurance_reason, coverage_tier,
			applicant, plan_quotes, recommended
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err = r.db.Exec(ctx, query,
		id,
		sessionID,
		set.QuoteSetID,
		applicant.InsuranceReason,
		applicant.CoverageTier,
		applicantJSON,
		quotesJSON,
		recommended,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"session_id":   sessionID,
			"quote_set_id": set.QuoteSetID,
			"error":        err,
		}).Error("Failed to record quote set")
		return fmt.Errorf("recording quote set: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"id":           id,
		"session_id":   sessionID,
		"quote_set_id": set.QuoteSetID,
		"plans":        len(set.PlanQuotes),
	}).Debug("Quote set recorded")
	return nil
}

const selectQuoteRecord = `
	SELECT id, session_id, quote_set_id, insurance_reason, coverage_tier,
		   applicant, plan_quotes, recommended, created_at
	FROM quote_history`

// ListBySession returns the most recent quote sets of a session, newest first.
func (r *QuoteHistoryRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]QuoteRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, selectQuoteRecord+`
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err,
		}).Error("Failed to list quote history")
		return nil, fmt.Errorf("listing quote history: %w", err)
	}
	defer rows.Close()

	var records []QuoteRecord
	for rows.Next() {
		rec, err := scanQuoteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quote history: %w", err)
	}
	return records, nil
}

// GetByQuoteSetID returns the latest record for a quote set id.
func (r *QuoteHistoryRepository) GetByQuoteSetID(ctx context.Context, quoteSetID string) (*QuoteRecord, error) {
	row := r.db.QueryRow(ctx, selectQuoteRecord+`
		WHERE quote_set_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, quoteSetID)

	rec, err := scanQuoteRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quote set not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"quote_set_id": quoteSetID,
			"error":        err,
		}).Error("Failed to get quote set")
		return nil, err
	}
	return rec, nil
}

func scanQuoteRecord(row pgx.Row) (*QuoteRecord, error) {
	var (
		rec           QuoteRecord
		applicantJSON []byte
		quotesJSON    []byte
		recommended   []string
	)
	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.QuoteSetID,
		&rec.InsuranceReason,
		&rec.CoverageTier,
		&applicantJSON,
		&quotesJSON,
		&recommended,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning quote record: %w", err)
	}

	if err := json.Unmarshal(applicantJSON, &rec.Applicant); err != nil {
		return nil, fmt.Errorf("decoding applicant: %w", err)
	}
	if err := json.Unmarshal(quotesJSON, &rec.PlanQuotes); err != nil {
		return nil, fmt.Errorf("decoding plan quotes: %w", err)
	}
	for _, p := range recommended {
		rec.Recommended = append(rec.Recommended, domain.PlanID(p))
	}
	return &rec, nil
}

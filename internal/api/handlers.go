package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/middleware"
	"github.com/dpr-plan-engine/pkg/external"
)

const (
	quoteTimeout = 45 * time.Second

	// The visitor id comes from the header when the embedding page manages it,
	// otherwise from the cookie set on the first session.
	clientIDHeader  = "X-Client-ID"
	clientIDCookie  = "dpr_client"
	clientCookieAge = 365 * 24 * 60 * 60
)

type fieldRequest struct {
	Value string `json:"value"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type sessionResponse struct {
	ID        string      `json:"id"`
	ClientID  string      `json:"clientId"`
	CreatedAt time.Time   `json:"createdAt"`
	State     interface{} `json:"state"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	clientID := c.GetHeader(clientIDHeader)
	if clientID != "" {
		if _, err := uuid.Parse(clientID); err != nil {
			s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "client id must be a UUID", err)
			return
		}
	} else if cookie, err := c.Cookie(clientIDCookie); err == nil {
		if _, err := uuid.Parse(cookie); err == nil {
			clientID = cookie
		}
	}

	sess, err := s.sessions.Create(c.Request.Context(), clientID)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, domain.ErrInternalServer, "could not create session", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(clientIDCookie, sess.ClientID, clientCookieAge, "/", "", gin.Mode() == gin.ReleaseMode, true)
	c.JSON(http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		ClientID:  sess.ClientID,
		CreatedAt: sess.CreatedAt,
		State:     sess.Engine.Snapshot(),
	})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.sessions.Remove(c.Param("id")) {
		s.fail(c, http.StatusNotFound, domain.ErrSessionMissing, "session not found", domain.ErrSessionNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleResults(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	page, err := sess.Document.HTML()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, domain.ErrInternalServer, "could not render results page", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (s *Server) handleState(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Engine.Snapshot())
}

func (s *Server) handleSetField(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "body must be {\"value\": string}", err)
		return
	}

	snap, err := sess.Engine.SetField(c.Request.Context(), c.Param("name"), req.Value)
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleHospitalAccommodation(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "body must be {\"enabled\": bool}", err)
		return
	}

	sess.Document.SetHospitalAccommodation(*req.Enabled)
	c.JSON(http.StatusOK, sess.Engine.SetHospitalAccommodation(c.Request.Context(), *req.Enabled))
}

// handleQuote stores the posted applicant as form data and fetches quotes for
// it. The page is re-rendered whether or not the quote service answers.
func (s *Server) handleQuote(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var applicant domain.Applicant
	if err := c.ShouldBindJSON(&applicant); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "body must be an applicant object", err)
		return
	}
	applicant.UpdatedAt = time.Now().UTC()
	sess.Engine.RecordApplicant(c.Request.Context(), &applicant)

	ctx, cancel := context.WithTimeout(c.Request.Context(), quoteTimeout)
	defer cancel()

	set, err := s.quotes.CreateQuoteSet(ctx, &applicant)
	if err != nil {
		snap := sess.Engine.QuoteFailed(ctx, err)

		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			s.fail(c, http.StatusBadRequest, domain.ErrValidation, verr.Error(), err)
		case errors.Is(err, external.ErrQuoteServiceUnavailable):
			s.fail(c, http.StatusServiceUnavailable, domain.ErrUpstreamDegraded, "quote service unavailable", err)
		default:
			s.fail(c, http.StatusBadGateway, domain.ErrQuoteAPI, "quote request failed", err)
		}
		s.logger.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"trigger":    snap.Trigger,
		}).Debug("Rendered after failed quote")
		return
	}

	if s.history != nil {
		if err := s.history.Record(ctx, sess.ID, &applicant, set); err != nil {
			s.logger.WithError(err).WithField("session_id", sess.ID).Warn("Failed to record quote history")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"quoteSetId": set.QuoteSetID,
		"quotes":     set.PlanQuotes,
		"state":      sess.Engine.ApplyQuotes(ctx, set),
	})
}

func (s *Server) handleQuoteHistory(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	lister, ok := s.history.(HistoryLister)
	if !ok {
		s.fail(c, http.StatusNotFound, domain.ErrStorageError, "quote history is not enabled", nil)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "limit must be a positive integer", err)
		return
	}

	records, err := lister.ListBySession(c.Request.Context(), sess.ID, limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, domain.ErrStorageError, "could not read quote history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": records})
}

func (s *Server) handleAddComparison(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	plan := domain.PlanID(c.Param("plan"))
	if !onPage(sess, plan) {
		s.fail(c, http.StatusNotFound, domain.ErrInvalidInput, "plan is not on the results page", nil)
		return
	}

	view, err := sess.Engine.AddToComparison(plan)
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleRemoveComparison(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	view, err := sess.Engine.RemoveFromComparison(domain.PlanID(c.Param("plan")))
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleCompare(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	snap, err := sess.Engine.Compare(c.Request.Context())
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleClearComparison(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Engine.ClearComparison(c.Request.Context()))
}

func (s *Server) handleApplicationURL(c *gin.Context) {
	url, err := s.quotes.GetApplicationURL(c.Request.Context(), c.Param("confirmation"))
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			s.fail(c, http.StatusBadRequest, domain.ErrValidation, verr.Error(), err)
		case errors.Is(err, external.ErrQuoteServiceUnavailable):
			s.fail(c, http.StatusServiceUnavailable, domain.ErrUpstreamDegraded, "quote service unavailable", err)
		default:
			s.fail(c, http.StatusBadGateway, domain.ErrQuoteAPI, "could not fetch application url", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// session resolves the :id parameter, writing a 404 when it is unknown.
func (s *Server) session(c *gin.Context) (*Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusNotFound, domain.ErrSessionMissing, "session not found", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) engineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownField):
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error(), err)
	case errors.Is(err, domain.ErrPlanNotSelected):
		s.fail(c, http.StatusNotFound, domain.ErrComparisonState, err.Error(), err)
	case errors.Is(err, domain.ErrComparisonActive),
		errors.Is(err, domain.ErrComparisonFull),
		errors.Is(err, domain.ErrEmptyComparison):
		s.fail(c, http.StatusConflict, domain.ErrComparisonState, err.Error(), err)
	default:
		s.fail(c, http.StatusInternalServerError, domain.ErrInternalServer, "unexpected error", err)
	}
}

func (s *Server) fail(c *gin.Context, status int, code, message string, err error) {
	requestID := c.GetString(middleware.RequestIDKey)
	details := ""
	if err != nil && status < http.StatusInternalServerError {
		details = err.Error()
	}

	entry := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"code":       code,
		"status":     status,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	c.AbortWithStatusJSON(status, domain.NewWidgetError(code, message, details, requestID))
}

func onPage(sess *Session, plan domain.PlanID) bool {
	for _, el := range sess.Document.Elements() {
		if el.Plan == plan {
			return true
		}
	}
	return false
}

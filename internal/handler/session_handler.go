package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/middleware"
	"github.com/praxislearn/assess-backend/internal/model"
	"github.com/praxislearn/assess-backend/internal/response"
	"github.com/praxislearn/assess-backend/internal/service"
	"github.com/praxislearn/assess-backend/internal/validator"
)

// SessionHandler is the gateway for one exam attempt: start, navigate,
// answer, mark for review, account time, submit, read result.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// failFromErr maps domain errors to HTTP status + API code. Ownership
// mismatches render as NOT_FOUND so other learners' sessions never leak.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConfiguration):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrConfiguration)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, service.ErrDeadlineExceeded):
		response.Fail(c, http.StatusGone, response.ErrDeadlineExceeded)
	case errors.Is(err, service.ErrConcurrencyConflict):
		response.Fail(c, http.StatusConflict, response.ErrConcurrencyConflict)
	case errors.Is(err, service.ErrResultNotReady):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotReady)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// sessionCall extracts the authenticated learner and the session ID path
// param shared by every per-session route.
func sessionCall(c *gin.Context) (learnerID int, sessionID uuid.UUID, ok bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, uuid.Nil, false
	}
	return claims.LearnerID, sessionID, true
}

// Start godoc
// POST /api/v1/sessions
// Starts (or re-joins) an attempt on a paper.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), claims.LearnerID, req.PaperID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": gin.H{
		"id":                 session.ID,
		"paper_id":           session.PaperID,
		"status":             session.Status,
		"question_count":     len(session.QuestionIDs),
		"started_at":         session.StartedAt,
		"time_limit_seconds": session.TimeLimitSeconds,
	}})
}

// Get godoc
// GET /api/v1/sessions/:session_id
// Returns the session status plus the derived question palette.
func (h *SessionHandler) Get(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	summary, err := h.sessions.Get(c.Request.Context(), sessionID, learnerID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": summary})
}

// Questions godoc
// GET /api/v1/sessions/:session_id/questions
// Returns the snapshotted question payloads; correctness keys never appear here.
func (h *SessionHandler) Questions(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	questions, err := h.sessions.Questions(c.Request.Context(), sessionID, learnerID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	if questions == nil {
		questions = []model.QuestionForLearner{}
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// RecordAnswer godoc
// POST /api/v1/sessions/:session_id/answers
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessions.RecordAnswer(c.Request.Context(), sessionID, learnerID, req.QuestionID, req.SelectedOptionID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "recorded"})
}

// ToggleReview godoc
// POST /api/v1/sessions/:session_id/review
func (h *SessionHandler) ToggleReview(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	var req model.ToggleReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	marked, err := h.sessions.ToggleReview(c.Request.Context(), sessionID, learnerID, req.QuestionID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked_for_review": marked})
}

// AccountTime godoc
// POST /api/v1/sessions/:session_id/time
// Heartbeat attributing elapsed seconds to the active question.
func (h *SessionHandler) AccountTime(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	var req model.AccountTimeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessions.AccountTime(c.Request.Context(), sessionID, learnerID, req.QuestionID, req.DeltaSeconds)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "accounted"})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Idempotent: safe to retry; a completed session returns its frozen result.
func (h *SessionHandler) Submit(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.sessions.Submit(c.Request.Context(), sessionID, learnerID, req.Reason)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// Result godoc
// GET /api/v1/sessions/:session_id/result
// 404 until the session completes, then the frozen result forever.
func (h *SessionHandler) Result(c *gin.Context) {
	learnerID, sessionID, ok := sessionCall(c)
	if !ok {
		return
	}

	result, err := h.sessions.Result(c.Request.Context(), sessionID, learnerID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

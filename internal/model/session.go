package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session states. The machine is
// monotonic: IN_PROGRESS is the only live state and COMPLETED is terminal.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// FinalizationReason records why a session was frozen.
type FinalizationReason string

const (
	ReasonUserSubmit FinalizationReason = "USER_SUBMIT"
	ReasonTimeout    FinalizationReason = "TIMEOUT"
	ReasonAdminForce FinalizationReason = "ADMIN_FORCE"
)

// Session represents one learner's timed attempt at a paper.
// QuestionIDs is snapshotted at creation and never changes; it defines
// navigation order and total count. Version increments on every accepted
// mutation and guards the finalize compare-and-set.
type Session struct {
	ID               uuid.UUID     `json:"id"`
	LearnerID        int           `json:"learner_id"`
	PaperID          uuid.UUID     `json:"paper_id"`
	QuestionIDs      []uuid.UUID   `json:"question_ids"`
	Status           SessionStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	TimeLimitSeconds *int          `json:"time_limit_seconds,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Version          int64         `json:"version"`
}

// AnswerRecord is the mutable per-question state within a session.
// One record exists per question ID from the moment the session starts.
type AnswerRecord struct {
	SessionID        uuid.UUID `json:"session_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	SelectedOptionID *string   `json:"selected_option_id,omitempty"`
	MarkedForReview  bool      `json:"marked_for_review"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	IsCorrect        *bool     `json:"is_correct,omitempty"`
}

// SessionSummary is the gateway view returned on create and read.
type SessionSummary struct {
	ID               uuid.UUID      `json:"id"`
	PaperID          uuid.UUID      `json:"paper_id"`
	Status           SessionStatus  `json:"status"`
	QuestionCount    int            `json:"question_count"`
	StartedAt        time.Time      `json:"started_at"`
	TimeLimitSeconds *int           `json:"time_limit_seconds,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	RemainingSeconds *int           `json:"remaining_seconds,omitempty"`
	Palette          []PaletteEntry `json:"palette"`
}

// StartSessionRequest is the payload for starting an attempt.
type StartSessionRequest struct {
	PaperID uuid.UUID `json:"paper_id" binding:"required"`
}

// RecordAnswerRequest is the payload for answering a question.
type RecordAnswerRequest struct {
	QuestionID       uuid.UUID `json:"question_id" binding:"required"`
	SelectedOptionID string    `json:"selected_option_id" binding:"required,max=10"`
}

// ToggleReviewRequest is the payload for flipping a question's review flag.
type ToggleReviewRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}

// AccountTimeRequest is the heartbeat payload attributing elapsed time to
// the question that was active.
type AccountTimeRequest struct {
	QuestionID   uuid.UUID `json:"question_id" binding:"required"`
	DeltaSeconds int       `json:"delta_seconds" binding:"required,min=0"`
}

// SubmitRequest is the payload for an explicit submit. Reason defaults to
// USER_SUBMIT when omitted; the learner-facing route accepts nothing else.
// TIMEOUT and ADMIN_FORCE are assigned server-side, never by the caller.
type SubmitRequest struct {
	Reason FinalizationReason `json:"reason" binding:"omitempty,oneof=USER_SUBMIT"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionOutcome is the per-question slice of a frozen result.
type QuestionOutcome struct {
	QuestionID       uuid.UUID `json:"question_id"`
	SelectedOptionID *string   `json:"selected_option_id,omitempty"`
	CorrectOptionID  string    `json:"correct_option_id"`
	IsCorrect        bool      `json:"is_correct"`
}

// Result is the immutable outcome of one session, created exactly once at
// finalization.
type Result struct {
	SessionID      uuid.UUID          `json:"session_id"`
	TotalQuestions int                `json:"total_questions"`
	CorrectCount   int                `json:"correct_count"`
	ScorePercent   float64            `json:"score_percent"`
	PerQuestion    []QuestionOutcome  `json:"per_question"`
	Reason         FinalizationReason `json:"finalization_reason"`
	FinalizedAt    time.Time          `json:"finalized_at"`
}

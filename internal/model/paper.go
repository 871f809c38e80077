package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Paper is a fixed set of ordered questions plus an optional time limit.
// Papers are authored elsewhere; the engine only reads them.
type Paper struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	TimeLimitSeconds *int      `json:"time_limit_seconds,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Question is one paper question including its correctness key.
// Never serialized to learners as-is.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	PaperID       uuid.UUID       `json:"paper_id"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"correct_option"`
	OrderNum      int             `json:"order_num"`
}

// QuestionForLearner is a question with the correctness key stripped.
type QuestionForLearner struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
}

// ForLearner strips the correctness key from a question.
func (q *Question) ForLearner() QuestionForLearner {
	return QuestionForLearner{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Options:      q.Options,
		OrderNum:     q.OrderNum,
	}
}

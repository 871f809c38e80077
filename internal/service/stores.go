package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/model"
)

// SessionStore persists the session aggregate. Implementations must make
// Finalize a single atomic compare-and-set unit: the status flip, frozen
// correctness, and result row commit together or not at all.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetByPaperAndLearner(ctx context.Context, paperID uuid.UUID, learnerID int) (*model.Session, error)
	IncrementVersion(ctx context.Context, id uuid.UUID) error
	Finalize(ctx context.Context, sessionID uuid.UUID, version int64, graded []model.AnswerRecord, res *model.Result) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// AnswerStore is the answer ledger. Pure storage; guards live in the
// session service.
type AnswerStore interface {
	Get(ctx context.Context, sessionID, questionID uuid.UUID) (*model.AnswerRecord, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error)
	SetSelectedOption(ctx context.Context, sessionID, questionID uuid.UUID, option string) error
	ToggleReview(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error)
	AddTime(ctx context.Context, sessionID, questionID uuid.UUID, deltaSeconds int) error
}

// ResultStore reads frozen results.
type ResultStore interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Result, error)
}

// PaperSource supplies immutable paper content and correctness keys.
type PaperSource interface {
	GetPaper(ctx context.Context, paperID uuid.UUID) (*model.Paper, error)
	QuestionIDs(ctx context.Context, paperID uuid.UUID) ([]uuid.UUID, error)
	LearnerQuestions(ctx context.Context, paperID uuid.UUID) ([]model.QuestionForLearner, error)
	AnswerKey(ctx context.Context, paperID uuid.UUID) (map[uuid.UUID]string, error)
}

// DeadlineTracker indexes timed sessions for the expiry sweep.
type DeadlineTracker interface {
	Add(ctx context.Context, sessionID uuid.UUID, deadline time.Time) error
	Remove(ctx context.Context, sessionID uuid.UUID) error
	Due(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

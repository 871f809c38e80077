package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praxislearn/assess-backend/internal/model"
)

// AnswerRepository is the answer ledger: per-question state keyed by
// (session_id, question_id). Mutations re-check the session status in SQL;
// higher-level guards live in the session service.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

const answerColumns = `session_id, question_id, selected_option, marked_for_review, time_spent_seconds, is_correct`

func scanAnswer(row pgx.Row) (*model.AnswerRecord, error) {
	a := &model.AnswerRecord{}
	err := row.Scan(&a.SessionID, &a.QuestionID, &a.SelectedOptionID,
		&a.MarkedForReview, &a.TimeSpentSeconds, &a.IsCorrect)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves one answer record.
func (r *AnswerRepository) Get(ctx context.Context, sessionID, questionID uuid.UUID) (*model.AnswerRecord, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM session_answers
		 WHERE session_id = $1 AND question_id = $2`, sessionID, questionID))
}

// ListBySession retrieves all answer records for a session. Order is not
// significant here; callers align records against the session's snapshot.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM session_answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AnswerRecord
	for rows.Next() {
		var a model.AnswerRecord
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SelectedOptionID,
			&a.MarkedForReview, &a.TimeSpentSeconds, &a.IsCorrect); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// liveSessionGuard restricts ledger writes to IN_PROGRESS sessions, so a
// mutation racing a finalize resolves to zero rows instead of landing on a
// frozen ledger.
const liveSessionGuard = `EXISTS (
   SELECT 1 FROM sessions s
   WHERE s.id = session_answers.session_id AND s.status = 'IN_PROGRESS'
 )`

// SetSelectedOption overwrites the learner's selection. Writing the same
// option twice is a no-op in effect; time accounting is a separate call.
// Zero rows (unknown question or completed session) reports pgx.ErrNoRows.
func (r *AnswerRepository) SetSelectedOption(ctx context.Context, sessionID, questionID uuid.UUID, option string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session_answers
		 SET selected_option = $3, updated_at = NOW()
		 WHERE session_id = $1 AND question_id = $2 AND `+liveSessionGuard,
		sessionID, questionID, option)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ToggleReview flips the review flag and returns the new value.
func (r *AnswerRepository) ToggleReview(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	var marked bool
	err := r.pool.QueryRow(ctx,
		`UPDATE session_answers
		 SET marked_for_review = NOT marked_for_review, updated_at = NOW()
		 WHERE session_id = $1 AND question_id = $2 AND `+liveSessionGuard+`
		 RETURNING marked_for_review`,
		sessionID, questionID).Scan(&marked)
	return marked, err
}

// AddTime adds a clamped delta to the question's cumulative time. The
// counter is monotonically non-decreasing; the service guarantees delta >= 0.
func (r *AnswerRepository) AddTime(ctx context.Context, sessionID, questionID uuid.UUID, deltaSeconds int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session_answers
		 SET time_spent_seconds = time_spent_seconds + $3, updated_at = NOW()
		 WHERE session_id = $1 AND question_id = $2 AND `+liveSessionGuard,
		sessionID, questionID, deltaSeconds)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

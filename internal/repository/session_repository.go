package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praxislearn/assess-backend/internal/model"
)

// SessionRepository handles session aggregate data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, learner_id, paper_id, question_ids, status, started_at, time_limit_seconds, completed_at, version`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.LearnerID, &s.PaperID, &s.QuestionIDs, &s.Status,
		&s.StartedAt, &s.TimeLimitSeconds, &s.CompletedAt, &s.Version)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session and seeds one empty answer record per
// question in the same transaction. The (paper_id, learner_id) unique
// constraint makes concurrent starts collapse to a single row; callers get
// pgx.ErrNoRows from the RETURNING clause when the insert was skipped and
// should re-fetch the existing session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO sessions (id, learner_id, paper_id, question_ids, status, time_limit_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (paper_id, learner_id) DO NOTHING
		 RETURNING started_at, version`,
		s.ID, s.LearnerID, s.PaperID, s.QuestionIDs, model.SessionStatusInProgress, s.TimeLimitSeconds,
	).Scan(&s.StartedAt, &s.Version)
	if err != nil {
		return err
	}

	// Seed empty answer records in snapshot order.
	batch := &pgx.Batch{}
	for _, qid := range s.QuestionIDs {
		batch.Queue(
			`INSERT INTO session_answers (session_id, question_id) VALUES ($1, $2)`,
			s.ID, qid,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed answers: %w", err)
	}

	s.Status = model.SessionStatusInProgress
	return tx.Commit(ctx)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetByPaperAndLearner retrieves a session for a paper-learner combination.
func (r *SessionRepository) GetByPaperAndLearner(ctx context.Context, paperID uuid.UUID, learnerID int) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE paper_id = $1 AND learner_id = $2`,
		paperID, learnerID))
}

// IncrementVersion bumps the session version after an accepted mutation.
// The status predicate keeps completed sessions frozen even if a stale
// caller races the finalizer.
func (r *SessionRepository) IncrementVersion(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET version = version + 1 WHERE id = $1 AND status = $2`,
		id, model.SessionStatusInProgress)
	return err
}

// Finalize atomically flips the session to COMPLETED, freezes graded
// answers, and inserts the result — all in one transaction guarded by the
// version compare-and-set. Returns false without error when another call
// already completed the session; the caller must then read back the
// persisted result instead of recomputing.
func (r *SessionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, version int64, graded []model.AnswerRecord, res *model.Result) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, completed_at = $2, version = version + 1
		 WHERE id = $3 AND status = $4 AND version = $5`,
		model.SessionStatusCompleted, res.FinalizedAt, sessionID,
		model.SessionStatusInProgress, version)
	if err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race — another finalize committed first.
		return false, nil
	}

	// Freeze per-question correctness with a bulk UNNEST update.
	n := len(graded)
	questionIDs := make([]uuid.UUID, 0, n)
	corrects := make([]bool, 0, n)
	for i := range graded {
		if graded[i].IsCorrect == nil {
			continue
		}
		questionIDs = append(questionIDs, graded[i].QuestionID)
		corrects = append(corrects, *graded[i].IsCorrect)
	}
	if len(questionIDs) > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE session_answers AS a
			 SET is_correct = t.is_correct, updated_at = NOW()
			 FROM (
				SELECT u.question_id, u.is_correct
				FROM UNNEST($2::uuid[], $3::bool[]) AS u (question_id, is_correct)
			 ) AS t
			 WHERE a.session_id = $1 AND a.question_id = t.question_id`,
			sessionID, questionIDs, corrects)
		if err != nil {
			return false, fmt.Errorf("freeze correctness: %w", err)
		}
	}

	perQuestion, err := json.Marshal(res.PerQuestion)
	if err != nil {
		return false, fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO session_results (session_id, total_questions, correct_count, score_percent, per_question, reason, finalized_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.SessionID, res.TotalQuestions, res.CorrectCount, res.ScorePercent,
		perQuestion, res.Reason, res.FinalizedAt)
	if err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ListExpired returns IDs of timed IN_PROGRESS sessions whose deadline has
// passed. Used by the sweep as the durable fallback behind the Redis
// deadline index.
func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM sessions
		 WHERE status = $1
		   AND time_limit_seconds IS NOT NULL
		   AND started_at + make_interval(secs => time_limit_seconds) <= $2`,
		model.SessionStatusInProgress, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

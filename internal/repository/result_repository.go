package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praxislearn/assess-backend/internal/model"
)

// ResultRepository reads frozen session results. Results are only ever
// written by SessionRepository.Finalize, inside the finalize transaction.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// GetBySession retrieves the frozen result for a session.
func (r *ResultRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Result, error) {
	res := &model.Result{}
	var perQuestion []byte
	err := r.pool.QueryRow(ctx,
		`SELECT session_id, total_questions, correct_count, score_percent, per_question, reason, finalized_at
		 FROM session_results
		 WHERE session_id = $1`, sessionID,
	).Scan(&res.SessionID, &res.TotalQuestions, &res.CorrectCount,
		&res.ScorePercent, &perQuestion, &res.Reason, &res.FinalizedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(perQuestion, &res.PerQuestion); err != nil {
		return nil, fmt.Errorf("decode outcomes: %w", err)
	}
	return res, nil
}

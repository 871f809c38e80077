package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praxislearn/assess-backend/internal/model"
)

// PaperRepository reads papers and their questions. The engine never
// mutates paper content.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// GetByID retrieves a paper by its ID.
func (r *PaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	p := &model.Paper{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, time_limit_seconds, created_at FROM papers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.TimeLimitSeconds, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListQuestions retrieves a paper's questions in authored order.
func (r *PaperRepository) ListQuestions(ctx context.Context, paperID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, paper_id, question_text, options, correct_option, order_num
		 FROM questions
		 WHERE paper_id = $1
		 ORDER BY order_num ASC`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.PaperID, &q.QuestionText, &q.Options,
			&q.CorrectOption, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AnswerKey returns the correctness key map for a paper.
func (r *PaperRepository) AnswerKey(ctx context.Context, paperID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correct_option FROM questions WHERE paper_id = $1`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := make(map[uuid.UUID]string)
	for rows.Next() {
		var id uuid.UUID
		var correct string
		if err := rows.Scan(&id, &correct); err != nil {
			return nil, err
		}
		key[id] = correct
	}
	return key, rows.Err()
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/praxislearn/assess-backend/internal/model"
	"github.com/praxislearn/assess-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// payloadTTL bounds staleness of cached paper payloads. Sessions snapshot
// their question order at start, so a stale payload only affects papers
// that have not been attempted yet.
const payloadTTL = 10 * time.Minute

// PaperService implements PaperSource over the paper repository with a
// Redis read-through cache: the learner payload and the correctness key are
// cached under separate keys so the key material never rides along with
// anything learner-facing.
type PaperService struct {
	repo *repository.PaperRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(repo *repository.PaperRepository, rdb *redis.Client, log zerolog.Logger) *PaperService {
	return &PaperService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "paper_service").Logger(),
	}
}

// GetPaper retrieves paper metadata.
func (s *PaperService) GetPaper(ctx context.Context, paperID uuid.UUID) (*model.Paper, error) {
	return s.repo.GetByID(ctx, paperID)
}

// QuestionIDs returns the paper's question IDs in authored order.
func (s *PaperService) QuestionIDs(ctx context.Context, paperID uuid.UUID) ([]uuid.UUID, error) {
	questions, err := s.repo.ListQuestions(ctx, paperID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

// LearnerQuestions returns the paper's questions with correctness keys
// stripped, served from cache when warm.
func (s *PaperService) LearnerQuestions(ctx context.Context, paperID uuid.UUID) ([]model.QuestionForLearner, error) {
	cacheKey := config.CacheKey.PaperPayloadKey(paperID.String())

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var questions []model.QuestionForLearner
		if err := json.Unmarshal([]byte(cached), &questions); err == nil {
			return questions, nil
		}
		// Corrupt entry; fall through to the DB and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Payload cache read failed")
	}

	full, err := s.repo.ListQuestions(ctx, paperID)
	if err != nil {
		return nil, err
	}

	questions := make([]model.QuestionForLearner, 0, len(full))
	for i := range full {
		questions = append(questions, full[i].ForLearner())
	}

	if raw, err := json.Marshal(questions); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, raw, payloadTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Payload cache write failed")
		}
	}
	return questions, nil
}

// AnswerKey returns the paper's correctness key map. Cached as a Redis hash
// keyed question ID → correct option.
func (s *PaperService) AnswerKey(ctx context.Context, paperID uuid.UUID) (map[uuid.UUID]string, error) {
	cacheKey := config.CacheKey.PaperAnswerKey(paperID.String())

	cached, err := s.rdb.HGetAll(ctx, cacheKey).Result()
	if err == nil && len(cached) > 0 {
		key := make(map[uuid.UUID]string, len(cached))
		valid := true
		for qid, correct := range cached {
			id, parseErr := uuid.Parse(qid)
			if parseErr != nil {
				valid = false
				break
			}
			key[id] = correct
		}
		if valid {
			return key, nil
		}
	}

	key, err := s.repo.AnswerKey(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	if len(key) > 0 {
		fields := make(map[string]string, len(key))
		for qid, correct := range key {
			fields[qid.String()] = correct
		}
		pipe := s.rdb.Pipeline()
		pipe.HSet(ctx, cacheKey, fields)
		pipe.Expire(ctx, cacheKey, payloadTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Answer key cache write failed")
		}
	}
	return key, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/praxislearn/assess-backend/internal/model"
	"github.com/rs/zerolog"
)

// SessionService is the session state machine: it orchestrates creation,
// answer and review mutations, time accounting, and the transition to the
// terminal COMPLETED state. Every mutating call consults the deadline
// authority with the server clock before touching state.
type SessionService struct {
	sessions  SessionStore
	answers   AnswerStore
	results   ResultStore
	papers    PaperSource
	deadlines DeadlineTracker
	policy    ScoringPolicy
	log       zerolog.Logger

	skew        time.Duration
	timeCeiling int

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// NewSessionService creates a new SessionService with the flat scoring
// policy unless overridden via WithPolicy.
func NewSessionService(
	sessions SessionStore,
	answers AnswerStore,
	results ResultStore,
	papers PaperSource,
	deadlines DeadlineTracker,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		answers:     answers,
		results:     results,
		papers:      papers,
		deadlines:   deadlines,
		policy:      FlatScoring{},
		log:         log.With().Str("component", "session_service").Logger(),
		skew:        cfg.DeadlineSkew,
		timeCeiling: cfg.AccountTimeCeiling,
		now:         time.Now,
	}
}

// WithPolicy swaps the scoring policy. Must be called before any session
// finalizes; a policy is never re-applied to an existing result.
func (s *SessionService) WithPolicy(p ScoringPolicy) *SessionService {
	s.policy = p
	return s
}

// Start creates a session for the learner on the given paper: snapshots the
// question order, seeds empty answer records, and registers the deadline.
// Starting the same paper twice returns the existing session, like a
// re-join after a refresh or a second device.
func (s *SessionService) Start(ctx context.Context, learnerID int, paperID uuid.UUID) (*model.Session, error) {
	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown paper %s", ErrConfiguration, paperID)
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	questionIDs, err := s.papers.QuestionIDs(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	if len(questionIDs) == 0 {
		return nil, fmt.Errorf("%w: paper %s has no questions", ErrConfiguration, paperID)
	}

	session := &model.Session{
		ID:               uuid.New(),
		LearnerID:        learnerID,
		PaperID:          paperID,
		QuestionIDs:      questionIDs,
		Status:           model.SessionStatusInProgress,
		TimeLimitSeconds: paper.TimeLimitSeconds,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent or repeated start — hand back the existing session.
			existing, fetchErr := s.sessions.GetByPaperAndLearner(ctx, paperID, learnerID)
			if fetchErr != nil {
				return nil, fmt.Errorf("fetch existing session: %w", fetchErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	if deadline, ok := Deadline(session); ok {
		if err := s.deadlines.Add(ctx, session.ID, deadline); err != nil {
			// The DB fallback scan still catches this session.
			s.log.Warn().Err(err).Str("session_id", session.ID.String()).
				Msg("Failed to index deadline")
		}
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("learner_id", learnerID).
		Int("questions", len(questionIDs)).
		Msg("Session started")

	return session, nil
}

// Get returns the session summary with the derived palette.
func (s *SessionService) Get(ctx context.Context, sessionID uuid.UUID, learnerID int) (*model.SessionSummary, error) {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return nil, err
	}

	records, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	summary := &model.SessionSummary{
		ID:               sess.ID,
		PaperID:          sess.PaperID,
		Status:           sess.Status,
		QuestionCount:    len(sess.QuestionIDs),
		StartedAt:        sess.StartedAt,
		TimeLimitSeconds: sess.TimeLimitSeconds,
		CompletedAt:      sess.CompletedAt,
		Palette:          model.BuildPalette(sess.QuestionIDs, records),
	}
	if sess.Status == model.SessionStatusInProgress {
		if remaining, ok := RemainingSeconds(sess, s.now()); ok {
			summary.RemainingSeconds = &remaining
		}
	}
	return summary, nil
}

// Questions returns the snapshotted question payloads in navigation order.
// Correctness keys are stripped before anything leaves the service.
func (s *SessionService) Questions(ctx context.Context, sessionID uuid.UUID, learnerID int) ([]model.QuestionForLearner, error) {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return nil, err
	}

	questions, err := s.papers.LearnerQuestions(ctx, sess.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	byID := make(map[uuid.UUID]*model.QuestionForLearner, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	// The snapshot, not the paper's current state, defines the list.
	ordered := make([]model.QuestionForLearner, 0, len(sess.QuestionIDs))
	for _, qid := range sess.QuestionIDs {
		if q, ok := byID[qid]; ok {
			ordered = append(ordered, *q)
		}
	}
	return ordered, nil
}

// RecordAnswer overwrites the learner's selection for one question.
func (s *SessionService) RecordAnswer(ctx context.Context, sessionID uuid.UUID, learnerID int, questionID uuid.UUID, selectedOptionID string) error {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return err
	}
	if err := s.guardMutable(ctx, sess); err != nil {
		return err
	}

	if err := s.answers.SetSelectedOption(ctx, sessionID, questionID, selectedOptionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.ledgerMissErr(ctx, sessionID, questionID)
		}
		return fmt.Errorf("set answer: %w", err)
	}
	return s.bumpVersion(ctx, sessionID)
}

// ToggleReview flips the review flag for one question.
func (s *SessionService) ToggleReview(ctx context.Context, sessionID uuid.UUID, learnerID int, questionID uuid.UUID) (bool, error) {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return false, err
	}
	if err := s.guardMutable(ctx, sess); err != nil {
		return false, err
	}

	marked, err := s.answers.ToggleReview(ctx, sessionID, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, s.ledgerMissErr(ctx, sessionID, questionID)
		}
		return false, fmt.Errorf("toggle review: %w", err)
	}
	return marked, s.bumpVersion(ctx, sessionID)
}

// AccountTime attributes reported elapsed seconds to a question. The engine
// trusts the delta but clamps it: never negative, never above the per-call
// ceiling, never past the session's remaining time budget, and never enough
// to push the session's total over the wall-clock time since it started.
func (s *SessionService) AccountTime(ctx context.Context, sessionID uuid.UUID, learnerID int, questionID uuid.UUID, deltaSeconds int) error {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return err
	}
	if err := s.guardMutable(ctx, sess); err != nil {
		return err
	}

	records, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	totalSpent := 0
	for i := range records {
		totalSpent += records[i].TimeSpentSeconds
	}

	delta := s.clampDelta(sess, deltaSeconds, totalSpent)
	if delta == 0 {
		return nil
	}

	if err := s.answers.AddTime(ctx, sessionID, questionID, delta); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.ledgerMissErr(ctx, sessionID, questionID)
		}
		return fmt.Errorf("add time: %w", err)
	}
	return s.bumpVersion(ctx, sessionID)
}

// Submit finalizes the session. Idempotent: a completed session returns its
// existing result unchanged. A submit that arrives past the deadline still
// succeeds but is recorded as a timeout.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, learnerID int, reason model.FinalizationReason) (*model.Result, error) {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionStatusCompleted {
		return s.results.GetBySession(ctx, sessionID)
	}

	if reason == "" {
		reason = model.ReasonUserSubmit
	}
	if IsExpired(sess, s.now(), s.skew) {
		reason = model.ReasonTimeout
	}
	return s.finalize(ctx, sess, reason)
}

// FinalizeExpired is the internal timeout path used by the expiry sweep and
// by the DeadlineExceeded side effect. It has no owner check and is a no-op
// for sessions that are already completed or not yet due.
func (s *SessionService) FinalizeExpired(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusCompleted {
		// Stale index entry; make sure it is dropped.
		_ = s.deadlines.Remove(ctx, sessionID)
		return nil
	}
	// No skew here: the sweep runs well after the request-path tolerance.
	if !IsExpired(sess, s.now(), 0) {
		return nil
	}

	if _, err := s.finalize(ctx, sess, model.ReasonTimeout); err != nil {
		return err
	}
	return nil
}

// Result returns the frozen result, or ErrResultNotReady while IN_PROGRESS.
func (s *SessionService) Result(ctx context.Context, sessionID uuid.UUID, learnerID int) (*model.Result, error) {
	sess, err := s.loadOwned(ctx, sessionID, learnerID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusCompleted {
		return nil, ErrResultNotReady
	}
	return s.results.GetBySession(ctx, sessionID)
}

// ─── Internals ──────────────────────────────────────────────────────

func (s *SessionService) loadOwned(ctx context.Context, sessionID uuid.UUID, learnerID int) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.LearnerID != learnerID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// guardMutable rejects mutations on completed or expired sessions. On
// expiry it triggers the same finalize path the sweep uses, so the caller's
// next read observes COMPLETED rather than a stuck session.
func (s *SessionService) guardMutable(ctx context.Context, sess *model.Session) error {
	if sess.Status == model.SessionStatusCompleted {
		return ErrInvalidState
	}
	if IsExpired(sess, s.now(), s.skew) {
		if _, err := s.finalize(ctx, sess, model.ReasonTimeout); err != nil && !errors.Is(err, ErrConcurrencyConflict) {
			s.log.Error().Err(err).Str("session_id", sess.ID.String()).
				Msg("Auto-finalize on expired mutation failed")
		}
		return ErrDeadlineExceeded
	}
	return nil
}

func (s *SessionService) bumpVersion(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.IncrementVersion(ctx, sessionID); err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	return nil
}

// clampDelta bounds one reported delta so that the ledger's total can never
// exceed the wall-clock seconds elapsed since the session started, nor the
// remaining budget of a timed session.
func (s *SessionService) clampDelta(sess *model.Session, delta, totalSpent int) int {
	if delta < 0 {
		return 0
	}
	if delta > s.timeCeiling {
		delta = s.timeCeiling
	}
	now := s.now()
	if budget := int(now.Sub(sess.StartedAt)/time.Second) - totalSpent; delta > budget {
		delta = budget
	}
	if remaining, ok := RemainingSeconds(sess, now); ok && delta > remaining {
		delta = remaining
	}
	if delta < 0 {
		return 0
	}
	return delta
}

// ledgerMissErr disambiguates a zero-row ledger write: if the record exists
// the session was finalized concurrently, otherwise the question is not
// part of this session.
func (s *SessionService) ledgerMissErr(ctx context.Context, sessionID, questionID uuid.UUID) error {
	if _, err := s.answers.Get(ctx, sessionID, questionID); err == nil {
		return ErrInvalidState
	}
	return fmt.Errorf("%w: question %s", ErrNotFound, questionID)
}

// finalize grades against the correctness key, applies the scoring policy,
// and attempts the atomic completion. Exactly one caller wins per session;
// losers read back the winner's persisted result and never recompute.
func (s *SessionService) finalize(ctx context.Context, sess *model.Session, reason model.FinalizationReason) (*model.Result, error) {
	key, err := s.papers.AnswerKey(ctx, sess.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	records, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[uuid.UUID]*model.AnswerRecord, len(records))
	for i := range records {
		byQuestion[records[i].QuestionID] = &records[i]
	}

	graded := make([]model.AnswerRecord, 0, len(sess.QuestionIDs))
	outcomes := make([]model.QuestionOutcome, 0, len(sess.QuestionIDs))
	for _, qid := range sess.QuestionIDs {
		rec, ok := byQuestion[qid]
		if !ok {
			rec = &model.AnswerRecord{SessionID: sess.ID, QuestionID: qid}
		}
		correct := key[qid]
		isCorrect := rec.SelectedOptionID != nil && *rec.SelectedOptionID == correct
		rec.IsCorrect = &isCorrect
		graded = append(graded, *rec)
		outcomes = append(outcomes, model.QuestionOutcome{
			QuestionID:       qid,
			SelectedOptionID: rec.SelectedOptionID,
			CorrectOptionID:  correct,
			IsCorrect:        isCorrect,
		})
	}

	correctCount, scorePercent := s.policy.Score(outcomes)

	res := &model.Result{
		SessionID:      sess.ID,
		TotalQuestions: len(sess.QuestionIDs),
		CorrectCount:   correctCount,
		ScorePercent:   scorePercent,
		PerQuestion:    outcomes,
		Reason:         reason,
		FinalizedAt:    s.now(),
	}

	won, err := s.sessions.Finalize(ctx, sess.ID, sess.Version, graded, res)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	if !won {
		// Another submit or the sweep beat us. Their result is the result.
		latest, err := s.sessions.GetByID(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("re-read session: %w", err)
		}
		if latest.Status != model.SessionStatusCompleted {
			return nil, ErrConcurrencyConflict
		}
		existing, err := s.results.GetBySession(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("read existing result: %w", err)
		}
		return existing, nil
	}

	if err := s.deadlines.Remove(ctx, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).
			Msg("Failed to drop deadline index entry")
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("reason", string(reason)).
		Int("correct", correctCount).
		Float64("score", scorePercent).
		Msg("Session finalized")

	return res, nil
}

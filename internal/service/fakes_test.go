package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/praxislearn/assess-backend/internal/model"
)

// memStore is an in-memory session aggregate store mirroring the
// repository semantics: Create collapses duplicate (paper, learner) starts
// into pgx.ErrNoRows, Finalize is an atomic compare-and-set under the lock.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
	answers  map[uuid.UUID]map[uuid.UUID]*model.AnswerRecord
	results  map[uuid.UUID]*model.Result

	// now stamps StartedAt; tests point it at the same clock the service
	// uses so elapsed-time arithmetic lines up exactly.
	now func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]*model.Session),
		answers:  make(map[uuid.UUID]map[uuid.UUID]*model.AnswerRecord),
		results:  make(map[uuid.UUID]*model.Result),
		now:      time.Now,
	}
}

func copySession(s *model.Session) *model.Session {
	dup := *s
	dup.QuestionIDs = append([]uuid.UUID(nil), s.QuestionIDs...)
	return &dup
}

func (m *memStore) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.PaperID == s.PaperID && existing.LearnerID == s.LearnerID {
			return pgx.ErrNoRows
		}
	}
	s.StartedAt = m.now()
	s.Version = 0
	s.Status = model.SessionStatusInProgress
	m.sessions[s.ID] = copySession(s)

	seed := make(map[uuid.UUID]*model.AnswerRecord, len(s.QuestionIDs))
	for _, qid := range s.QuestionIDs {
		seed[qid] = &model.AnswerRecord{SessionID: s.ID, QuestionID: qid}
	}
	m.answers[s.ID] = seed
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copySession(s), nil
}

func (m *memStore) GetByPaperAndLearner(_ context.Context, paperID uuid.UUID, learnerID int) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.PaperID == paperID && s.LearnerID == learnerID {
			return copySession(s), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) IncrementVersion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.Status == model.SessionStatusInProgress {
		s.Version++
	}
	return nil
}

func (m *memStore) Finalize(_ context.Context, sessionID uuid.UUID, version int64, graded []model.AnswerRecord, res *model.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if s.Status != model.SessionStatusInProgress || s.Version != version {
		return false, nil
	}
	s.Status = model.SessionStatusCompleted
	completedAt := res.FinalizedAt
	s.CompletedAt = &completedAt
	s.Version++

	for i := range graded {
		if rec, ok := m.answers[sessionID][graded[i].QuestionID]; ok {
			rec.IsCorrect = graded[i].IsCorrect
		}
	}

	dup := *res
	dup.PerQuestion = append([]model.QuestionOutcome(nil), res.PerQuestion...)
	m.results[sessionID] = &dup
	return true, nil
}

func (m *memStore) ListExpired(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range m.sessions {
		if s.Status != model.SessionStatusInProgress || s.TimeLimitSeconds == nil {
			continue
		}
		if !now.Before(s.StartedAt.Add(time.Duration(*s.TimeLimitSeconds) * time.Second)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AnswerStore

func (m *memStore) Get(_ context.Context, sessionID, questionID uuid.UUID) (*model.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.answers[sessionID][questionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *rec
	return &dup, nil
}

func (m *memStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []model.AnswerRecord
	for _, rec := range m.answers[sessionID] {
		records = append(records, *rec)
	}
	return records, nil
}

// liveAnswer mirrors the repository's SQL status guard: zero rows for an
// unknown question or a completed session. Callers hold m.mu.
func (m *memStore) liveAnswer(sessionID, questionID uuid.UUID) (*model.AnswerRecord, bool) {
	if s, ok := m.sessions[sessionID]; !ok || s.Status != model.SessionStatusInProgress {
		return nil, false
	}
	rec, ok := m.answers[sessionID][questionID]
	return rec, ok
}

func (m *memStore) SetSelectedOption(_ context.Context, sessionID, questionID uuid.UUID, option string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.liveAnswer(sessionID, questionID)
	if !ok {
		return pgx.ErrNoRows
	}
	rec.SelectedOptionID = &option
	return nil
}

func (m *memStore) ToggleReview(_ context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.liveAnswer(sessionID, questionID)
	if !ok {
		return false, pgx.ErrNoRows
	}
	rec.MarkedForReview = !rec.MarkedForReview
	return rec.MarkedForReview, nil
}

func (m *memStore) AddTime(_ context.Context, sessionID, questionID uuid.UUID, deltaSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.liveAnswer(sessionID, questionID)
	if !ok {
		return pgx.ErrNoRows
	}
	rec.TimeSpentSeconds += deltaSeconds
	return nil
}

// ResultStore

func (m *memStore) GetBySession(_ context.Context, sessionID uuid.UUID) (*model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *res
	dup.PerQuestion = append([]model.QuestionOutcome(nil), res.PerQuestion...)
	return &dup, nil
}

// fakePapers is an in-memory PaperSource.
type fakePapers struct {
	mu        sync.Mutex
	papers    map[uuid.UUID]*model.Paper
	questions map[uuid.UUID][]model.Question
}

func newFakePapers() *fakePapers {
	return &fakePapers{
		papers:    make(map[uuid.UUID]*model.Paper),
		questions: make(map[uuid.UUID][]model.Question),
	}
}

func (f *fakePapers) addPaper(timeLimitSeconds *int, correctOptions ...string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	paperID := uuid.New()
	f.papers[paperID] = &model.Paper{
		ID:               paperID,
		Title:            "Test Paper",
		TimeLimitSeconds: timeLimitSeconds,
		CreatedAt:        time.Now(),
	}
	qs := make([]model.Question, 0, len(correctOptions))
	for i, correct := range correctOptions {
		qs = append(qs, model.Question{
			ID:            uuid.New(),
			PaperID:       paperID,
			QuestionText:  "question",
			Options:       []byte(`{"A":"a","B":"b","C":"c"}`),
			CorrectOption: correct,
			OrderNum:      i,
		})
	}
	f.questions[paperID] = qs
	return paperID
}

func (f *fakePapers) GetPaper(_ context.Context, paperID uuid.UUID) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.papers[paperID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *p
	return &dup, nil
}

func (f *fakePapers) QuestionIDs(_ context.Context, paperID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, q := range f.questions[paperID] {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (f *fakePapers) LearnerQuestions(_ context.Context, paperID uuid.UUID) ([]model.QuestionForLearner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.QuestionForLearner
	for i := range f.questions[paperID] {
		out = append(out, f.questions[paperID][i].ForLearner())
	}
	return out, nil
}

func (f *fakePapers) AnswerKey(_ context.Context, paperID uuid.UUID) (map[uuid.UUID]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := make(map[uuid.UUID]string)
	for _, q := range f.questions[paperID] {
		key[q.ID] = q.CorrectOption
	}
	return key, nil
}

// fakeDeadlines is an in-memory DeadlineTracker.
type fakeDeadlines struct {
	mu      sync.Mutex
	entries map[uuid.UUID]time.Time
}

func newFakeDeadlines() *fakeDeadlines {
	return &fakeDeadlines{entries: make(map[uuid.UUID]time.Time)}
}

func (f *fakeDeadlines) Add(_ context.Context, sessionID uuid.UUID, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[sessionID] = deadline
	return nil
}

func (f *fakeDeadlines) Remove(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
	return nil
}

func (f *fakeDeadlines) Due(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, deadline := range f.entries {
		if !now.Before(deadline) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeDeadlines) has(sessionID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[sessionID]
	return ok
}
